// Command midi-server runs the HTTP-to-MIDI routing bridge: it opens
// a listening socket, a platform MIDI driver, and wires the port
// registry, route manager, and HTTP facade together.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audiocontrol-org/midi-server/internal/config"
	"github.com/audiocontrol-org/midi-server/internal/httpapi"
	"github.com/audiocontrol-org/midi-server/internal/logs"
	"github.com/audiocontrol-org/midi-server/internal/mididriver/rtmidi"
	"github.com/audiocontrol-org/midi-server/internal/registry"
	"github.com/audiocontrol-org/midi-server/internal/route"
)

const defaultListenPort = 7777

func main() {
	var logFile string
	var verbose bool
	flag.StringVar(&logFile, "l", "", "write logs to this file instead of stderr, rotating once it exceeds 5MB")
	flag.BoolVar(&verbose, "v", false, "write verbose logs, including every routed message, to either stderr or logfile")
	flag.Parse()

	listenPort := defaultListenPort
	if args := flag.Args(); len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("invalid listen port %q: %v", args[0], err)
		}
		listenPort = p
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    5,
			MaxBackups: 3,
		}
	}
	logger := logs.New(out)
	logger.Verbose = verbose
	logger.Log("midi-server starting")

	driver, err := rtmidi.New()
	if err != nil {
		log.Fatalf("midi driver: %v", err)
	}
	defer driver.Close()

	reg := registry.New(driver, logger)

	routesPath, err := config.RoutesPath()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	newSender := func(host string, port int) route.RemoteSender {
		return route.NewRemoteForwarder(host, port, logger)
	}
	routes := route.New(routesPath, logger, newSender, reg.EnsureLocalPhysicalOpen)
	defer routes.Close()

	reg.SetRoutingCallback(routes.Forward)
	routes.SetLocalForwarder(reg.SendToLocal)
	routes.AutoOpenAll()

	server := httpapi.New(reg, routes, out, logger)

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", listenPort))
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	actualPort := ln.Addr().(*net.TCPAddr).Port
	fmt.Printf("MIDI_SERVER_PORT=%d\n", actualPort)
	logger.Logf("listening on %s", ln.Addr())

	if err := server.Serve(ln); err != nil {
		log.Fatalf("http: %v", err)
	}
}
