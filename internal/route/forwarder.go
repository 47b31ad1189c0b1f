package route

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/audiocontrol-org/midi-server/internal/logs"
)

type pendingRequest struct {
	path string
	body []byte
}

// RemoteForwarder owns one keep-alive HTTP client and a FIFO queue of
// pending requests to a single remote bridge instance, drained by one
// worker goroutine. Send never blocks on network I/O — it pushes onto
// the queue and returns.
type RemoteForwarder struct {
	client  *http.Client
	baseURL string
	log     *logs.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []pendingRequest
	running bool
	done    chan struct{}
}

// NewRemoteForwarder starts the worker goroutine for host:port.
func NewRemoteForwarder(host string, port int, log *logs.Logger) *RemoteForwarder {
	f := &RemoteForwarder{
		client: &http.Client{
			Timeout: 2 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   1 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 1,
			},
		},
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		log:     log,
		running: true,
		done:    make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	go f.run()
	return f
}

// Send enqueues one request; it never blocks on the network.
func (f *RemoteForwarder) Send(path string, body []byte) {
	f.mu.Lock()
	f.queue = append(f.queue, pendingRequest{path: path, body: body})
	f.mu.Unlock()
	f.cond.Signal()
}

func (f *RemoteForwarder) run() {
	defer close(f.done)
	for {
		f.mu.Lock()
		for len(f.queue) == 0 && f.running {
			f.cond.Wait()
		}
		if !f.running {
			f.mu.Unlock()
			return
		}
		item := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()

		f.deliver(item)
	}
}

// deliver posts one request and drops it on failure — no retry.
func (f *RemoteForwarder) deliver(item pendingRequest) {
	req, err := http.NewRequest(http.MethodPost, f.baseURL+item.path, bytes.NewReader(item.body))
	if err != nil {
		f.log.Logf("remote forward: build request for %s%s: %v", f.baseURL, item.path, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Logf("remote forward to %s%s failed: %v", f.baseURL, item.path, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.log.Logf("remote forward to %s%s returned status %d", f.baseURL, item.path, resp.StatusCode)
	}
}

// Close stops the worker, discarding anything still queued, and
// blocks until it has exited.
func (f *RemoteForwarder) Close() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	f.cond.Signal()
	<-f.done
}
