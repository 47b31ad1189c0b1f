// Package logs provides the call-site-tagged logger used throughout
// this repository, in place of the standard library's bare *log.Logger.
package logs

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Logger writes timestamped, location-tagged lines to an underlying
// io.Writer. Every line is stamped with the file:line of whoever
// called Log/Logf/Write, not of Logger itself, so a log tail reads
// like a stack of call sites rather than a stack of "logger.go:42".
type Logger struct {
	Writer io.Writer

	// Verbose gates Debug/Debugf. Off by default, set from the -v flag:
	// per-message routing traffic is noisy enough that it shouldn't
	// show up in the default log unless asked for.
	Verbose bool

	mu sync.Mutex
}

// New wraps w in a Logger.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Log writes s as one line.
func (l *Logger) Log(s string) {
	l.logAt(s, 2)
}

// Logf formats and writes one line.
func (l *Logger) Logf(format string, args ...interface{}) {
	l.logAt(fmt.Sprintf(format, args...), 2)
}

// Debug writes s as one line, but only when Verbose is set.
func (l *Logger) Debug(s string) {
	if !l.Verbose {
		return
	}
	l.logAt(s, 2)
}

// Debugf formats and writes one line, but only when Verbose is set.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}
	l.logAt(fmt.Sprintf(format, args...), 2)
}

// Write implements io.Writer so a Logger can be handed to log.New or
// gorilla/handlers.LoggingHandler directly.
func (l *Logger) Write(p []byte) (int, error) {
	l.logAt(string(p), 2)
	return len(p), nil
}

func (l *Logger) logAt(s string, skip int) {
	s = strings.TrimRight(s, "\n")
	location := callerLocation(skip + 1)
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05.000"), location, s)
	l.println(line)
}

func callerLocation(skip int) string {
	pc := make([]uintptr, 1)
	n := runtime.Callers(skip+1, pc)
	if n == 0 {
		return "?"
	}
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	return fmt.Sprintf("%s:%d", trimToModule(frame.File), frame.Line)
}

// trimToModule shortens an absolute source path down to the part
// under this module's own tree, for readability in logs.
func trimToModule(file string) string {
	const marker = "/midi-server/"
	if idx := strings.LastIndex(file, marker); idx >= 0 {
		return file[idx+len(marker):]
	}
	return file
}

func (l *Logger) println(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.Writer, line+"\n"); err != nil {
		fmt.Println("logs: write failed:", err)
	}
}
