package route

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/audiocontrol-org/midi-server/internal/logs"
)

func TestRemoteForwarderDeliversQueuedRequestsInOrder(t *testing.T) {
	var mu sync.Mutex
	var received []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		received = append(received, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := mustSplitHostPort(t, srv.URL)
	f := NewRemoteForwarder(host, port, logs.New(io.Discard))
	defer f.Close()

	f.Send("/port/output-0/send", []byte(`{"message":[144,64,127]}`))
	f.Send("/port/output-1/send", []byte(`{"message":[144,65,127]}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if received[0] != "/port/output-0/send" || received[1] != "/port/output-1/send" {
		t.Fatalf("got %v", received)
	}
}

func TestRemoteForwarderDropsOnFailureWithoutRetry(t *testing.T) {
	var mu sync.Mutex
	hits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, port := mustSplitHostPort(t, srv.URL)
	f := NewRemoteForwarder(host, port, logs.New(io.Discard))
	defer f.Close()

	f.Send("/port/output-0/send", []byte(`{"message":[144,64,127]}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return hits == 1
	})

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected exactly one delivery attempt, got %d", hits)
	}
}

func TestRemoteForwarderCloseDiscardsQueueAndReturns(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := mustSplitHostPort(t, srv.URL)
	f := NewRemoteForwarder(host, port, logs.New(io.Discard))

	f.Send("/port/output-0/send", []byte(`{"message":[1]}`))
	time.Sleep(10 * time.Millisecond) // let the worker pick up the first item and block on it
	f.Send("/port/output-1/send", []byte(`{"message":[2]}`))

	done := make(chan struct{})
	go func() {
		close(blocked)
		f.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}
}

func mustSplitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port from %q: %v", rawURL, err)
	}
	return u.Hostname(), port
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
