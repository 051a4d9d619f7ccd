package mqroute

import (
	"context"
	"sync"
	"sync/atomic"
)

// RouterStats holds routing counters.
type RouterStats struct {
	MessagesReceived   uint64 // deliveries passed to OnMessage
	MessagesUnmatched  uint64 // deliveries no route matched
	HandlersDispatched uint64 // handler invocations started
	HandlerFailures    uint64 // handlers that returned an error or panicked
	BindingErrors      uint64 // invocations aborted by a BindingError
	DecodeErrors       uint64 // payloads that did not decode into an argument
	Routes             int
	Subscriptions      int
}

type routerStats struct {
	received      atomic.Uint64
	unmatched     atomic.Uint64
	dispatched    atomic.Uint64
	failures      atomic.Uint64
	bindingErrors atomic.Uint64
	decodeErrors  atomic.Uint64
}

// inflight counts running handler goroutines. Unlike sync.WaitGroup it
// allows new work to start while someone is waiting for idle.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
	f.mu.Unlock()
}

func (f *inflight) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
	f.mu.Unlock()
}

func (f *inflight) wait(ctx context.Context) error {
	f.mu.Lock()
	if f.n == 0 {
		f.mu.Unlock()
		return nil
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
