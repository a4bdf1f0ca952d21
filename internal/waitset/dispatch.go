package waitset

import (
	"sync"
	"time"
)

// Dispatcher drives callback-based delivery as an alternative to a
// caller explicitly polling WaitSet.Wait (§4.10's "per-reader callback
// dispatch mode"): it owns a dedicated WaitSet internally and invokes a
// handler on a private goroutine every time a condition triggers.
type Dispatcher struct {
	ws *WaitSet

	mu      sync.Mutex
	handler func([]Condition)
	stop    chan struct{}
	done    chan struct{}
}

// NewDispatcher builds a Dispatcher that calls handler with the set of
// triggered conditions every time WaitSet.Wait wakes with at least one.
func NewDispatcher(ws *WaitSet, handler func([]Condition)) *Dispatcher {
	return &Dispatcher{
		ws:      ws,
		handler: handler,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the dispatch loop on a new goroutine.
func (d *Dispatcher) Start() {
	go d.run()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		triggered, ok := d.ws.Wait(waitPollInterval)
		if !ok {
			continue
		}
		d.mu.Lock()
		handler := d.handler
		d.mu.Unlock()
		if handler != nil {
			handler(triggered)
		}

		for _, c := range triggered {
			if g, isGuard := c.(*GuardCondition); isGuard {
				g.Reset()
			}
		}
	}
}

// Stop ends the dispatch loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.ws.Notify()
	<-d.done
}

// waitPollInterval bounds how long Start's loop blocks before
// re-checking the stop channel, so Stop returns promptly even if no
// condition ever triggers.
const waitPollInterval = 200 * time.Millisecond
