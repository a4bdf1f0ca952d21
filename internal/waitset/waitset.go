package waitset

import (
	"sync"
	"time"
)

// WaitSet aggregates a set of Conditions and blocks a caller until at
// least one becomes true, a timeout elapses, or it is explicitly woken
// (§4.10). It follows the same mutex+sync.Cond broadcast pattern as
// pkg/lrucache's cache entry computation wait, generalized from
// waiting on one key's result to waiting on an arbitrary condition
// set.
//
// A WaitSet is owned by exactly one waiter (goroutine or Dispatcher),
// never a package singleton (§9). Sources of change (a reader
// delivering a sample, a graph mutation, an application triggering a
// guard condition) must call WaitSet.Notify after mutating state
// a condition depends on; WaitSet has no way to observe PredicateCondition
// state changing on its own.
type WaitSet struct {
	mu         sync.Mutex
	cond       *sync.Cond
	conditions []Condition
}

// New builds an empty WaitSet.
func New() *WaitSet {
	ws := &WaitSet{}
	ws.cond = sync.NewCond(&ws.mu)
	return ws
}

// Attach adds c to the set of conditions this WaitSet waits on.
func (ws *WaitSet) Attach(c Condition) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.conditions = append(ws.conditions, c)
}

// Detach removes c, if present.
func (ws *WaitSet) Detach(c Condition) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i, existing := range ws.conditions {
		if existing == c {
			ws.conditions = append(ws.conditions[:i], ws.conditions[i+1:]...)
			return
		}
	}
}

// Notify wakes every goroutine currently blocked in Wait, which then
// re-checks every attached condition. Call this whenever state a
// Condition depends on may have changed.
func (ws *WaitSet) Notify() {
	ws.mu.Lock()
	ws.cond.Broadcast()
	ws.mu.Unlock()
}

// Wait blocks until at least one attached condition is true, returning
// the (possibly empty on timeout) list of triggered conditions and
// whether any triggered before the deadline.
//
// timeout == 0 performs a single non-blocking check. timeout < 0 waits
// indefinitely. timeout > 0 bounds the wait.
func (ws *WaitSet) Wait(timeout time.Duration) ([]Condition, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if triggered := ws.triggeredLocked(); len(triggered) > 0 {
		return triggered, true
	}
	if timeout == 0 {
		return nil, false
	}

	if timeout < 0 {
		for {
			ws.cond.Wait()
			if triggered := ws.triggeredLocked(); len(triggered) > 0 {
				return triggered, true
			}
		}
	}

	deadline := time.Now().Add(timeout)
	timedOut := false
	timer := time.AfterFunc(timeout, func() {
		ws.mu.Lock()
		timedOut = true
		ws.cond.Broadcast()
		ws.mu.Unlock()
	})
	defer timer.Stop()

	for {
		ws.cond.Wait()
		if triggered := ws.triggeredLocked(); len(triggered) > 0 {
			return triggered, true
		}
		if timedOut || time.Now().After(deadline) {
			return nil, false
		}
	}
}

func (ws *WaitSet) triggeredLocked() []Condition {
	var out []Condition
	for _, c := range ws.conditions {
		if c.TriggerValue() {
			out = append(out, c)
		}
	}
	return out
}
