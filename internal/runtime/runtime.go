// Package runtime implements the execution substrate every Participant
// runs on (§4.11, §9): a bounded worker pool, a hierarchical timer
// wheel, and per-participant cancellation tokens, all wired through one
// explicitly owned *Runtime value. §9's Design Notes call this out
// directly: "all 'static singletons' are replaced by fields of that
// runtime passed through entity handles" — there is deliberately no
// package-level scheduler or pool here, mirroring internal/taskManager's
// Start/Shutdown lifecycle but turning its package-level `s
// gocron.Scheduler` into an owned field instead.
package runtime

import (
	"fmt"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/gops/agent"

	"github.com/hdds-io/hdds/pkg/log"
)

// Options configures a Runtime at construction time.
type Options struct {
	// Workers bounds the worker pool size (§4.11 "bounded thread
	// pool"). Zero uses NumCPU.
	Workers int
	// EnableGops starts a google/gops diagnostics agent for live
	// introspection of this process, mirroring internal/memorystore's
	// own EnableGops debug flag.
	EnableGops bool
	GopsAddr   string
}

// Runtime owns the scheduler, worker pool, and timer wheel shared by
// every component (reliability, qos timers, discovery) within one
// process. Constructed once per process (or once per test), never a
// package singleton.
type Runtime struct {
	opts      Options
	scheduler gocron.Scheduler
	pool      *WorkerPool
	wheel     *TimerWheel

	mu         sync.Mutex
	tokens     map[*CancellationToken]struct{}
	started    bool
	gopsActive bool
}

// New builds a Runtime. The scheduler and timer wheel are not started
// until Start is called.
func New(opts Options) (*Runtime, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("runtime.New: could not create gocron scheduler: %w", err)
	}
	return &Runtime{
		opts:      opts,
		scheduler: s,
		pool:      NewWorkerPool(opts.Workers),
		wheel:     NewTimerWheel(),
		tokens:    make(map[*CancellationToken]struct{}),
	}, nil
}

// Start launches the worker pool, the timer wheel tick loop, the
// gocron scheduler, and (optionally) a gops diagnostics agent.
func (r *Runtime) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.mu.Unlock()

	r.pool.Start()
	r.wheel.Start()
	r.scheduler.Start()

	if r.opts.EnableGops {
		gopsOpts := agent.Options{Addr: r.opts.GopsAddr}
		if err := agent.Listen(gopsOpts); err != nil {
			log.Warnf("runtime: gops agent failed to start: %v", err)
		} else {
			r.mu.Lock()
			r.gopsActive = true
			r.mu.Unlock()
		}
	}
	return nil
}

// Shutdown stops every owned subsystem and cancels every outstanding
// cancellation token, mirroring internal/taskManager.Shutdown's
// s.Shutdown() call but extended to the pool and timer wheel this
// Runtime also owns.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	tokens := make([]*CancellationToken, 0, len(r.tokens))
	for t := range r.tokens {
		tokens = append(tokens, t)
	}
	r.tokens = make(map[*CancellationToken]struct{})
	r.started = false
	r.mu.Unlock()

	for _, t := range tokens {
		t.Cancel()
	}

	r.wheel.Stop()
	r.pool.Stop()

	r.mu.Lock()
	gopsActive := r.gopsActive
	r.gopsActive = false
	r.mu.Unlock()
	if gopsActive {
		agent.Close()
	}
	return r.scheduler.Shutdown()
}

// Scheduler returns the shared gocron.Scheduler, passed into
// internal/reliability's WriterReliability and internal/qos's deadline
// monitor, so their periodic jobs run on one scheduler instead of each
// component spinning up its own.
func (r *Runtime) Scheduler() gocron.Scheduler { return r.scheduler }

// Pool returns the shared bounded worker pool.
func (r *Runtime) Pool() *WorkerPool { return r.pool }

// TimerWheel returns the shared hierarchical timer wheel, used for
// fine-grained (sub-gocron-tick) scheduling such as a writer's deferred
// retry of its outbound queue flush.
func (r *Runtime) TimerWheel() *TimerWheel { return r.wheel }

// NewCancellationToken mints a cooperative cancellation token scoped to
// one participant, tracked so Shutdown cancels every outstanding token.
func (r *Runtime) NewCancellationToken() *CancellationToken {
	t := newCancellationToken()
	r.mu.Lock()
	r.tokens[t] = struct{}{}
	r.mu.Unlock()
	return t
}

// ReleaseCancellationToken stops tracking t, e.g. once a participant
// has finished a clean shutdown of its own and no longer needs
// Runtime.Shutdown to cancel it again.
func (r *Runtime) ReleaseCancellationToken(t *CancellationToken) {
	r.mu.Lock()
	delete(r.tokens, t)
	r.mu.Unlock()
}
