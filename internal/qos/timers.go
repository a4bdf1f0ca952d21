package qos

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// DeadlineMonitor tracks the last write time of every instance an
// endpoint is responsible for and reports a deadline miss when no
// write arrives within the configured period (§4.9). It is owned by
// one Writer or Reader, never a package singleton (§9).
type DeadlineMonitor struct {
	period    time.Duration
	onMissed  func(rtpstypes.InstanceKey)
	scheduler gocron.Scheduler
	job       gocron.Job

	mu   sync.Mutex
	last map[rtpstypes.InstanceKey]time.Time
}

// NewDeadlineMonitor builds a monitor for the given deadline period. A
// zero period disables monitoring (Start becomes a no-op).
func NewDeadlineMonitor(scheduler gocron.Scheduler, period time.Duration, onMissed func(rtpstypes.InstanceKey)) *DeadlineMonitor {
	return &DeadlineMonitor{
		period:    period,
		onMissed:  onMissed,
		scheduler: scheduler,
		last:      make(map[rtpstypes.InstanceKey]time.Time),
	}
}

// Start registers the periodic check with the scheduler, ticking at
// half the deadline period so a miss is caught promptly.
func (m *DeadlineMonitor) Start() error {
	if m.period <= 0 || m.scheduler == nil {
		return nil
	}
	tick := m.period / 2
	if tick <= 0 {
		tick = m.period
	}
	job, err := m.scheduler.NewJob(
		gocron.DurationJob(tick),
		gocron.NewTask(m.checkNow),
	)
	if err != nil {
		return err
	}
	m.job = job
	return nil
}

// Stop removes the periodic check, if one was started.
func (m *DeadlineMonitor) Stop() {
	if m.job != nil && m.scheduler != nil {
		_ = m.scheduler.RemoveJob(m.job.ID())
	}
}

// Touch records a write to instance at now, resetting its deadline
// window.
func (m *DeadlineMonitor) Touch(instance rtpstypes.InstanceKey, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[instance] = now
}

// Forget drops instance from tracking, e.g. on dispose.
func (m *DeadlineMonitor) Forget(instance rtpstypes.InstanceKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.last, instance)
}

func (m *DeadlineMonitor) checkNow() {
	now := time.Now()
	m.mu.Lock()
	var missed []rtpstypes.InstanceKey
	for inst, t := range m.last {
		if now.Sub(t) > m.period {
			missed = append(missed, inst)
			// Re-arm from now so a stalled instance reports once per
			// period instead of on every tick until it resumes.
			m.last[inst] = now
		}
	}
	m.mu.Unlock()
	if m.onMissed == nil {
		return
	}
	for _, inst := range missed {
		m.onMissed(inst)
	}
}

// LivelinessMonitor tracks writer liveliness leases and reports
// liveliness-lost/regained transitions (§4.9, §7). A writer stays alive
// only through Assert calls, whatever its liveliness kind; the monitor
// does not assert on its own for AUTOMATIC writers.
type LivelinessMonitor struct {
	lease     time.Duration
	onLost    func(rtpstypes.GUID)
	onRegained func(rtpstypes.GUID)
	scheduler gocron.Scheduler

	mu      sync.Mutex
	writers map[rtpstypes.GUID]*livelinessEntry
}

type livelinessEntry struct {
	lastAssert time.Time
	alive      bool
	timer      *time.Timer
}

// NewLivelinessMonitor builds a monitor with the given per-writer lease
// duration.
func NewLivelinessMonitor(lease time.Duration, onLost, onRegained func(rtpstypes.GUID)) *LivelinessMonitor {
	return &LivelinessMonitor{
		lease:      lease,
		onLost:     onLost,
		onRegained: onRegained,
		writers:    make(map[rtpstypes.GUID]*livelinessEntry),
	}
}

// Assert marks writer alive now, re-arming its lease timer. If the
// writer had previously been declared lost, onRegained fires.
func (m *LivelinessMonitor) Assert(writer rtpstypes.GUID) {
	m.mu.Lock()
	e, ok := m.writers[writer]
	wasLost := ok && !e.alive
	if !ok {
		e = &livelinessEntry{}
		m.writers[writer] = e
	}
	e.lastAssert = time.Now()
	e.alive = true
	if e.timer != nil {
		e.timer.Stop()
	}
	if m.lease > 0 {
		e.timer = time.AfterFunc(m.lease, func() { m.expire(writer) })
	}
	m.mu.Unlock()

	if wasLost && m.onRegained != nil {
		m.onRegained(writer)
	}
}

// RemoveWriter stops tracking writer entirely, e.g. on unmatch.
func (m *LivelinessMonitor) RemoveWriter(writer rtpstypes.GUID) {
	m.mu.Lock()
	e, ok := m.writers[writer]
	if ok && e.timer != nil {
		e.timer.Stop()
	}
	delete(m.writers, writer)
	m.mu.Unlock()
}

// IsAlive reports whether writer's lease currently holds.
func (m *LivelinessMonitor) IsAlive(writer rtpstypes.GUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.writers[writer]
	return ok && e.alive
}

func (m *LivelinessMonitor) expire(writer rtpstypes.GUID) {
	m.mu.Lock()
	e, ok := m.writers[writer]
	if ok {
		e.alive = false
	}
	m.mu.Unlock()
	if ok && m.onLost != nil {
		m.onLost(writer)
	}
}

// LifespanExpired reports whether a sample written at writeTime has
// outlived lifespan at now. It is a pure predicate and removes nothing
// from any history cache; a non-positive lifespan never expires.
func LifespanExpired(writeTime time.Time, lifespan time.Duration, now time.Time) bool {
	if lifespan <= 0 {
		return false
	}
	return now.Sub(writeTime) > lifespan
}
