package runtime_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/runtime"
)

func TestWorkerPoolRunsSubmittedJobs(t *testing.T) {
	p := runtime.NewWorkerPool(2)
	p.Start()
	defer p.Stop()

	var n atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		p.Submit(func() {
			if n.Add(1) == 10 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all jobs ran")
	}
	require.EqualValues(t, 10, n.Load())
}

func TestTimerWheelFiresAfterDelay(t *testing.T) {
	w := runtime.NewTimerWheel()
	w.Start()
	defer w.Stop()

	fired := make(chan struct{}, 1)
	w.Schedule(5*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimerWheelCancelPreventsFire(t *testing.T) {
	w := runtime.NewTimerWheel()
	w.Start()
	defer w.Stop()

	fired := make(chan struct{}, 1)
	handle := w.Schedule(20*time.Millisecond, func() { fired <- struct{}{} })
	w.Cancel(handle)

	select {
	case <-fired:
		t.Fatal("canceled timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimerWheelFiresAcrossCascadeBoundary(t *testing.T) {
	w := runtime.NewTimerWheel()
	w.Start()
	defer w.Stop()

	fired := make(chan struct{}, 1)
	// Past one full level0 rotation (256 ticks at 1ms), forcing a
	// cascade from level1 back into level0.
	w.Schedule(300*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("cascaded timer never fired")
	}
}

func TestCancellationTokenPropagatesToChildren(t *testing.T) {
	rt, err := runtime.New(runtime.Options{Workers: 1})
	require.NoError(t, err)
	require.NoError(t, rt.Start())
	defer rt.Shutdown()

	parent := rt.NewCancellationToken()
	child := parent.Child()
	require.False(t, child.Canceled())

	parent.Cancel()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child token was not canceled with its parent")
	}
	require.True(t, child.Canceled())
}

func TestRuntimeSchedulerIsUsable(t *testing.T) {
	rt, err := runtime.New(runtime.Options{Workers: 1})
	require.NoError(t, err)
	require.NoError(t, rt.Start())
	defer rt.Shutdown()

	require.NotNil(t, rt.Scheduler())
	require.NotNil(t, rt.Pool())
	require.NotNil(t, rt.TimerWheel())
}
