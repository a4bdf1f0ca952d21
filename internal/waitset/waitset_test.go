package waitset_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/waitset"
)

func TestWaitReturnsImmediatelyWhenAlreadyTriggered(t *testing.T) {
	ws := waitset.New()
	g := waitset.NewGuardCondition()
	g.Trigger()
	ws.Attach(g)

	triggered, ok := ws.Wait(0)
	require.True(t, ok)
	require.Len(t, triggered, 1)
}

func TestWaitTimesOutWithNoTrigger(t *testing.T) {
	ws := waitset.New()
	ws.Attach(waitset.NewGuardCondition())

	_, ok := ws.Wait(20 * time.Millisecond)
	require.False(t, ok)
}

func TestWaitWakesOnNotifyAfterTrigger(t *testing.T) {
	ws := waitset.New()
	g := waitset.NewGuardCondition()
	ws.Attach(g)

	done := make(chan bool, 1)
	go func() {
		_, ok := ws.Wait(time.Second)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	g.Trigger()
	ws.Notify()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Wait never woke after Notify")
	}
}

func TestPredicateConditionReflectsLiveState(t *testing.T) {
	var hasData atomic.Bool
	ws := waitset.New()
	ws.Attach(waitset.NewPredicateCondition(hasData.Load))

	_, ok := ws.Wait(0)
	require.False(t, ok)

	hasData.Store(true)
	triggered, ok := ws.Wait(0)
	require.True(t, ok)
	require.Len(t, triggered, 1)
}

func TestDispatcherInvokesHandlerOnTrigger(t *testing.T) {
	ws := waitset.New()
	g := waitset.NewGuardCondition()
	ws.Attach(g)

	fired := make(chan struct{}, 1)
	d := waitset.NewDispatcher(ws, func(conds []waitset.Condition) {
		fired <- struct{}{}
	})
	d.Start()
	defer d.Stop()

	g.Trigger()
	ws.Notify()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("dispatcher never invoked handler")
	}
}
