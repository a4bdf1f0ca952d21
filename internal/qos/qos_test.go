package qos_test

import (
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/qos"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestCompatibleRejectsReliabilityMismatch(t *testing.T) {
	writer := qos.DefaultProfile
	writer.Reliability = qos.BestEffort
	reader := qos.DefaultProfile
	reader.Reliability = qos.Reliable

	ok, reason := qos.Compatible(writer, reader)
	require.False(t, ok)
	require.Contains(t, reason, "RELIABLE")
}

func TestCompatibleAcceptsEqualOrWeakerReaderDemands(t *testing.T) {
	writer := qos.DefaultProfile
	writer.Reliability = qos.Reliable
	writer.Durability = qos.TransientLocal
	reader := qos.DefaultProfile
	reader.Reliability = qos.BestEffort
	reader.Durability = qos.Volatile

	ok, _ := qos.Compatible(writer, reader)
	require.True(t, ok)
}

func TestCompatibleRejectsOwnershipMismatch(t *testing.T) {
	writer := qos.DefaultProfile
	writer.Ownership = qos.Exclusive
	reader := qos.DefaultProfile
	reader.Ownership = qos.Shared

	ok, reason := qos.Compatible(writer, reader)
	require.False(t, ok)
	require.Contains(t, reason, "ownership")
}

func TestLoadProfileAppliesDefaultsAndOverrides(t *testing.T) {
	raw := []byte(`{"reliability":"reliable","history":"keep_last","history-depth":10,"deadline":"1s"}`)
	p, err := qos.LoadProfile(raw)
	require.NoError(t, err)
	require.Equal(t, qos.Reliable, p.Reliability)
	require.Equal(t, 10, p.HistoryDepth)
	require.Equal(t, time.Second, p.Deadline)
	require.Equal(t, qos.Volatile, p.Durability) // unspecified: default
}

func TestLoadProfileRejectsUnknownField(t *testing.T) {
	raw := []byte(`{"reliabilty":"reliable"}`)
	_, err := qos.LoadProfile(raw)
	require.Error(t, err)
}

func TestArbitratorPrefersHigherStrength(t *testing.T) {
	a := qos.NewArbitrator()
	inst := rtpstypes.InstanceKey{Canonical: "x"}
	w1 := rtpstypes.GUID{Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	w2 := rtpstypes.GUID{Entity: rtpstypes.EntityId{0, 0, 0, 2}}

	require.True(t, a.Accepts(inst, w1, 5))
	require.False(t, a.Accepts(inst, w2, 3))
	require.True(t, a.Accepts(inst, w2, 10))

	owner, ok := a.Owner(inst)
	require.True(t, ok)
	require.Equal(t, w2, owner)
}

func TestArbitratorRemoveWriterReleasesInstance(t *testing.T) {
	a := qos.NewArbitrator()
	inst := rtpstypes.InstanceKey{Canonical: "x"}
	w1 := rtpstypes.GUID{Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	require.True(t, a.Accepts(inst, w1, 1))

	a.RemoveWriter(w1)
	_, ok := a.Owner(inst)
	require.False(t, ok)
}

func TestContentFilterAcceptsMatchingSample(t *testing.T) {
	f, err := qos.CompileContentFilter(`fields.temperature > 30`)
	require.NoError(t, err)

	ok, err := f.Accepts(map[string]any{"fields": map[string]any{"temperature": 35}})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.Accepts(map[string]any{"fields": map[string]any{"temperature": 10}})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestContentFilterEmptyAlwaysAccepts(t *testing.T) {
	f, err := qos.CompileContentFilter("")
	require.NoError(t, err)
	ok, err := f.Accepts(map[string]any{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeadlineMonitorReportsMissOnStaleInstance(t *testing.T) {
	scheduler, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer scheduler.Shutdown()
	scheduler.Start()

	missed := make(chan rtpstypes.InstanceKey, 1)
	m := qos.NewDeadlineMonitor(scheduler, 10*time.Millisecond, func(k rtpstypes.InstanceKey) { missed <- k })
	require.NoError(t, m.Start())
	defer m.Stop()

	inst := rtpstypes.InstanceKey{Canonical: "x"}
	m.Touch(inst, time.Now().Add(-time.Second))

	select {
	case got := <-missed:
		require.Equal(t, inst, got)
	case <-time.After(time.Second):
		t.Fatal("deadline miss never reported")
	}
}

func TestDeadlineMonitorIgnoresFreshInstance(t *testing.T) {
	scheduler, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer scheduler.Shutdown()
	scheduler.Start()

	missed := make(chan rtpstypes.InstanceKey, 1)
	m := qos.NewDeadlineMonitor(scheduler, 50*time.Millisecond, func(k rtpstypes.InstanceKey) { missed <- k })
	require.NoError(t, m.Start())
	defer m.Stop()

	m.Touch(rtpstypes.InstanceKey{Canonical: "x"}, time.Now())
	select {
	case <-missed:
		t.Fatal("should not report a miss for a fresh instance")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestLivelinessMonitorTracksAssertAndExpiry(t *testing.T) {
	lostCh := make(chan rtpstypes.GUID, 1)
	m := qos.NewLivelinessMonitor(10*time.Millisecond, func(g rtpstypes.GUID) { lostCh <- g }, nil)
	writer := rtpstypes.GUID{Entity: rtpstypes.EntityId{0, 0, 0, 1}}

	m.Assert(writer)
	require.True(t, m.IsAlive(writer))

	select {
	case got := <-lostCh:
		require.Equal(t, writer, got)
	case <-time.After(time.Second):
		t.Fatal("liveliness never expired")
	}
	require.False(t, m.IsAlive(writer))
}

func TestLifespanExpired(t *testing.T) {
	now := time.Now()
	require.True(t, qos.LifespanExpired(now.Add(-time.Second), 100*time.Millisecond, now))
	require.False(t, qos.LifespanExpired(now.Add(-10*time.Millisecond), 100*time.Millisecond, now))
	require.False(t, qos.LifespanExpired(now.Add(-time.Hour), 0, now))
}
