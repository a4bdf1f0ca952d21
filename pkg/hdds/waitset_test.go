package hdds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestWaitReturnsImmediatelyOnDataAvailable(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17520")
	pub, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Destroy() })

	withTestConfig(t, "udpv4://127.0.0.1:17521")
	sub, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Destroy() })

	topic := Topic{Name: "events", TypeName: "Event"}
	wh, err := pub.CreateWriter(topic, "volatile.default")
	require.NoError(t, err)
	rh, err := sub.CreateReader(topic, "volatile.default")
	require.NoError(t, err)

	profile, err := config.ResolveProfile("volatile.default")
	require.NoError(t, err)
	manualMatch(pub, wh, sub, rh, topic, profile, loopbackLocator(17520), loopbackLocator(17521))

	ws, err := sub.CreateWaitset()
	require.NoError(t, err)
	require.NoError(t, sub.AttachReader(ws, rh))

	payload := []byte("wake up")
	require.NoError(t, pub.Write(wh, rtpstypes.NewInstanceKey(payload), payload))

	require.Eventually(t, func() bool {
		_, status, err := sub.Wait(ws, 10*time.Millisecond)
		return err == nil && status == TakeOK
	}, time.Second, 5*time.Millisecond)
}

func TestWaitTimesOutWithNoTrigger(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17522")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	rh, err := p.CreateReader(Topic{Name: "idle", TypeName: "T"}, "volatile.default")
	require.NoError(t, err)

	ws, err := p.CreateWaitset()
	require.NoError(t, err)
	require.NoError(t, p.AttachReader(ws, rh))

	_, status, err := p.Wait(ws, 20*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, TakeTimeout, status)
}

func TestAttachGraphChangedTriggersOnEndpointDiscovery(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17523")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	ws, err := p.CreateWaitset()
	require.NoError(t, err)
	require.NoError(t, p.AttachGraphChanged(ws))

	_, status, err := p.Wait(ws, 0)
	require.NoError(t, err)
	require.Equal(t, TakeTimeout, status)

	p.onEndpointAnnounced(discovery.EndpointRecord{
		GUID:      rtpstypes.GUID{Prefix: rtpstypes.NewGuidPrefix()},
		Kind:      discovery.EndpointWriter,
		TopicName: "remote-topic",
		TypeName:  "T",
	})

	_, status, err = p.Wait(ws, 0)
	require.NoError(t, err)
	require.Equal(t, TakeOK, status)
}

func TestDestroyWaitsetRemovesHandle(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17524")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	ws, err := p.CreateWaitset()
	require.NoError(t, err)
	require.NoError(t, p.DestroyWaitset(ws))

	_, _, err = p.Wait(ws, 0)
	require.Error(t, err)
}
