package hdds

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/config"
	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/qos"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

// manualMatch simulates what SEDP would otherwise announce over the
// wire (out of scope here, see DESIGN.md): it feeds each side the
// other's endpoint record directly, through the same onEndpointAnnounced
// path a real discovered announcement would take.
func manualMatch(writerSide *Participant, wh WriterHandle, readerSide *Participant, rh ReaderHandle, topic Topic, profile qos.Profile, writerLoc, readerLoc rtpstypes.Locator) {
	writerSide.onEndpointAnnounced(discovery.EndpointRecord{
		GUID:      rh.guid,
		Kind:      discovery.EndpointReader,
		TopicName: topic.Name,
		TypeName:  topic.TypeName,
		QoS:       profile,
		Locators:  []rtpstypes.Locator{readerLoc},
	})
	readerSide.onEndpointAnnounced(discovery.EndpointRecord{
		GUID:      wh.guid,
		Kind:      discovery.EndpointWriter,
		TopicName: topic.Name,
		TypeName:  topic.TypeName,
		QoS:       profile,
		Locators:  []rtpstypes.Locator{writerLoc},
	})
}

func loopbackLocator(port uint32) rtpstypes.Locator {
	return rtpstypes.UDPLocator(net.ParseIP("127.0.0.1"), port)
}

func TestBestEffortWriteIsDeliveredToMatchedReader(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17510")
	pub, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Destroy() })

	withTestConfig(t, "udpv4://127.0.0.1:17511")
	sub, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Destroy() })

	topic := Topic{Name: "telemetry", TypeName: "Telemetry"}
	wh, err := pub.CreateWriter(topic, "volatile.default")
	require.NoError(t, err)
	rh, err := sub.CreateReader(topic, "volatile.default")
	require.NoError(t, err)

	profile, err := config.ResolveProfile("volatile.default")
	require.NoError(t, err)
	manualMatch(pub, wh, sub, rh, topic, profile, loopbackLocator(17510), loopbackLocator(17511))

	payload := []byte("hello hdds")
	instance := rtpstypes.NewInstanceKey(payload)
	require.NoError(t, pub.Write(wh, instance, payload))

	require.Eventually(t, func() bool {
		samples, status, err := sub.Take(rh, 8)
		if err != nil || status != TakeOK {
			return false
		}
		return len(samples) == 1 && string(samples[0].Payload) == "hello hdds"
	}, time.Second, 5*time.Millisecond)
}

func TestTakeOnIdleReaderReturnsEmpty(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17512")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	rh, err := p.CreateReader(Topic{Name: "idle", TypeName: "T"}, "volatile.default")
	require.NoError(t, err)

	samples, status, err := p.Take(rh, 4)
	require.NoError(t, err)
	require.Equal(t, TakeEmpty, status)
	require.Nil(t, samples)
}

func TestIncompatibleQoSLeavesEndpointsUnmatched(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17513")
	pub, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Destroy() })

	withTestConfig(t, "udpv4://127.0.0.1:17514")
	sub, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Destroy() })

	topic := Topic{Name: "strict", TypeName: "T"}
	wh, err := pub.CreateWriter(topic, "volatile.default") // best-effort writer
	require.NoError(t, err)
	rh, err := sub.CreateReader(topic, "reliable.default") // reliable reader
	require.NoError(t, err)

	readerProfile, err := config.ResolveProfile("reliable.default")
	require.NoError(t, err)
	writerProfile, err := config.ResolveProfile("volatile.default")
	require.NoError(t, err)

	pub.onEndpointAnnounced(discovery.EndpointRecord{
		GUID: rh.guid, Kind: discovery.EndpointReader,
		TopicName: topic.Name, TypeName: topic.TypeName, QoS: readerProfile,
		Locators: []rtpstypes.Locator{loopbackLocator(17514)},
	})
	sub.onEndpointAnnounced(discovery.EndpointRecord{
		GUID: wh.guid, Kind: discovery.EndpointWriter,
		TopicName: topic.Name, TypeName: topic.TypeName, QoS: writerProfile,
		Locators: []rtpstypes.Locator{loopbackLocator(17513)},
	})

	w, err := pub.writerFor(wh)
	require.NoError(t, err)
	w.mu.Lock()
	matchedCount := len(w.matched)
	w.mu.Unlock()
	require.Zero(t, matchedCount)
}

func TestDestroyWriterUnregistersHandle(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17515")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	wh, err := p.CreateWriter(Topic{Name: "t", TypeName: "T"}, "volatile.default")
	require.NoError(t, err)
	require.NoError(t, p.DestroyWriter(wh))

	_, err = p.writerFor(wh)
	require.Error(t, err)
}
