package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/discovery"
	"github.com/hdds-io/hdds/internal/graph"
	"github.com/hdds-io/hdds/internal/rtpstypes"
)

func TestAddEndpointPopulatesNodeAndTopic(t *testing.T) {
	g := graph.New()
	prefix := rtpstypes.NewGuidPrefix()
	guid := rtpstypes.GUID{Prefix: prefix, Entity: rtpstypes.EntityId{0, 0, 0, 1}}

	g.AddEndpoint(discovery.EndpointRecord{GUID: guid, Kind: discovery.EndpointWriter, TopicName: "Square"})

	var version uint64
	var topics []graph.Topic
	g.ForEachTopic(func(topic graph.Topic) { topics = append(topics, topic) }, &version)
	require.EqualValues(t, 1, version)
	require.Len(t, topics, 1)
	require.Equal(t, "Square", topics[0].Name)
	require.Contains(t, topics[0].Publishers, guid)

	var publishers []discovery.EndpointRecord
	g.ForEachPublisherEndpoint(prefix, func(e discovery.EndpointRecord) { publishers = append(publishers, e) })
	require.Len(t, publishers, 1)
	require.Equal(t, guid, publishers[0].GUID)
}

func TestRemoveEndpointDropsEmptyTopic(t *testing.T) {
	g := graph.New()
	guid := rtpstypes.GUID{Prefix: rtpstypes.NewGuidPrefix(), Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	g.AddEndpoint(discovery.EndpointRecord{GUID: guid, Kind: discovery.EndpointReader, TopicName: "Square"})

	g.RemoveEndpoint(guid)

	var topics []graph.Topic
	g.ForEachTopic(func(topic graph.Topic) { topics = append(topics, topic) }, nil)
	require.Empty(t, topics)
}

func TestRemoveParticipantCascadesAcrossTopics(t *testing.T) {
	g := graph.New()
	prefix := rtpstypes.NewGuidPrefix()
	g.AddParticipant(prefix)
	guid1 := rtpstypes.GUID{Prefix: prefix, Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	guid2 := rtpstypes.GUID{Prefix: prefix, Entity: rtpstypes.EntityId{0, 0, 0, 2}}
	g.AddEndpoint(discovery.EndpointRecord{GUID: guid1, Kind: discovery.EndpointWriter, TopicName: "A"})
	g.AddEndpoint(discovery.EndpointRecord{GUID: guid2, Kind: discovery.EndpointReader, TopicName: "B"})

	g.RemoveParticipant(prefix)

	var nodes []graph.Node
	g.ForEachNode(func(n graph.Node) { nodes = append(nodes, n) }, nil)
	require.Empty(t, nodes)
	var topics []graph.Topic
	g.ForEachTopic(func(topic graph.Topic) { topics = append(topics, topic) }, nil)
	require.Empty(t, topics)
}

func TestSnapshotIsStableDuringConcurrentMutation(t *testing.T) {
	g := graph.New()
	prefix := rtpstypes.NewGuidPrefix()
	guid := rtpstypes.GUID{Prefix: prefix, Entity: rtpstypes.EntityId{0, 0, 0, 1}}
	g.AddEndpoint(discovery.EndpointRecord{GUID: guid, Kind: discovery.EndpointWriter, TopicName: "Square"})

	var seenDuringIteration int
	var versionBefore uint64
	g.ForEachTopic(func(topic graph.Topic) {
		seenDuringIteration = len(topic.Publishers)
		// Mutate the graph while "iterating" the snapshot captured above;
		// the already-taken topic value must not observe this change.
		other := rtpstypes.GUID{Prefix: rtpstypes.NewGuidPrefix(), Entity: rtpstypes.EntityId{0, 0, 0, 9}}
		g.AddEndpoint(discovery.EndpointRecord{GUID: other, Kind: discovery.EndpointWriter, TopicName: "Square"})
	}, &versionBefore)

	require.Equal(t, 1, seenDuringIteration)

	var versionAfter uint64
	g.ForEachTopic(func(graph.Topic) {}, &versionAfter)
	require.Greater(t, versionAfter, versionBefore)
}

func TestGuardConditionTriggersOnMutation(t *testing.T) {
	g := graph.New()
	guard := g.GraphGuardCondition()
	require.False(t, guard.TriggerValue())

	g.AddParticipant(rtpstypes.NewGuidPrefix())
	require.True(t, guard.TriggerValue())

	guard.Reset()
	require.False(t, guard.TriggerValue())
}
