package hdds

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/graph"
)

func TestForEachTopicReflectsLocalEndpoints(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17530")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	_, err = p.CreateWriter(Topic{Name: "sensors", TypeName: "Reading"}, "volatile.default")
	require.NoError(t, err)

	var found []graph.Topic
	p.ForEachTopic(func(topic graph.Topic) {
		found = append(found, topic)
	})

	var names []string
	for _, topic := range found {
		names = append(names, topic.Name)
	}
	require.Contains(t, names, "sensors")
}

func TestForEachNodeIncludesLocalParticipant(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17531")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	var count int
	p.ForEachNode(func(graph.Node) { count++ })
	require.GreaterOrEqual(t, count, 1)
}

func TestGraphVersionAdvancesOnMutation(t *testing.T) {
	withTestConfig(t, "udpv4://127.0.0.1:17532")
	p, err := CreateParticipant(1, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })

	before := p.GraphVersion()
	_, err = p.CreateWriter(Topic{Name: "v", TypeName: "T"}, "volatile.default")
	require.NoError(t, err)
	require.Greater(t, p.GraphVersion(), before)
}
