package hdds

import "github.com/hdds-io/hdds/internal/graph"

// ForEachNode calls cb for every participant node currently known to
// the discovery graph, local or remote (§6 Graph.for_each_node, §4.8).
func (p *Participant) ForEachNode(cb func(graph.Node)) {
	p.graph.ForEachNode(cb, nil)
}

// ForEachTopic calls cb for every topic currently known to the
// discovery graph (§6 Graph.for_each_topic).
func (p *Participant) ForEachTopic(cb func(graph.Topic)) {
	p.graph.ForEachTopic(cb, nil)
}

// GraphVersion returns the graph's current snapshot version, letting a
// caller detect a concurrent mutation across two reads.
func (p *Participant) GraphVersion() uint64 {
	return p.graph.Version()
}
