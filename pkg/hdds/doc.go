// Package hdds is the Core API (§6) consumed by language bindings: it
// wires internal/rtpstypes, internal/cdr, internal/typedesc, internal/rtps,
// internal/historycache, internal/reliability, internal/transport,
// internal/congestion, internal/discovery, internal/graph, internal/qos,
// internal/waitset and internal/runtime into Participant/Topic/Writer/
// Reader/Waitset/Graph operations.
//
// Every operation returns a value and an error, the latter an *hddserr.Error
// whose Kind is the tagged result category the operation reports (not
// found, incompatible QoS, resource limits, timeout, ...); this is Go's
// native idiom for a tagged result and needs no separate wrapper type.
package hdds
