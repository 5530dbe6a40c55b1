// Package pipeline runs events through topological grouping and
// centre-of-gravity reconstruction.
//
// It is the composition root for the calo packages: it imports hits, topo
// and cog, and hands Results to sinks (JSON output, sqlite storage, plots).
// None of those packages import pipeline. Each event is processed
// independently; Run only adds optional batching on top of ProcessEvent.
package pipeline
