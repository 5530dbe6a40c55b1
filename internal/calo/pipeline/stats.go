package pipeline

import "sync/atomic"

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Events     uint64 `json:"events"`
	Hits       uint64 `json:"hits"`
	Groups     uint64 `json:"groups"`
	Clusters   uint64 `json:"clusters"`
	Degenerate uint64 `json:"degenerate"`
	EtaBounded uint64 `json:"eta_bounded"`
}

type counters struct {
	events     atomic.Uint64
	hits       atomic.Uint64
	groups     atomic.Uint64
	clusters   atomic.Uint64
	degenerate atomic.Uint64
	etaBounded atomic.Uint64
}

func (c *counters) record(nHits int, res Result) {
	c.events.Add(1)
	c.hits.Add(uint64(nHits))
	c.groups.Add(uint64(len(res.Groups)))
	c.clusters.Add(uint64(len(res.Clusters)))
	for _, cl := range res.Clusters {
		if cl.Degenerate {
			c.degenerate.Add(1)
		}
		if cl.EtaBounded {
			c.etaBounded.Add(1)
		}
	}
}

// Stats returns the counters accumulated since the Pipeline was built.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Events:     p.stats.events.Load(),
		Hits:       p.stats.hits.Load(),
		Groups:     p.stats.groups.Load(),
		Clusters:   p.stats.clusters.Load(),
		Degenerate: p.stats.degenerate.Load(),
		EtaBounded: p.stats.etaBounded.Load(),
	}
}
