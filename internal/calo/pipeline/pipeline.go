package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/topocluster/internal/calo/cog"
	"github.com/banshee-data/topocluster/internal/calo/hits"
	"github.com/banshee-data/topocluster/internal/calo/topo"
	"github.com/banshee-data/topocluster/internal/monitoring"
)

// ErrMissingStage is returned by New when a stage is nil.
var ErrMissingStage = errors.New("pipeline stage is nil")

// Reconstructor turns a proto-cluster into a Cluster. Implemented by
// *cog.Reconstructor.
type Reconstructor interface {
	Reconstruct(pc cog.ProtoCluster) cog.Cluster
}

var _ Reconstructor = (*cog.Reconstructor)(nil)

// Event is one collection of calorimeter hits.
type Event struct {
	ID   int64
	Hits []hits.Hit
}

// Result is the output for one event. Groups is empty when the event was
// supplied as pre-built proto-clusters.
type Result struct {
	EventID  int64
	Groups   []topo.HitGroup
	Clusters []cog.Cluster
}

// Pipeline couples a grouping stage and a reconstruction stage.
type Pipeline struct {
	grouper       topo.Clusterer
	reconstructor Reconstructor
	stats         counters
}

// isNilInterface reports whether i is nil or wraps a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// New builds a Pipeline. Both stages are required.
func New(grouper topo.Clusterer, reconstructor Reconstructor) (*Pipeline, error) {
	if isNilInterface(grouper) {
		return nil, fmt.Errorf("%w: grouper", ErrMissingStage)
	}
	if isNilInterface(reconstructor) {
		return nil, fmt.Errorf("%w: reconstructor", ErrMissingStage)
	}
	return &Pipeline{grouper: grouper, reconstructor: reconstructor}, nil
}

// ProcessEvent groups the hits of ev and reconstructs one cluster per
// surviving group. Clusters[i] is built from Groups[i].
func (p *Pipeline) ProcessEvent(ev Event) Result {
	groups := p.grouper.Cluster(ev.Hits)
	res := Result{EventID: ev.ID, Groups: groups}
	if len(groups) > 0 {
		res.Clusters = make([]cog.Cluster, len(groups))
		for i, g := range groups {
			res.Clusters[i] = p.reconstructor.Reconstruct(cog.FromGroup(g))
		}
	}
	p.stats.record(len(ev.Hits), res)
	monitoring.Tracef("event %d: %d hits, %d groups, %d clusters",
		ev.ID, len(ev.Hits), len(groups), len(res.Clusters))
	return res
}

// ProcessProtoClusters reconstructs externally grouped proto-clusters,
// bypassing the grouping stage. The event is rejected with
// cog.ErrWeightsMismatch if any proto-cluster's weights do not line up
// with its hits.
func (p *Pipeline) ProcessProtoClusters(eventID int64, pcs []cog.ProtoCluster) (Result, error) {
	for i, pc := range pcs {
		if err := pc.Validate(); err != nil {
			return Result{EventID: eventID}, fmt.Errorf("event %d proto-cluster %d: %w", eventID, i, err)
		}
	}

	res := Result{EventID: eventID}
	nHits := 0
	if len(pcs) > 0 {
		res.Clusters = make([]cog.Cluster, len(pcs))
		for i, pc := range pcs {
			res.Clusters[i] = p.reconstructor.Reconstruct(pc)
			nHits += len(pc.Hits)
		}
	}
	p.stats.record(nHits, res)
	return res, nil
}

// Run processes events on up to workers goroutines and delivers results to
// sink in event order. workers <= 0 uses GOMAXPROCS. A nil sink discards
// results. The first sink error or context cancellation stops the run;
// events already being processed are allowed to finish.
func (p *Pipeline) Run(ctx context.Context, events []Event, workers int, sink Sink) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(events))
	ready := make([]chan struct{}, len(events))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers + 1) // one slot is held by the ordered writer

	eg.Go(func() error {
		for i := range events {
			select {
			case <-ready[i]:
			case <-egCtx.Done():
				return egCtx.Err()
			}
			if sink == nil {
				continue
			}
			if err := sink.WriteResult(egCtx, results[i]); err != nil {
				return fmt.Errorf("failed to write event %d: %w", results[i].EventID, err)
			}
		}
		return nil
	})

	for i := range events {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = p.ProcessEvent(events[i])
			close(ready[i])
			return nil
		})
	}

	err := eg.Wait()
	s := p.Stats()
	monitoring.Diagf("run finished: events=%d hits=%d groups=%d clusters=%d degenerate=%d etaBounded=%d",
		s.Events, s.Hits, s.Groups, s.Clusters, s.Degenerate, s.EtaBounded)
	if err != nil {
		monitoring.Opsf("run stopped early: %v", err)
	}
	return err
}
