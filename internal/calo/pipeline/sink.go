package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/topocluster/internal/calo/cog"
)

// Sink receives pipeline results. Run calls WriteResult from a single
// goroutine, in event order.
type Sink interface {
	WriteResult(ctx context.Context, res Result) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, res Result) error

// WriteResult calls f.
func (f SinkFunc) WriteResult(ctx context.Context, res Result) error {
	return f(ctx, res)
}

// MultiSink fans a result out to every sink in order, stopping at the
// first error. Nil entries are skipped.
type MultiSink []Sink

// WriteResult implements Sink.
func (m MultiSink) WriteResult(ctx context.Context, res Result) error {
	for _, s := range m {
		if isNilInterface(s) {
			continue
		}
		if err := s.WriteResult(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// ClusterRecord is one line of JSON output.
type ClusterRecord struct {
	EventID int64 `json:"event_id"`
	Index   int   `json:"index"`
	cog.Cluster
}

// JSONLinesSink writes one ClusterRecord per cluster as newline-delimited
// JSON.
type JSONLinesSink struct {
	enc *json.Encoder
}

// NewJSONLinesSink returns a sink writing to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// WriteResult implements Sink.
func (s *JSONLinesSink) WriteResult(_ context.Context, res Result) error {
	for i, cl := range res.Clusters {
		if err := s.enc.Encode(ClusterRecord{EventID: res.EventID, Index: i, Cluster: cl}); err != nil {
			return fmt.Errorf("failed to encode cluster %d of event %d: %w", i, res.EventID, err)
		}
	}
	return nil
}
