package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/topocluster/internal/calo/hits"
	"github.com/banshee-data/topocluster/internal/calo/pipeline"
	"github.com/banshee-data/topocluster/internal/config"
)

// eventRecord is one event in the input file. Hits may be given as raw
// readouts (resolved through the geometry) or with explicit positions.
type eventRecord struct {
	ID      int64         `json:"id"`
	RawHits []hits.RawHit `json:"raw_hits,omitempty"`
	Hits    []hitRecord   `json:"hits,omitempty"`
}

// hitRecord is a hit with its geometry already resolved, lengths in mm.
type hitRecord struct {
	CellID    uint64     `json:"cell_id"`
	Position  [3]float64 `json:"position"`
	Local     [2]float64 `json:"local"`
	Layer     int        `json:"layer"`
	Sector    int        `json:"sector"`
	Energy    float64    `json:"energy"`
	Time      float64    `json:"time"`
	TimeError float64    `json:"time_error,omitempty"`
}

func (h hitRecord) hit() hits.Hit {
	return hits.Hit{
		CellID:    h.CellID,
		Position:  r3.Vector{X: h.Position[0], Y: h.Position[1], Z: h.Position[2]},
		Local:     r3.Vector{X: h.Local[0], Y: h.Local[1]},
		Layer:     h.Layer,
		Sector:    h.Sector,
		Energy:    h.Energy,
		Time:      h.Time,
		TimeError: h.TimeError,
	}
}

// readEvents decodes either a JSON array of events or a stream of
// newline-delimited event objects.
func readEvents(r io.Reader, b *hits.Builder) ([]pipeline.Event, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var recs []eventRecord
	dec := json.NewDecoder(br)
	if first == '[' {
		if err := dec.Decode(&recs); err != nil {
			return nil, fmt.Errorf("failed to parse events: %w", err)
		}
	} else {
		for {
			var rec eventRecord
			if err := dec.Decode(&rec); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("failed to parse event %d: %w", len(recs), err)
			}
			recs = append(recs, rec)
		}
	}

	events := make([]pipeline.Event, len(recs))
	for i, rec := range recs {
		ev := pipeline.Event{ID: rec.ID}
		if len(rec.RawHits) > 0 {
			ev.Hits = b.Build(rec.RawHits)
		}
		for _, h := range rec.Hits {
			ev.Hits = append(ev.Hits, h.hit())
		}
		events[i] = ev
	}
	return events, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		return c, br.UnreadByte()
	}
}

// loadEvents reads events from path, or stdin when path is "-".
func loadEvents(path string, b *hits.Builder) ([]pipeline.Event, error) {
	if path == "-" {
		return readEvents(os.Stdin, b)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()
	return readEvents(f, b)
}

// loadGeometry resolves the reference geometry: an explicit JSON file wins
// over the config block, which wins over the built-in default.
func loadGeometry(path string, cfg *config.ClusteringConfig) (*hits.SegmentedGeometry, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read geometry file: %w", err)
		}
		var g hits.SegmentedGeometry
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to parse geometry file: %w", err)
		}
		return hits.NewSegmentedGeometry(g)
	}
	if gc := cfg.Geometry; gc != nil {
		return hits.NewSegmentedGeometry(hits.SegmentedGeometry{
			Sectors:        gc.Sectors,
			Layers:         gc.Layers,
			InnerRadius:    gc.InnerRadius.Float(),
			LayerThickness: gc.LayerThickness.Float(),
			PixelSize:      gc.PixelSize.Float(),
			PhiOffset:      gc.PhiOffset.Float(),
		})
	}
	return hits.DefaultSegmentedGeometry(), nil
}
