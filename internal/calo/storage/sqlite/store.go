package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/topocluster/internal/calo/cog"
	"github.com/banshee-data/topocluster/internal/calo/pipeline"
	"github.com/banshee-data/topocluster/internal/monitoring"
)

// ErrNoActiveRun is returned by WriteResult before BeginRun.
var ErrNoActiveRun = errors.New("no active cluster run")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Run is one persisted batch of events.
type Run struct {
	RunID      string          `json:"run_id"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	StatsJSON  json.RawMessage `json:"stats_json,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
}

// StoredCluster is a cluster row with its event coordinates.
type StoredCluster struct {
	RunID   string `json:"run_id"`
	EventID int64  `json:"event_id"`
	Index   int    `json:"index"`
	cog.Cluster
}

// ClusterStore writes clusters for one active run at a time.
type ClusterStore struct {
	db *sql.DB

	mu    sync.Mutex
	runID string
}

var _ pipeline.Sink = (*ClusterStore)(nil)

// Open opens (or creates) the database at path, applies pragmas and
// migrates the schema to the latest version.
func Open(path string) (*ClusterStore, error) {
	// busy_timeout and foreign_keys are per connection, so they also go in
	// the DSN to cover every connection in the pool.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	monitoring.Diagf("cluster store opened: %s", path)
	return &ClusterStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ClusterStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the applied migration version.
func (s *ClusterStore) SchemaVersion() (uint, bool, error) {
	return migrateVersion(s.db)
}

// RunID returns the active run, or "" before BeginRun.
func (s *ClusterStore) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// BeginRun records a new run with its parameters and makes it the target
// of subsequent WriteResult calls. params may be nil.
func (s *ClusterStore) BeginRun(params json.RawMessage) (string, error) {
	runID := uuid.New().String()
	var paramsStr interface{}
	if len(params) > 0 {
		paramsStr = string(params)
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`INSERT INTO cluster_runs (run_id, params_json, created_at) VALUES (?, ?, ?)`,
			runID, paramsStr, time.Now().UnixNano())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()
	monitoring.Diagf("cluster run %s started", runID)
	return runID, nil
}

// FinishRun stamps the active run with a completion time and stats.
func (s *ClusterStore) FinishRun(stats pipeline.Stats) error {
	runID := s.RunID()
	if runID == "" {
		return ErrNoActiveRun
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`UPDATE cluster_runs SET finished_at = ?, stats_json = ? WHERE run_id = ?`,
			time.Now().UnixNano(), string(statsJSON), runID)
		return err
	})
}

// WriteResult stores every cluster of res under the active run in one
// transaction.
func (s *ClusterStore) WriteResult(ctx context.Context, res pipeline.Result) error {
	runID := s.RunID()
	if runID == "" {
		return ErrNoActiveRun
	}
	if len(res.Clusters) == 0 {
		return nil
	}

	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO calo_clusters (
				run_id, event_id, cluster_index, num_hits,
				energy, energy_error, time, time_error,
				pos_x, pos_y, pos_z, intrinsic_theta, intrinsic_phi,
				rms_radius, skewness, degenerate, eta_bounded
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, cl := range res.Clusters {
			var radius, skew interface{}
			if len(cl.ShapeParameters) >= 2 {
				radius, skew = cl.ShapeParameters[0], cl.ShapeParameters[1]
			}
			if _, err := stmt.ExecContext(ctx,
				runID, res.EventID, i, cl.NumHits,
				cl.Energy, cl.EnergyError, cl.Time, cl.TimeError,
				cl.Position.X, cl.Position.Y, cl.Position.Z, cl.IntrinsicTheta, cl.IntrinsicPhi,
				radius, skew, cl.Degenerate, cl.EtaBounded,
			); err != nil {
				return fmt.Errorf("failed to insert cluster %d of event %d: %w", i, res.EventID, err)
			}
		}
		return tx.Commit()
	})
}

// ListClusters returns the clusters of one event, in index order.
func (s *ClusterStore) ListClusters(runID string, eventID int64) ([]StoredCluster, error) {
	rows, err := s.db.Query(`
		SELECT run_id, event_id, cluster_index, num_hits,
			energy, energy_error, time, time_error,
			pos_x, pos_y, pos_z, intrinsic_theta, intrinsic_phi,
			rms_radius, skewness, degenerate, eta_bounded
		FROM calo_clusters
		WHERE run_id = ? AND event_id = ?
		ORDER BY cluster_index`, runID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var out []StoredCluster
	for rows.Next() {
		var sc StoredCluster
		var radius, skew sql.NullFloat64
		var pos r3.Vector
		if err := rows.Scan(
			&sc.RunID, &sc.EventID, &sc.Index, &sc.NumHits,
			&sc.Energy, &sc.EnergyError, &sc.Time, &sc.TimeError,
			&pos.X, &pos.Y, &pos.Z, &sc.IntrinsicTheta, &sc.IntrinsicPhi,
			&radius, &skew, &sc.Degenerate, &sc.EtaBounded,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		sc.Position = pos
		if radius.Valid {
			sc.ShapeParameters = []float64{radius.Float64, skew.Float64}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// CountClusters returns the number of clusters stored for a run.
func (s *ClusterStore) CountClusters(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM calo_clusters WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count clusters: %w", err)
	}
	return n, nil
}

// ListRuns returns all runs, newest first.
func (s *ClusterStore) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, params_json, stats_json, created_at, finished_at
		FROM cluster_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var params, stats sql.NullString
		var finished sql.NullInt64
		if err := rows.Scan(&r.RunID, &params, &stats, &r.CreatedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if params.Valid {
			r.ParamsJSON = json.RawMessage(params.String)
		}
		if stats.Valid {
			r.StatsJSON = json.RawMessage(stats.String)
		}
		r.FinishedAt = finished.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}
