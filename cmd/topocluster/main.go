package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/topocluster/internal/calo/cog"
	"github.com/banshee-data/topocluster/internal/calo/hits"
	"github.com/banshee-data/topocluster/internal/calo/monitor"
	"github.com/banshee-data/topocluster/internal/calo/pipeline"
	"github.com/banshee-data/topocluster/internal/calo/storage/sqlite"
	"github.com/banshee-data/topocluster/internal/calo/topo"
	"github.com/banshee-data/topocluster/internal/config"
	"github.com/banshee-data/topocluster/internal/monitoring"
	"github.com/banshee-data/topocluster/internal/version"
)

var (
	configFile   = flag.String("config", "", "Clustering config file (.json, .yaml or .yml); built-in defaults when empty")
	eventsFile   = flag.String("events", "-", "Events file (JSON array or JSON lines); - reads stdin")
	geometryFile = flag.String("geometry", "", "Segmented geometry JSON file; overrides the config geometry block")
	dbFile       = flag.String("db", "", "SQLite database to store clusters in (disabled when empty)")
	plotDir      = flag.String("plot-dir", "", "Directory for eta-phi and energy plots (disabled when empty)")
	workers      = flag.Int("workers", 0, "Worker goroutines; 0 uses the config value, then GOMAXPROCS")
	debug        = flag.Bool("debug", false, "Enable development logging with trace output")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// options mirrors the command-line flags so run can be driven from tests.
type options struct {
	configPath   string
	eventsPath   string
	geometryPath string
	dbPath       string
	plotDir      string
	workers      int
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("topocluster"))
		return
	}

	logger, err := monitoring.NewLogger(*debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	monitoring.SetLogger(logger)
	defer monitoring.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		configPath:   *configFile,
		eventsPath:   *eventsFile,
		geometryPath: *geometryFile,
		dbPath:       *dbFile,
		plotDir:      *plotDir,
		workers:      *workers,
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		monitoring.Opsf("topocluster: %v", err)
		monitoring.Sync()
		os.Exit(1)
	}
}

// run loads configuration and events, processes them and writes one JSON
// line per cluster to stdout.
func run(ctx context.Context, o options, stdout io.Writer) error {
	cfg := config.EmptyClusteringConfig()
	if o.configPath != "" {
		loaded, err := config.LoadClusteringConfig(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	grouper, err := topo.NewGrouper(topo.ParamsFromConfig(cfg))
	if err != nil {
		return err
	}
	reco, err := cog.NewReconstructor(cog.ParamsFromConfig(cfg))
	if err != nil {
		return err
	}
	p, err := pipeline.New(grouper, reco)
	if err != nil {
		return err
	}

	geo, err := loadGeometry(o.geometryPath, cfg)
	if err != nil {
		return err
	}
	builder, err := hits.NewBuilder(geo, 0)
	if err != nil {
		return err
	}
	events, err := loadEvents(o.eventsPath, builder)
	if err != nil {
		return err
	}
	monitoring.Diagf("loaded %d events from %s", len(events), o.eventsPath)

	sinks := pipeline.MultiSink{pipeline.NewJSONLinesSink(stdout)}

	var store *sqlite.ClusterStore
	if o.dbPath != "" {
		store, err = sqlite.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		params, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		if _, err := store.BeginRun(params); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	var plotter *monitor.EtaPhiPlotter
	if o.plotDir != "" {
		plotter, err = monitor.NewEtaPhiPlotter(o.plotDir)
		if err != nil {
			return err
		}
		sinks = append(sinks, plotter)
	}

	n := o.workers
	if n <= 0 {
		n = cfg.GetWorkers()
	}
	if err := p.Run(ctx, events, n, sinks); err != nil {
		return err
	}

	if store != nil {
		if err := store.FinishRun(p.Stats()); err != nil {
			return fmt.Errorf("failed to finish run: %w", err)
		}
	}
	if plotter != nil {
		if _, err := plotter.GeneratePlots(); err != nil {
			return fmt.Errorf("failed to generate plots: %w", err)
		}
	}
	return nil
}
