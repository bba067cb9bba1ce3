package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/stationflow/internal/backup"
	"github.com/rendis/stationflow/internal/catalog"
	"github.com/rendis/stationflow/internal/console"
	"github.com/rendis/stationflow/internal/journal"
	"github.com/rendis/stationflow/internal/logging"
	"github.com/rendis/stationflow/internal/metrics"
	"github.com/rendis/stationflow/internal/ordering"
	"github.com/rendis/stationflow/internal/station"
	"github.com/rendis/stationflow/internal/store"
	"github.com/rendis/stationflow/internal/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Styles.Error.Render("❌ "+console.Describe(err)))
		fmt.Fprintln(os.Stderr, console.Styles.Muted.Render(err.Error()))
		os.Exit(1)
	}
}

// app holds everything a command needs. It is opened once per run.
type app struct {
	cfg   Config
	flags struct {
		config   string
		dataDir  string
		catalog  string
		logLevel string
		s3Bucket string
	}

	out    io.Writer
	errOut io.Writer

	logger    *slog.Logger
	logCloser io.Closer
	metrics   *metrics.Metrics
	journal   *journal.Journal
	svc       *station.Service
	engine    *ordering.Engine
}

// open loads configuration and wires repositories, catalog and service.
// Any failure here is a startup failure.
func (a *app) open(ctx context.Context) error {
	cfg, err := loadConfig(a.flags.config, os.Getenv)
	if err != nil {
		return err
	}
	if a.flags.dataDir != "" {
		cfg.DataDir = a.flags.dataDir
	}
	if a.flags.catalog != "" {
		cfg.Catalog = a.flags.catalog
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if a.flags.s3Bucket != "" {
		cfg.S3.Bucket = a.flags.s3Bucket
	}
	a.cfg = cfg

	logger, closer, err := logging.New(logging.Config{Level: cfg.LogLevel, Dir: cfg.LogDir, Stderr: a.errOut})
	if err != nil {
		return err
	}
	a.logger, a.logCloser = logger, closer
	logger.Debug("no cross-process locking on data files; run a single stationflow at a time", "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	v, err := validation.New()
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}

	loader := &catalog.Loader{Validator: v, Logger: logger}
	cat, _, err := loader.Load(cfg.catalogPath())
	if err != nil {
		return err
	}
	logger.Debug("catalog loaded", "path", cfg.catalogPath(), "process_types", cat.Len())

	a.metrics = metrics.New()
	a.engine = ordering.NewEngine(cat, logger, a.metrics.CatalogMiss)

	stations := store.NewStationRepository(cfg.stationsPath(), v, logger)
	if err := stations.Init(ctx); err != nil {
		return err
	}
	states := store.NewStateRepository(cfg.statesPath(), a.engine, logger)

	deps := station.Deps{
		Stations:  stations,
		States:    states,
		Ordering:  a.engine,
		Validator: v,
		Metrics:   a.metrics,
		Logger:    logger,
	}

	if cfg.Journal {
		j, err := journal.Open(ctx, "file:"+cfg.journalPath())
		if err != nil {
			logger.Warn("journal unavailable, continuing without it", "error", err)
		} else {
			a.journal = j
			deps.Journal = j
		}
	}

	var sinks []backup.Sink
	if cfg.S3.Bucket != "" {
		sink, err := backup.NewS3Sink(ctx, cfg.S3)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}
	deps.Backup = backup.NewManager(cfg.backupDir(), logger, sinks...)

	a.svc = station.NewService(deps)
	return nil
}

func (a *app) close() {
	if a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil && a.logger != nil {
			a.logger.Warn("metrics textfile not written", "path", a.cfg.MetricsFile, "error", err)
		}
	}
	if a.journal != nil {
		_ = a.journal.Close()
		a.journal = nil
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *app) prompter() *console.HuhPrompter {
	return &console.HuhPrompter{Out: a.out, Accessible: a.cfg.Accessible}
}

// run executes one command line and releases everything it opened.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	out, errOut := a.out, a.errOut

	root := &cobra.Command{
		Use:           "stationflow",
		Short:         "Record keeper for wastewater treatment stations and their equipment states",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["bare"] == "true" {
				return nil
			}
			return a.open(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd.Context(), a)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.config, "config", os.Getenv("STATIONFLOW_CONFIG"), "settings file (default stationflow.yaml)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory")
	pf.StringVar(&a.flags.catalog, "catalog", "", "process catalog file (types.json or types.yaml)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newMenuCmd(a),
		newCreateCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newUpdateCmd(a),
		newHistoryCmd(a),
		newDeleteCmd(a),
		newMigrateCmd(a),
		newBackupCmd(a),
		newWatchCmd(a),
		newExportCmd(a),
		newJournalCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	return root
}
