package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ironledger/internal/config"
	"github.com/agentic-research/ironledger/internal/ingest"
	"github.com/agentic-research/ironledger/internal/store"
)

var (
	configPath string
	metaRoot   string
	roots      []string
	logLevel   string
	dbPath     string
	debounce   time.Duration
	workers    int
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to ironledger.yaml")
	pf.StringVarP(&metaRoot, "meta-root", "m", "", "Folder whose top-level subfolders are package roots")
	pf.StringSliceVarP(&roots, "root", "r", nil, "Package root (repeatable)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&dbPath, "db", "", "SQLite index to write")
	pf.DurationVar(&debounce, "debounce", 0, "Quiet period before a changed file is re-read")
	pf.IntVarP(&workers, "workers", "j", 0, "Parallel parsers during a full scan")
}

var rootCmd = &cobra.Command{
	Use:           "ironledger",
	Short:         "Incremental indexer for Datasworn content trees",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config (or the defaults) and applies flag overrides.
// source, when non-empty, replaces the configured source directory.
func loadConfig(cmd *cobra.Command, source string) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if source != "" {
		cfg.Source = source
	}
	if flags.Changed("meta-root") {
		cfg.MetaRoot = &metaRoot
	}
	if flags.Changed("root") {
		cfg.Roots = roots
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("db") {
		cfg.Database = dbPath
	}
	if flags.Changed("debounce") {
		cfg.Debounce = debounce
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
}

// session bundles everything a command needs to index a source tree.
type session struct {
	cfg     config.Config
	log     *slog.Logger
	engine  *ingest.Engine
	metrics *ingest.Metrics
	index   *store.Index
}

func openSession(cfg config.Config, reg prometheus.Registerer) (*session, error) {
	info, err := os.Stat(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", cfg.Source)
	}

	s := &session{cfg: cfg, log: newLogger(cfg), metrics: ingest.NewMetrics(reg)}
	if cfg.Database != "" {
		if s.index, err = store.Open(cfg.Database, s.log); err != nil {
			return nil, err
		}
	}

	s.engine = ingest.NewEngine(osfs.New(cfg.Source), ingest.Options{
		Logger:   s.log,
		Metrics:  s.metrics,
		Store:    s.index,
		Debounce: cfg.Debounce,
		Workers:  cfg.Workers,
		Ignored:  cfg.Ignored,
	})
	if cfg.MetaRoot != nil {
		s.engine.SetMetaRoot(*cfg.MetaRoot)
	}
	for _, r := range cfg.Roots {
		if err := s.engine.AddRoot(r); err != nil {
			s.Close()
			return nil, fmt.Errorf("root %s: %w", r, err)
		}
	}
	return s, nil
}

func (s *session) Close() {
	s.engine.Close()
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.log.Warn("close index", "err", err)
		}
	}
}
