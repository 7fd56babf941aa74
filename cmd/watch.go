package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ironledger/internal/ingest"
)

var metricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [source]",
	Short: "Index a content tree and keep it current as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var source string
		if len(args) == 1 {
			source = args[0]
		}
		cfg, err := loadConfig(cmd, source)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		s, err := openSession(cfg, reg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := s.engine.IndexAll(ctx); err != nil {
			return err
		}
		s.engine.Packages().OnChanged(func(root string) {
			res, ok := s.engine.Packages().Get(root)
			if !ok {
				s.log.Info("package removed", "root", root)
				return
			}
			attrs := []any{"root", root, "problems", len(res.Problems())}
			if res.Package != nil {
				attrs = append(attrs, "id", res.Package.ID, "entries", res.Package.EntryCount())
			}
			s.log.Info("package updated", attrs...)
		})

		abs, err := filepath.Abs(cfg.Source)
		if err != nil {
			return err
		}
		w, err := ingest.NewWatcher(abs, s.engine, cfg.Ignored, s.log)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		if metricsAddr != "" {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("metrics server failed", "err", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			s.log.Info("serving metrics", "addr", metricsAddr)
		}

		s.log.Info("watching", "source", abs, "roots", s.engine.Roots())
		<-ctx.Done()
		s.log.Info("shutting down")
		s.engine.Flush()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}
