package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/example/pocketcal/internal/http"
	"github.com/example/pocketcal/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local API and run scheduled sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil {
					logger.Error("failed to close resources", "error", cerr)
				}
			}()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) handler() http.Handler {
	cfg := httptransport.RouterConfig{
		Calendars: httptransport.NewCalendarHandler(a.calendars, a.logger),
		Events:    httptransport.NewEventHandler(a.events, a.logger),
		ICS: httptransport.NewICSHandler(httptransport.ICSConfig{
			Calendars: a.calendars,
			Events:    a.events,
			Writer:    a.local,
			Location:  a.location,
			Logger:    a.logger,
		}),
		Metrics:    promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Logger:     a.logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(a.logger, a.metrics)},
	}
	if a.engine != nil {
		cfg.Sync = httptransport.NewSyncHandler(a.engine, a.logger)
	}
	if a.extractions != nil {
		cfg.Extraction = httptransport.NewExtractionHandler(a.extractions, a.logger)
	}
	return httptransport.NewRouter(cfg)
}

func (a *app) serve(ctx context.Context) error {
	var runner *scheduler.Runner
	if a.engine != nil {
		var err error
		runner, err = scheduler.New(a.engine, scheduler.Options{
			Schedule:   a.cfg.Sync.Schedule,
			UserID:     a.cfg.Sync.UserID,
			MaxBackoff: a.cfg.Sync.MaxBackoff,
			Logger:     a.logger,
		})
		if err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	if runner != nil {
		updates, unsubscribe := a.gate.Subscribe()
		defer unsubscribe()

		g.Go(func() error {
			a.gate.Watch(gctx, a.cfg.Connectivity.Interval)
			return nil
		})
		g.Go(func() error {
			a.engine.WatchConnectivity(gctx, updates)
			return nil
		})
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
