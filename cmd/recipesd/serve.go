package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/izavyalov-dev/recipebox/gateway"
	"github.com/izavyalov-dev/recipebox/internal/observability"
	"github.com/izavyalov-dev/recipebox/recipes"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the GraphQL gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides LISTEN_ADDR and PORT)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, "recipesd")

			be, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer be.close()

			metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
			store := recipes.NewStore(be.collection,
				recipes.WithTimeout(cfg.OperationTimeout),
				recipes.WithLogger(newLogger(cfg, "recipes.store")),
				recipes.WithMetrics(metrics),
			)

			handler, err := gateway.NewHTTPHandler(gateway.HandlerConfig{
				Service:        store,
				Ready:          be.ping,
				Logger:         newLogger(cfg, "gateway.http"),
				Metrics:        metrics,
				RateLimit:      rate.Limit(cfg.RateLimit),
				RateLimitBurst: cfg.RateLimitBurst,
				AllowedOrigins: cfg.AllowedOrigins,
			})
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           handler,
				ReadHeaderTimeout: cfg.ReadHeaderTimeout,
				ReadTimeout:       cfg.ReadTimeout,
				WriteTimeout:      cfg.WriteTimeout,
				IdleTimeout:       cfg.IdleTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("server started", "event", "server_started", "addr", cfg.ListenAddr, "store", cfg.Store)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
				defer cancel()
				logger.Info("shutting down", "event", "server_stopping")
				return server.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
