package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rescroll/forumd/server"
	"github.com/rescroll/forumd/util/cliutil"
)

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "run the forumd API daemon",
	Action: runServe,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "local IP/port for the API listener",
			Value:   ":8994",
			EnvVars: []string{"FORUMD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP/port for the metrics and pprof listener",
			Value:   ":8995",
			EnvVars: []string{"FORUMD_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string",
			Value:   "sqlite://./data/forumd/forumd.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Usage:   "maximum number of open database connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
	},
}

func runServe(cctx *cli.Context) error {
	logger := setupLogger(cctx.String("log-level"))

	db, err := cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	srv, err := server.New(db, logger)
	if err != nil {
		return fmt.Errorf("failed to set up server: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echoprometheus.NewMiddleware("forumd"))
	srv.RegisterRoutes(e)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/", http.DefaultServeMux)
	metricsServer := &http.Server{
		Addr:    cctx.String("metrics-listen"),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting API listener", "bind", cctx.String("bind"))
		if err := e.Start(cctx.String("bind")); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
