package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/guesswho-backend/internal/config"
	"github.com/DoyleJ11/guesswho-backend/internal/engine"
	"github.com/DoyleJ11/guesswho-backend/internal/httpapi"
	"github.com/DoyleJ11/guesswho-backend/internal/hub"
	"github.com/DoyleJ11/guesswho-backend/internal/roster"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guesswho",
		Short: "Session and turn server for two-player Guess Who.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindEnv(cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadRoster(path string) (*roster.Roster, error) {
	if path == "" {
		return roster.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return roster.Load(f)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rs, err := loadRoster(cfg.RosterPath)
	if err != nil {
		return fmt.Errorf("roster: %w", err)
	}

	h := hub.NewHub(context.Background(), hub.Config{
		Engine:        engine.New(rs, nil),
		Logger:        logger,
		SweepInterval: cfg.SweepInterval,
		IdleTimeout:   cfg.IdleTimeout,
	})

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(h, rs, httpapi.Options{
			Logger:         logger,
			OutboxSize:     cfg.OutboxSize,
			OriginPatterns: cfg.Origins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.Int("characters", rs.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections aren't tracked by Shutdown; closing
		// the hub ends their sessions.
		return multierr.Combine(srv.Shutdown(sctx), h.Close())
	})
	return g.Wait()
}
