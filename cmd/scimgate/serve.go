package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/scimgate/internal/api"
	"github.com/mkarlsen/scimgate/internal/auth"
	"github.com/mkarlsen/scimgate/internal/config"
	"github.com/mkarlsen/scimgate/internal/directory"
	"github.com/mkarlsen/scimgate/internal/metrics"
	"github.com/mkarlsen/scimgate/internal/ratelimit"
	"github.com/mkarlsen/scimgate/internal/scim"
	"github.com/mkarlsen/scimgate/internal/token"
	"github.com/mkarlsen/scimgate/internal/tokenusage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scimgate provisioning server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	dirStore := directory.NewStore(pool)
	tokenStore := token.NewStore(pool)

	recorder := tokenusage.NewRecorder(tokenStore, cfg.Usage.BatchSize, cfg.Usage.FlushInterval)
	recorder.SetMetrics(m)
	go recorder.Start(ctx)

	scimService := scim.NewService(dirStore, cfg.SCIM.BaseURL)
	authService := auth.NewService(token.NewAuthAdapter(tokenStore))
	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		SCIMService:    scimService,
		DirectoryStore: dirStore,
		TokenStore:     tokenStore,
		Auth:           authService,
		Usage:          recorder,
		Limiter:        limiter,
		Metrics:        m,
		AdminKey:       cfg.Admin.Key,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Ping:           pool.Ping,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "base_url", cfg.SCIM.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	recorder.Stop()

	return srv.Shutdown(shutdownCtx)
}
