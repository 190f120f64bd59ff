package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/sosalert/internal/account"
	"github.com/geocoder89/sosalert/internal/auth"
	"github.com/geocoder89/sosalert/internal/config"
	"github.com/geocoder89/sosalert/internal/db"
	httpx "github.com/geocoder89/sosalert/internal/http"
	"github.com/geocoder89/sosalert/internal/notifications"
	"github.com/geocoder89/sosalert/internal/observability"
	"github.com/geocoder89/sosalert/internal/redisclient"
	"github.com/geocoder89/sosalert/internal/repo/memory"
	"github.com/geocoder89/sosalert/internal/repo/postgres"
	"github.com/geocoder89/sosalert/internal/sos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTelEnabled, cfg.OTelEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// credential store
	var (
		users account.UserStore
		ping  func(ctx context.Context) error
	)

	switch cfg.Store {
	case "memory":
		repo := memory.NewUsersRepo()
		users, ping = repo, repo.Ping
		log.Warn("using in-memory user store, data is lost on restart")
	default:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		users, ping = postgres.NewUsersRepo(pool, prom), pool.Ping
	}

	jwtManager, err := auth.NewManager(cfg.JWTSecret, auth.DefaultSessionTTL)
	if err != nil {
		return err
	}

	// contact notifier
	var notifier notifications.Notifier

	switch cfg.Notifier {
	case "redis":
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rc.Ping(pctx); err != nil {
			log.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		notifier = notifications.NewRedisNotifier(rc.Raw(), cfg.SOSStream)
	default:
		notifier = notifications.NewLogNotifier(log, cfg.NotifierFail)
	}

	notifier = notifications.NewProtectedNotifier(notifier, notifications.ProtectedNotifierConfig{
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})

	router := httpx.NewRouter(httpx.Deps{
		Log:         log,
		Config:      cfg,
		Accounts:    account.NewService(users, jwtManager),
		Coordinator: sos.NewCoordinator(users, notifier, log, prom),
		Prom:        prom,
		Gatherer:    reg,
		Ping:        ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store, "notifier", cfg.Notifier)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
