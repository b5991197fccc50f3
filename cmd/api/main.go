package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"careregistry/account"
	"careregistry/assignment"
	"careregistry/config"
	"careregistry/db"
	"careregistry/httpapi"
	"careregistry/logger"
	"careregistry/outbox"
	"careregistry/profile"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("registry stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	ob := outbox.NewRepository(pool)
	tokens := account.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	accounts := account.NewService(pool, account.NewRepository(pool), ob, tokens, account.NewRedisSessionStore(rdb))
	profiles := profile.NewService(pool, profile.NewRepository(pool), ob)
	assignments := assignment.NewService(pool, assignment.NewRepository(pool), profiles, ob)

	server := httpapi.NewServer(accounts, profiles, assignments, zl, httpapi.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateLimit:  cfg.LoginRateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.AMQPURL != "" {
		pub, err := outbox.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer pub.Close()

		relay := outbox.NewRelay(ob, pub, zl.Named("outbox"), cfg.OutboxPollInterval)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	} else {
		zl.Warn("AMQP_URL not set, outbox relay disabled")
	}

	return g.Wait()
}
