// Command createstaff provisions an administrative account. Staff accounts
// cannot be created over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"careregistry/account"
	"careregistry/config"
	"careregistry/db"
	"careregistry/logger"
	"careregistry/outbox"
)

func main() {
	email := flag.String("email", "", "staff account email")
	name := flag.String("name", "", "staff account display name")
	password := flag.String("password", os.Getenv("STAFF_PASSWORD"), "staff account password (defaults to $STAFF_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		zl.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		zl.Fatal("apply migrations", zap.Error(err))
	}

	svc := account.NewService(pool, account.NewRepository(pool), outbox.NewRepository(pool), nil, nil)
	acct, err := svc.CreateStaff(ctx, *email, *name, *password)
	if err != nil {
		zl.Fatal("create staff account", zap.Error(err))
	}

	zl.Info("staff account created", zap.String("account_id", acct.ID), zap.String("email", acct.Email))
}
