package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/httpapi"
	"marketplace/pkg/config"
	"marketplace/pkg/db"
	"marketplace/pkg/mq"
	"marketplace/pkg/payments"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	deps := httpapi.Dependencies{
		Cfg: cfg,
		DB:  conn,
	}

	switch {
	case cfg.Payments.BaseURL != "":
		deps.Payer = payments.Client{
			HTTPClient: &http.Client{Timeout: cfg.Payments.Timeout},
			BaseURL:    cfg.Payments.BaseURL,
			APIKey:     cfg.Payments.APIKey,
		}
	case !cfg.IsProd():
		log.Printf("payments simulated (PAYMENTS_BASE_URL not set)")
		deps.Payer = &payments.Simulated{}
	default:
		log.Printf("payments not configured; PAY will fail")
	}

	if cfg.AMQP.URL != "" {
		pub, err := mq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	if rdb := db.OpenRedis(ctx, cfg.Redis); rdb != nil {
		defer rdb.Close()
		deps.Redis = rdb
	} else if cfg.Redis.Addr != "" {
		log.Printf("redis unreachable at %s; rate limiting disabled", cfg.Redis.Addr)
	}

	router := httpapi.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}
