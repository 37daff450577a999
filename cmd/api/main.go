package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"enlace.org/internal/auth"
	"enlace.org/internal/config"
	"enlace.org/internal/content"
	"enlace.org/internal/httpapi"
	"enlace.org/internal/obs"
	"enlace.org/internal/ratelimit"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.PGDSN == "" {
		log.Fatal("config: ENLACE_PG_DSN is required")
	}
	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	authSvc, err := auth.NewService(auth.NewPGStore(db), cfg.AuthSecret,
		auth.WithIssuer(cfg.Issuer),
		auth.WithUserTokenTTL(cfg.UserTokenTTL),
		auth.WithEntityTokenTTL(cfg.EntityTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis limiter: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}

	api := httpapi.New(authSvc, content.NewPGStore(db), limiter, httpapi.ReadyProbe{DB: db}, httpapi.Options{
		Version:      version,
		RateLimit:    cfg.RateLimit,
		RateWindow:   cfg.RateLimitWindow,
		MaxBodyBytes: cfg.MaxBodyBytes,
		CORSOrigins:  cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting enlace-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("stopped")
}
