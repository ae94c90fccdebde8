package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lyric-s/together-app-backend/internal/auth"
	"github.com/lyric-s/together-app-backend/internal/config"
	"github.com/lyric-s/together-app-backend/internal/httpapi"
	"github.com/lyric-s/together-app-backend/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("TOGETHER_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.Database.DSN == "" {
		log.Fatal("missing DSN: set database.dsn or TOGETHER_PG_DSN")
	}
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	codec, err := auth.NewCodec([]byte(cfg.JWT.Secret), cfg.JWT.Issuer)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	accessTTL, _ := cfg.AccessTTL()
	refreshTTL, _ := cfg.RefreshTTL()
	authSvc, err := auth.NewService(
		auth.NewPGDirectory(db),
		auth.NewPGRefreshTokenStore(db),
		codec,
		auth.WithAccessTTL(accessTTL),
		auth.WithRefreshTTL(refreshTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Auth:       authSvc,
		Probe:      httpapi.ReadyProbe{DB: db},
		Version:    version,
		RatePerSec: cfg.RateLimit.PerSecond,
		RateBurst:  cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting together-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
