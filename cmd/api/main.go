package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"draftline/internal/app"
	"draftline/internal/config"
	"draftline/internal/evidence"
	"draftline/internal/gitrepo"
	"draftline/internal/history"
	"draftline/internal/search"
	"draftline/internal/store"
	"draftline/internal/suggest"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	redisStore, err := history.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisStore.Close()

	deps := app.Deps{
		Store:   store.NewPostgresStore(db),
		Git:     gitrepo.New(cfg.ReposDir),
		History: redisStore,
	}

	blobs, err := evidence.New(evidence.Config{
		Endpoint:  cfg.EvidenceEndpoint,
		AccessKey: cfg.EvidenceAccessKey,
		SecretKey: cfg.EvidenceSecretKey,
		Bucket:    cfg.EvidenceBucket,
		UseSSL:    cfg.EvidenceUseSSL,
	})
	if err != nil {
		log.Printf("WARNING: evidence storage disabled: %v", err)
	} else {
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := blobs.EnsureBucket(bucketCtx); err != nil {
			log.Printf("WARNING: evidence bucket check failed (uploads will retry): %v", err)
		}
		cancel()
		deps.Blobs = blobs
	}

	if strings.TrimSpace(cfg.SuggestURL) != "" {
		log.Printf("Using %s at %s for suggestions", cfg.SuggestModel, cfg.SuggestURL)
		deps.Generator = suggest.NewOllama(cfg.SuggestURL, cfg.SuggestModel, cfg.SuggestRPS)
	} else {
		log.Printf("Using template suggestions")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db))
	defer searchService.Close()
	deps.Search = searchService

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("draftline API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
