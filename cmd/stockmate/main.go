package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/KurniaRadhit/Stockmate/internal/accounts"
	"github.com/KurniaRadhit/Stockmate/internal/cache"
	"github.com/KurniaRadhit/Stockmate/internal/config"
	"github.com/KurniaRadhit/Stockmate/internal/service"
	"github.com/KurniaRadhit/Stockmate/internal/store"
	filestore "github.com/KurniaRadhit/Stockmate/internal/store/file"
	pgstore "github.com/KurniaRadhit/Stockmate/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to fall back to files", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			log.Fatalf("data directory unusable: %v", err)
		}
		repo = fs
		log.Printf("repository: files in %s", cfg.DataDir)
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	}

	accountStore, err := accounts.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("account store unusable: %v", err)
	}

	svc := service.New(repo, reportCache, cfg.OrderTTL(), cfg.ReportCacheTTL())

	code := 0
	if err := newRootCommand(svc, accountStore).Execute(); err != nil {
		code = 1
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
	os.Exit(code)
}
