package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/xiaoyuanzhu-com/filehistory/api"
	"github.com/xiaoyuanzhu-com/filehistory/capture"
	"github.com/xiaoyuanzhu-com/filehistory/config"
	"github.com/xiaoyuanzhu-com/filehistory/db"
	"github.com/xiaoyuanzhu-com/filehistory/log"
	"github.com/xiaoyuanzhu-com/filehistory/store"
	"github.com/xiaoyuanzhu-com/filehistory/watch"
)

func main() {
	cfg := config.Get()
	log.SetLevel(cfg.LogLevel)

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		log.Fatal().Err(err).Str("root", cfg.ProjectRoot).Msg("invalid project root")
	}

	log.Info().
		Str("session", uuid.NewString()).
		Str("root", root).
		Str("store", cfg.StoreKind).
		Str("env", cfg.Env).
		Msg("file history starting")

	// Open the snapshot medium
	medium, database, err := openMedium(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot store")
	}

	history := store.New(medium, store.Options{
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
	})
	policy := capture.NewPolicy(history, capture.Options{Interval: cfg.CaptureInterval})

	// Start the filesystem watcher
	var watcher *watch.Watcher
	if cfg.WatchEnabled {
		watcher, err = watch.New(watch.Config{
			Root:   root,
			Filter: watch.DefaultPathFilter(reservedUnder(root, cfg.SnapshotRoot())...),
		}, policy)
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start watcher")
		}
	}

	// Start the query API
	var server *api.Server
	if cfg.APIAddr != "" {
		router := api.NewRouter(api.NewHandlers(history, root), cfg.IsDevelopment())
		server = api.NewServer(cfg.APIAddr, router)
		server.Start()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	// Stop producing events before draining the store
	if watcher != nil {
		watcher.Stop()
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("api shutdown error")
		}
		cancel()
	}

	history.Close()

	if database != nil {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("database close error")
		}
	}

	log.Info().Msg("file history stopped")
}

// openMedium builds the configured record medium. The returned database is
// nil unless the sqlite medium is in use.
func openMedium(cfg *config.Config) (store.Medium, *db.DB, error) {
	switch cfg.StoreKind {
	case "dir", "":
		m := store.NewDirMedium(cfg.SnapshotRoot())
		if err := m.Init(); err != nil {
			return nil, nil, err
		}
		log.Info().Str("dir", m.Dir()).Msg("snapshot directory ready")
		return m, nil, nil
	case "sqlite":
		database, err := db.Open(db.Config{Path: cfg.DBPath(), LogQueries: cfg.IsDevelopment()})
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLiteMedium(database), database, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind)
	}
}

// reservedUnder returns dir relative to root when it lies inside root, so
// the watcher ignores the store's own writes
func reservedUnder(root, dir string) []string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{rel}
}
