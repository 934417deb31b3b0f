// Command export opens the local store of a device and writes the conflict
// review workbook: every locked mutation plus a status summary. Meant to be
// run while the agent is stopped or against a backup copy of the store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"stocktake/internal/cache"
	"stocktake/internal/config"
	"stocktake/internal/database"
	"stocktake/internal/export"
	"stocktake/internal/logging"
	"stocktake/internal/models"
	"stocktake/internal/queue"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	outDir := flag.String("out", "exports", "directory for the review workbook")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	store, err := database.NewStore(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	q := queue.New(store, logger)
	cacheMgr := cache.NewManager(store,
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		cfg.Cache.MaxEntries,
		logger)

	locked, err := q.ListLocked(ctx)
	if err != nil {
		return err
	}

	pending, err := q.Size(ctx, models.EntryPending)
	if err != nil {
		return err
	}

	stats, err := cacheMgr.Stats(ctx)
	if err != nil {
		return err
	}

	status := models.SyncStatus{
		QueuedOperations: pending,
		CachedItemCount:  stats.ItemsCount,
		NeedsSync:        pending > 0,
	}
	if raw, ok, err := store.GetMeta(ctx, "last_sync_at"); err == nil && ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			status.LastSyncAt = &t
		}
	}

	path, err := export.WriteReviewWorkbook(*outDir, locked, status, stats)
	if err != nil {
		return err
	}

	fmt.Printf("review workbook written: %s (%d locked entries)\n", path, len(locked))
	return nil
}
