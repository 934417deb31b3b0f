package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocktake/internal/api"
	"stocktake/internal/cache"
	"stocktake/internal/config"
	"stocktake/internal/connectivity"
	"stocktake/internal/database"
	"stocktake/internal/domain"
	"stocktake/internal/events"
	"stocktake/internal/logging"
	"stocktake/internal/metrics"
	"stocktake/internal/models"
	"stocktake/internal/queue"
	"stocktake/internal/remote"
	"stocktake/internal/repository"
	"stocktake/internal/service"
	"stocktake/internal/syncer"
	"stocktake/internal/worker"

	"github.com/rs/zerolog"
	yamlv2 "gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	store, err := database.NewStore(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := queue.New(store, &logger)
	cacheMgr := cache.NewManager(store,
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		cfg.Cache.MaxEntries,
		&logger)

	warmStartCache(ctx, cfg, cacheMgr, &logger)

	remoteClient := remote.NewClient(cfg.Remote, &logger)

	probe := connectivity.NewProbe(remoteClient,
		time.Duration(cfg.Connectivity.ProbeIntervalSeconds)*time.Second,
		&logger)
	go probe.Start(ctx)

	bus := events.NewEventBus()
	subscribeEvents(bus, &logger)

	engine := syncer.New(q, cacheMgr, remoteClient, probe, store, bus, syncer.Config{
		BatchSize:        cfg.Sync.BatchSize,
		MaxRetries:       cfg.Sync.MaxRetries,
		MaxIterations:    cfg.Sync.MaxIterations,
		DiscardExhausted: !cfg.Sync.KeepExhausted,
		Debounce:         time.Duration(cfg.Sync.DebounceSeconds) * time.Second,
		Interval:         time.Duration(cfg.Sync.IntervalMinutes) * time.Minute,
		Backoff: worker.RetryPolicy{
			MaxRetries:    cfg.Sync.MaxRetries,
			InitialDelay:  time.Duration(cfg.Sync.RetryBackoff.InitialSeconds) * time.Second,
			MaxDelay:      time.Duration(cfg.Sync.RetryBackoff.MaxSeconds) * time.Second,
			BackoffFactor: cfg.Sync.RetryBackoff.Factor,
		},
	}, &logger)
	go engine.Start(ctx)

	maintenance := worker.NewMaintenance(q, cacheMgr,
		time.Duration(cfg.Maintenance.IntervalMinutes)*time.Minute,
		cfg.Maintenance.MaxQueueEntries,
		cfg.Sync.MaxRetries,
		&logger)
	go maintenance.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	states := initScanStates(ctx, cfg, &logger)
	svc := service.NewClientService(q, cacheMgr, remoteClient, probe, engine, store, states, &logger)

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, svc, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("status API error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	logger.Info().Msg("stocktake agent started")
	<-ctx.Done()
	logger.Info().Msg("stocktake agent stopping")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "agent-main").Logger()

	return cfg, logger, closer, nil
}

// warmStartCache seeds the reference cache from the bundled catalog so the
// very first shift works offline before any pull ever succeeded.
func warmStartCache(ctx context.Context, cfg *config.Config, cacheMgr *cache.Manager, logger *zerolog.Logger) {
	if cfg.Seed.CatalogPath == "" {
		return
	}

	data, err := os.ReadFile(cfg.Seed.CatalogPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Seed.CatalogPath).Msg("seed catalog unreadable, skipping warm start")
		return
	}

	var catalog struct {
		Items []models.Item `yaml:"items"`
	}
	if err := yamlv2.Unmarshal(data, &catalog); err != nil {
		logger.Warn().Err(err).Msg("seed catalog parse failed, skipping warm start")
		return
	}

	if _, err := cacheMgr.WarmStart(ctx, catalog.Items); err != nil {
		logger.Warn().Err(err).Msg("cache warm start failed")
	}
}

func initScanStates(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.ScanStateRepository {
	ttl := time.Duration(models.DefaultScanStateTTL) * time.Second
	memory := repository.NewMemoryScanStateRepository(ttl)

	if !cfg.Redis.Enabled {
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, scan state kept in memory only")
	}

	primary := repository.NewRedisScanStateRepository(client, ttl)
	return repository.NewFailoverScanStateRepository(primary, memory, logger)
}

func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.EventEntryLocked, func(e *events.Event) error {
		var p events.EntryLockedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		logger.Warn().
			Str("entry_id", p.EntryID).
			Str("kind", p.Kind).
			Str("reason", p.Reason).
			Msg("mutation locked, needs manual review")
		return nil
	})

	bus.Subscribe(events.EventEntryDiscarded, func(e *events.Event) error {
		var p events.EntryDiscardedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		logger.Error().
			Str("entry_id", p.EntryID).
			Str("kind", p.Kind).
			Str("last_error", p.LastError).
			Msg("mutation permanently discarded")
		return nil
	})
}
