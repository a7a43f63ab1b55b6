package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "log/slog"

	"github.com/spf13/cobra"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/legacy"
	"github.com/dropsight/catmig/migration"
	"github.com/dropsight/catmig/redis"
	"github.com/dropsight/catmig/scheduler"
	"github.com/dropsight/catmig/target"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one migration worker until all chunks are completed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runWorker(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWorker(ctx context.Context) error {
	cfg, err := catmig.LoadConfig()
	if err != nil {
		return err
	}
	log.Info("starting migration worker",
		"worker_id", cfg.WorkerID, "chunk_size", cfg.ChunkSize,
		"lock_ttl", cfg.LockTTL, "test_mode", cfg.TestMode)

	if _, err := redis.OpenConnectionWithURL(cfg.RedisURL); err != nil {
		return err
	}
	defer redis.CloseConnection()
	coord := redis.NewClient()
	if err := coord.Ping(ctx); err != nil {
		return catmig.Error[string]{Code: catmig.CoordinationUnavailable, Err: fmt.Errorf("redis ping failed: %w", err)}
	}

	targetConn, err := target.OpenConnection(ctx, target.DefaultConfig(cfg.ProductsDatabaseURL))
	if err != nil {
		return err
	}
	defer target.CloseConnection()

	// The history snapshot sits next to the product snapshot.
	historySnapshotPath := filepath.Join(filepath.Dir(cfg.SnapshotPath), "histories.json")

	// The legacy store is only needed when a snapshot file is missing.
	var legacyConn *legacy.Connection
	if !fileExists(cfg.SnapshotPath) || !fileExists(historySnapshotPath) {
		if cfg.LegacyDatabaseURL == "" {
			return catmig.Error[string]{
				Code: catmig.ConfigurationError,
				Err:  fmt.Errorf("no snapshot at %s and no legacy store url configured", cfg.SnapshotPath),
			}
		}
		legacyConn, err = legacy.OpenConnection(ctx, legacy.Config{URL: cfg.LegacyDatabaseURL})
		if err != nil {
			return err
		}
		defer legacy.CloseConnection()
	}
	reader := legacy.NewReader(legacyConn, cfg.SnapshotPath)
	historySource := legacy.NewHistorySource(legacyConn, historySnapshotPath)

	refs := target.NewReferenceRepository(targetConn)
	providers := target.NewProviderRepository(targetConn)
	products := target.NewProductRepository(targetConn)
	histories, err := target.NewHistoryRepository(ctx, targetConn)
	if err != nil {
		return err
	}
	defer histories.Close()
	multimedia := target.NewMultimediaRepository(targetConn)

	opts := scheduler.DefaultOptions(cfg.WorkerID)
	opts.ChunkSize = cfg.ChunkSize
	opts.LockTTL = cfg.LockTTL
	sched := scheduler.New(coord, opts)

	pipeline := migration.NewPipeline(refs, providers, products, histories, multimedia, historySource)
	driver := migration.NewDriver(reader, pipeline, sched, cfg)
	driver.OnComplete = func(ctx context.Context) error {
		n, err := multimedia.FixIncompleteURLs(ctx, migration.CDNHosts(), migration.DefaultCDNHost)
		if err != nil {
			return err
		}
		log.Info("completed incomplete multimedia urls", "rows", n)
		return nil
	}

	if err := driver.Execute(ctx); err != nil {
		return err
	}

	progress, err := sched.GetProgress(ctx)
	if err != nil {
		return err
	}
	printProgress(progress)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
