package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "log/slog"

	"github.com/sethvargo/go-retry"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/legacy"
	"github.com/dropsight/catmig/scheduler"
)

// idleWait is how long a worker sleeps when every remaining chunk is leased
// by someone else.
const idleWait = 5 * time.Second

// Driver runs one worker's outer loop: lease a chunk, process its record
// window through the pipeline while keeping the lease alive, report the
// result, repeat until the chunk map is drained.
type Driver struct {
	reader    legacy.Reader
	pipeline  *Pipeline
	scheduler *scheduler.Scheduler

	testMode   bool
	maxRetries int
	retryDelay time.Duration

	// OnComplete, when set, runs exactly once after all chunks are completed.
	// The run command uses it to fix up incomplete multimedia URLs.
	OnComplete func(ctx context.Context) error
}

// NewDriver creates a Driver.
func NewDriver(reader legacy.Reader, pipeline *Pipeline, sched *scheduler.Scheduler, cfg catmig.Config) *Driver {
	return &Driver{
		reader:     reader,
		pipeline:   pipeline,
		scheduler:  sched,
		testMode:   cfg.TestMode,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Execute runs the worker loop until all chunks are completed or ctx is
// canceled. It is safe to run concurrently in many processes against the
// same coordination service.
func (d *Driver) Execute(ctx context.Context) error {
	total, err := d.reader.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting source records: %w", err)
	}
	if d.testMode && total > catmig.TestModeRecordCap {
		log.Warn("test mode enabled, capping record count", "total", total, "cap", catmig.TestModeRecordCap)
		total = catmig.TestModeRecordCap
	}

	numChunks, err := d.scheduler.InitializeChunks(ctx, total)
	if err != nil {
		return fmt.Errorf("initializing chunks: %w", err)
	}
	if numChunks == 0 {
		log.Info("nothing to migrate", "total_records", total)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := d.scheduler.GetNextChunk(ctx)
		if err != nil {
			return fmt.Errorf("leasing next chunk: %w", err)
		}
		if chunk == nil {
			done, err := d.scheduler.AreAllChunksCompleted(ctx)
			if err != nil {
				return err
			}
			if done {
				break
			}
			// Other workers hold the remaining chunks; wait and rescan.
			catmig.Sleep(ctx, idleWait)
			continue
		}

		result, err := d.runChunk(ctx, *chunk)
		if err != nil {
			log.Error("chunk failed, reverting to pending", "chunk", chunk.ChunkID, "error", err)
			if revertErr := d.scheduler.MarkChunkPending(ctx, chunk.ChunkID); revertErr != nil {
				// A lost lease means another worker reclaimed the chunk; its
				// state is theirs to manage now.
				log.Warn("could not revert chunk", "chunk", chunk.ChunkID, "error", revertErr)
			}
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return err
			}
			// Chunk-level failures are not fatal to the worker; move on.
			catmig.RandomSleep(ctx)
			continue
		}
		if err := d.scheduler.MarkChunkCompleted(ctx, chunk.ChunkID, result); err != nil {
			if catmig.CodeOf(err) == catmig.LockAcquisitionFailure {
				// The lease expired mid-chunk and another worker reclaimed it;
				// that worker will reprocess and report the chunk.
				log.Warn("lease lost before completion, chunk will be reprocessed", "chunk", chunk.ChunkID)
				continue
			}
			return fmt.Errorf("completing chunk %d: %w", chunk.ChunkID, err)
		}
		log.Info("chunk completed", "chunk", chunk.ChunkID,
			"processed", result.Processed, "errors", result.Errors,
			"providers_created", result.ProvidersCreated,
			"products_created", result.ProductsCreated, "products_updated", result.ProductsUpdated,
			"histories_filled", result.HistoriesFilled, "multimedia_created", result.MultimediaCreated)
	}

	log.Info("all chunks completed")
	if d.OnComplete != nil {
		if err := d.OnComplete(ctx); err != nil {
			return fmt.Errorf("post-migration step: %w", err)
		}
	}
	return nil
}

// runChunk processes the chunk's record window while a background task renews
// the lease. The renewal task and the processing share a cancellation: losing
// the lease aborts processing, and finishing processing stops renewal.
func (d *Driver) runChunk(ctx context.Context, chunk catmig.ChunkState) (catmig.ChunkResult, error) {
	var result catmig.ChunkResult

	tr := catmig.NewTaskRunner(ctx, 2)
	workCtx, cancelRenewal := context.WithCancel(tr.GetContext())

	tr.Go(func() error {
		ticker := time.NewTicker(d.scheduler.RenewInterval())
		defer ticker.Stop()
		for {
			select {
			case <-workCtx.Done():
				return nil
			case <-ticker.C:
				if err := d.scheduler.RenewLock(tr.GetContext(), chunk.ChunkID); err != nil {
					return fmt.Errorf("renewing lease on chunk %d: %w", chunk.ChunkID, err)
				}
				log.Debug("renewed chunk lease", "chunk", chunk.ChunkID)
			}
		}
	})

	var procErr error
	tr.Go(func() error {
		defer cancelRenewal()
		result, procErr = d.processWindow(tr.GetContext(), chunk)
		// Processing errors do not propagate through the group so the renewal
		// task shutdown stays orderly; runChunk reports procErr itself.
		return nil
	})

	if err := tr.Wait(); err != nil {
		return result, err
	}
	return result, procErr
}

// processWindow reads the chunk's record window and pipes each record through
// the pipeline. Per-record failures are counted, logged with the record's
// identity, and do not abort the chunk.
func (d *Driver) processWindow(ctx context.Context, chunk catmig.ChunkState) (catmig.ChunkResult, error) {
	var result catmig.ChunkResult

	var records []catmig.SourceProduct
	err := catmig.Retry(ctx, d.maxRetries, d.retryDelay, func(ctx context.Context) error {
		var readErr error
		records, readErr = d.reader.Read(ctx, chunk.StartOffset, chunk.EndOffset-chunk.StartOffset)
		if readErr != nil && catmig.ShouldRetry(readErr) {
			return retry.RetryableError(readErr)
		}
		return readErr
	}, nil)
	if err != nil {
		return result, fmt.Errorf("reading records [%d, %d): %w", chunk.StartOffset, chunk.EndOffset, err)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := d.pipeline.ProcessRecord(ctx, records[i])
		result.Add(res)
		if err != nil {
			result.Errors++
			log.Error("record failed",
				"external_id", records[i].ExternalID,
				"platform", records[i].PlatformName,
				"country", records[i].CountryCode,
				"error", err)
		}
	}
	return result, nil
}
