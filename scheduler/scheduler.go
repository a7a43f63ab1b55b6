// Package scheduler partitions the migration workload into fixed-size chunks
// and hands them out to workers under TTL-bounded exclusive leases held in the
// coordination service.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	log "log/slog"

	"github.com/dropsight/catmig"
)

// Options configures a Scheduler instance.
type Options struct {
	// WorkerID identifies this process as the lease holder.
	WorkerID string
	// ChunkSize is the record count per chunk.
	ChunkSize int
	// LockTTL bounds each chunk lease; a dead worker's lease expires after this long.
	LockTTL time.Duration
	// ChunksKey is the coordination-service hash holding chunkID -> ChunkState JSON.
	ChunksKey string
	// LockPrefix prefixes per-chunk lease keys.
	LockPrefix string
	// StateKey holds opaque migration state. Reserved; currently unused.
	StateKey string
}

// DefaultOptions returns Options with the standard key conventions.
func DefaultOptions(workerID string) Options {
	return Options{
		WorkerID:   workerID,
		ChunkSize:  catmig.DefaultChunkSize,
		LockTTL:    catmig.DefaultLockTTL,
		ChunksKey:  "catmig:chunks",
		LockPrefix: "catmig:chunk-lock:",
		StateKey:   "catmig:state",
	}
}

// Scheduler maintains persistent chunk state and guarantees that at most one
// worker holds a given chunk's lease at any instant, relying on the
// coordination service's atomic create-if-absent with TTL.
type Scheduler struct {
	coord catmig.Coordinator
	o     Options
}

// New creates a Scheduler over the given coordination client.
func New(coord catmig.Coordinator, o Options) *Scheduler {
	if o.ChunkSize <= 0 {
		o.ChunkSize = catmig.DefaultChunkSize
	}
	if o.LockTTL <= 0 {
		o.LockTTL = catmig.DefaultLockTTL
	}
	return &Scheduler{coord: coord, o: o}
}

// RenewInterval is how often the lease-renewal task should fire: 40% of the
// lock TTL, so two renewals can fail before the lease is lost.
func (s *Scheduler) RenewInterval() time.Duration {
	return s.o.LockTTL * 2 / 5
}

func (s *Scheduler) lockKey(chunkID int) string {
	return s.o.LockPrefix + strconv.Itoa(chunkID)
}

// ownsLease reports whether this worker currently holds chunkID's lease.
// Completion and revert both require ownership: once a lease expires the
// chunk may have been reclaimed, and touching its state or lock would break
// the new holder's exclusivity.
func (s *Scheduler) ownsLease(ctx context.Context, chunkID int) (bool, error) {
	found, owner, err := s.coord.Get(ctx, s.lockKey(chunkID))
	if err != nil {
		return false, err
	}
	return found && owner == s.o.WorkerID, nil
}

func (s *Scheduler) leaseLostError(chunkID int) error {
	return catmig.Error[int]{
		Code:     catmig.LockAcquisitionFailure,
		Err:      fmt.Errorf("lease on chunk %d is no longer held by %s", chunkID, s.o.WorkerID),
		UserData: chunkID,
	}
}

// InitializeChunks creates ceil(total/chunkSize) pending chunk entries and
// returns the chunk count. If the chunk map is already populated (a resumed
// run), initialization is skipped and the existing count is returned.
func (s *Scheduler) InitializeChunks(ctx context.Context, total int) (int, error) {
	n, err := s.coord.HLen(ctx, s.o.ChunksKey)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info("chunk map already initialized, resuming", "chunks", n)
		return int(n), nil
	}
	numChunks := (total + s.o.ChunkSize - 1) / s.o.ChunkSize
	for i := 0; i < numChunks; i++ {
		end := (i + 1) * s.o.ChunkSize
		if end > total {
			end = total
		}
		state := catmig.ChunkState{
			ChunkID:     i,
			StartOffset: i * s.o.ChunkSize,
			EndOffset:   end,
			Status:      catmig.ChunkPending,
		}
		if err := s.writeChunk(ctx, state); err != nil {
			return 0, err
		}
	}
	log.Info("initialized chunk map", "total_records", total, "chunks", numChunks, "chunk_size", s.o.ChunkSize)
	return numChunks, nil
}

// GetNextChunk scans the chunk map in chunk-id order and leases the first
// pending chunk. A processing entry whose lock key has expired is considered
// orphaned by a crashed worker and is flipped back to pending before the scan
// considers it. Returns nil when no chunk could be leased.
func (s *Scheduler) GetNextChunk(ctx context.Context) (*catmig.ChunkState, error) {
	states, err := s.readChunks(ctx)
	if err != nil {
		return nil, err
	}

	for i := range states {
		if states[i].Status != catmig.ChunkProcessing {
			continue
		}
		held, err := s.coord.Exists(ctx, s.lockKey(states[i].ChunkID))
		if err != nil {
			return nil, err
		}
		if held {
			continue
		}
		// Lease expired while still marked processing: the holder died.
		log.Warn("reclaiming orphaned chunk", "chunk", states[i].ChunkID, "stale_worker", states[i].WorkerID)
		states[i].Status = catmig.ChunkPending
		states[i].WorkerID = ""
		states[i].LastUpdate = time.Now().UTC()
		if err := s.writeChunk(ctx, states[i]); err != nil {
			return nil, err
		}
	}

	for i := range states {
		if states[i].Status != catmig.ChunkPending {
			continue
		}
		ok, err := s.coord.SetNX(ctx, s.lockKey(states[i].ChunkID), s.o.WorkerID, s.o.LockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Another worker beat us to it; keep scanning.
			continue
		}
		states[i].Status = catmig.ChunkProcessing
		states[i].WorkerID = s.o.WorkerID
		states[i].LastUpdate = time.Now().UTC()
		if err := s.writeChunk(ctx, states[i]); err != nil {
			// Surrender the lease rather than hold a chunk we failed to mark.
			_ = s.coord.Delete(ctx, []string{s.lockKey(states[i].ChunkID)})
			return nil, err
		}
		log.Info("leased chunk", "chunk", states[i].ChunkID, "start", states[i].StartOffset, "end", states[i].EndOffset)
		return &states[i], nil
	}
	return nil, nil
}

// RenewLock extends this worker's lease on chunkID. It fails with
// LockAcquisitionFailure if the lease is gone or held by another worker.
func (s *Scheduler) RenewLock(ctx context.Context, chunkID int) error {
	owns, err := s.ownsLease(ctx, chunkID)
	if err != nil {
		return err
	}
	if !owns {
		return s.leaseLostError(chunkID)
	}
	if _, err := s.coord.Expire(ctx, s.lockKey(chunkID), s.o.LockTTL); err != nil {
		return err
	}
	return nil
}

// MarkChunkCompleted merges result into the chunk entry, marks it completed,
// and releases the lease. Fails with LockAcquisitionFailure if this worker no
// longer holds the lease; the chunk is then left untouched for its new holder.
func (s *Scheduler) MarkChunkCompleted(ctx context.Context, chunkID int, result catmig.ChunkResult) error {
	owns, err := s.ownsLease(ctx, chunkID)
	if err != nil {
		return err
	}
	if !owns {
		return s.leaseLostError(chunkID)
	}
	state, err := s.readChunk(ctx, chunkID)
	if err != nil {
		return err
	}
	state.ChunkResult = result
	state.Status = catmig.ChunkCompleted
	state.LastUpdate = time.Now().UTC()
	if err := s.writeChunk(ctx, state); err != nil {
		return err
	}
	return s.coord.Delete(ctx, []string{s.lockKey(chunkID)})
}

// MarkChunkPending reverts the chunk to pending after a worker-local failure
// and releases the lease so another worker can retry it. Fails with
// LockAcquisitionFailure if this worker no longer holds the lease: the chunk
// was reclaimed after expiry and reverting would stomp the new holder.
func (s *Scheduler) MarkChunkPending(ctx context.Context, chunkID int) error {
	owns, err := s.ownsLease(ctx, chunkID)
	if err != nil {
		return err
	}
	if !owns {
		return s.leaseLostError(chunkID)
	}
	state, err := s.readChunk(ctx, chunkID)
	if err != nil {
		return err
	}
	state.Status = catmig.ChunkPending
	state.WorkerID = ""
	state.LastUpdate = time.Now().UTC()
	if err := s.writeChunk(ctx, state); err != nil {
		return err
	}
	return s.coord.Delete(ctx, []string{s.lockKey(chunkID)})
}

// AreAllChunksCompleted reports whether the chunk map is non-empty and every
// entry is completed.
func (s *Scheduler) AreAllChunksCompleted(ctx context.Context) (bool, error) {
	states, err := s.readChunks(ctx)
	if err != nil {
		return false, err
	}
	if len(states) == 0 {
		return false, nil
	}
	for i := range states {
		if states[i].Status != catmig.ChunkCompleted {
			return false, nil
		}
	}
	return true, nil
}

// GetProgress returns a read-only summary over the whole chunk map.
func (s *Scheduler) GetProgress(ctx context.Context) (catmig.Progress, error) {
	var p catmig.Progress
	states, err := s.readChunks(ctx)
	if err != nil {
		return p, err
	}
	p.TotalChunks = len(states)
	for i := range states {
		switch states[i].Status {
		case catmig.ChunkPending:
			p.PendingChunks++
		case catmig.ChunkProcessing:
			p.ProcessingChunks++
		case catmig.ChunkCompleted:
			p.CompletedChunks++
		}
		p.Totals.Add(states[i].ChunkResult)
	}
	return p, nil
}

// Reset unconditionally deletes the chunk map, the reserved state key, and
// every chunk lock. Chunks are recreated on the next run's initialization.
func (s *Scheduler) Reset(ctx context.Context) error {
	states, err := s.readChunks(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(states)+2)
	for i := range states {
		keys = append(keys, s.lockKey(states[i].ChunkID))
	}
	keys = append(keys, s.o.ChunksKey, s.o.StateKey)
	return s.coord.Delete(ctx, keys)
}

func (s *Scheduler) readChunk(ctx context.Context, chunkID int) (catmig.ChunkState, error) {
	var state catmig.ChunkState
	found, v, err := s.coord.HGet(ctx, s.o.ChunksKey, strconv.Itoa(chunkID))
	if err != nil {
		return state, err
	}
	if !found {
		return state, fmt.Errorf("chunk %d not found in chunk map", chunkID)
	}
	if err := catmig.DefaultMarshaler.Unmarshal([]byte(v), &state); err != nil {
		return state, fmt.Errorf("failed to decode chunk %d state: %w", chunkID, err)
	}
	return state, nil
}

// readChunks returns every chunk entry sorted by chunk id, so the first-fit
// scan is deterministic across workers.
func (s *Scheduler) readChunks(ctx context.Context) ([]catmig.ChunkState, error) {
	m, err := s.coord.HGetAll(ctx, s.o.ChunksKey)
	if err != nil {
		return nil, err
	}
	states := make([]catmig.ChunkState, 0, len(m))
	for field, v := range m {
		var state catmig.ChunkState
		if err := catmig.DefaultMarshaler.Unmarshal([]byte(v), &state); err != nil {
			return nil, fmt.Errorf("failed to decode chunk %s state: %w", field, err)
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ChunkID < states[j].ChunkID })
	return states, nil
}

func (s *Scheduler) writeChunk(ctx context.Context, state catmig.ChunkState) error {
	ba, err := catmig.DefaultMarshaler.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode chunk %d state: %w", state.ChunkID, err)
	}
	return s.coord.HSet(ctx, s.o.ChunksKey, strconv.Itoa(state.ChunkID), string(ba))
}
