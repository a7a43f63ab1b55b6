package catmig

import "time"

// ChunkStatus is the lifecycle state of a chunk: pending -> processing -> completed.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
)

// ChunkState is the persistent record of one chunk, stored serialized in the
// coordination service's chunk map.
type ChunkState struct {
	ChunkID int `json:"chunk_id"`
	// StartOffset and EndOffset delimit the half-open record window
	// [StartOffset, EndOffset) over the deterministically ordered source.
	StartOffset int         `json:"start_offset"`
	EndOffset   int         `json:"end_offset"`
	Status      ChunkStatus `json:"status"`
	// WorkerID identifies the lease holder while Status is processing.
	WorkerID   string    `json:"worker_id,omitempty"`
	LastUpdate time.Time `json:"last_update,omitempty"`

	ChunkResult
}

// ChunkResult aggregates the per-chunk migration metrics merged into the chunk
// entry on completion.
type ChunkResult struct {
	Processed         int `json:"processed"`
	ProvidersCreated  int `json:"providers_created"`
	ProductsCreated   int `json:"products_created"`
	ProductsUpdated   int `json:"products_updated"`
	HistoriesFilled   int `json:"histories_filled"`
	MultimediaCreated int `json:"multimedia_created"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	Errors            int `json:"errors"`
}

// Add accumulates another result into r.
func (r *ChunkResult) Add(o ChunkResult) {
	r.Processed += o.Processed
	r.ProvidersCreated += o.ProvidersCreated
	r.ProductsCreated += o.ProductsCreated
	r.ProductsUpdated += o.ProductsUpdated
	r.HistoriesFilled += o.HistoriesFilled
	r.MultimediaCreated += o.MultimediaCreated
	r.DuplicatesSkipped += o.DuplicatesSkipped
	r.Errors += o.Errors
}

// Progress is a read-only summary over the whole chunk map.
type Progress struct {
	TotalChunks      int `json:"total_chunks"`
	PendingChunks    int `json:"pending_chunks"`
	ProcessingChunks int `json:"processing_chunks"`
	CompletedChunks  int `json:"completed_chunks"`

	// Totals aggregates the metrics of every chunk, whatever its status.
	Totals ChunkResult `json:"totals"`
}
