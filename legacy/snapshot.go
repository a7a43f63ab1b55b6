package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	log "log/slog"

	"github.com/dropsight/catmig"
)

// snapshotCache holds the decoded product array, loaded once per process so
// every chunk's Read call slices the same in-memory sequence.
var snapshotCache struct {
	mu       sync.Mutex
	path     string
	products []catmig.SourceProduct
}

// SnapshotReader serves products from a pre-exported JSON snapshot, avoiding
// load on the legacy store during multi-worker runs.
type SnapshotReader struct {
	path string
}

// NewSnapshotReader creates a SnapshotReader for the given file path. The file
// is not touched until the first Count or Read call.
func NewSnapshotReader(path string) *SnapshotReader {
	return &SnapshotReader{path: path}
}

func (r *SnapshotReader) load() ([]catmig.SourceProduct, error) {
	snapshotCache.mu.Lock()
	defer snapshotCache.mu.Unlock()
	if snapshotCache.products != nil && snapshotCache.path == r.path {
		return snapshotCache.products, nil
	}

	ba, err := os.ReadFile(r.path)
	if err != nil {
		return nil, catmig.Error[string]{Code: catmig.ConfigurationError, Err: fmt.Errorf("failed to read snapshot: %w", err), UserData: r.path}
	}
	entries, err := decodeSnapshotArray(ba)
	if err != nil {
		return nil, catmig.Error[string]{Code: catmig.ConfigurationError, Err: err, UserData: r.path}
	}

	products := make([]catmig.SourceProduct, 0, len(entries))
	dropped := 0
	for _, raw := range entries {
		var p catmig.SourceProduct
		if err := catmig.DefaultMarshaler.Unmarshal(raw, &p); err != nil {
			dropped++
			log.Warn("dropping undecodable snapshot entry", "error", err)
			continue
		}
		if p.ExternalID == "" {
			dropped++
			log.Warn("dropping snapshot entry with missing external_id", "source_id", p.SourceID)
			continue
		}
		products = append(products, p)
	}
	if dropped > 0 {
		log.Warn("snapshot entries dropped", "dropped", dropped, "kept", len(products))
	}

	snapshotCache.path = r.path
	snapshotCache.products = products
	log.Info("loaded product snapshot", "path", r.path, "products", len(products))
	return products, nil
}

// decodeSnapshotArray accepts either a bare JSON array or the same array
// wrapped in a one-field object (take the first value).
func decodeSnapshotArray(ba []byte) ([]json.RawMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(ba, &entries); err == nil {
		return entries, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(ba, &wrapper); err != nil {
		return nil, fmt.Errorf("snapshot is neither a JSON array nor a wrapped array: %w", err)
	}
	for _, v := range wrapper {
		if err := json.Unmarshal(v, &entries); err != nil {
			return nil, fmt.Errorf("snapshot wrapper value is not a JSON array: %w", err)
		}
		return entries, nil
	}
	return nil, fmt.Errorf("snapshot wrapper object is empty")
}

// Count returns the snapshot length after the one-time load.
func (r *SnapshotReader) Count(ctx context.Context) (int, error) {
	products, err := r.load()
	if err != nil {
		return 0, err
	}
	return len(products), nil
}

// Read slices the cached array.
func (r *SnapshotReader) Read(ctx context.Context, skip, take int) ([]catmig.SourceProduct, error) {
	products, err := r.load()
	if err != nil {
		return nil, err
	}
	if skip >= len(products) {
		return nil, nil
	}
	end := skip + take
	if end > len(products) {
		end = len(products)
	}
	return products[skip:end], nil
}

// resetSnapshotCache clears the process-wide cache. Test hook.
func resetSnapshotCache() {
	snapshotCache.mu.Lock()
	defer snapshotCache.mu.Unlock()
	snapshotCache.path = ""
	snapshotCache.products = nil
}
