// Package legacy enumerates products and history rows from the legacy store,
// either by querying it directly or by reading a pre-exported JSON snapshot.
// Both backends yield records in the same deterministic order so chunk
// windows are well-defined across workers.
package legacy

import (
	"context"
	"os"

	log "log/slog"

	"github.com/dropsight/catmig"
)

// Reader is the uniform read contract over the legacy product sequence.
type Reader interface {
	// Count returns the total record count.
	Count(ctx context.Context) (int, error)
	// Read returns up to take records starting at skip, in deterministic order.
	Read(ctx context.Context, skip, take int) ([]catmig.SourceProduct, error)
}

// HistorySource reads the legacy daily time-series for one product.
type HistorySource interface {
	// Dates returns the distinct history dates for the product key.
	Dates(ctx context.Context, externalID, platformName, countryCode string) ([]string, error)
	// RowsForDates returns the full rows for the given dates.
	RowsForDates(ctx context.Context, externalID, platformName, countryCode string, dates []string) ([]catmig.SourceHistory, error)
}

// NewReader selects the snapshot backend when snapshotPath exists, otherwise
// the store backend over the given connection.
func NewReader(conn *Connection, snapshotPath string) Reader {
	if _, err := os.Stat(snapshotPath); err == nil {
		log.Info("using snapshot backend", "path", snapshotPath)
		return NewSnapshotReader(snapshotPath)
	}
	log.Info("using legacy store backend")
	return NewStoreReader(conn)
}
