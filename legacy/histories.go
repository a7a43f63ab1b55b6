package legacy

import (
	"context"
	"fmt"
	"os"
	"sync"

	log "log/slog"

	"github.com/dropsight/catmig"
)

// NewHistorySource selects the snapshot history backend when snapshotPath
// exists, otherwise the store backend.
func NewHistorySource(conn *Connection, snapshotPath string) HistorySource {
	if _, err := os.Stat(snapshotPath); err == nil {
		log.Info("using snapshot history backend", "path", snapshotPath)
		return NewSnapshotHistorySource(snapshotPath)
	}
	return NewStoreHistorySource(conn)
}

type historyKey struct {
	externalID, platformName, countryCode string
}

// SnapshotHistorySource serves history rows from a pre-exported JSON array,
// grouped by product key on the one-time load.
type SnapshotHistorySource struct {
	path string

	mu     sync.Mutex
	byKey  map[historyKey][]catmig.SourceHistory
	loaded bool
}

// NewSnapshotHistorySource creates a SnapshotHistorySource for the given path.
func NewSnapshotHistorySource(path string) *SnapshotHistorySource {
	return &SnapshotHistorySource{path: path}
}

func (s *SnapshotHistorySource) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	ba, err := os.ReadFile(s.path)
	if err != nil {
		return catmig.Error[string]{Code: catmig.ConfigurationError, Err: fmt.Errorf("failed to read history snapshot: %w", err), UserData: s.path}
	}
	var rows []catmig.SourceHistory
	if err := catmig.DefaultMarshaler.Unmarshal(ba, &rows); err != nil {
		return catmig.Error[string]{Code: catmig.ConfigurationError, Err: fmt.Errorf("failed to decode history snapshot: %w", err), UserData: s.path}
	}
	s.byKey = make(map[historyKey][]catmig.SourceHistory)
	for _, h := range rows {
		k := historyKey{h.ExternalProductID, h.PlatformName, h.CountryCode}
		s.byKey[k] = append(s.byKey[k], h)
	}
	s.loaded = true
	log.Info("loaded history snapshot", "path", s.path, "rows", len(rows), "products", len(s.byKey))
	return nil
}

// Dates returns the distinct history dates for the product key.
func (s *SnapshotHistorySource) Dates(ctx context.Context, externalID, platformName, countryCode string) ([]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	rows := s.byKey[historyKey{externalID, platformName, countryCode}]
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, h := range rows {
		if _, ok := seen[h.Date]; ok {
			continue
		}
		seen[h.Date] = struct{}{}
		out = append(out, h.Date)
	}
	return out, nil
}

// RowsForDates returns the full rows for the given dates.
func (s *SnapshotHistorySource) RowsForDates(ctx context.Context, externalID, platformName, countryCode string, dates []string) ([]catmig.SourceHistory, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		wanted[d] = struct{}{}
	}
	var out []catmig.SourceHistory
	for _, h := range s.byKey[historyKey{externalID, platformName, countryCode}] {
		if _, ok := wanted[h.Date]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}
