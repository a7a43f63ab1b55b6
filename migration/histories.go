package migration

import (
	"context"
	"sort"
	"time"

	log "log/slog"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/legacy"
	"github.com/dropsight/catmig/target"
)

const (
	// maxGapDatesPerRun bounds the date list fetched per invocation; a product
	// with more missing dates converges over successive runs.
	maxGapDatesPerRun = 1000
	// historyBatchSize is the sub-batch size for bulk inserts.
	historyBatchSize = 50
)

// HistoryGapFiller synthesizes target history rows for dates present in the
// source but absent in the target, without touching dates already present.
type HistoryGapFiller struct {
	histories HistoryStore
	source    legacy.HistorySource
}

// NewHistoryGapFiller creates a HistoryGapFiller.
func NewHistoryGapFiller(histories HistoryStore, source legacy.HistorySource) *HistoryGapFiller {
	return &HistoryGapFiller{histories: histories, source: source}
}

// Fill inserts the missing history rows for the product and returns how many
// were written.
func (g *HistoryGapFiller) Fill(ctx context.Context, src catmig.SourceProduct, productID string) (int, error) {
	existing, err := g.histories.ExistingDates(ctx, productID)
	if err != nil {
		return 0, err
	}
	sourceDates, err := g.source.Dates(ctx, src.ExternalID, src.PlatformName, src.CountryCode)
	if err != nil {
		return 0, err
	}

	missing := make([]string, 0, len(sourceDates))
	for _, d := range sourceDates {
		if _, ok := existing[d]; !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	sort.Strings(missing)
	if len(missing) > maxGapDatesPerRun {
		log.Warn("history gap capped, remainder left for a future run",
			"product_id", productID, "missing", len(missing), "cap", maxGapDatesPerRun)
		missing = missing[:maxGapDatesPerRun]
	}

	rows, err := g.source.RowsForDates(ctx, src.ExternalID, src.PlatformName, src.CountryCode, missing)
	if err != nil {
		return 0, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	now := time.Now().UTC()
	out := make([]target.History, len(rows))
	for i, h := range rows {
		out[i] = target.History{
			ID:                    catmig.NewUUID().String(),
			Date:                  h.Date,
			ProductID:             productID,
			Stock:                 h.Stock,
			SalePrice:             h.SalePrice,
			SoldUnits:             h.SoldUnits,
			SalesAmount:           h.SalesAmount,
			StockAdjustment:       h.StockAdjustment,
			StockAdjustmentReason: h.StockAdjustmentReason,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
	}
	// The legacy schema has no windowed aggregates; only the most recent
	// synthesized row carries the product's current summary.
	if len(out) > 0 {
		last := &out[len(out)-1]
		last.SoldUnitsLast7Days = src.SoldUnitsLast7Days
		last.SoldUnitsLast30Days = src.SoldUnitsLast30Days
		last.TotalSoldUnits = src.TotalSoldUnits
		last.BillingLast7Days = src.BillingLast7Days
		last.BillingLast30Days = src.BillingLast30Days
		last.TotalBilling = src.TotalBilling
		last.SuggestedPrice = src.SuggestedPrice
	}

	inserted := 0
	for start := 0; start < len(out); start += historyBatchSize {
		end := start + historyBatchSize
		if end > len(out) {
			end = len(out)
		}
		batch := out[start:end]
		if err := g.histories.InsertBatch(ctx, batch); err == nil {
			inserted += len(batch)
			continue
		}
		// Batch failed: isolate bad rows so one conflict doesn't lose the rest.
		for _, h := range batch {
			if err := g.histories.Insert(ctx, h); err != nil {
				log.Warn("history row insert failed, skipping",
					"product_id", productID, "date", h.Date, "error", err)
				continue
			}
			inserted++
		}
	}
	return inserted, nil
}
