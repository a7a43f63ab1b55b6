package migration

import (
	"context"
	"fmt"
	"testing"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

func targetHistory(productID, date string) target.History {
	return target.History{ID: catmig.NewUUID().String(), ProductID: productID, Date: date}
}

func historyRow(externalID, date string, soldUnits int) catmig.SourceHistory {
	return catmig.SourceHistory{
		ExternalProductID: externalID,
		PlatformName:      "dropi",
		CountryCode:       "CO",
		Date:              date,
		Stock:             10,
		SalePrice:         19.9,
		SoldUnits:         soldUnits,
		SalesAmount:       float64(soldUnits) * 19.9,
	}
}

func TestHistoryGapFill(t *testing.T) {
	ctx := context.Background()
	store := newMemHistories()
	source := newFakeHistorySource()
	source.add(historyRow("p1", "2024-03-03", 3))
	source.add(historyRow("p1", "2024-03-01", 1))
	source.add(historyRow("p1", "2024-03-02", 2))

	// The middle day already exists in the target.
	_ = store.Insert(ctx, targetHistory("prod-1", "2024-03-02"))

	src := sourceProduct("p1")
	src.TotalSoldUnits = 42
	src.SoldUnitsLast7Days = 7
	src.TotalBilling = 830.5
	src.SuggestedPrice = 25

	g := NewHistoryGapFiller(store, source)
	n, err := g.Fill(ctx, src, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("inserted %d rows, want 2", n)
	}

	first, ok := store.get("prod-1", "2024-03-01")
	if !ok {
		t.Fatal("2024-03-01 not inserted")
	}
	if first.SoldUnits != 1 || first.TotalSoldUnits != 0 || first.SuggestedPrice != 0 {
		t.Errorf("non-final row should carry zero aggregates: %+v", first)
	}

	// Only the latest synthesized day carries the product's current summary.
	last, ok := store.get("prod-1", "2024-03-03")
	if !ok {
		t.Fatal("2024-03-03 not inserted")
	}
	if last.TotalSoldUnits != 42 || last.SoldUnitsLast7Days != 7 || last.TotalBilling != 830.5 || last.SuggestedPrice != 25 {
		t.Errorf("final row missing aggregates: %+v", last)
	}

	// A second pass finds no gaps.
	n, err = g.Fill(ctx, src, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass inserted %d rows, want 0", n)
	}
	if got := store.countFor("prod-1"); got != 3 {
		t.Errorf("total rows = %d, want 3", got)
	}
}

func TestHistoryGapFillBatchFallback(t *testing.T) {
	ctx := context.Background()
	store := newMemHistories()
	store.batchErr = fmt.Errorf("bulk insert rejected")
	source := newFakeHistorySource()
	source.add(historyRow("p1", "2024-03-01", 1))
	source.add(historyRow("p1", "2024-03-02", 2))

	g := NewHistoryGapFiller(store, source)
	n, err := g.Fill(ctx, sourceProduct("p1"), "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("row-by-row fallback inserted %d, want 2", n)
	}
}

func TestHistoryGapFillCap(t *testing.T) {
	ctx := context.Background()
	store := newMemHistories()
	source := newFakeHistorySource()
	for i := 0; i < maxGapDatesPerRun+50; i++ {
		source.add(historyRow("p1", fmt.Sprintf("2021-%03d", i), 1))
	}

	g := NewHistoryGapFiller(store, source)
	n, err := g.Fill(ctx, sourceProduct("p1"), "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != maxGapDatesPerRun {
		t.Errorf("inserted %d rows, want cap %d", n, maxGapDatesPerRun)
	}
}
