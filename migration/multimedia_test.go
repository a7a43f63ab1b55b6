package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

func withGallery(p catmig.SourceProduct, blob string) catmig.SourceProduct {
	p.Gallery = json.RawMessage(blob)
	return p
}

func TestMultimediaReconcileInsertsAll(t *testing.T) {
	ctx := context.Background()
	store := newMemMultimedia()
	r := NewMultimediaReconciler(store)

	p := withGallery(sourceProduct("p1"),
		`[{"url":"/a.jpg"},{"own_image":"b.png"},{"source_url":"https://ext.example.com/c.mp4"}]`)
	n, err := r.Reconcile(ctx, p, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("reconciled %d rows, want 3", n)
	}

	rows, _ := store.ListByProduct(ctx, "prod-1")
	if len(rows) != 3 {
		t.Fatalf("stored %d rows, want 3", len(rows))
	}
	if rows[0].URL != "https://cdn.dropsight.io/a.jpg" {
		t.Errorf("relative url not completed: %q", rows[0].URL)
	}
	if rows[2].URL != "https://ext.example.com/c.mp4" || rows[2].Type != target.MultimediaVideo {
		t.Errorf("unexpected third row: %+v", rows[2])
	}
	for _, m := range rows {
		if m.OriginalURL != m.URL {
			t.Errorf("original url should mirror url on insert: %+v", m)
		}
		if m.Extracted {
			t.Errorf("new rows must not be marked extracted: %+v", m)
		}
	}
}

func TestMultimediaReconcileUpdatesThenAppends(t *testing.T) {
	ctx := context.Background()
	store := newMemMultimedia()
	_ = store.Insert(ctx, target.Multimedia{ID: "m1", ProductID: "prod-1", URL: "https://old/1.jpg", OriginalURL: "https://old/1.jpg"})
	_ = store.Insert(ctx, target.Multimedia{ID: "m2", ProductID: "prod-1", URL: "https://old/2.jpg", OriginalURL: "https://old/2.jpg"})
	r := NewMultimediaReconciler(store)

	p := withGallery(sourceProduct("p1"),
		`[{"url":"https://new/1.jpg"},{"url":"https://new/2.jpg"},{"url":"https://new/3.jpg"}]`)
	n, err := r.Reconcile(ctx, p, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("reconciled %d rows, want 3", n)
	}

	rows, _ := store.ListByProduct(ctx, "prod-1")
	if len(rows) != 3 {
		t.Fatalf("stored %d rows, want 3", len(rows))
	}
	// Paired rows get a refreshed original url, keeping their served url.
	if rows[0].OriginalURL != "https://new/1.jpg" || rows[0].URL != "https://old/1.jpg" {
		t.Errorf("first row: %+v", rows[0])
	}
	if rows[1].OriginalURL != "https://new/2.jpg" {
		t.Errorf("second row: %+v", rows[1])
	}
	if rows[2].URL != "https://new/3.jpg" {
		t.Errorf("appended row: %+v", rows[2])
	}
}

func TestMultimediaReconcileEqualLengthOnlyUpdates(t *testing.T) {
	ctx := context.Background()
	store := newMemMultimedia()
	_ = store.Insert(ctx, target.Multimedia{ID: "m1", ProductID: "prod-1", URL: "https://old/1.jpg"})
	r := NewMultimediaReconciler(store)

	p := withGallery(sourceProduct("p1"), `[{"url":"https://new/1.jpg"}]`)
	n, err := r.Reconcile(ctx, p, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reconciled %d rows, want 1", n)
	}
	rows, _ := store.ListByProduct(ctx, "prod-1")
	if len(rows) != 1 {
		t.Errorf("stored %d rows, want 1 (no append)", len(rows))
	}
}

func TestMultimediaReconcileSkipsUnusableEntries(t *testing.T) {
	ctx := context.Background()
	store := newMemMultimedia()
	r := NewMultimediaReconciler(store)

	for _, blob := range []string{"", "null", "not json", `[]`, `[{"type":"image"}]`} {
		p := sourceProduct("p1")
		if blob != "" {
			p = withGallery(p, blob)
		}
		n, err := r.Reconcile(ctx, p, "prod-1")
		if err != nil {
			t.Fatalf("blob %q: %v", blob, err)
		}
		if n != 0 {
			t.Errorf("blob %q: reconciled %d rows, want 0", blob, n)
		}
	}
}

func TestMultimediaReconcileBatchFallback(t *testing.T) {
	ctx := context.Background()
	store := newMemMultimedia()
	store.batchErr = fmt.Errorf("bulk insert rejected")
	r := NewMultimediaReconciler(store)

	p := withGallery(sourceProduct("p1"), `[{"url":"https://a/1.jpg"},{"url":"https://a/2.jpg"}]`)
	n, err := r.Reconcile(ctx, p, "prod-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("row-by-row fallback reconciled %d, want 2", n)
	}
	rows, _ := store.ListByProduct(ctx, "prod-1")
	if len(rows) != 2 {
		t.Errorf("stored %d rows, want 2", len(rows))
	}
}
