package migration

import (
	"context"
	"encoding/json"
	"time"

	log "log/slog"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

// multimediaBatchSize is the sub-batch size for appended gallery rows.
const multimediaBatchSize = 20

// MultimediaReconciler parses a product's gallery blob, normalizes URLs, and
// reconciles against the existing multimedia rows: pairs are updated in
// order, the remainder appended.
type MultimediaReconciler struct {
	multimedia MultimediaStore
}

// NewMultimediaReconciler creates a MultimediaReconciler.
func NewMultimediaReconciler(multimedia MultimediaStore) *MultimediaReconciler {
	return &MultimediaReconciler{multimedia: multimedia}
}

// parseGalleryBlob decodes the gallery JSON, tolerating a double-encoded
// string payload. An unparseable blob is treated as an empty gallery.
func parseGalleryBlob(raw json.RawMessage) []catmig.SourceGalleryEntry {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	ba := []byte(raw)
	var s string
	if err := json.Unmarshal(ba, &s); err == nil {
		ba = []byte(s)
	}
	var entries []catmig.SourceGalleryEntry
	if err := json.Unmarshal(ba, &entries); err != nil {
		return nil
	}
	return entries
}

// usableURL picks the preferred URL field of a gallery entry.
func usableURL(e catmig.SourceGalleryEntry) string {
	switch {
	case e.URL != "":
		return e.URL
	case e.OwnImage != "":
		return e.OwnImage
	case e.SourceURL != "":
		return e.SourceURL
	case e.OriginalURL != "":
		return e.OriginalURL
	}
	return ""
}

// Reconcile applies the gallery to the product's multimedia rows and returns
// updated + inserted counts combined.
func (m *MultimediaReconciler) Reconcile(ctx context.Context, src catmig.SourceProduct, productID string) (int, error) {
	entries := parseGalleryBlob(src.Gallery)

	type normalized struct {
		url string
		typ target.MultimediaType
	}
	valid := make([]normalized, 0, len(entries))
	for _, e := range entries {
		raw := usableURL(e)
		if raw == "" {
			continue
		}
		url := NormalizeURL(raw, src.CountryCode)
		valid = append(valid, normalized{url: url, typ: ClassifyMultimediaType(url, e.Type)})
	}
	if len(valid) == 0 {
		return 0, nil
	}

	existing, err := m.multimedia.ListByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}

	changed := 0
	pairs := len(existing)
	if len(valid) < pairs {
		pairs = len(valid)
	}
	for i := 0; i < pairs; i++ {
		if err := m.multimedia.UpdateOriginalURL(ctx, existing[i].ID, valid[i].url); err != nil {
			log.Warn("multimedia update failed, skipping",
				"product_id", productID, "multimedia_id", existing[i].ID, "error", err)
			continue
		}
		changed++
	}

	if len(valid) <= len(existing) {
		return changed, nil
	}

	now := time.Now().UTC()
	toInsert := make([]target.Multimedia, 0, len(valid)-len(existing))
	for _, v := range valid[len(existing):] {
		toInsert = append(toInsert, target.Multimedia{
			ID:          catmig.NewUUID().String(),
			ProductID:   productID,
			URL:         v.url,
			OriginalURL: v.url,
			Type:        v.typ,
			Extracted:   false,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	for start := 0; start < len(toInsert); start += multimediaBatchSize {
		end := start + multimediaBatchSize
		if end > len(toInsert) {
			end = len(toInsert)
		}
		batch := toInsert[start:end]
		if err := m.multimedia.InsertBatch(ctx, batch); err == nil {
			changed += len(batch)
			continue
		}
		for _, row := range batch {
			if err := m.multimedia.Insert(ctx, row); err != nil {
				log.Warn("multimedia insert failed, skipping",
					"product_id", productID, "url", row.URL, "error", err)
				continue
			}
			changed++
		}
	}
	return changed, nil
}
