package migration

import (
	"context"
	"fmt"
	"sync"

	log "log/slog"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/legacy"
)

/// Pipeline runs the per-record migration stages in fixed order: provider
// reconciliation, product upsert, history gap fill, multimedia
// reconciliation. It also suppresses duplicate source records seen by this
// worker process.
type Pipeline struct {
	providers  *ProviderReconciler
	products   *ProductUpserter
	histories  *HistoryGapFiller
	multimedia *MultimediaReconciler

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewPipeline wires the stages over the given stores.
func NewPipeline(refs ReferenceStore, providers ProviderStore, products ProductStore,
	histories HistoryStore, multimedia MultimediaStore, source legacy.HistorySource) *Pipeline {
	resolver := NewResolver(refs)
	return &Pipeline{
		providers:  NewProviderReconciler(providers, resolver),
		products:   NewProductUpserter(products, resolver),
		histories:  NewHistoryGapFiller(histories, source),
		multimedia: NewMultimediaReconciler(multimedia),
		seen:       make(map[string]struct{}),
	}
}

// markSeen records the source id, reporting whether it was already present.
func (p *Pipeline) markSeen(sourceID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[sourceID]; ok {
		return true
	}
	p.seen[sourceID] = struct{}{}
	return false
}

// ProcessRecord migrates one source product end to end and returns the
// per-record result. A failure in any stage aborts the record; earlier
// stages' writes stand, the record is retried whole on the next run.
func (p *Pipeline) ProcessRecord(ctx context.Context, src catmig.SourceProduct) (catmig.ChunkResult, error) {
	var res catmig.ChunkResult

	if src.ExternalID == "" || src.SourceID == "" {
		return res, catmig.Error[string]{
			Code:     catmig.SourceDataMalformed,
			Err:      fmt.Errorf("source record missing identity (external_id=%q, source_id=%q)", src.ExternalID, src.SourceID),
			UserData: src.SourceID,
		}
	}
	if p.markSeen(src.SourceID) {
		log.Debug("duplicate source record skipped",
			"source_id", src.SourceID, "external_id", src.ExternalID,
			"platform", src.PlatformName, "country", src.CountryCode)
		res.DuplicatesSkipped++
		return res, nil
	}

	providerID, providerCreated, err := p.providers.Reconcile(ctx, src)
	if err != nil {
		return res, fmt.Errorf("provider stage: %w", err)
	}
	if providerCreated {
		res.ProvidersCreated++
	}

	productID, productCreated, err := p.products.Upsert(ctx, src, providerID)
	if err != nil {
		return res, fmt.Errorf("product stage: %w", err)
	}
	if productCreated {
		res.ProductsCreated++
	} else {
		res.ProductsUpdated++
	}

	filled, err := p.histories.Fill(ctx, src, productID)
	if err != nil {
		return res, fmt.Errorf("history stage: %w", err)
	}
	res.HistoriesFilled += filled

	media, err := p.multimedia.Reconcile(ctx, src, productID)
	if err != nil {
		return res, fmt.Errorf("multimedia stage: %w", err)
	}
	res.MultimediaCreated += media

	res.Processed++
	return res, nil
}
