package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "log/slog"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

// fallbackProviderName marks synthetic providers created when source provider
// data is missing or unusable. They are cleaned up by an external process.
const fallbackProviderName = "null"

// ProviderReconciler turns a product's embedded provider blob into a stable
// provider id, always returning a valid id. Natural-key collisions and
// missing data are absorbed by a deterministic fallback.
type ProviderReconciler struct {
	providers ProviderStore
	resolver  *Resolver
}

// NewProviderReconciler creates a ProviderReconciler.
func NewProviderReconciler(providers ProviderStore, resolver *Resolver) *ProviderReconciler {
	return &ProviderReconciler{providers: providers, resolver: resolver}
}

// parseProviderBlob decodes the embedded provider JSON, tolerating a
// double-encoded string payload. Returns nil when the blob is absent or
// unusable (no external id).
func parseProviderBlob(raw json.RawMessage) *catmig.SourceProvider {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	ba := []byte(raw)
	// Legacy rows sometimes store the object JSON-encoded inside a string.
	var s string
	if err := json.Unmarshal(ba, &s); err == nil {
		ba = []byte(s)
	}
	var p catmig.SourceProvider
	if err := json.Unmarshal(ba, &p); err != nil {
		return nil
	}
	if p.ExternalID == "" {
		return nil
	}
	if p.Name == "" {
		p.Name = fallbackProviderName
	}
	return &p
}

// Reconcile resolves the product's provider to a target provider id,
// creating one when needed. Returns the id and whether a row was created.
func (r *ProviderReconciler) Reconcile(ctx context.Context, product catmig.SourceProduct) (string, bool, error) {
	src := parseProviderBlob(product.Provider)
	if src == nil {
		return r.createFallbackProvider(ctx, product)
	}

	platformCountryID, err := r.resolver.ResolvePlatformCountry(ctx, product.PlatformName, product.CountryCode)
	if err != nil {
		log.Warn("provider platform country unresolved, using fallback",
			"external_id", product.ExternalID, "platform", product.PlatformName, "country", product.CountryCode)
		return r.createFallbackProvider(ctx, product)
	}

	// Lookup by (name, external id) first: the most specific identity the
	// legacy blob can assert.
	byName, err := r.providers.FindByNameAndExternalID(ctx, src.Name, src.ExternalID)
	if err != nil {
		return "", false, err
	}
	if byName != nil {
		// Reassigning the external id could collide with another provider
		// already holding the natural key; update only safe fields then.
		holder, err := r.providers.FindByExternalID(ctx, src.ExternalID, platformCountryID)
		if err != nil {
			return "", false, err
		}
		if holder != nil && holder.ID != byName.ID {
			if err := r.providers.UpdateVerified(ctx, byName.ID, src.Verified); err != nil {
				return "", false, err
			}
		} else {
			if err := r.providers.UpdateExternalIDVerified(ctx, byName.ID, src.ExternalID, src.Verified); err != nil {
				return "", false, err
			}
		}
		return byName.ID, false, nil
	}

	// Natural-key lookup: same external id under the same platform country.
	byKey, err := r.providers.FindByExternalID(ctx, src.ExternalID, platformCountryID)
	if err != nil {
		return "", false, err
	}
	if byKey != nil {
		if err := r.providers.UpdateNameVerified(ctx, byKey.ID, src.Name, src.Verified); err != nil {
			return "", false, err
		}
		return byKey.ID, false, nil
	}

	now := time.Now().UTC()
	created, err := r.providers.Create(ctx, target.Provider{
		ID:                catmig.NewUUID().String(),
		Name:              src.Name,
		ExternalID:        src.ExternalID,
		Verified:          src.Verified,
		PlatformCountryID: platformCountryID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return "", false, err
	}
	return created.ID, true, nil
}

// createFallbackProvider resolves or creates the synthetic provider keyed by
// the product's own external id. Fails fast when even the platform country
// cannot be resolved.
func (r *ProviderReconciler) createFallbackProvider(ctx context.Context, product catmig.SourceProduct) (string, bool, error) {
	platformCountryID, err := r.resolver.ResolvePlatformCountry(ctx, product.PlatformName, product.CountryCode)
	if err != nil {
		return "", false, fmt.Errorf("fallback provider for product %s: %w", product.ExternalID, err)
	}
	existing, err := r.providers.FindByExternalID(ctx, product.ExternalID, platformCountryID)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}
	now := time.Now().UTC()
	created, err := r.providers.Create(ctx, target.Provider{
		ID:                catmig.NewUUID().String(),
		Name:              fallbackProviderName,
		ExternalID:        product.ExternalID,
		Verified:          false,
		PlatformCountryID: platformCountryID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return "", false, err
	}
	log.Debug("created fallback provider", "provider_id", created.ID, "external_id", product.ExternalID)
	return created.ID, true, nil
}
