// Package migration implements the per-record migration pipeline (reference
// resolution, provider reconciliation, product upsert, history gap fill,
// multimedia reconciliation) and the per-chunk driver loop.
package migration

import (
	"context"

	"github.com/dropsight/catmig/target"
)

// ReferenceStore reads the read-only reference tables.
type ReferenceStore interface {
	CountryByCode(ctx context.Context, code string) (target.Country, bool, error)
	PlatformByName(ctx context.Context, name string) (target.Platform, bool, error)
	PlatformCountry(ctx context.Context, platformID, countryID int64) (target.PlatformCountry, bool, error)
	BaseCategories(ctx context.Context) ([]target.BaseCategory, error)
	PlatformCategoryBaseID(ctx context.Context, platformID int64, name string) (int64, bool, error)
}

// ProviderStore persists providers.
type ProviderStore interface {
	GetByID(ctx context.Context, id string) (*target.Provider, error)
	FindByNameAndExternalID(ctx context.Context, name, externalID string) (*target.Provider, error)
	FindByExternalID(ctx context.Context, externalID string, platformCountryID int64) (*target.Provider, error)
	UpdateVerified(ctx context.Context, id string, verified bool) error
	UpdateExternalIDVerified(ctx context.Context, id, externalID string, verified bool) error
	UpdateNameVerified(ctx context.Context, id, name string, verified bool) error
	Create(ctx context.Context, p target.Provider) (*target.Provider, error)
}

// ProductStore persists products.
type ProductStore interface {
	GetByID(ctx context.Context, id string) (*target.Product, error)
	Insert(ctx context.Context, p target.Product) error
	Update(ctx context.Context, p target.Product) error
}

// HistoryStore persists daily time-series rows.
type HistoryStore interface {
	ExistingDates(ctx context.Context, productID string) (map[string]struct{}, error)
	Insert(ctx context.Context, h target.History) error
	InsertBatch(ctx context.Context, rows []target.History) error
}

// MultimediaStore persists gallery rows.
type MultimediaStore interface {
	ListByProduct(ctx context.Context, productID string) ([]target.Multimedia, error)
	UpdateOriginalURL(ctx context.Context, id, originalURL string) error
	Insert(ctx context.Context, m target.Multimedia) error
	InsertBatch(ctx context.Context, rows []target.Multimedia) error
}
