package migration

import (
	"context"
	"time"

	"github.com/dropsight/catmig"
	"github.com/dropsight/catmig/target"
)

// defaultProductName replaces empty legacy product names.
const defaultProductName = "Sin nombre"

// ProductUpserter inserts or updates a target product keyed by the legacy
// source id, preserving createdAt on update.
type ProductUpserter struct {
	products ProductStore
	resolver *Resolver
}

// NewProductUpserter creates a ProductUpserter.
func NewProductUpserter(products ProductStore, resolver *Resolver) *ProductUpserter {
	return &ProductUpserter{products: products, resolver: resolver}
}

// Upsert writes the product and returns its id and whether it was created.
func (u *ProductUpserter) Upsert(ctx context.Context, src catmig.SourceProduct, providerID string) (string, bool, error) {
	platformCountryID, err := u.resolver.ResolvePlatformCountry(ctx, src.PlatformName, src.CountryCode)
	if err != nil {
		return "", false, err
	}

	existing, err := u.products.GetByID(ctx, src.SourceID)
	if err != nil {
		return "", false, err
	}

	var existingCategoryID int64
	if existing != nil {
		existingCategoryID = existing.BaseCategoryID
	}
	var categoryName string
	if len(src.Categories) > 0 {
		categoryName = src.Categories[0].Name
	}
	baseCategoryID, err := u.resolver.ResolveValidBaseCategoryID(ctx, existingCategoryID, categoryName, src.PlatformName)
	if err != nil {
		return "", false, err
	}

	status := target.ProductInactive
	if src.Visible {
		status = target.ProductActive
	}
	name := src.Name
	if name == "" {
		name = defaultProductName
	}

	p := target.Product{
		ID:                  src.SourceID,
		ExternalID:          src.ExternalID,
		Name:                name,
		Description:         src.Description,
		SalePrice:           src.SalePrice,
		SuggestedPrice:      src.SuggestedPrice,
		TotalSoldUnits:      src.TotalSoldUnits,
		SoldUnitsLast7Days:  src.SoldUnitsLast7Days,
		SoldUnitsLast30Days: src.SoldUnitsLast30Days,
		TotalBilling:        src.TotalBilling,
		BillingLast7Days:    src.BillingLast7Days,
		BillingLast30Days:   src.BillingLast30Days,
		Stock:               src.Stock,
		VariationsAmount:    src.VariationsAmount,
		Score:               src.Score,
		Status:              status,
		PlatformCountryID:   platformCountryID,
		ProviderID:          providerID,
		BaseCategoryID:      baseCategoryID,
		UpdatedAt:           time.Now().UTC(),
	}

	if existing == nil {
		p.CreatedAt = src.CreatedAt
		if err := u.products.Insert(ctx, p); err != nil {
			return "", false, err
		}
		return p.ID, true, nil
	}

	p.CreatedAt = existing.CreatedAt
	if err := u.products.Update(ctx, p); err != nil {
		return "", false, err
	}
	return p.ID, false, nil
}
