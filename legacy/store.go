package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dropsight/catmig"
)

// StoreReader reads products straight from the legacy store. The rocketfy
// platform is excluded at the source: it was migrated by a separate effort.
type StoreReader struct {
	db *sql.DB
}

// NewStoreReader creates a StoreReader over the connection.
func NewStoreReader(conn *Connection) *StoreReader {
	return &StoreReader{db: conn.DB}
}

const productSelect = `SELECT source_id, external_id,
	COALESCE(name, ''), COALESCE(description, ''),
	COALESCE(platform_name, ''), COALESCE(country_code, ''),
	COALESCE(sale_price, 0), COALESCE(suggested_price, 0),
	COALESCE(total_sold_units, 0), COALESCE(sold_units_last_7_days, 0), COALESCE(sold_units_last_30_days, 0),
	COALESCE(total_billing, 0), COALESCE(billing_last_7_days, 0), COALESCE(billing_last_30_days, 0),
	COALESCE(stock, 0), COALESCE(variations_amount, 0), COALESCE(score, 0), COALESCE(visible, 0),
	categories, provider, gallery, created_at, updated_at
FROM products
WHERE platform_name <> 'rocketfy'`

// Count returns the total record count.
func (r *StoreReader) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE platform_name <> 'rocketfy'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("legacy count failed: %w", err)
	}
	return n, nil
}

// Read returns up to take records starting at skip, ordered by
// (created_at, source_id) for stable pagination across workers.
func (r *StoreReader) Read(ctx context.Context, skip, take int) ([]catmig.SourceProduct, error) {
	rows, err := r.db.QueryContext(ctx,
		productSelect+` ORDER BY created_at ASC, source_id ASC LIMIT ? OFFSET ?`, take, skip)
	if err != nil {
		return nil, fmt.Errorf("legacy read failed: %w", err)
	}
	defer rows.Close()

	var out []catmig.SourceProduct
	for rows.Next() {
		var p catmig.SourceProduct
		var categories, provider, gallery sql.NullString
		if err := rows.Scan(&p.SourceID, &p.ExternalID, &p.Name, &p.Description,
			&p.PlatformName, &p.CountryCode,
			&p.SalePrice, &p.SuggestedPrice,
			&p.TotalSoldUnits, &p.SoldUnitsLast7Days, &p.SoldUnitsLast30Days,
			&p.TotalBilling, &p.BillingLast7Days, &p.BillingLast30Days,
			&p.Stock, &p.VariationsAmount, &p.Score, &p.Visible,
			&categories, &provider, &gallery, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if categories.Valid && categories.String != "" {
			// Bad category JSON only costs the category; the record still migrates.
			_ = json.Unmarshal([]byte(categories.String), &p.Categories)
		}
		if provider.Valid {
			p.Provider = json.RawMessage(provider.String)
		}
		if gallery.Valid {
			p.Gallery = json.RawMessage(gallery.String)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StoreHistorySource reads the daily time-series from the legacy store.
type StoreHistorySource struct {
	db *sql.DB
}

// NewStoreHistorySource creates a StoreHistorySource over the connection.
func NewStoreHistorySource(conn *Connection) *StoreHistorySource {
	return &StoreHistorySource{db: conn.DB}
}

// Dates returns the distinct history dates for the product key.
func (r *StoreHistorySource) Dates(ctx context.Context, externalID, platformName, countryCode string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM product_histories
		WHERE external_product_id = ? AND platform_name = ? AND country_code = ?`,
		externalID, platformName, countryCode)
	if err != nil {
		return nil, fmt.Errorf("legacy history dates failed: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RowsForDates returns the full rows for the given dates.
func (r *StoreHistorySource) RowsForDates(ctx context.Context, externalID, platformName, countryCode string, dates []string) ([]catmig.SourceHistory, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dates)), ",")
	args := make([]any, 0, len(dates)+3)
	args = append(args, externalID, platformName, countryCode)
	for _, d := range dates {
		args = append(args, d)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT external_product_id, platform_name, country_code, date,
			COALESCE(stock, 0), COALESCE(sale_price, 0), COALESCE(sold_units, 0), COALESCE(sales_amount, 0),
			COALESCE(stock_adjustment, 0), COALESCE(stock_adjustment_reason, '')
		FROM product_histories
		WHERE external_product_id = ? AND platform_name = ? AND country_code = ?
		  AND date IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("legacy history rows failed: %w", err)
	}
	defer rows.Close()
	var out []catmig.SourceHistory
	for rows.Next() {
		var h catmig.SourceHistory
		if err := rows.Scan(&h.ExternalProductID, &h.PlatformName, &h.CountryCode, &h.Date,
			&h.Stock, &h.SalePrice, &h.SoldUnits, &h.SalesAmount,
			&h.StockAdjustment, &h.StockAdjustmentReason); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
