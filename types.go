package catmig

import (
	"encoding/json"
	"time"
)

// SourceProduct is a snapshot of a legacy product. Field tags follow the
// snake-case shape of the legacy export so snapshot decoding normalizes
// naturally; the store backend maps columns onto the same struct.
type SourceProduct struct {
	// SourceID is the legacy store's opaque stable identifier. It becomes the
	// target Product's id verbatim.
	SourceID    string `json:"source_id"`
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	PlatformName string `json:"platform_name"`
	CountryCode  string `json:"country_code"`

	SalePrice      float64 `json:"sale_price"`
	SuggestedPrice float64 `json:"suggested_price"`

	TotalSoldUnits      int     `json:"total_sold_units"`
	SoldUnitsLast7Days  int     `json:"sold_units_last_7_days"`
	SoldUnitsLast30Days int     `json:"sold_units_last_30_days"`
	TotalBilling        float64 `json:"total_billing"`
	BillingLast7Days    float64 `json:"billing_last_7_days"`
	BillingLast30Days   float64 `json:"billing_last_30_days"`

	Stock            int     `json:"stock"`
	VariationsAmount int     `json:"variations_amount"`
	Score            float64 `json:"score"`
	Visible          bool    `json:"visible"`

	Categories []SourceCategory `json:"categories"`

	// Provider and Gallery are kept raw: legacy rows carry them as embedded
	// JSON that is frequently missing, double-encoded, or malformed. The
	// pipeline parses them leniently.
	Provider json.RawMessage `json:"provider"`
	Gallery  json.RawMessage `json:"gallery"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceCategory is an ordered category reference on a legacy product.
type SourceCategory struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
}

// SourceProvider is the parsed form of a product's embedded provider blob.
type SourceProvider struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	Verified   bool   `json:"verified"`
}

// SourceGalleryEntry is the parsed form of one gallery blob entry. Any one of
// the URL fields may carry the usable location.
type SourceGalleryEntry struct {
	URL         string `json:"url"`
	SourceURL   string `json:"source_url"`
	OwnImage    string `json:"own_image"`
	OriginalURL string `json:"original_url"`
	Type        string `json:"type"`
}

// SourceHistory is one daily time-series row from the legacy store, keyed by
// (external product id, platform, country, date).
type SourceHistory struct {
	ExternalProductID string `json:"external_product_id"`
	PlatformName      string `json:"platform_name"`
	CountryCode       string `json:"country_code"`
	// Date is the ISO day (yyyy-mm-dd) as text; the legacy store never carries
	// a time component.
	Date                  string  `json:"date"`
	Stock                 int     `json:"stock"`
	SalePrice             float64 `json:"sale_price"`
	SoldUnits             int     `json:"sold_units"`
	SalesAmount           float64 `json:"sales_amount"`
	StockAdjustment       bool    `json:"stock_adjustment"`
	StockAdjustmentReason string  `json:"stock_adjustment_reason,omitempty"`
}
