package domain

// AddProductRequest introduces stock to the warehouse. For a product already
// present only Name and Quantity are consulted; a new product additionally
// requires prices and a category. ShelfLifeDays, when positive on a
// perishable category, sets the expiry date relative to now.
type AddProductRequest struct {
	Name          string   `json:"name"`
	Quantity      int      `json:"quantity"`
	CostCents     int64    `json:"cost_cents"`
	SellCents     int64    `json:"sell_cents"`
	Category      Category `json:"category"`
	ShelfLifeDays int      `json:"shelf_life_days"`
}

// TransferRequest moves quantity from warehouse to storefront.
// DiscountPercent must be set when the product is new to the storefront and
// is ignored when augmenting an existing listing.
type TransferRequest struct {
	Name            string   `json:"name"`
	Quantity        int      `json:"quantity"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
}

// WarehouseUpdateRequest patches a warehouse record. Nil fields are left
// untouched; Quantity sets an absolute count, not a delta.
type WarehouseUpdateRequest struct {
	Quantity  *int   `json:"quantity,omitempty"`
	CostCents *int64 `json:"cost_cents,omitempty"`
	SellCents *int64 `json:"sell_cents,omitempty"`
}

// StorefrontUpdateRequest patches price and/or discount on a storefront
// listing. Nil fields are left untouched.
type StorefrontUpdateRequest struct {
	SellCents       *int64   `json:"sell_cents,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
}

// ListProductsRequest controls the product listing. Category nil means all
// categories; InStockOnly hides zero-quantity storefront listings.
type ListProductsRequest struct {
	Location    Location
	Ascending   bool
	Category    *Category
	InStockOnly bool
}
