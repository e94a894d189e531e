package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Category is the fixed product taxonomy. Food and Beverage are perishable
// and may carry an expiry date.
type Category string

const (
	CategoryFood        Category = "food"
	CategoryBeverage    Category = "beverage"
	CategoryElectronics Category = "electronics"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryBeverage, CategoryElectronics:
		return true
	}
	return false
}

func (c Category) Perishable() bool {
	return c == CategoryFood || c == CategoryBeverage
}

// Location names one of the two stock collections.
type Location string

const (
	LocationWarehouse  Location = "warehouse"
	LocationStorefront Location = "storefront"
)

func (l Location) Valid() bool {
	return l == LocationWarehouse || l == LocationStorefront
}

// StockRecord is one product at one location. Name keeps its canonical
// casing; lookups normalize to lowercase. DiscountPercent is only meaningful
// on storefront records.
type StockRecord struct {
	Name            string     `json:"name"`
	Quantity        int        `json:"quantity"`
	Category        Category   `json:"category"`
	CostCents       int64      `json:"cost_cents"`
	SellCents       int64      `json:"sell_cents"`
	DiscountPercent float64    `json:"discount_percent"`
	AddedAt         time.Time  `json:"added_at"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
}

// DiscountedSellCents is the effective unit price after discount.
func (r StockRecord) DiscountedSellCents() int64 {
	return DiscountedCents(r.SellCents, r.DiscountPercent)
}

// Expired reports whether the record's expiry date is on or before today.
// The comparison is at date granularity; time of day on either side is
// ignored, so a record expires on its expiry day, not the day after.
func (r StockRecord) Expired(today time.Time) bool {
	if r.ExpiryDate == nil {
		return false
	}
	y, m, d := today.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	ey, em, ed := r.ExpiryDate.Date()
	expiryDay := time.Date(ey, em, ed, 0, 0, 0, 0, today.Location())
	return !expiryDay.After(dayStart)
}

func DiscountedCents(cents int64, discountPercent float64) int64 {
	return int64(math.Round(float64(cents) * (1 - discountPercent/100)))
}

// Inventory is the full persisted inventory document: product name
// (canonical casing) -> record, per location.
type Inventory struct {
	Warehouse  map[string]StockRecord `json:"warehouse"`
	Storefront map[string]StockRecord `json:"storefront"`
}

func NewInventory() Inventory {
	return Inventory{
		Warehouse:  make(map[string]StockRecord),
		Storefront: make(map[string]StockRecord),
	}
}

// Collection returns the map backing a location. A nil map is replaced so
// documents loaded from partial files stay writable.
func (inv *Inventory) Collection(loc Location) map[string]StockRecord {
	switch loc {
	case LocationWarehouse:
		if inv.Warehouse == nil {
			inv.Warehouse = make(map[string]StockRecord)
		}
		return inv.Warehouse
	default:
		if inv.Storefront == nil {
			inv.Storefront = make(map[string]StockRecord)
		}
		return inv.Storefront
	}
}

// FindName resolves a case-insensitive product name to the canonical key
// stored in the collection.
func FindName(collection map[string]StockRecord, name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for key := range collection {
		if strings.ToLower(key) == lower {
			return key, true
		}
	}
	return "", false
}

// OrderStatus is monotonic: once confirmed an order never reverts.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
)

// legacy documents store pending orders as "not confirmed"
const legacyStatusPending = "not confirmed"

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == legacyStatusPending {
		*s = StatusPending
		return nil
	}
	*s = OrderStatus(raw)
	return nil
}

// OrderTimeLayout is the canonical second-precision timestamp layout used in
// the queue document.
const OrderTimeLayout = "2006-01-02 15:04:05"

// OrderTime is a lenient timestamp. A value that fails to parse keeps its
// raw string and reports invalid; such orders are treated as never expiring
// rather than being evicted on a guess.
type OrderTime struct {
	time.Time
	raw string
}

func NewOrderTime(t time.Time) OrderTime {
	return OrderTime{Time: t.Truncate(time.Second)}
}

func (t OrderTime) Valid() bool {
	return !t.Time.IsZero()
}

// Raw returns the serialized form: the canonical layout when valid, the
// original unparsed string otherwise.
func (t OrderTime) Raw() string {
	if t.Valid() {
		return t.Format(OrderTimeLayout)
	}
	return t.raw
}

func (t OrderTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Raw())
}

func (t *OrderTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(OrderTimeLayout, raw, time.Local)
	if err != nil {
		t.Time = time.Time{}
		t.raw = raw
		return nil
	}
	t.Time = parsed
	return nil
}

// LineItem is a snapshot taken at checkout time. Price and discount are
// captured then and never re-read from inventory.
type LineItem struct {
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	DiscountPercent float64 `json:"discount_percent"`
}

// TotalCents is the effective line total after discount.
func (li LineItem) TotalCents() int64 {
	return DiscountedCents(li.UnitPriceCents, li.DiscountPercent) * int64(li.Quantity)
}

// Order is one checkout. Items is never empty.
type Order struct {
	ID        string      `json:"id"`
	BuyerName string      `json:"buyer_name"`
	CreatedAt OrderTime   `json:"created_at"`
	Items     []LineItem  `json:"items"`
	Status    OrderStatus `json:"status"`
}

func (o Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalCents()
	}
	return total
}

// Cart is the pre-checkout working set. Items keep insertion order so the
// resulting order lines are stable.
type Cart struct {
	items []LineItem
}

// Add appends a line or merges quantity into an existing line for the same
// product. The price/discount snapshot of the first add wins, matching the
// storefront state the buyer saw.
func (c *Cart) Add(product string, qty int, unitPriceCents int64, discountPercent float64) {
	if qty <= 0 {
		return
	}
	for i := range c.items {
		if strings.EqualFold(c.items[i].Product, product) {
			c.items[i].Quantity += qty
			return
		}
	}
	c.items = append(c.items, LineItem{
		Product:         product,
		Quantity:        qty,
		UnitPriceCents:  unitPriceCents,
		DiscountPercent: discountPercent,
	})
}

// SetQuantity updates a line; qty zero or less removes it.
func (c *Cart) SetQuantity(product string, qty int) bool {
	for i := range c.items {
		if strings.EqualFold(c.items[i].Product, product) {
			if qty <= 0 {
				c.items = append(c.items[:i], c.items[i+1:]...)
			} else {
				c.items[i].Quantity = qty
			}
			return true
		}
	}
	return false
}

func (c *Cart) Remove(product string) bool {
	return c.SetQuantity(product, 0)
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) Empty() bool {
	return len(c.items) == 0
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) TotalCents() int64 {
	var total int64
	for _, item := range c.items {
		total += item.TotalCents()
	}
	return total
}

// ConfirmationResult is the side-channel outcome of confirming the oldest
// pending order.
type ConfirmationResult struct {
	OrderID         string   `json:"order_id"`
	BuyerName       string   `json:"buyer_name"`
	Position        int      `json:"position"`
	TotalCents      int64    `json:"total_cents"`
	RemovedProducts []string `json:"removed_products,omitempty"`
}

// CheckoutResult reports the accepted order and its queue position.
type CheckoutResult struct {
	OrderID    string    `json:"order_id"`
	BuyerName  string    `json:"buyer_name"`
	CreatedAt  OrderTime `json:"created_at"`
	TotalCents int64     `json:"total_cents"`
	Position   int       `json:"position"`
}

// OrderFilter narrows ListOrders. Zero fields match everything.
type OrderFilter struct {
	Status *OrderStatus
	Buyer  string
	From   time.Time
	To     time.Time
}

// QueueEntry is one order as seen in the queue view, with its 1-based
// position.
type QueueEntry struct {
	Position   int   `json:"position"`
	Order      Order `json:"order"`
	TotalCents int64 `json:"total_cents"`
	ItemCount  int   `json:"item_count"`
}

// QueueSnapshot is the full queue with pending/confirmed tallies.
type QueueSnapshot struct {
	Entries               []QueueEntry `json:"entries"`
	PendingCount          int          `json:"pending_count"`
	ConfirmedCount        int          `json:"confirmed_count"`
	PendingRevenueCents   int64        `json:"pending_revenue_cents"`
	ConfirmedRevenueCents int64        `json:"confirmed_revenue_cents"`
	OldestPendingPosition int          `json:"oldest_pending_position,omitempty"`
}

// TotalStockRow merges warehouse and storefront quantities for one product.
type TotalStockRow struct {
	Name            string   `json:"name"`
	TotalQuantity   int      `json:"total_quantity"`
	Category        Category `json:"category"`
	CostCents       int64    `json:"cost_cents"`
	SellCents       int64    `json:"sell_cents"`
	DiscountPercent float64  `json:"discount_percent"`
}
