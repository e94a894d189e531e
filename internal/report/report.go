// Package report derives sales figures from confirmed orders. It is a
// read-only consumer of the persisted queue and inventory; nothing here
// mutates state.
package report

import (
	"log"
	"slices"
	"strings"
	"time"

	"github.com/KurniaRadhit/Stockmate/internal/domain"
)

const uncategorized = "uncategorized"

// salesTargetRate is the share of available storefront stock that counts as
// the sales target in the profit/loss analysis.
const salesTargetRate = 0.75

type TransactionRow struct {
	OrderID    string            `json:"order_id"`
	BuyerName  string            `json:"buyer_name"`
	CreatedAt  domain.OrderTime  `json:"created_at"`
	Items      []domain.LineItem `json:"items"`
	TotalCents int64             `json:"total_cents"`
}

type ProductSummary struct {
	Product    string `json:"product"`
	QtySold    int    `json:"qty_sold"`
	TotalCents int64  `json:"total_cents"`
}

type CategorySummary struct {
	Category   string  `json:"category"`
	QtySold    int     `json:"qty_sold"`
	TotalCents int64   `json:"total_cents"`
	Percent    float64 `json:"percent"`
}

// ProfitLoss compares realized sales against the 75% sell-through target,
// costing sold units at the current storefront cost price.
type ProfitLoss struct {
	TotalUnitsSold      int     `json:"total_units_sold"`
	TotalUnitsAvailable int     `json:"total_units_available"`
	TargetUnits         float64 `json:"target_units"`
	PercentSold         float64 `json:"percent_sold"`
	Status              string  `json:"status"`
	AmountCents         int64   `json:"amount_cents"`
	Percent             float64 `json:"percent"`
	TotalCostCents      int64   `json:"total_cost_cents"`
	TotalSalesCents     int64   `json:"total_sales_cents"`
}

const (
	StatusProfit = "PROFIT"
	StatusLoss   = "LOSS"
)

type SalesReport struct {
	From              *time.Time        `json:"from,omitempty"`
	To                *time.Time        `json:"to,omitempty"`
	Transactions      []TransactionRow  `json:"transactions"`
	ByProduct         []ProductSummary  `json:"by_product"`
	ByCategory        []CategorySummary `json:"by_category"`
	TotalCents        int64             `json:"total_cents"`
	AveragePerDay     int64             `json:"average_per_day_cents,omitempty"`
	ProfitLoss        ProfitLoss        `json:"profit_loss"`
	ConfirmedIncluded int               `json:"confirmed_included"`
}

// InRange reports whether a confirmed order falls in [from, to). Zero bounds
// are open. Orders with invalid timestamps are excluded from bounded ranges
// and logged, never guessed into a bucket.
func InRange(order domain.Order, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	if !order.CreatedAt.Valid() {
		log.Printf("[report] WARN: order %s has unparsable timestamp %q, excluded from date-bounded report", order.ID, order.CreatedAt.Raw())
		return false
	}
	at := order.CreatedAt.Time
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

// Build aggregates confirmed orders within [from, to) against the current
// storefront for category and cost lookups.
func Build(orders []domain.Order, storefront map[string]domain.StockRecord, from, to time.Time) SalesReport {
	rep := SalesReport{
		Transactions: []TransactionRow{},
		ByProduct:    []ProductSummary{},
		ByCategory:   []CategorySummary{},
	}
	if !from.IsZero() {
		f := from
		rep.From = &f
	}
	if !to.IsZero() {
		t := to
		rep.To = &t
	}

	productTotals := map[string]*ProductSummary{}
	categoryTotals := map[string]*CategorySummary{}

	for _, order := range orders {
		if order.Status != domain.StatusConfirmed {
			continue
		}
		if !InRange(order, from, to) {
			continue
		}
		rep.ConfirmedIncluded++

		row := TransactionRow{
			OrderID:    order.ID,
			BuyerName:  order.BuyerName,
			CreatedAt:  order.CreatedAt,
			Items:      order.Items,
			TotalCents: order.TotalCents(),
		}
		rep.Transactions = append(rep.Transactions, row)
		rep.TotalCents += row.TotalCents

		for _, item := range order.Items {
			key := strings.ToLower(item.Product)
			ps, ok := productTotals[key]
			if !ok {
				ps = &ProductSummary{Product: item.Product}
				productTotals[key] = ps
			}
			ps.QtySold += item.Quantity
			ps.TotalCents += item.TotalCents()

			category := uncategorized
			if name, ok := domain.FindName(storefront, item.Product); ok {
				category = string(storefront[name].Category)
			}
			cs, ok := categoryTotals[category]
			if !ok {
				cs = &CategorySummary{Category: category}
				categoryTotals[category] = cs
			}
			cs.QtySold += item.Quantity
			cs.TotalCents += item.TotalCents()
		}
	}

	for _, ps := range productTotals {
		rep.ByProduct = append(rep.ByProduct, *ps)
	}
	slices.SortFunc(rep.ByProduct, func(a, b ProductSummary) int {
		return strings.Compare(strings.ToLower(a.Product), strings.ToLower(b.Product))
	})

	for _, cs := range categoryTotals {
		if rep.TotalCents > 0 {
			cs.Percent = float64(cs.TotalCents) / float64(rep.TotalCents) * 100
		}
		rep.ByCategory = append(rep.ByCategory, *cs)
	}
	slices.SortFunc(rep.ByCategory, func(a, b CategorySummary) int {
		return strings.Compare(a.Category, b.Category)
	})

	if !from.IsZero() && !to.IsZero() {
		days := int64(to.Sub(from).Hours() / 24)
		if days > 0 {
			rep.AveragePerDay = rep.TotalCents / days
		}
	}

	rep.ProfitLoss = buildProfitLoss(rep.ByProduct, storefront)
	return rep
}

func buildProfitLoss(byProduct []ProductSummary, storefront map[string]domain.StockRecord) ProfitLoss {
	pl := ProfitLoss{}

	for _, ps := range byProduct {
		pl.TotalUnitsSold += ps.QtySold

		name, ok := domain.FindName(storefront, ps.Product)
		if !ok {
			continue
		}
		rec := storefront[name]
		pl.TotalCostCents += int64(ps.QtySold) * rec.CostCents
		pl.TotalSalesCents += int64(ps.QtySold) * rec.DiscountedSellCents()
	}

	for _, rec := range storefront {
		pl.TotalUnitsAvailable += rec.Quantity
	}
	pl.TargetUnits = float64(pl.TotalUnitsAvailable) * salesTargetRate
	if pl.TotalUnitsAvailable > 0 {
		pl.PercentSold = float64(pl.TotalUnitsSold) / float64(pl.TotalUnitsAvailable) * 100
	}

	pl.AmountCents = pl.TotalSalesCents - pl.TotalCostCents
	switch {
	case pl.AmountCents >= 0:
		pl.Status = StatusProfit
		if pl.TotalCostCents > 0 {
			pl.Percent = float64(pl.AmountCents) / float64(pl.TotalCostCents) * 100
		}
	default:
		pl.Status = StatusLoss
		if pl.TotalCostCents > 0 {
			pl.Percent = float64(-pl.AmountCents) / float64(pl.TotalCostCents) * 100
		}
	}
	return pl
}

// CacheKey identifies a report by its date range for memoization.
func CacheKey(from, to time.Time) string {
	layout := "20060102"
	f, t := "open", "open"
	if !from.IsZero() {
		f = from.Format(layout)
	}
	if !to.IsZero() {
		t = to.Format(layout)
	}
	return "report:sales:" + f + ":" + t
}
