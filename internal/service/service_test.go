package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KurniaRadhit/Stockmate/internal/cache"
	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
	"github.com/KurniaRadhit/Stockmate/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopReportCache{}, 12*time.Hour, 0)
}

func ptrFloat(v float64) *float64 { return &v }

func TestAddToWarehouseRestocksExistingCaseInsensitive(t *testing.T) {
	svc := newTestService()

	rec, err := svc.AddToWarehouse(context.Background(), domain.AddProductRequest{
		Name: "rice", Quantity: 50,
	})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if rec.Quantity != 150 {
		t.Fatalf("expected quantity 150 after restock, got %d", rec.Quantity)
	}
	if rec.SellCents != 150000 {
		t.Fatalf("restock must not change pricing, got sell %d", rec.SellCents)
	}
}

func TestAddToWarehouseNewPerishableGetsExpiry(t *testing.T) {
	svc := newTestService()

	rec, err := svc.AddToWarehouse(context.Background(), domain.AddProductRequest{
		Name: "Milk", Quantity: 30, CostCents: 5000, SellCents: 8000,
		Category: domain.CategoryBeverage, ShelfLifeDays: 7,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if rec.ExpiryDate == nil {
		t.Fatalf("expected an expiry date for a perishable product")
	}
	if got := time.Until(*rec.ExpiryDate); got < 6*24*time.Hour || got > 8*24*time.Hour {
		t.Fatalf("expiry should be about 7 days out, got %s", got)
	}
}

func TestAddToWarehouseRejectsUnknownProductWithoutPricing(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddToWarehouse(context.Background(), domain.AddProductRequest{
		Name: "Mystery", Quantity: 5, Category: domain.CategoryFood,
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransferConservesTotalStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	listing, err := svc.Transfer(ctx, domain.TransferRequest{Name: "Rice", Quantity: 30})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if listing.Quantity != 50 {
		t.Fatalf("expected storefront 50, got %d", listing.Quantity)
	}
	if listing.DiscountPercent != 10 {
		t.Fatalf("transfer must not change an existing discount, got %.1f", listing.DiscountPercent)
	}

	warehouse, err := svc.SearchProduct(ctx, domain.LocationWarehouse, "Rice")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if warehouse.Quantity != 70 {
		t.Fatalf("expected warehouse 70, got %d", warehouse.Quantity)
	}
}

func TestTransferNewListingRequiresDiscount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Transfer(ctx, domain.TransferRequest{Name: "Green Tea", Quantity: 10})
	if !errors.Is(err, errs.ErrMissingDiscount) {
		t.Fatalf("expected missing discount error, got %v", err)
	}

	listing, err := svc.Transfer(ctx, domain.TransferRequest{
		Name: "Green Tea", Quantity: 10, DiscountPercent: ptrFloat(5),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if listing.Category != domain.CategoryBeverage || listing.SellCents != 110000 || listing.CostCents != 80000 {
		t.Fatalf("new listing must copy category and prices, got %+v", listing)
	}
	if listing.DiscountPercent != 5 {
		t.Fatalf("expected discount 5, got %.1f", listing.DiscountPercent)
	}
}

func TestTransferInsufficientStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.Transfer(context.Background(), domain.TransferRequest{
		Name: "Power Bank", Quantity: 26, DiscountPercent: ptrFloat(0),
	})
	if !errors.Is(err, errs.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
}

func TestUpdateWarehousePatchesFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	qty := 40
	cost := int64(110000)
	rec, err := svc.UpdateWarehouse(ctx, "rice", domain.WarehouseUpdateRequest{Quantity: &qty, CostCents: &cost})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if rec.Quantity != 40 || rec.CostCents != 110000 {
		t.Fatalf("patched fields not applied: %+v", rec)
	}
	if rec.SellCents != 150000 {
		t.Fatalf("untouched fields must survive, got sell %d", rec.SellCents)
	}

	negative := -1
	if _, err := svc.UpdateWarehouse(ctx, "Rice", domain.WarehouseUpdateRequest{Quantity: &negative}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for negative quantity, got %v", err)
	}

	if _, err := svc.UpdateWarehouse(ctx, "Unknown", domain.WarehouseUpdateRequest{Quantity: &qty}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRemoveFromWarehouseLeavesStorefront(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.RemoveFromWarehouse(ctx, "rice"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, err := svc.SearchProduct(ctx, domain.LocationWarehouse, "Rice"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected warehouse record to be gone, got %v", err)
	}
	listing, err := svc.SearchProduct(ctx, domain.LocationStorefront, "Rice")
	if err != nil {
		t.Fatalf("storefront listing must survive: %v", err)
	}
	if listing.Quantity != 20 {
		t.Fatalf("storefront stock must be untouched, got %d", listing.Quantity)
	}

	if err := svc.RemoveFromWarehouse(ctx, "rice"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found on second removal, got %v", err)
	}
}

func TestCheckoutDecrementsStorefrontAndEnqueues(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cart := &domain.Cart{}
	cart.Add("Rice", 5, 150000, 10)

	result, err := svc.Checkout(ctx, cart, "Andi")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if result.Position != 1 {
		t.Fatalf("expected queue position 1, got %d", result.Position)
	}
	if result.TotalCents != 5*135000 {
		t.Fatalf("expected discounted total 675000, got %d", result.TotalCents)
	}
	if !cart.Empty() {
		t.Fatalf("cart must be cleared after checkout")
	}

	listing, err := svc.SearchProduct(ctx, domain.LocationStorefront, "Rice")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if listing.Quantity != 15 {
		t.Fatalf("expected storefront 15 after checkout, got %d", listing.Quantity)
	}
}

func TestCheckoutStockShortfallAbortsWholeOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cart := &domain.Cart{}
	cart.Add("Rice", 5, 150000, 10)
	cart.Add("Rice", 100, 150000, 10) // merges to 105, above stock

	_, err := svc.Checkout(ctx, cart, "Budi")
	if !errors.Is(err, errs.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	listing, err := svc.SearchProduct(ctx, domain.LocationStorefront, "Rice")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if listing.Quantity != 20 {
		t.Fatalf("failed checkout must not touch stock, got %d", listing.Quantity)
	}
}

func TestCheckoutRequiresBuyerAndItems(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cart := &domain.Cart{}
	cart.Add("Rice", 1, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "  "); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error for blank buyer, got %v", err)
	}

	if _, err := svc.Checkout(ctx, &domain.Cart{}, "Citra"); !errors.Is(err, errs.ErrEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestConfirmNextIsFIFO(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, buyer := range []string{"Andi", "Budi"} {
		cart := &domain.Cart{}
		cart.Add("Rice", 2, 150000, 10)
		if _, err := svc.Checkout(ctx, cart, buyer); err != nil {
			t.Fatalf("checkout for %s failed: %v", buyer, err)
		}
	}

	first, err := svc.ConfirmNext(ctx)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if first.BuyerName != "Andi" || first.Position != 1 {
		t.Fatalf("expected Andi at position 1, got %s at %d", first.BuyerName, first.Position)
	}

	second, err := svc.ConfirmNext(ctx)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if second.BuyerName != "Budi" || second.Position != 2 {
		t.Fatalf("expected Budi at position 2, got %s at %d", second.BuyerName, second.Position)
	}

	if _, err := svc.ConfirmNext(ctx); !errors.Is(err, errs.ErrNoPendingOrders) {
		t.Fatalf("expected no pending orders error, got %v", err)
	}
}

func TestConfirmNextEvictsStaleTargetFirst(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	cart := &domain.Cart{}
	cart.Add("Rice", 2, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "Andi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	svc.WithClock(func() time.Time { return now.Add(6 * time.Hour) })
	cart = &domain.Cart{}
	cart.Add("Rice", 2, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "Budi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// Andi's order is now 13h old and must never be confirmable; Budi's is
	// 7h old and becomes the head of the queue.
	svc.WithClock(func() time.Time { return now.Add(13 * time.Hour) })

	result, err := svc.ConfirmNext(ctx)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if result.BuyerName != "Budi" || result.Position != 1 {
		t.Fatalf("expected Budi at position 1 after eviction, got %s at %d", result.BuyerName, result.Position)
	}

	snap, err := svc.QueueSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snap.Entries) != 1 || snap.ConfirmedCount != 1 || snap.PendingCount != 0 {
		t.Fatalf("expected only Budi's confirmed order to remain, got %+v", snap)
	}
}

func TestConfirmNextEmptyQueue(t *testing.T) {
	svc := newTestService()

	if _, err := svc.ConfirmNext(context.Background()); !errors.Is(err, errs.ErrEmptyQueue) {
		t.Fatalf("expected empty queue error, got %v", err)
	}
}

func TestConfirmRemovesDrainedStorefrontListing(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cart := &domain.Cart{}
	cart.Add("Rice", 20, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "Andi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	result, err := svc.ConfirmNext(ctx)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if len(result.RemovedProducts) != 1 || result.RemovedProducts[0] != "Rice" {
		t.Fatalf("expected Rice to be removed, got %v", result.RemovedProducts)
	}

	if _, err := svc.SearchProduct(ctx, domain.LocationStorefront, "Rice"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected drained listing to be gone, got %v", err)
	}
}

func TestSweepEvictsStalePendingWithoutRestoringStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	cart := &domain.Cart{}
	cart.Add("Rice", 5, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "Andi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	svc.WithClock(func() time.Time { return now.Add(13 * time.Hour) })

	dropped, err := svc.SweepExpiredOrders(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 expired order, got %d", dropped)
	}

	// Stock committed at checkout stays committed.
	listing, err := svc.SearchProduct(ctx, domain.LocationStorefront, "Rice")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if listing.Quantity != 15 {
		t.Fatalf("eviction must not restore stock, got %d", listing.Quantity)
	}

	dropped, err = svc.SweepExpiredOrders(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("second sweep must be a no-op, removed %d", dropped)
	}
}

func TestSweepKeepsConfirmedOrders(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	cart := &domain.Cart{}
	cart.Add("Rice", 2, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "Andi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.ConfirmNext(ctx); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	svc.WithClock(func() time.Time { return now.Add(48 * time.Hour) })

	dropped, err := svc.SweepExpiredOrders(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("confirmed orders must never expire, removed %d", dropped)
	}

	snap, err := svc.QueueSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.ConfirmedCount != 1 || snap.PendingCount != 0 {
		t.Fatalf("expected 1 confirmed and 0 pending, got %d/%d", snap.ConfirmedCount, snap.PendingCount)
	}
}

func TestQueueSnapshotTallies(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, buyer := range []string{"Andi", "Budi", "Citra"} {
		cart := &domain.Cart{}
		cart.Add("Rice", 1, 150000, 10)
		if _, err := svc.Checkout(ctx, cart, buyer); err != nil {
			t.Fatalf("checkout for %s failed: %v", buyer, err)
		}
	}
	if _, err := svc.ConfirmNext(ctx); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	snap, err := svc.QueueSnapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.PendingCount != 2 || snap.ConfirmedCount != 1 {
		t.Fatalf("expected 2 pending and 1 confirmed, got %d/%d", snap.PendingCount, snap.ConfirmedCount)
	}
	if snap.OldestPendingPosition != 2 {
		t.Fatalf("expected oldest pending at position 2, got %d", snap.OldestPendingPosition)
	}
	if snap.PendingRevenueCents != 2*135000 || snap.ConfirmedRevenueCents != 135000 {
		t.Fatalf("unexpected revenue tallies: %d / %d", snap.PendingRevenueCents, snap.ConfirmedRevenueCents)
	}
}

func TestListOrdersFilters(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, buyer := range []string{"Andi", "Budi"} {
		cart := &domain.Cart{}
		cart.Add("Rice", 1, 150000, 10)
		if _, err := svc.Checkout(ctx, cart, buyer); err != nil {
			t.Fatalf("checkout for %s failed: %v", buyer, err)
		}
	}
	if _, err := svc.ConfirmNext(ctx); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	pending := domain.StatusPending
	orders, err := svc.ListOrders(ctx, domain.OrderFilter{Status: &pending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 || orders[0].BuyerName != "Budi" {
		t.Fatalf("expected only Budi pending, got %+v", orders)
	}

	orders, err = svc.ListOrders(ctx, domain.OrderFilter{Buyer: "andi"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 || orders[0].BuyerName != "Andi" {
		t.Fatalf("expected buyer filter to match case-insensitively, got %+v", orders)
	}
}

func TestRemoveExpiredProducts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.AddToWarehouse(ctx, domain.AddProductRequest{
		Name: "Old Bread", Quantity: 5, CostCents: 1000, SellCents: 2000,
		Category: domain.CategoryFood, ShelfLifeDays: 1,
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	svc.WithClock(func() time.Time { return time.Now().AddDate(0, 0, 3) })

	removed, err := svc.RemoveExpiredProducts(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "warehouse/Old Bread" {
		t.Fatalf("expected only Old Bread removed, got %v", removed)
	}

	if _, err := svc.SearchProduct(ctx, domain.LocationWarehouse, "Old Bread"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected expired product to be gone, got %v", err)
	}
}

func TestSalesReportCountsConfirmedOnly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, buyer := range []string{"Andi", "Budi"} {
		cart := &domain.Cart{}
		cart.Add("Rice", 3, 150000, 10)
		if _, err := svc.Checkout(ctx, cart, buyer); err != nil {
			t.Fatalf("checkout for %s failed: %v", buyer, err)
		}
	}
	if _, err := svc.ConfirmNext(ctx); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	rep, err := svc.SalesReport(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if rep.ConfirmedIncluded != 1 {
		t.Fatalf("expected 1 confirmed order in report, got %d", rep.ConfirmedIncluded)
	}
	if rep.TotalCents != 3*135000 {
		t.Fatalf("expected total 405000, got %d", rep.TotalCents)
	}
}

func TestTotalStockMergesLocations(t *testing.T) {
	svc := newTestService()

	rows, err := svc.TotalStock(context.Background())
	if err != nil {
		t.Fatalf("total stock failed: %v", err)
	}

	byName := map[string]domain.TotalStockRow{}
	for _, row := range rows {
		byName[row.Name] = row
	}
	rice, ok := byName["Rice"]
	if !ok {
		t.Fatalf("expected Rice in total stock, got %v", rows)
	}
	if rice.TotalQuantity != 120 {
		t.Fatalf("expected 120 total Rice, got %d", rice.TotalQuantity)
	}
	if rice.DiscountPercent != 10 {
		t.Fatalf("storefront discount should win in the merged row, got %.1f", rice.DiscountPercent)
	}
}

// failingRepo lets tests inject a save failure at a chosen point.
type failingRepo struct {
	*memory.Store
	failInventorySave bool
}

func (f *failingRepo) SaveInventory(ctx context.Context, inv domain.Inventory) error {
	if f.failInventorySave {
		return errs.Mark(errs.New("disk full"), errs.ErrPersistence)
	}
	return f.Store.SaveInventory(ctx, inv)
}

func TestConfirmSurvivesCleanupFailureAndRetries(t *testing.T) {
	repo := &failingRepo{Store: memory.NewSeeded()}
	svc := New(repo, cache.NoopReportCache{}, 12*time.Hour, 0)
	ctx := context.Background()

	cart := &domain.Cart{}
	cart.Add("Rice", 20, 150000, 10)
	if _, err := svc.Checkout(ctx, cart, "Andi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	repo.failInventorySave = true
	result, err := svc.ConfirmNext(ctx)
	if err == nil {
		t.Fatalf("expected cleanup failure to surface")
	}
	if result.OrderID == "" {
		t.Fatalf("confirmation must be durable even when cleanup fails")
	}

	// The queue holds the confirmed order with a drained listing left
	// behind; the next checkout-confirm cycle retries the cleanup.
	repo.failInventorySave = false
	cart = &domain.Cart{}
	cart.Add("Green Tea", 1, 110000, 5)
	if _, err := svc.Transfer(ctx, domain.TransferRequest{
		Name: "Green Tea", Quantity: 5, DiscountPercent: ptrFloat(5),
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, cart, "Budi"); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	retry, err := svc.ConfirmNext(ctx)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	found := false
	for _, name := range retry.RemovedProducts {
		if name == "Rice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the drained Rice listing to be cleaned up on retry, got %v", retry.RemovedProducts)
	}
}
