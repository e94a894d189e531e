// Package service implements the sanctioned operations over the inventory
// ledger and the order queue. The model is single-actor and synchronous:
// every operation is a whole-document read-modify-write with no locking, so
// concurrent writers from multiple processes are not supported. A multi-user
// deployment must add a mutual-exclusion boundary around each operation.
package service

import (
	"context"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KurniaRadhit/Stockmate/internal/cache"
	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
	"github.com/KurniaRadhit/Stockmate/internal/queue"
	"github.com/KurniaRadhit/Stockmate/internal/report"
	"github.com/KurniaRadhit/Stockmate/internal/store"
)

// DefaultOrderTTL is the window a pending order may wait for confirmation
// before the expiry sweep evicts it.
const DefaultOrderTTL = 12 * time.Hour

type Service struct {
	repo        store.Repository
	reportCache cache.ReportCache
	orderTTL    time.Duration
	reportTTL   time.Duration
	now         func() time.Time
}

func New(repo store.Repository, reportCache cache.ReportCache, orderTTL, reportTTL time.Duration) *Service {
	if reportCache == nil {
		reportCache = cache.NoopReportCache{}
	}
	if orderTTL <= 0 {
		orderTTL = DefaultOrderTTL
	}

	return &Service{
		repo:        repo,
		reportCache: reportCache,
		orderTTL:    orderTTL,
		reportTTL:   reportTTL,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ---------------- inventory ledger ----------------

func (s *Service) AddToWarehouse(ctx context.Context, req domain.AddProductRequest) (domain.StockRecord, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.StockRecord{}, errs.Mark(errs.New("product name must not be empty"), errs.ErrValidation)
	}
	if req.Quantity <= 0 {
		return domain.StockRecord{}, errs.Mark(errs.New("quantity must be positive"), errs.ErrValidation)
	}

	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return domain.StockRecord{}, err
	}
	warehouse := inv.Collection(domain.LocationWarehouse)

	if name, ok := domain.FindName(warehouse, req.Name); ok {
		rec := warehouse[name]
		rec.Quantity += req.Quantity
		warehouse[name] = rec
		if err := s.repo.SaveInventory(ctx, inv); err != nil {
			return domain.StockRecord{}, err
		}
		return rec, nil
	}

	if req.CostCents <= 0 || req.SellCents <= 0 {
		return domain.StockRecord{}, errs.Mark(errs.New("cost and sell price must be positive for a new product"), errs.ErrValidation)
	}
	if !req.Category.Valid() {
		return domain.StockRecord{}, errs.Mark(errs.Newf("unknown category %q", req.Category), errs.ErrValidation)
	}

	rec := domain.StockRecord{
		Name:      req.Name,
		Quantity:  req.Quantity,
		Category:  req.Category,
		CostCents: req.CostCents,
		SellCents: req.SellCents,
		AddedAt:   s.now(),
	}
	if req.Category.Perishable() && req.ShelfLifeDays > 0 {
		expiry := s.now().AddDate(0, 0, req.ShelfLifeDays)
		rec.ExpiryDate = &expiry
	}
	warehouse[req.Name] = rec

	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return domain.StockRecord{}, err
	}
	return rec, nil
}

// Transfer moves units from the warehouse to the storefront. A new
// storefront listing requires an explicit discount and copies category,
// prices and expiry date from the warehouse record; augmenting an existing
// listing never alters its discount.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (domain.StockRecord, error) {
	if req.Quantity <= 0 {
		return domain.StockRecord{}, errs.Mark(errs.New("quantity must be positive"), errs.ErrValidation)
	}

	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return domain.StockRecord{}, err
	}
	warehouse := inv.Collection(domain.LocationWarehouse)
	storefront := inv.Collection(domain.LocationStorefront)

	sourceName, ok := domain.FindName(warehouse, req.Name)
	if !ok {
		return domain.StockRecord{}, errs.Mark(errs.Newf("product %q not in warehouse", req.Name), errs.ErrNotFound)
	}
	source := warehouse[sourceName]
	if source.Quantity < req.Quantity {
		return domain.StockRecord{}, errs.Mark(
			errs.Newf("warehouse has %d of %q, requested %d", source.Quantity, sourceName, req.Quantity),
			errs.ErrInsufficientStock)
	}

	var result domain.StockRecord
	if shopName, exists := domain.FindName(storefront, req.Name); exists {
		listing := storefront[shopName]
		listing.Quantity += req.Quantity
		storefront[shopName] = listing
		result = listing
	} else {
		if req.DiscountPercent == nil {
			return domain.StockRecord{}, errs.ErrMissingDiscount
		}
		if *req.DiscountPercent < 0 || *req.DiscountPercent > 100 {
			return domain.StockRecord{}, errs.Mark(errs.Newf("discount %.2f out of range 0-100", *req.DiscountPercent), errs.ErrValidation)
		}
		listing := domain.StockRecord{
			Name:            sourceName,
			Quantity:        req.Quantity,
			Category:        source.Category,
			CostCents:       source.CostCents,
			SellCents:       source.SellCents,
			DiscountPercent: *req.DiscountPercent,
			AddedAt:         source.AddedAt,
			ExpiryDate:      source.ExpiryDate,
		}
		storefront[sourceName] = listing
		result = listing
	}

	source.Quantity -= req.Quantity
	warehouse[sourceName] = source

	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return domain.StockRecord{}, err
	}
	return result, nil
}

// UpdateWarehouse patches quantity or prices on an existing warehouse
// record. Quantity is absolute; prices apply to future transfers only, since
// storefront listings and order lines carry their own snapshots.
func (s *Service) UpdateWarehouse(ctx context.Context, name string, req domain.WarehouseUpdateRequest) (domain.StockRecord, error) {
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return domain.StockRecord{}, err
	}
	warehouse := inv.Collection(domain.LocationWarehouse)

	key, ok := domain.FindName(warehouse, name)
	if !ok {
		return domain.StockRecord{}, errs.Mark(errs.Newf("product %q not in warehouse", name), errs.ErrNotFound)
	}

	rec := warehouse[key]
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return domain.StockRecord{}, errs.Mark(errs.New("quantity must not be negative"), errs.ErrValidation)
		}
		rec.Quantity = *req.Quantity
	}
	if req.CostCents != nil {
		if *req.CostCents <= 0 {
			return domain.StockRecord{}, errs.Mark(errs.New("cost price must be positive"), errs.ErrValidation)
		}
		rec.CostCents = *req.CostCents
	}
	if req.SellCents != nil {
		if *req.SellCents <= 0 {
			return domain.StockRecord{}, errs.Mark(errs.New("sell price must be positive"), errs.ErrValidation)
		}
		rec.SellCents = *req.SellCents
	}
	warehouse[key] = rec

	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return domain.StockRecord{}, err
	}
	return rec, nil
}

// RemoveFromWarehouse deletes a warehouse record entirely. An existing
// storefront listing for the same product is untouched; its stock already
// left the warehouse.
func (s *Service) RemoveFromWarehouse(ctx context.Context, name string) error {
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return err
	}
	warehouse := inv.Collection(domain.LocationWarehouse)

	key, ok := domain.FindName(warehouse, name)
	if !ok {
		return errs.Mark(errs.Newf("product %q not in warehouse", name), errs.ErrNotFound)
	}
	delete(warehouse, key)
	log.Printf("[service] warehouse product removed: %s", key)

	return s.repo.SaveInventory(ctx, inv)
}

func (s *Service) UpdateStorefront(ctx context.Context, name string, req domain.StorefrontUpdateRequest) (domain.StockRecord, error) {
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return domain.StockRecord{}, err
	}
	storefront := inv.Collection(domain.LocationStorefront)

	key, ok := domain.FindName(storefront, name)
	if !ok {
		return domain.StockRecord{}, errs.Mark(errs.Newf("product %q not in storefront", name), errs.ErrNotFound)
	}

	listing := storefront[key]
	if req.SellCents != nil {
		if *req.SellCents <= 0 {
			return domain.StockRecord{}, errs.Mark(errs.New("sell price must be positive"), errs.ErrValidation)
		}
		listing.SellCents = *req.SellCents
	}
	if req.DiscountPercent != nil {
		if *req.DiscountPercent < 0 || *req.DiscountPercent > 100 {
			return domain.StockRecord{}, errs.Mark(errs.Newf("discount %.2f out of range 0-100", *req.DiscountPercent), errs.ErrValidation)
		}
		listing.DiscountPercent = *req.DiscountPercent
	}
	storefront[key] = listing

	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return domain.StockRecord{}, err
	}
	return listing, nil
}

func (s *Service) ListProducts(ctx context.Context, req domain.ListProductsRequest) ([]domain.StockRecord, error) {
	if !req.Location.Valid() {
		return nil, errs.Mark(errs.Newf("unknown location %q", req.Location), errs.ErrValidation)
	}

	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.StockRecord, 0, 16)
	for _, rec := range inv.Collection(req.Location) {
		if req.Category != nil && rec.Category != *req.Category {
			continue
		}
		if req.InStockOnly && rec.Quantity <= 0 {
			continue
		}
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b domain.StockRecord) int {
		cmp := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		if !req.Ascending {
			return -cmp
		}
		return cmp
	})
	return records, nil
}

func (s *Service) SearchProduct(ctx context.Context, loc domain.Location, name string) (domain.StockRecord, error) {
	if !loc.Valid() {
		return domain.StockRecord{}, errs.Mark(errs.Newf("unknown location %q", loc), errs.ErrValidation)
	}

	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return domain.StockRecord{}, err
	}
	collection := inv.Collection(loc)

	key, ok := domain.FindName(collection, name)
	if !ok {
		return domain.StockRecord{}, errs.Mark(errs.Newf("product %q not found in %s", name, loc), errs.ErrNotFound)
	}
	return collection[key], nil
}

// TotalStock merges warehouse and storefront quantities per product. Pricing
// and discount come from the storefront listing when one exists.
func (s *Service) TotalStock(ctx context.Context) ([]domain.TotalStockRow, error) {
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}

	merged := map[string]*domain.TotalStockRow{}
	for _, rec := range inv.Collection(domain.LocationWarehouse) {
		key := strings.ToLower(rec.Name)
		merged[key] = &domain.TotalStockRow{
			Name:          rec.Name,
			TotalQuantity: rec.Quantity,
			Category:      rec.Category,
			CostCents:     rec.CostCents,
			SellCents:     rec.SellCents,
		}
	}
	for _, rec := range inv.Collection(domain.LocationStorefront) {
		key := strings.ToLower(rec.Name)
		row, ok := merged[key]
		if !ok {
			row = &domain.TotalStockRow{Name: rec.Name, Category: rec.Category}
			merged[key] = row
		}
		row.TotalQuantity += rec.Quantity
		row.CostCents = rec.CostCents
		row.SellCents = rec.SellCents
		row.DiscountPercent = rec.DiscountPercent
	}

	rows := make([]domain.TotalStockRow, 0, len(merged))
	for _, row := range merged {
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b domain.TotalStockRow) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return rows, nil
}

// RemoveExpiredProducts drops stock records whose expiry date has passed,
// in both locations. Returns the names removed, prefixed with the location.
func (s *Service) RemoveExpiredProducts(ctx context.Context) ([]string, error) {
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}

	today := s.now()
	removed := make([]string, 0, 4)
	for _, loc := range []domain.Location{domain.LocationWarehouse, domain.LocationStorefront} {
		collection := inv.Collection(loc)
		for name, rec := range collection {
			if rec.Expired(today) {
				delete(collection, name)
				removed = append(removed, string(loc)+"/"+name)
				log.Printf("[service] expired product removed: %s (%s)", name, loc)
			}
		}
	}

	if len(removed) == 0 {
		return removed, nil
	}
	slices.Sort(removed)
	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return nil, err
	}
	return removed, nil
}

// ---------------- order queue ----------------

// loadSweptQueue loads the queue and applies the expiry sweep: pending
// orders older than the TTL are dropped and the compacted queue persisted.
// Orders with unparsable timestamps are kept and logged; they never expire.
func (s *Service) loadSweptQueue(ctx context.Context) (*queue.FIFO, int, error) {
	orders, err := s.repo.LoadQueue(ctx)
	if err != nil {
		return nil, 0, err
	}

	q := queue.FromSlice(orders)
	cutoff := s.now().Add(-s.orderTTL)
	dropped := q.Compact(func(order domain.Order) bool {
		if order.Status != domain.StatusPending {
			return true
		}
		if !order.CreatedAt.Valid() {
			log.Printf("[service] WARN: order %s has unparsable timestamp %q, skipping expiry check", order.ID, order.CreatedAt.Raw())
			return true
		}
		if order.CreatedAt.Before(cutoff) {
			log.Printf("[service] expired order removed: %s - %s", order.BuyerName, order.CreatedAt.Raw())
			return false
		}
		return true
	})

	if dropped > 0 {
		if err := s.repo.SaveQueue(ctx, q.ToSlice()); err != nil {
			return nil, 0, err
		}
	}
	return q, dropped, nil
}

// SweepExpiredOrders removes pending orders older than the TTL and reports
// how many were dropped. Stock decremented at checkout is deliberately not
// restored. Running the sweep twice in a row removes nothing the second time.
func (s *Service) SweepExpiredOrders(ctx context.Context) (int, error) {
	_, dropped, err := s.loadSweptQueue(ctx)
	return dropped, err
}

// Checkout validates storefront stock against the cart, decrements it,
// enqueues a pending order and persists both documents. Any stock shortfall
// aborts the whole checkout with no mutation. The cart is cleared on success.
func (s *Service) Checkout(ctx context.Context, cart *domain.Cart, buyer string) (domain.CheckoutResult, error) {
	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return domain.CheckoutResult{}, errs.Mark(errs.New("buyer name must not be empty"), errs.ErrValidation)
	}
	if cart == nil || cart.Empty() {
		return domain.CheckoutResult{}, errs.ErrEmptyCart
	}

	q, _, err := s.loadSweptQueue(ctx)
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	storefront := inv.Collection(domain.LocationStorefront)

	// Final stock validation before any mutation; the cart may have been
	// built against stale reads.
	items := cart.Items()
	for _, item := range items {
		name, ok := domain.FindName(storefront, item.Product)
		if !ok {
			return domain.CheckoutResult{}, errs.Mark(errs.Newf("product %q no longer in storefront", item.Product), errs.ErrInsufficientStock)
		}
		if storefront[name].Quantity < item.Quantity {
			return domain.CheckoutResult{}, errs.Mark(
				errs.Newf("storefront has %d of %q, requested %d", storefront[name].Quantity, name, item.Quantity),
				errs.ErrInsufficientStock)
		}
	}

	for _, item := range items {
		name, _ := domain.FindName(storefront, item.Product)
		rec := storefront[name]
		rec.Quantity -= item.Quantity
		storefront[name] = rec
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		BuyerName: buyer,
		CreatedAt: domain.NewOrderTime(s.now()),
		Items:     items,
		Status:    domain.StatusPending,
	}
	q.Enqueue(order)

	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return domain.CheckoutResult{}, err
	}
	if err := s.repo.SaveQueue(ctx, q.ToSlice()); err != nil {
		return domain.CheckoutResult{}, err
	}

	cart.Clear()
	return domain.CheckoutResult{
		OrderID:    order.ID,
		BuyerName:  order.BuyerName,
		CreatedAt:  order.CreatedAt,
		TotalCents: order.TotalCents(),
		Position:   q.Size(),
	}, nil
}

// ConfirmNext confirms the oldest pending order: sweep, locate, flip status,
// persist the queue, then delete storefront listings that the confirmed
// orders drained to zero and persist inventory. If the inventory save fails
// after the queue was committed, the confirmation is durable and the cleanup
// is retried by the next invocation; the returned error reports the cleanup
// failure alongside a populated result.
func (s *Service) ConfirmNext(ctx context.Context) (domain.ConfirmationResult, error) {
	q, _, err := s.loadSweptQueue(ctx)
	if err != nil {
		return domain.ConfirmationResult{}, err
	}

	if q.IsEmpty() {
		return domain.ConfirmationResult{}, errs.ErrEmptyQueue
	}

	idx := q.FindFirst(func(o domain.Order) bool { return o.Status == domain.StatusPending })
	if idx < 0 {
		return domain.ConfirmationResult{}, errs.ErrNoPendingOrders
	}

	target, err := q.At(idx)
	if err != nil {
		return domain.ConfirmationResult{}, err
	}

	if err := q.UpdateAt(idx, func(o domain.Order) domain.Order {
		o.Status = domain.StatusConfirmed
		return o
	}); err != nil {
		return domain.ConfirmationResult{}, err
	}

	if err := s.repo.SaveQueue(ctx, q.ToSlice()); err != nil {
		return domain.ConfirmationResult{}, err
	}

	result := domain.ConfirmationResult{
		OrderID:    target.ID,
		BuyerName:  target.BuyerName,
		Position:   idx + 1,
		TotalCents: target.TotalCents(),
	}

	removed, err := s.cleanupDrainedListings(ctx, q)
	if err != nil {
		log.Printf("[service] WARN: storefront cleanup after confirming %s failed, will retry on next confirmation: %v", target.ID, err)
		return result, err
	}
	result.RemovedProducts = removed
	return result, nil
}

// cleanupDrainedListings deletes storefront records at zero quantity that
// appear in a confirmed order's line items. Covering all confirmed orders,
// not just the latest, retries cleanup a previous invocation failed to
// persist; deleting an already-absent record is a no-op.
func (s *Service) cleanupDrainedListings(ctx context.Context, q *queue.FIFO) ([]string, error) {
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}
	storefront := inv.Collection(domain.LocationStorefront)

	confirmedProducts := map[string]struct{}{}
	q.Each(func(_ int, order domain.Order) {
		if order.Status != domain.StatusConfirmed {
			return
		}
		for _, item := range order.Items {
			confirmedProducts[strings.ToLower(item.Product)] = struct{}{}
		}
	})

	removed := make([]string, 0, 2)
	for name, rec := range storefront {
		if rec.Quantity != 0 {
			continue
		}
		if _, ok := confirmedProducts[strings.ToLower(name)]; !ok {
			continue
		}
		delete(storefront, name)
		removed = append(removed, name)
	}

	if len(removed) == 0 {
		return removed, nil
	}
	slices.Sort(removed)
	if err := s.repo.SaveInventory(ctx, inv); err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *Service) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	q, _, err := s.loadSweptQueue(ctx)
	if err != nil {
		return nil, err
	}

	buyer := strings.ToLower(strings.TrimSpace(filter.Buyer))
	matches := func(order domain.Order) bool {
		if filter.Status != nil && order.Status != *filter.Status {
			return false
		}
		if buyer != "" && strings.ToLower(order.BuyerName) != buyer {
			return false
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			if !order.CreatedAt.Valid() {
				return false
			}
			if !filter.From.IsZero() && order.CreatedAt.Before(filter.From) {
				return false
			}
			if !filter.To.IsZero() && !order.CreatedAt.Before(filter.To) {
				return false
			}
		}
		return true
	}

	orders := make([]domain.Order, 0, q.Size())
	q.Each(func(_ int, order domain.Order) {
		if matches(order) {
			orders = append(orders, order)
		}
	})
	return orders, nil
}

// QueueSnapshot returns every order with its position plus pending and
// confirmed tallies, in FIFO order.
func (s *Service) QueueSnapshot(ctx context.Context) (domain.QueueSnapshot, error) {
	q, _, err := s.loadSweptQueue(ctx)
	if err != nil {
		return domain.QueueSnapshot{}, err
	}

	snap := domain.QueueSnapshot{Entries: make([]domain.QueueEntry, 0, q.Size())}
	q.Each(func(pos int, order domain.Order) {
		total := order.TotalCents()
		snap.Entries = append(snap.Entries, domain.QueueEntry{
			Position:   pos + 1,
			Order:      order,
			TotalCents: total,
			ItemCount:  len(order.Items),
		})
		if order.Status == domain.StatusPending {
			snap.PendingCount++
			snap.PendingRevenueCents += total
			if snap.OldestPendingPosition == 0 {
				snap.OldestPendingPosition = pos + 1
			}
		} else {
			snap.ConfirmedCount++
			snap.ConfirmedRevenueCents += total
		}
	})
	return snap, nil
}

// ---------------- reporting ----------------

// SalesReport aggregates confirmed orders within [from, to). Results are
// memoized in the report cache; cache failures degrade to a fresh build.
func (s *Service) SalesReport(ctx context.Context, from, to time.Time) (report.SalesReport, error) {
	key := report.CacheKey(from, to)
	if cached, ok, err := s.reportCache.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache get failed: %v", err)
	} else if ok {
		return *cached, nil
	}

	orders, err := s.repo.LoadQueue(ctx)
	if err != nil {
		return report.SalesReport{}, err
	}
	inv, err := s.repo.LoadInventory(ctx)
	if err != nil {
		return report.SalesReport{}, err
	}

	rep := report.Build(orders, inv.Collection(domain.LocationStorefront), from, to)

	if s.reportTTL > 0 {
		if err := s.reportCache.Set(ctx, key, &rep, s.reportTTL); err != nil {
			log.Printf("[service] WARN: report cache set failed: %v", err)
		}
	}
	return rep, nil
}
