// Package memory is an in-memory repository for tests and demo mode.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
)

type Store struct {
	mu        sync.RWMutex
	inventory []byte
	queue     []byte
}

func New() *Store {
	return &Store{}
}

// NewSeeded returns a store preloaded with a small catalog: warehouse stock
// plus a storefront listing for Rice, mirroring the demo data used across
// the test suite.
func NewSeeded() *Store {
	now := time.Now()
	foodExpiry := now.AddDate(0, 6, 0)
	inv := domain.NewInventory()
	inv.Warehouse["Rice"] = domain.StockRecord{
		Name: "Rice", Quantity: 100, Category: domain.CategoryFood,
		CostCents: 120000, SellCents: 150000, AddedAt: now, ExpiryDate: &foodExpiry,
	}
	inv.Warehouse["Green Tea"] = domain.StockRecord{
		Name: "Green Tea", Quantity: 60, Category: domain.CategoryBeverage,
		CostCents: 80000, SellCents: 110000, AddedAt: now, ExpiryDate: &foodExpiry,
	}
	inv.Warehouse["Power Bank"] = domain.StockRecord{
		Name: "Power Bank", Quantity: 25, Category: domain.CategoryElectronics,
		CostCents: 1500000, SellCents: 2100000, AddedAt: now,
	}
	inv.Storefront["Rice"] = domain.StockRecord{
		Name: "Rice", Quantity: 20, Category: domain.CategoryFood,
		CostCents: 120000, SellCents: 150000, DiscountPercent: 10,
		AddedAt: now, ExpiryDate: &foodExpiry,
	}

	s := New()
	if err := s.SaveInventory(context.Background(), inv); err != nil {
		panic(err)
	}
	return s
}

func (s *Store) LoadInventory(_ context.Context) (domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.inventory == nil {
		return domain.NewInventory(), nil
	}
	var inv domain.Inventory
	if err := json.Unmarshal(s.inventory, &inv); err != nil {
		return domain.Inventory{}, errs.Mark(err, errs.ErrPersistence)
	}
	inv.Collection(domain.LocationWarehouse)
	inv.Collection(domain.LocationStorefront)
	return inv, nil
}

func (s *Store) SaveInventory(_ context.Context, inv domain.Inventory) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = payload
	return nil
}

func (s *Store) LoadQueue(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queue == nil {
		return []domain.Order{}, nil
	}
	var orders []domain.Order
	if err := json.Unmarshal(s.queue, &orders); err != nil {
		return nil, errs.Mark(err, errs.ErrPersistence)
	}
	return orders, nil
}

func (s *Store) SaveQueue(_ context.Context, orders []domain.Order) error {
	if orders == nil {
		orders = []domain.Order{}
	}
	payload, err := json.Marshal(orders)
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = payload
	return nil
}
