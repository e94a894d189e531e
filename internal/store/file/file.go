// Package file persists the inventory and queue documents as JSON files in
// a data directory: the inventory is an object with warehouse/storefront
// collections, the queue a JSON array in FIFO order.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
)

const (
	inventoryFile = "inventory.json"
	queueFile     = "orders.json"
)

type Store struct {
	dir string
}

// New creates the data directory if needed and returns a file-backed store.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Mark(err, errs.ErrPersistence)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) inventoryPath() string { return filepath.Join(s.dir, inventoryFile) }
func (s *Store) queuePath() string     { return filepath.Join(s.dir, queueFile) }

func (s *Store) LoadInventory(_ context.Context) (domain.Inventory, error) {
	inv := domain.NewInventory()
	raw, err := os.ReadFile(s.inventoryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return inv, nil
		}
		return domain.Inventory{}, errs.Mark(err, errs.ErrPersistence)
	}
	if len(raw) == 0 {
		return inv, nil
	}
	if err := json.Unmarshal(raw, &inv); err != nil {
		return domain.Inventory{}, errs.Mark(err, errs.ErrPersistence)
	}
	// Partial documents may omit a collection.
	inv.Collection(domain.LocationWarehouse)
	inv.Collection(domain.LocationStorefront)
	return inv, nil
}

func (s *Store) SaveInventory(_ context.Context, inv domain.Inventory) error {
	return s.writeDocument(s.inventoryPath(), inv)
}

func (s *Store) LoadQueue(_ context.Context) ([]domain.Order, error) {
	raw, err := os.ReadFile(s.queuePath())
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Order{}, nil
		}
		return nil, errs.Mark(err, errs.ErrPersistence)
	}
	if len(raw) == 0 {
		return []domain.Order{}, nil
	}
	var orders []domain.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, errs.Mark(err, errs.ErrPersistence)
	}
	return orders, nil
}

func (s *Store) SaveQueue(_ context.Context, orders []domain.Order) error {
	if orders == nil {
		orders = []domain.Order{}
	}
	return s.writeDocument(s.queuePath(), orders)
}

// writeDocument replaces a document atomically: write to a temp file in the
// same directory, then rename over the target.
func (s *Store) writeDocument(path string, doc any) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errs.Mark(err, errs.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errs.Mark(err, errs.ErrPersistence)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errs.Mark(err, errs.ErrPersistence)
	}
	return nil
}
