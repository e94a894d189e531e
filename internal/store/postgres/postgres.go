// Package postgres persists the two system documents as jsonb rows in a
// single documents table. Each save rewrites the whole document, preserving
// the full-document consistency unit of the file store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
)

const (
	docInventory = "inventory"
	docQueue     = "order_queue"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrPersistence)
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.Mark(err, errs.ErrPersistence)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			name       text PRIMARY KEY,
			doc        jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}
	return nil
}

func (s *Store) loadDocument(ctx context.Context, name string, out any) (bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM documents WHERE name = $1
	`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Mark(err, errs.ErrPersistence)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errs.Mark(err, errs.ErrPersistence)
	}
	return true, nil
}

func (s *Store) saveDocument(ctx context.Context, name string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (name, doc, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`, name, payload)
	if err != nil {
		return errs.Mark(err, errs.ErrPersistence)
	}
	return nil
}

func (s *Store) LoadInventory(ctx context.Context) (domain.Inventory, error) {
	inv := domain.NewInventory()
	found, err := s.loadDocument(ctx, docInventory, &inv)
	if err != nil {
		return domain.Inventory{}, err
	}
	if !found {
		return domain.NewInventory(), nil
	}
	inv.Collection(domain.LocationWarehouse)
	inv.Collection(domain.LocationStorefront)
	return inv, nil
}

func (s *Store) SaveInventory(ctx context.Context, inv domain.Inventory) error {
	return s.saveDocument(ctx, docInventory, inv)
}

func (s *Store) LoadQueue(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	found, err := s.loadDocument(ctx, docQueue, &orders)
	if err != nil {
		return nil, err
	}
	if !found || orders == nil {
		return []domain.Order{}, nil
	}
	return orders, nil
}

func (s *Store) SaveQueue(ctx context.Context, orders []domain.Order) error {
	if orders == nil {
		orders = []domain.Order{}
	}
	return s.saveDocument(ctx, docQueue, orders)
}
