// Package store defines durable persistence for the two system documents:
// the inventory ledger and the order queue. Each document is read and
// written whole; the unit of consistency is one full document. The design
// assumes a single logical actor, so there is no locking or optimistic
// concurrency across processes — a multi-user deployment must add a
// transaction boundary around each read-modify-write cycle.
package store

import (
	"context"

	"github.com/KurniaRadhit/Stockmate/internal/domain"
)

type Repository interface {
	LoadInventory(ctx context.Context) (domain.Inventory, error)
	SaveInventory(ctx context.Context, inv domain.Inventory) error
	LoadQueue(ctx context.Context) ([]domain.Order, error)
	SaveQueue(ctx context.Context, orders []domain.Order) error
}
