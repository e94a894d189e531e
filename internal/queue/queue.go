// Package queue implements the FIFO order queue. Arrival order determines
// confirmation priority; nothing here ever reorders elements.
package queue

import (
	"github.com/KurniaRadhit/Stockmate/internal/domain"
	"github.com/KurniaRadhit/Stockmate/internal/errs"
)

// FIFO is a first-in-first-out container over orders. The zero value is an
// empty queue ready for use.
type FIFO struct {
	orders []domain.Order
}

// FromSlice builds a queue from a persisted sequence, preserving order.
func FromSlice(orders []domain.Order) *FIFO {
	q := &FIFO{orders: make([]domain.Order, len(orders))}
	copy(q.orders, orders)
	return q
}

// ToSlice returns the queue contents front to back for persistence.
func (q *FIFO) ToSlice() []domain.Order {
	out := make([]domain.Order, len(q.orders))
	copy(out, q.orders)
	return out
}

// Enqueue appends an order at the tail.
func (q *FIFO) Enqueue(order domain.Order) {
	q.orders = append(q.orders, order)
}

// Dequeue removes and returns the front order.
func (q *FIFO) Dequeue() (domain.Order, error) {
	if q.IsEmpty() {
		return domain.Order{}, errs.ErrEmptyQueue
	}
	front := q.orders[0]
	q.orders = q.orders[1:]
	return front, nil
}

// Peek returns the front order without removing it.
func (q *FIFO) Peek() (domain.Order, error) {
	if q.IsEmpty() {
		return domain.Order{}, errs.ErrEmptyQueue
	}
	return q.orders[0], nil
}

func (q *FIFO) IsEmpty() bool {
	return len(q.orders) == 0
}

func (q *FIFO) Size() int {
	return len(q.orders)
}

// FindFirst scans head to tail and returns the index of the first order
// matching the predicate, or -1.
func (q *FIFO) FindFirst(match func(domain.Order) bool) int {
	for i, order := range q.orders {
		if match(order) {
			return i
		}
	}
	return -1
}

// At returns the order at index i.
func (q *FIFO) At(i int) (domain.Order, error) {
	if i < 0 || i >= len(q.orders) {
		return domain.Order{}, errs.ErrNotFound
	}
	return q.orders[i], nil
}

// UpdateAt replaces the order at index i with the result of mutate. This is
// the only sanctioned way to change an order in place.
func (q *FIFO) UpdateAt(i int, mutate func(domain.Order) domain.Order) error {
	if i < 0 || i >= len(q.orders) {
		return errs.ErrNotFound
	}
	q.orders[i] = mutate(q.orders[i])
	return nil
}

// Compact rebuilds the queue keeping only orders for which keep holds,
// preserving the relative order of survivors. Returns the number dropped.
func (q *FIFO) Compact(keep func(domain.Order) bool) int {
	kept := q.orders[:0]
	dropped := 0
	for _, order := range q.orders {
		if keep(order) {
			kept = append(kept, order)
		} else {
			dropped++
		}
	}
	q.orders = kept
	return dropped
}

// Each visits every order front to back.
func (q *FIFO) Each(fn func(pos int, order domain.Order)) {
	for i, order := range q.orders {
		fn(i, order)
	}
}
