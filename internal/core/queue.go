package core

import (
	"github.com/evlasova/batch-auction/internal/domain"
)

// Queue sentinels. QueueStart decodes to zero amounts, which admission never
// lets through, so neither sentinel can collide with a real order.
var (
	QueueStart = domain.OrderKey{31: 0x01}
	QueueEnd   = domain.OrderKey{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
)

// OrderQueue is a sentinel-anchored chain of order keys, strictly descending
// by unit price. It is a next-pointer map over identity keys: a correct
// position hint makes insertion O(1), the no-hint fallback scans from the
// head. Orders are never removed once admitted; they live until claimed.
type OrderQueue struct {
	next map[domain.OrderKey]domain.OrderKey
	size int
}

func NewOrderQueue() *OrderQueue {
	return &OrderQueue{
		next: map[domain.OrderKey]domain.OrderKey{QueueStart: QueueEnd},
	}
}

func (q *OrderQueue) Len() int {
	return q.size
}

func (q *OrderQueue) Contains(k domain.OrderKey) bool {
	if k == QueueStart || k == QueueEnd {
		return false
	}
	_, ok := q.next[k]
	return ok
}

// First returns the best-priced order key, or false on an empty queue.
func (q *OrderQueue) First() (domain.OrderKey, bool) {
	k := q.next[QueueStart]
	return k, k != QueueEnd
}

// Next returns the successor of k, or false when k is the last order.
func (q *OrderQueue) Next(k domain.OrderKey) (domain.OrderKey, bool) {
	n, ok := q.next[k]
	if !ok || n == QueueEnd {
		return domain.OrderKey{}, false
	}
	return n, true
}

// Keys returns all order keys in queue order, best price first.
func (q *OrderQueue) Keys() []domain.OrderKey {
	keys := make([]domain.OrderKey, 0, q.size)
	for k, ok := q.First(); ok; k, ok = q.Next(k) {
		keys = append(keys, k)
	}
	return keys
}

// Insert links key directly after afterHint. The hint must be QueueStart or
// an order already in the queue, and key must rank strictly between the hint
// and the hint's current successor; anything else fails with
// ErrInvalidPositionHint and leaves the queue untouched. A zero hint selects
// the always-valid fallback that scans from the head for the predecessor.
//
// Returns false with a nil error when the key is already present; the caller
// treats such a duplicate as a no-op.
func (q *OrderQueue) Insert(key, afterHint domain.OrderKey) (bool, error) {
	if key == QueueStart || key == QueueEnd || key.IsZero() {
		return false, domain.ErrInvalidAmount
	}
	if q.Contains(key) {
		return false, nil
	}
	if afterHint.IsZero() {
		afterHint = q.scanPredecessor(key)
	}
	if afterHint != QueueStart && !q.Contains(afterHint) {
		return false, domain.ErrInvalidPositionHint
	}
	succ := q.next[afterHint]
	if afterHint != QueueStart && !domain.KeyRanksAbove(afterHint, key) {
		return false, domain.ErrInvalidPositionHint
	}
	if succ != QueueEnd && !domain.KeyRanksAbove(key, succ) {
		return false, domain.ErrInvalidPositionHint
	}
	q.next[key] = succ
	q.next[afterHint] = key
	q.size++
	return true, nil
}

// scanPredecessor finds the last key still ranking above key. O(n).
func (q *OrderQueue) scanPredecessor(key domain.OrderKey) domain.OrderKey {
	prev := QueueStart
	for cur := q.next[prev]; cur != QueueEnd; cur = q.next[cur] {
		if !domain.KeyRanksAbove(cur, key) {
			break
		}
		prev = cur
	}
	return prev
}

// unlink removes key from the chain. Removal is not part of the queue's
// public contract; this exists solely so a batch placement whose custody
// transfer failed can be rolled back without partial state.
func (q *OrderQueue) unlink(key domain.OrderKey) {
	if !q.Contains(key) {
		return
	}
	prev := QueueStart
	for cur := q.next[prev]; cur != QueueEnd; cur = q.next[cur] {
		if cur == key {
			q.next[prev] = q.next[key]
			delete(q.next, key)
			q.size--
			return
		}
		prev = cur
	}
}
