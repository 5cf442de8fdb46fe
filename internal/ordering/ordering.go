// Package ordering maintains dense, zero-based order keys over sibling collections.
//
// Every function treats its input as read-only and returns a fresh slice, so it
// can be applied to cached snapshots without copying them first.
package ordering

import (
	"fmt"
	"slices"
)

// Item is implemented by the pointer type of anything stored in an ordered collection.
type Item[T any] interface {
	*T
	GetID() string
	GetOrder() int
	SetOrder(int)
}

// InsertAt places item at index, shifting every item whose order is >= index
// down by one. The index is clamped to [0, len(items)].
func InsertAt[T any, P Item[T]](items []T, index int, item T) []T {
	index = max(0, min(index, len(items)))

	out := make([]T, 0, len(items)+1)
	for _, it := range items {
		if P(&it).GetOrder() >= index {
			P(&it).SetOrder(P(&it).GetOrder() + 1)
		}
		out = append(out, it)
	}
	P(&item).SetOrder(index)
	out = append(out, item)
	Sort[T, P](out)
	return out
}

// RemoveAt drops the item holding order and closes the gap it leaves.
// If no item holds that order the input is returned unchanged.
func RemoveAt[T any, P Item[T]](items []T, order int) []T {
	found := false
	for i := range items {
		if P(&items[i]).GetOrder() == order {
			found = true
			break
		}
	}
	if !found {
		return items
	}

	out := make([]T, 0, len(items)-1)
	for _, it := range items {
		o := P(&it).GetOrder()
		switch {
		case o == order:
			continue
		case o > order:
			P(&it).SetOrder(o - 1)
		}
		out = append(out, it)
	}
	Sort[T, P](out)
	return out
}

// Reorder assigns orders from an id -> order map and sorts the result. Items
// missing from the map keep their order. The map is not normalized: callers
// must pass a permutation of [0, n) (see CheckPermutation).
func Reorder[T any, P Item[T]](items []T, orders map[string]int) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		if o, ok := orders[P(&out[i]).GetID()]; ok {
			P(&out[i]).SetOrder(o)
		}
	}
	Sort[T, P](out)
	return out
}

// Normalize sorts by the current order (stable) and rewrites orders to 0..n-1.
func Normalize[T any, P Item[T]](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	Sort[T, P](out)
	for i := range out {
		P(&out[i]).SetOrder(i)
	}
	return out
}

// Sort orders items in place by their order key; ties keep their relative position.
func Sort[T any, P Item[T]](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return P(&a).GetOrder() - P(&b).GetOrder()
	})
}

// IsDense reports whether the orders are exactly {0, ..., n-1}.
func IsDense[T any, P Item[T]](items []T) bool {
	seen := make([]bool, len(items))
	for i := range items {
		o := P(&items[i]).GetOrder()
		if o < 0 || o >= len(items) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}

// IndexOf returns the slice position of the item with the given id, or -1.
func IndexOf[T any, P Item[T]](items []T, id string) int {
	for i := range items {
		if P(&items[i]).GetID() == id {
			return i
		}
	}
	return -1
}

// CheckPermutation verifies that orders maps every item id, and nothing else,
// onto a distinct value in [0, len(items)).
func CheckPermutation[T any, P Item[T]](items []T, orders map[string]int) error {
	if len(orders) != len(items) {
		return fmt.Errorf("order map has %d entries, collection has %d", len(orders), len(items))
	}
	seen := make([]bool, len(items))
	for i := range items {
		id := P(&items[i]).GetID()
		o, ok := orders[id]
		if !ok {
			return fmt.Errorf("order map is missing %q", id)
		}
		if o < 0 || o >= len(items) {
			return fmt.Errorf("order %d for %q is out of range [0, %d)", o, id, len(items))
		}
		if seen[o] {
			return fmt.Errorf("order %d is assigned twice", o)
		}
		seen[o] = true
	}
	return nil
}
