// Copyright (c) the loadsim authors. All rights reserved.
// Licensed under the MIT License.

// Package minheap implements a min-heap keyed by a comparison the items
// supply themselves. Items report and record their own heap index, which
// buys two operations a plain heap lacks: re-pushing an item whose key
// changed restores ordering in place, and any item can be removed from the
// middle in O(log n). The scheduler leans on both, since completion
// estimates shift every time the throughput split changes.
package minheap

import (
	"container/heap"
)

// Item must be implemented by anything stored in a [Heap].
type Item[T any] interface {
	// Less orders this item before other when true.
	Less(other T) bool
	// SetPosition records the item's new one-based heap index. Index zero
	// is reserved to mean "not currently in a heap".
	SetPosition(index int)
	// Position reports the index last recorded by SetPosition.
	Position() int
}

// Heap is a min-heap of position-tracking items. The zero value is empty
// and usable as is.
type Heap[T Item[T]] struct {
	impl heapImpl[T]
}

type heapImpl[T Item[T]] struct {
	items []T
}

// Len reports how many items the heap holds.
func (h *Heap[T]) Len() int {
	return len(h.impl.items)
}

// Push inserts an item, or re-establishes ordering for an item the heap
// already holds. Callers updating an item's key just Push it again; no
// separate membership bookkeeping is needed.
func (h *Heap[T]) Push(item T) {
	p := item.Position()
	if p < 0 {
		panic("negative heap position")
	}
	if p == 0 {
		heap.Push(&h.impl, item)
	} else {
		heap.Fix(&h.impl, p-1)
	}
}

// Pop removes and returns the minimum item.
func (h *Heap[T]) Pop() T {
	return heap.Pop(&h.impl).(T)
}

// Peek returns the minimum item without removing it; the zero value of T
// when the heap is empty.
func (h *Heap[T]) Peek() T {
	if len(h.impl.items) == 0 {
		var zero T
		return zero
	}
	return h.impl.items[0]
}

// Remove takes an item out of the heap wherever it sits, reporting whether
// it was present.
func (h *Heap[T]) Remove(item T) bool {
	p := item.Position()
	if p < 0 {
		panic("negative heap position")
	}
	if p == 0 {
		return false
	}
	heap.Remove(&h.impl, p-1)
	return true
}

func (h *heapImpl[T]) Len() int {
	return len(h.items)
}

func (h *heapImpl[T]) Less(i, j int) bool {
	return h.items[i].Less(h.items[j])
}

func (h *heapImpl[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].SetPosition(i + 1)
	h.items[j].SetPosition(j + 1)
}

func (h *heapImpl[T]) Push(x interface{}) {
	item := x.(T)
	item.SetPosition(len(h.items) + 1)
	h.items = append(h.items, item)
}

func (h *heapImpl[T]) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = *new(T) // release the reference
	h.items = old[0 : n-1]
	item.SetPosition(0)
	return item
}
