// Copyright © 2024-2026 the mcast authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package scan

import (
	"container/heap"
	"math"
)

// MatchHeap keeps the most significant matches seen so far, bounded at max
// entries. The root is the WORST match (highest p-value), so evicting always
// drops the least significant ones. Matches without a p-value yet sort as
// worst.
type MatchHeap struct {
	items []*Match
	max   int
}

// NewMatchHeap returns a heap bounded at max matches.
func NewMatchHeap(max int) *MatchHeap {
	return &MatchHeap{max: max}
}

func heapKey(m *Match) float64 {
	if math.IsNaN(m.Pvalue) {
		return math.Inf(1)
	}
	return m.Pvalue
}

type matchOrder MatchHeap

func (h *matchOrder) Len() int            { return len(h.items) }
func (h *matchOrder) Less(i, j int) bool  { return heapKey(h.items[i]) > heapKey(h.items[j]) }
func (h *matchOrder) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *matchOrder) Push(x interface{})  { h.items = append(h.items, x.(*Match)) }
func (h *matchOrder) Pop() interface{} {
	old := h.items
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return m
}

// Len returns the number of stored matches.
func (h *MatchHeap) Len() int { return len(h.items) }

// Max returns the capacity.
func (h *MatchHeap) Max() int { return h.max }

// Add stores a match. The caller is responsible for capacity: Add never
// evicts on its own.
func (h *MatchHeap) Add(m *Match) {
	heap.Push((*matchOrder)(h), m)
}

// PopWorst removes and returns the match with the highest p-value.
func (h *MatchHeap) PopWorst() *Match {
	return heap.Pop((*matchOrder)(h)).(*Match)
}

// Purge discards the worse half of the heap, then keeps discarding while the
// root ties the smallest p-value already dropped, so no retained match is as
// bad as any discarded one. It returns that smallest discarded p-value: it
// becomes the admission bound for future matches.
func (h *MatchHeap) Purge() float64 {
	minDiscarded := 1.0
	nDel := h.Len() / 2
	for i := 0; i < nDel; i++ {
		v := h.PopWorst()
		if !math.IsNaN(v.Pvalue) {
			minDiscarded = v.Pvalue
		}
	}
	for h.Len() > 0 && heapKey(h.items[0]) >= minDiscarded {
		h.PopWorst()
	}
	return minDiscarded
}

// Drain empties the heap and returns the matches ordered from most to least
// significant.
func (h *MatchHeap) Drain() []*Match {
	out := make([]*Match, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.PopWorst()
	}
	return out
}
