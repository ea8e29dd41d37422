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
	"math"
	"testing"
)

func pvMatch(p float64) *Match { return &Match{Pvalue: p} }

func TestMatchHeapOrder(t *testing.T) {
	h := NewMatchHeap(10)
	for _, p := range []float64{0.3, 0.05, 0.9, 0.1} {
		h.Add(pvMatch(p))
	}
	if h.Len() != 4 {
		t.Fatalf("Len = %d", h.Len())
	}

	drained := h.Drain()
	want := []float64{0.05, 0.1, 0.3, 0.9}
	for i, m := range drained {
		if m.Pvalue != want[i] {
			t.Errorf("Drain[%d].Pvalue = %g, want %g", i, m.Pvalue, want[i])
		}
	}
	if h.Len() != 0 {
		t.Errorf("heap not empty after Drain: %d", h.Len())
	}
}

func TestMatchHeapNaNSortsWorst(t *testing.T) {
	h := NewMatchHeap(10)
	h.Add(pvMatch(0.5))
	h.Add(pvMatch(math.NaN()))
	h.Add(pvMatch(0.01))

	if m := h.PopWorst(); !math.IsNaN(m.Pvalue) {
		t.Errorf("worst match has Pvalue %g, want NaN", m.Pvalue)
	}
	if m := h.PopWorst(); m.Pvalue != 0.5 {
		t.Errorf("next worst Pvalue = %g, want 0.5", m.Pvalue)
	}
}

func TestMatchHeapPurge(t *testing.T) {
	h := NewMatchHeap(6)
	for _, p := range []float64{0.5, 0.4, 0.3, 0.2, 0.1, 0.05} {
		h.Add(pvMatch(p))
	}

	bound := h.Purge()
	if bound != 0.3 {
		t.Errorf("Purge bound = %g, want 0.3 (smallest discarded)", bound)
	}
	// No retained match may be as bad as any discarded one.
	for _, m := range h.Drain() {
		if m.Pvalue >= bound {
			t.Errorf("retained match with Pvalue %g >= bound %g", m.Pvalue, bound)
		}
	}
}

func TestMatchHeapPurgeTies(t *testing.T) {
	h := NewMatchHeap(6)
	for _, p := range []float64{0.3, 0.3, 0.3, 0.1, 0.1, 0.05} {
		h.Add(pvMatch(p))
	}

	// The half-purge drops all three 0.3s; anything tying the bound must go.
	bound := h.Purge()
	if bound != 0.3 {
		t.Errorf("Purge bound = %g, want 0.3", bound)
	}
	if h.Len() != 3 {
		t.Errorf("heap holds %d after tie purge, want 3", h.Len())
	}
}

func TestMatchHeapPurgeAllNaN(t *testing.T) {
	h := NewMatchHeap(4)
	for i := 0; i < 4; i++ {
		h.Add(pvMatch(math.NaN()))
	}
	// Unscored matches count as worst, so a purge of them clears the heap and
	// leaves the admission bound open.
	if bound := h.Purge(); bound != 1.0 {
		t.Errorf("bound = %g, want 1.0", bound)
	}
	if h.Len() != 0 {
		t.Errorf("NaN matches survived the purge: %d", h.Len())
	}
}
