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

// Package motif provides DNA motif models and the MEME text-format reader.
package motif

import (
	"fmt"
	"sort"
)

// The DNA alphabet used throughout. Symbols are encoded as small integers,
// with one extra index for the wildcard/masked symbol.
const (
	IdxA = 0
	IdxC = 1
	IdxG = 2
	IdxT = 3

	// IdxWildcard is the index of the ambiguity symbol ('N', masked bases,
	// and the artificial boundary symbol padded onto scored blocks).
	IdxWildcard = 4

	// NumCoreSymbols is the number of core DNA symbols.
	NumCoreSymbols = 4
)

// Letters maps symbol indices back to bases.
var Letters = [5]byte{'A', 'C', 'G', 'T', 'N'}

// Complement maps a core symbol index to its complement's index.
func Complement(idx int) int { return 3 - idx }

// Index returns the symbol index for a base. Lowercase bases are masked to
// the wildcard when hardMask is true, otherwise treated as their uppercase
// equivalents. Anything outside ACGT becomes the wildcard.
func Index(b byte, hardMask bool) int {
	if b >= 'a' && b <= 'z' {
		if hardMask {
			return IdxWildcard
		}
		b -= 'a' - 'A'
	}
	switch b {
	case 'A':
		return IdxA
	case 'C':
		return IdxC
	case 'G':
		return IdxG
	case 'T', 'U':
		return IdxT
	}
	return IdxWildcard
}

// Motif is a position-frequency model over the DNA alphabet.
// Freqs[i][a] is the probability of symbol a at motif position i.
// Motifs are immutable once loaded.
type Motif struct {
	ID      string
	AltID   string
	Freqs   [][NumCoreSymbols]float64
	Strand  byte // '+' or '-'
	Rank    int  // signed rank: +k for the k-th accepted motif, -k for its reverse complement
	NSites  int
	EValue  float64
}

// Width returns the number of positions in the motif.
func (m *Motif) Width() int { return len(m.Freqs) }

// ReverseComplement returns the reverse-complement variant of m:
// positions reversed, letters complemented, rank negated, strand flipped.
func (m *Motif) ReverseComplement() *Motif {
	w := m.Width()
	rc := &Motif{
		ID:     m.ID,
		AltID:  m.AltID,
		Freqs:  make([][NumCoreSymbols]float64, w),
		Strand: '-',
		Rank:   -m.Rank,
		NSites: m.NSites,
		EValue: m.EValue,
	}
	for i := 0; i < w; i++ {
		src := m.Freqs[w-1-i]
		for a := 0; a < NumCoreSymbols; a++ {
			rc.Freqs[i][Complement(a)] = src[a]
		}
	}
	return rc
}

// Background is an order-0 model over the core DNA symbols.
type Background [NumCoreSymbols]float64

// Uniform returns the uniform background.
func Uniform() Background {
	return Background{0.25, 0.25, 0.25, 0.25}
}

// WithGC returns the background with the given GC content:
// C and G each get gc/2, A and T each get (1-gc)/2.
func WithGC(gc float64) Background {
	return Background{(1 - gc) / 2, gc / 2, gc / 2, (1 - gc) / 2}
}

// Normalize rescales the frequencies to sum to 1.
func (bg *Background) Normalize() {
	var sum float64
	for _, v := range bg {
		sum += v
	}
	if sum <= 0 {
		*bg = Uniform()
		return
	}
	for i := range bg {
		bg[i] /= sum
	}
}

// FilterResult reports what Filter kept and skipped.
type FilterResult struct {
	Motifs          []*Motif // forward + reverse complements, numbered and ordered
	SkippedNarrow   int      // motifs narrower than 2 positions
	SkippedTotalWidth int    // motifs beyond the cumulative width cap
	TotalWidth      int      // combined width of accepted motifs
}

// Filter applies the acceptance rules to motifs in input order: motifs
// narrower than 2 positions are skipped, and once the cumulative width of
// accepted motifs exceeds maxTotalWidth (when != -1) the remainder are
// skipped. Each accepted motif is assigned a signed rank (+k) and paired
// with its reverse complement (-k). The result is ordered by
// (abs(rank), reverse complement second).
func Filter(motifs []*Motif, maxTotalWidth int) (*FilterResult, error) {
	res := &FilterResult{}
	rank := 1
	for _, m := range motifs {
		if m.Width() < 2 {
			res.SkippedNarrow++
			continue
		}
		res.TotalWidth += m.Width()
		if maxTotalWidth != -1 && res.TotalWidth > maxTotalWidth {
			res.SkippedTotalWidth++
			res.TotalWidth -= m.Width()
			continue
		}
		fwd := *m
		fwd.Rank = rank
		if fwd.Strand == 0 {
			fwd.Strand = '+'
		}
		res.Motifs = append(res.Motifs, &fwd, fwd.ReverseComplement())
		rank++
	}
	if len(res.Motifs) == 0 {
		return nil, fmt.Errorf("no motifs left after filtering (%d too narrow, %d beyond the total width cap)",
			res.SkippedNarrow, res.SkippedTotalWidth)
	}
	sort.SliceStable(res.Motifs, func(i, j int) bool {
		a, b := res.Motifs[i].Rank, res.Motifs[j].Rank
		absA, absB := a, b
		if absA < 0 {
			absA = -absA
		}
		if absB < 0 {
			absB = -absB
		}
		if absA != absB {
			return absA < absB
		}
		return a > b // forward (+k) before reverse complement (-k)
	})
	return res, nil
}
