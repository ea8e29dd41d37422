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

package motif

import (
	"math"
	"strings"
	"testing"
)

const memeText = `MEME version 4

ALPHABET= ACGT

strands: + -

Background letter frequencies
A 0.30 C 0.20 G 0.20 T 0.30

MOTIF crp
letter-probability matrix: alength= 4 w= 3 nsites= 17 E= 4.1e-009
 0.90 0.05 0.03 0.02
 0.10 0.10 0.70 0.10
 0.25 0.25 0.25 0.25

MOTIF lexA alt_lexA
letter-probability matrix: alength= 4 w= 2 nsites= 14 E= 3.2e-035
 0.05 0.90 0.03 0.02
 0.02 0.03 0.05 0.90
`

func TestParseMEME(t *testing.T) {
	mf, err := ParseMEME(strings.NewReader(memeText))
	if err != nil {
		t.Fatalf("ParseMEME: %v", err)
	}
	if mf.Version != "4" {
		t.Errorf("version = %q, want 4", mf.Version)
	}
	if len(mf.Motifs) != 2 {
		t.Fatalf("got %d motifs, want 2", len(mf.Motifs))
	}
	if !mf.HasBg {
		t.Error("background section not detected")
	}
	if math.Abs(mf.Background[IdxA]-0.30) > 1e-9 || math.Abs(mf.Background[IdxG]-0.20) > 1e-9 {
		t.Errorf("background = %v", mf.Background)
	}

	m := mf.Motifs[0]
	if m.ID != "crp" || m.Width() != 3 || m.NSites != 17 {
		t.Errorf("crp: id=%q width=%d nsites=%d", m.ID, m.Width(), m.NSites)
	}
	if mf.Motifs[1].AltID != "alt_lexA" {
		t.Errorf("lexA alt id = %q", mf.Motifs[1].AltID)
	}
	for _, m := range mf.Motifs {
		for p, row := range m.Freqs {
			var sum float64
			for _, v := range row {
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("%s row %d sums to %g", m.ID, p, sum)
			}
		}
	}
}

func TestParseMEMERejectsNonDNA(t *testing.T) {
	text := strings.Replace(memeText, "ALPHABET= ACGT", "ALPHABET= ACDEFGHIKLMNPQRSTVWY", 1)
	if _, err := ParseMEME(strings.NewReader(text)); err == nil {
		t.Fatal("protein alphabet accepted")
	}
}

func TestParseMEMEWidthMismatch(t *testing.T) {
	text := strings.Replace(memeText, "w= 3", "w= 5", 1)
	if _, err := ParseMEME(strings.NewReader(text)); err == nil {
		t.Fatal("row/width mismatch accepted")
	}
}

func TestReverseComplement(t *testing.T) {
	m := &Motif{
		ID:     "m",
		Strand: '+',
		Rank:   2,
		Freqs: [][NumCoreSymbols]float64{
			{0.7, 0.1, 0.1, 0.1},
			{0.1, 0.6, 0.2, 0.1},
		},
	}
	rc := m.ReverseComplement()
	if rc.Strand != '-' || rc.Rank != -2 || rc.Width() != 2 {
		t.Fatalf("rc: strand=%c rank=%d width=%d", rc.Strand, rc.Rank, rc.Width())
	}
	// position 0 of the RC is the complement of position 1.
	if rc.Freqs[0][IdxG] != m.Freqs[1][IdxC] || rc.Freqs[0][IdxT] != m.Freqs[1][IdxA] {
		t.Errorf("rc position 0 = %v, original position 1 = %v", rc.Freqs[0], m.Freqs[1])
	}
	back := rc.ReverseComplement()
	for p := range m.Freqs {
		if back.Freqs[p] != m.Freqs[p] {
			t.Errorf("double RC changed row %d: %v != %v", p, back.Freqs[p], m.Freqs[p])
		}
	}
}

func uniformMotif(id string, w int) *Motif {
	m := &Motif{ID: id, Freqs: make([][NumCoreSymbols]float64, w)}
	for p := 0; p < w; p++ {
		m.Freqs[p] = [NumCoreSymbols]float64{0.25, 0.25, 0.25, 0.25}
	}
	return m
}

func TestFilter(t *testing.T) {
	motifs := []*Motif{
		uniformMotif("a", 4),
		uniformMotif("narrow", 1),
		uniformMotif("b", 6),
		uniformMotif("late", 8), // pushed beyond the cap
	}
	fr, err := Filter(motifs, 10)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if fr.SkippedNarrow != 1 || fr.SkippedTotalWidth != 1 {
		t.Errorf("skipped: narrow=%d width=%d", fr.SkippedNarrow, fr.SkippedTotalWidth)
	}
	if fr.TotalWidth != 10 {
		t.Errorf("total width = %d, want 10", fr.TotalWidth)
	}
	if len(fr.Motifs) != 4 {
		t.Fatalf("got %d motif variants, want 4", len(fr.Motifs))
	}
	wantRanks := []int{1, -1, 2, -2}
	wantIDs := []string{"a", "a", "b", "b"}
	for i, m := range fr.Motifs {
		if m.Rank != wantRanks[i] || m.ID != wantIDs[i] {
			t.Errorf("motif %d: id=%s rank=%d, want id=%s rank=%d", i, m.ID, m.Rank, wantIDs[i], wantRanks[i])
		}
	}
	if fr.Motifs[0].Strand != '+' || fr.Motifs[1].Strand != '-' {
		t.Errorf("strand order: %c %c", fr.Motifs[0].Strand, fr.Motifs[1].Strand)
	}
}

func TestFilterAllSkipped(t *testing.T) {
	if _, err := Filter([]*Motif{uniformMotif("narrow", 1)}, -1); err == nil {
		t.Fatal("empty filter result accepted")
	}
}

func TestIndex(t *testing.T) {
	if Index('A', false) != IdxA || Index('t', false) != IdxT || Index('U', false) != IdxT {
		t.Error("uppercase/lowercase/U mapping broken")
	}
	if Index('a', true) != IdxWildcard {
		t.Error("hard masking should map lowercase to the wildcard")
	}
	if Index('N', false) != IdxWildcard || Index('X', false) != IdxWildcard {
		t.Error("non-ACGT should map to the wildcard")
	}
	for a := 0; a < NumCoreSymbols; a++ {
		if Complement(Complement(a)) != a {
			t.Errorf("complement not involutive for %d", a)
		}
	}
}

func TestBackgroundWithGC(t *testing.T) {
	bg := WithGC(0.4)
	if bg[IdxC] != 0.2 || bg[IdxG] != 0.2 || bg[IdxA] != 0.3 || bg[IdxT] != 0.3 {
		t.Errorf("WithGC(0.4) = %v", bg)
	}
	var sum float64
	for _, v := range bg {
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("WithGC not normalized: %g", sum)
	}
}
