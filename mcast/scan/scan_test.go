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
	"bytes"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/motiftools/mcast/mcast/hmm"
	"github.com/motiftools/mcast/mcast/motif"
	"github.com/motiftools/mcast/mcast/seqs"
	"github.com/motiftools/mcast/mcast/stats"
)

// clusterMotif builds a near-deterministic motif around a consensus.
func clusterMotif(id, consensus string) *motif.Motif {
	m := &motif.Motif{ID: id, NSites: 20}
	for i := 0; i < len(consensus); i++ {
		var row [motif.NumCoreSymbols]float64
		for a := range row {
			row[a] = 0.01
		}
		row[motif.Index(consensus[i], false)] = 0.97
		m.Freqs = append(m.Freqs, row)
	}
	return m
}

// newSession builds a scan session on the uniform background from the given
// motifs.
func newSession(t *testing.T, pthresh float64, maxChars, overlap int, ms ...*motif.Motif) *Session {
	fr, err := motif.Filter(ms, -1)
	require.NoError(t, err)

	h, err := hmm.BuildStar(fr.Motifs, motif.Uniform())
	require.NoError(t, err)

	sp := hmm.ComputeScoreParams(h, pthresh, 50, 1.0)
	h.ToLog()

	s, weak, err := NewSession(h, Params{
		MotifPthresh:    pthresh,
		MaxGap:          50,
		DPThresh:        sp.DPThresh,
		GapExtend:       sp.GapExtend,
		Alpha:           1.0,
		MaxChars:        maxChars,
		Overlap:         overlap,
		MaxStoredScores: 1000,
	})
	require.NoError(t, err)
	require.Empty(t, weak)
	return s
}

// newTestSession builds a one-motif session. "ACGTACGT" is reverse-complement
// palindromic, so forward and reverse branches score identically and the DP
// resolves ties to the forward strand.
func newTestSession(t *testing.T, pthresh float64, maxChars, overlap int) *Session {
	return newSession(t, pthresh, maxChars, overlap, clusterMotif("m1", "ACGTACGT"))
}

// plant writes the consensus into a poly-A sequence at the given positions.
// Poly-A context cannot reach the hit threshold, so the planted sites are the
// only hits the scan can find.
func plant(n int, positions ...int) []byte {
	data := bytes.Repeat([]byte{'A'}, n)
	for _, p := range positions {
		copy(data[p:], "ACGTACGT")
	}
	return data
}

func scanOnce(t *testing.T, s *Session, data []byte) (*ScanState, []*Match) {
	st := NewScanState(1000)
	src := seqs.NewMemSource()
	src.Add("test-seq", data, 0)
	require.NoError(t, s.ScanSource(src, st, rand.New(rand.NewSource(1))))
	matches := st.Heap.Drain()
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return st, matches
}

func TestSingleHitMatch(t *testing.T) {
	s := newTestSession(t, 0.0005, 0, 0)
	st, matches := scanOnce(t, s, plant(600, 200))

	require.Len(t, matches, 1)
	m := matches[0]
	require.Equal(t, "test-seq", m.SeqName)
	require.Equal(t, 600, m.SeqLength)
	require.Equal(t, int64(200), m.Start)
	require.Equal(t, int64(207), m.Stop)
	require.Equal(t, "ACGTACGT", m.Sequence)
	require.Equal(t, "AAAAAAAAAA", m.LFlank)
	require.Equal(t, "AAAAAAAAAA", m.RFlank)

	// The only achievable hit is the exact consensus window: all 8 positions
	// at the per-position maximum, p-value 0.25^8 under the uniform
	// background.
	p8 := math.Pow(0.25, 8)
	hitScore := math.Log2(s.Params.MotifPthresh / p8)
	require.InDelta(t, hitScore, m.Score, 1e-9)

	require.Len(t, m.Hits, 1)
	h := m.Hits[0]
	require.Equal(t, "m1", h.MotifID)
	require.Equal(t, 1, h.MotifIndex)
	require.Equal(t, byte('+'), h.Strand)
	require.Equal(t, int64(200), h.Start)
	require.Equal(t, int64(207), h.Stop)
	require.Equal(t, "ACGTACGT", h.Seq)
	require.InEpsilon(t, p8, h.Pvalue, 1e-9)

	require.Less(t, m.GC, 0.05) // poly-A context
	require.Equal(t, 1, st.NumSeqs)
	require.Equal(t, 1, st.NumSegments)
	require.Equal(t, 1, st.Scores.NumScoresSeen)
	require.Equal(t, int64(600), st.Scores.TotalLength)
}

// Two distinct motifs, the second occurring on the reverse strand: hits must
// carry the right motif number, strand, and coordinates, in genomic order.
func TestTwoMotifsReverseStrandHit(t *testing.T) {
	s := newSession(t, 0.0005, 0, 0,
		clusterMotif("m1", "ACGGTC"), clusterMotif("m2", "TTGACCGA"))

	data := bytes.Repeat([]byte{'A'}, 700)
	copy(data[500:], "ACGGTC")
	copy(data[536:], "TCGGTCAA") // reverse complement of TTGACCGA
	_, matches := scanOnce(t, s, data)

	require.Len(t, matches, 1)
	m := matches[0]
	require.Equal(t, int64(500), m.Start)
	require.Equal(t, int64(543), m.Stop)
	require.Len(t, m.Hits, 2)

	h1 := m.Hits[0]
	require.Equal(t, "m1", h1.MotifID)
	require.Equal(t, 1, h1.MotifIndex)
	require.Equal(t, byte('+'), h1.Strand)
	require.Equal(t, int64(500), h1.Start)
	require.Equal(t, int64(505), h1.Stop)
	require.Equal(t, "ACGGTC", h1.Seq)
	require.InEpsilon(t, math.Pow(0.25, 6), h1.Pvalue, 1e-9)

	h2 := m.Hits[1]
	require.Equal(t, "m2", h2.MotifID)
	require.Equal(t, 2, h2.MotifIndex)
	require.Equal(t, byte('-'), h2.Strand)
	require.Equal(t, int64(536), h2.Start)
	require.Equal(t, int64(543), h2.Stop)
	require.Equal(t, "TCGGTCAA", h2.Seq)
	require.InEpsilon(t, math.Pow(0.25, 8), h2.Pvalue, 1e-9)

	// 30 gap symbols between the hits.
	want := math.Log2(s.Params.MotifPthresh/math.Pow(0.25, 6)) +
		math.Log2(s.Params.MotifPthresh/math.Pow(0.25, 8)) -
		30*s.Params.GapExtend
	require.InDelta(t, want, m.Score, 1e-9)
}

func TestTwoHitsMergeWithinMaxGap(t *testing.T) {
	s := newTestSession(t, 0.0005, 0, 0)
	_, matches := scanOnce(t, s, plant(600, 200, 238)) // gap 30 <= max-gap 50

	require.Len(t, matches, 1)
	m := matches[0]
	require.Equal(t, int64(200), m.Start)
	require.Equal(t, int64(245), m.Stop)
	require.Len(t, m.Hits, 2)
	require.Equal(t, int64(200), m.Hits[0].Start)
	require.Equal(t, int64(238), m.Hits[1].Start)

	hitScore := math.Log2(s.Params.MotifPthresh / math.Pow(0.25, 8))
	require.InDelta(t, 2*hitScore-30*s.Params.GapExtend, m.Score, 1e-9)
}

func TestFarApartHitsSplit(t *testing.T) {
	s := newTestSession(t, 0.0005, 0, 0)
	_, matches := scanOnce(t, s, plant(700, 100, 500)) // gap 392 > max-gap 50

	require.Len(t, matches, 2)
	require.Equal(t, int64(100), matches[0].Start)
	require.Equal(t, int64(107), matches[0].Stop)
	require.Len(t, matches[0].Hits, 1)
	require.Equal(t, int64(500), matches[1].Start)
	require.Equal(t, int64(507), matches[1].Stop)
	require.Len(t, matches[1].Hits, 1)
}

// Segmented and whole-sequence scans must agree: a match falling into the
// trailing overlap of an incomplete block is deferred to the next block and
// reported there, exactly once, with the same coordinates and score.
func TestSegmentStitching(t *testing.T) {
	data := plant(600, 200, 238)

	whole := newTestSession(t, 0.0005, 0, 0)
	_, want := scanOnce(t, whole, data)
	require.Len(t, want, 1)

	blocked := newTestSession(t, 0.0005, 256, 64)
	st, got := scanOnce(t, blocked, data)
	require.Equal(t, 3, st.NumSegments)
	require.Equal(t, int64(600), st.Scores.TotalLength)

	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Start, got[i].Start)
		require.Equal(t, want[i].Stop, got[i].Stop)
		require.Equal(t, want[i].Sequence, got[i].Sequence)
		require.Len(t, got[i].Hits, len(want[i].Hits))
		require.InDelta(t, want[i].Score, got[i].Score, 1e-9)
	}
}

// A match truncated at a block edge is reported once. Block 1 covers [0,256)
// and only sees the first of two adjacent consensus copies; its match ends at
// the truncation point. Block 2 re-detects the second copy starting exactly
// at the carried cursor and must drop it instead of reporting a second match.
func TestTruncatedMatchReportedOnce(t *testing.T) {
	data := plant(600, 241, 249)

	whole := newTestSession(t, 0.0005, 0, 0)
	_, want := scanOnce(t, whole, data)
	require.Len(t, want, 1)
	require.Equal(t, int64(241), want[0].Start)
	require.Equal(t, int64(256), want[0].Stop)
	require.Len(t, want[0].Hits, 2)

	blocked := newTestSession(t, 0.0005, 256, 8)
	st, got := scanOnce(t, blocked, data)
	require.Len(t, got, 1)
	require.Equal(t, int64(241), got[0].Start)
	require.Equal(t, int64(248), got[0].Stop)
	require.Len(t, got[0].Hits, 1)
	require.Equal(t, 1, st.NumMatches)
	require.Equal(t, 1, st.Scores.NumScoresSeen)
}

func TestGenerateRandomSeq(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	seq := GenerateRandomSeq(nil, 10000, motif.WithGC(0.7), rng)
	require.Len(t, seq, 10000)

	var gc int
	for _, b := range seq {
		require.Contains(t, "ACGT", string(b))
		if b == 'C' || b == 'G' {
			gc++
		}
	}
	require.InDelta(t, 0.7, float64(gc)/float64(len(seq)), 0.02)
}

// Calibration on synthetic sequences: a relaxed hit threshold makes random
// hits common enough for small budgets, and fixed seeds make the whole fit
// reproducible.
func TestCalibrateSynthetic(t *testing.T) {
	run := func() (*stats.EVDSet, *ScanState) {
		s := newTestSession(t, 0.01, 0, 0)

		rng := rand.New(rand.NewSource(42))
		data := GenerateRandomSeq(nil, 5000, motif.Uniform(), rng)
		copy(data[1000:], "ACGTACGT")
		copy(data[3000:], "ACGTACGT")

		st := NewScanState(500)
		src := seqs.NewMemSource()
		src.Add("chr", data, 0)
		require.NoError(t, s.ScanSource(src, st, rng))
		require.NotZero(t, st.Scores.N())

		cp := CalibrationParams{
			WantScores: 200,
			SeqLen:     2000,
			MaxBP:      200_000,
			MinRounds:  3,
		}
		es, _, err := s.Calibrate(st.Scores, cp, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		return es, st
	}

	es, st := run()
	require.True(t, es.Fitted())
	for _, e := range es.EVDs {
		require.Positive(t, e.Rate)
		require.Positive(t, e.Count)
	}
	require.Equal(t, 1.0, es.Pvalue(0, 0.5))
	p := es.Pvalue(2, 0.5)
	require.Greater(t, p, 0.0)
	require.Less(t, p, 1.0)
	require.Less(t, es.Pvalue(5, 0.5), p)

	// The real scores are untouched by calibration.
	require.False(t, st.Scores.NegativesOnly)

	es2, _ := run()
	require.Equal(t, es.EVDs, es2.EVDs)
}

func TestCalibrateNeedsRealScores(t *testing.T) {
	s := newTestSession(t, 0.0005, 0, 0)
	_, _, err := s.Calibrate(stats.NewScoreSet(10, false), DefaultCalibrationParams(),
		rand.New(rand.NewSource(1)))
	require.Error(t, err)
}
