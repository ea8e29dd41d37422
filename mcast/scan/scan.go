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
	"math/rand"

	"github.com/motiftools/mcast/mcast/seqs"
	"github.com/motiftools/mcast/mcast/stats"
)

// ScanState accumulates results across all sequences of a scan. The same
// state may be fed from several sources (e.g. many FASTA files). Heap may be
// nil for score-collection-only scans, as used during calibration.
type ScanState struct {
	Heap   *MatchHeap
	Scores *stats.ScoreSet

	// InitEVD is an interim score distribution fitted from the reservoir
	// the moment it first fills, used to p-value matches on the fly so the
	// heap can rank them before the final calibration.
	InitEVD *stats.EVDSet

	// MinPvalueDiscarded is the current admission bound: once the heap has
	// purged, only matches strictly better than every discarded one enter.
	MinPvalueDiscarded float64

	serial float64

	NumSeqs     int
	NumSegments int
	NumMatches  int
	NumPurges   int
}

// NewScanState returns scan state with an empty heap and a reservoir sized
// to maxStored.
func NewScanState(maxStored int) *ScanState {
	return &ScanState{
		Heap:               NewMatchHeap(maxStored),
		Scores:             stats.NewScoreSet(maxStored, false),
		InitEVD:            &stats.EVDSet{},
		MinPvalueDiscarded: 1.0,
	}
}

// ScanSource scores every sequence from src, block by block, and folds the
// matches into st. rng drives the reservoir sampling.
func (s *Session) ScanSource(src seqs.Source, st *ScanState, rng *rand.Rand) error {
	maxChars := s.Params.MaxChars
	overlap := s.Params.Overlap

	seg, err := src.Next(maxChars)
	if err != nil {
		return err
	}
	if seg == nil {
		return nil
	}
	st.Scores.TotalLength += int64(len(seg.Data))
	st.NumSeqs++

	cursor := 0
	for seg != nil {
		complete := seg.Complete()
		s.prepareBlock(seg)
		s.computeMotifScoreMatrix(seg.Priors)
		s.repeatedMatchAlgorithm()
		n := len(s.iseq)

		for {
			m, ok := s.findNextMatch(cursor)
			if !ok {
				break
			}
			// In an incomplete block a match starting inside the trailing
			// overlap is deferred: the next block sees it whole.
			if !complete && m.start > n-overlap {
				break
			}
			// A match starting exactly at the cursor already surfaced in
			// the previous block, truncated; skip it without reporting.
			if m.start == cursor {
				cursor = m.end + 1
				continue
			}
			cursor = m.end + 1

			viterbi := m.score - s.Params.DPThresh
			gc := s.gcAround(m.start, m.end)
			if viterbi > logSmall {
				st.serial++
				st.Scores.Sample(stats.Score{
					S:      viterbi,
					T:      n - 2,
					NHits:  len(m.hits),
					Span:   m.end - m.start + 1,
					GC:     gc,
					Serial: st.serial,
				}, rng)
			}

			if st.Heap == nil {
				continue
			}

			// The first full reservoir yields an interim distribution;
			// everything held so far gets a provisional p-value.
			if !st.InitEVD.Fitted() && st.Scores.N() >= st.Scores.MaxScoresSaved {
				*st.InitEVD = *stats.CalcDistr(st.Scores)
				st.rescoreHeap(s.Params.DPThresh)
			}

			match := s.extractMatch(m, seg)
			if st.InitEVD.Fitted() {
				match.GCBin = st.InitEVD.Bin(gc)
				match.Pvalue = st.InitEVD.Pvalue(viterbi, gc)
			}

			if match.Pvalue < st.MinPvalueDiscarded || math.IsNaN(match.Pvalue) {
				st.Heap.Add(match)
				st.NumMatches++
				if st.Heap.Len() >= st.Heap.Max() {
					st.MinPvalueDiscarded = st.Heap.Purge()
					st.NumPurges++
				}
			}
		}

		st.NumSegments++
		if !complete {
			removed := seg.Extend(maxChars, overlap)
			cursor -= removed
			if cursor < 0 {
				cursor = 0
			}
			st.Scores.TotalLength += int64(seg.Fresh(overlap))
		} else {
			seg, err = src.Next(maxChars)
			if err != nil {
				return err
			}
			cursor = 0
			if seg != nil {
				st.Scores.TotalLength += int64(len(seg.Data))
				st.NumSeqs++
			}
		}
	}
	return nil
}

// rescoreHeap re-derives p-values for everything already held, then rebuilds
// the heap order around them.
func (st *ScanState) rescoreHeap(dpThresh float64) {
	held := st.Heap.Drain()
	for _, m := range held {
		m.GCBin = st.InitEVD.Bin(m.GC)
		m.Pvalue = st.InitEVD.Pvalue(m.Score-dpThresh, m.GC)
		st.Heap.Add(m)
	}
}
