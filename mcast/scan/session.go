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

// Package scan implements the repeated-match dynamic-programming scanner:
// it aligns a star-topology motif HMM against sequences served in bounded
// overlapping blocks, extracts motif-cluster matches, and calibrates their
// significance against synthetic random sequences.
package scan

import (
	"math"

	"github.com/pkg/errors"

	"github.com/motiftools/mcast/mcast/hmm"
	"github.com/motiftools/mcast/mcast/motif"
	"github.com/motiftools/mcast/mcast/seqs"
)

const (
	// maxMatrixSize bounds the DP matrices: blocks are at most
	// maxMatrixSize/numStates symbols long.
	maxMatrixSize = 10_000_000

	// DefaultOverlap is the number of symbols retained between consecutive
	// blocks of one sequence.
	DefaultOverlap = 1000

	// logSmall excludes numerically negligible match scores from the score
	// reservoir.
	logSmall = -1e10

	// gcWinSize is the window half-width for the GC content of a match.
	gcWinSize = 500

	// preferredFlankSize bounds the flanking context stored with a match.
	preferredFlankSize = 10
)

// Params is the configuration surface of one scan.
type Params struct {
	MotifPthresh float64
	MaxGap       int
	DPThresh     float64
	GapExtend    float64

	Alpha        float64 // prior-weighting fraction
	DefaultPrior float64 // median of the prior distribution, 0 when unused
	HardMask     bool

	MaxChars int // block size; 0 means derive from maxMatrixSize
	Overlap  int // block overlap; 0 means DefaultOverlap

	MaxStoredScores int
}

// Session owns the working state of one scan invocation: the DP and trace
// matrices, the per-block motif score matrix, and the encoded-sequence
// buffers. Buffers are grown as needed and never shrunk, so repeated blocks
// and the synthetic calibration reuse the same allocations.
type Session struct {
	HMM    *hmm.HMM
	PSSMs  []*hmm.PSSM
	Params Params

	dp [][]float64
	tr [][]int32
	mm [][]float64

	iseq  []byte
	gcPre []int32

	matches  []rawMatch
	matchIdx int

	cols int
}

// NewSession prepares a scan session: per-branch scoring matrices built from
// the log-space model, the block size, and the DP buffers.
// weak receives the IDs of motifs that can never reach the hit threshold;
// they stay in the model but cannot produce hits.
func NewSession(h *hmm.HMM, p Params) (*Session, []string, error) {
	if len(h.Branches) == 0 {
		return nil, nil, errors.New("scan needs at least one motif branch")
	}

	if p.Overlap == 0 {
		p.Overlap = DefaultOverlap
	}
	if p.MaxChars == 0 {
		p.MaxChars = maxMatrixSize / h.NumStates()
	}
	if p.MaxChars < 4*p.Overlap {
		p.Overlap = p.MaxChars / 4
	}
	if p.Overlap < 1 {
		return nil, nil, errors.Errorf("block size %d is too small to overlap", p.MaxChars)
	}

	s := &Session{HMM: h, Params: p}

	var weak []string
	for b, br := range h.Branches {
		pm, err := h.BranchPSSM(b)
		if err != nil {
			return nil, nil, err
		}
		if pm.MinPvalue() > p.MotifPthresh && br.Motif.Strand == '+' {
			weak = append(weak, br.Motif.ID)
		}
		s.PSSMs = append(s.PSSMs, pm)
	}
	return s, weak, nil
}

// ensure grows the DP, trace, and motif score matrices to cover cols
// columns. Matrices are never shrunk within a run.
func (s *Session) ensure(cols int) {
	if cols <= s.cols {
		return
	}
	n := s.HMM.NumStates()
	if s.dp == nil {
		s.dp = make([][]float64, n)
		s.tr = make([][]int32, n)
		s.mm = make([][]float64, len(s.HMM.Branches))
	}
	for i := range s.dp {
		s.dp[i] = append(s.dp[i][:0], make([]float64, cols)...)
		s.tr[i] = append(s.tr[i][:0], make([]int32, cols)...)
	}
	for i := range s.mm {
		s.mm[i] = append(s.mm[i][:0], make([]float64, cols)...)
	}
	s.cols = cols
}

// computeMotifScoreMatrix fills the per-branch hit scores for the current
// padded block. The entry for branch b at start position j is
// log2(pthresh / pvalue(window)), -Inf when the window is below threshold or
// touches a wildcard, optionally adjusted by the position-specific prior.
func (s *Session) computeMotifScoreMatrix(priors []float64) {
	n := len(s.iseq)
	negInf := math.Inf(-1)
	for b, pm := range s.PSSMs {
		row := s.mm[b]
		for j := 0; j < n; j++ {
			row[j] = negInf
		}
		for j := 1; j+pm.Width <= n-1; j++ {
			scaled, ok := pm.WindowScore(s.iseq, j)
			if !ok {
				continue
			}
			sc := hmm.BakedScore(pm.Pvalue(scaled), s.Params.MotifPthresh)
			if math.IsInf(sc, -1) {
				continue
			}
			if priors != nil && s.Params.DefaultPrior > 0 {
				// Blend the site prior toward the default by alpha, then
				// score the enrichment against the default prior.
				p := s.Params.Alpha*priors[j-1] + (1-s.Params.Alpha)*s.Params.DefaultPrior
				sc += math.Log2(p / s.Params.DefaultPrior)
			}
			row[j] = sc
		}
	}
}

// prepareBlock encodes the block and rebuilds the GC prefix sums.
func (s *Session) prepareBlock(seg *seqs.Segment) {
	s.iseq = seg.Prepare(s.iseq, s.Params.HardMask)
	s.gcPre = seqs.GCPrefix(s.iseq, s.gcPre)
	s.ensure(len(s.iseq) + 1)
}

// gcAround returns the GC fraction of the window gcWinSize symbols to each
// side of [start,end] (padded block coordinates), clipped at block ends.
func (s *Session) gcAround(start, end int) float64 {
	lo := start - gcWinSize
	if lo < 0 {
		lo = 0
	}
	hi := end + gcWinSize
	if hi > len(s.iseq)-1 {
		hi = len(s.iseq) - 1
	}
	return seqs.GCWindow(s.gcPre, lo, hi)
}

// MotifIndexOf maps a branch to its 1-based motif number (forward and
// reverse complement share a number).
func (s *Session) MotifIndexOf(branch int) int { return branch/2 + 1 }

// motifOf returns the motif of a branch.
func (s *Session) motifOf(branch int) *motif.Motif { return s.HMM.Branches[branch].Motif }
