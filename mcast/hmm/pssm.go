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

package hmm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/motiftools/mcast/mcast/motif"
)

// pssmRange is the integer range log-odds scores are scaled into. The exact
// score distribution is computed over 0..Width*pssmRange.
const pssmRange = 100

// PSSM is the integer-scaled position-specific scoring matrix of one motif
// branch, together with the exact p-value lookup table of its score
// distribution under the background.
type PSSM struct {
	Width  int
	Scores [][motif.NumCoreSymbols]int // scaled log2-odds per position and symbol
	Scale  float64
	Offset float64 // raw = scaled/Scale + Width*Offset

	// Pvalues[s] = P(scaled window score >= s) for a background window.
	Pvalues []float64
}

// BranchPSSM computes the scoring matrix and exact score distribution of one
// branch from its log-space emissions. The model must be in log space.
func (h *HMM) BranchPSSM(b int) (*PSSM, error) {
	if !h.logSpace {
		return nil, errors.New("branch scoring matrices need log-space emissions")
	}
	br := h.Branches[b]
	lods := make([][motif.NumCoreSymbols]float64, br.Width)
	for p := 0; p < br.Width; p++ {
		lods[p] = h.States[br.StartState+p].Emit
	}
	return buildPSSM(lods, h.Bg), nil
}

// buildPSSM scales per-position log2-odds into integers and convolves the
// exact window score distribution under the background.
func buildPSSM(lods [][motif.NumCoreSymbols]float64, bg motif.Background) *PSSM {
	w := len(lods)
	minLod, maxLod := math.Inf(1), math.Inf(-1)
	for p := 0; p < w; p++ {
		for a := 0; a < motif.NumCoreSymbols; a++ {
			if l := lods[p][a]; l < minLod {
				minLod = l
			}
			if l := lods[p][a]; l > maxLod {
				maxLod = l
			}
		}
	}
	if maxLod <= minLod {
		maxLod = minLod + 1
	}

	pm := &PSSM{
		Width:  w,
		Scores: make([][motif.NumCoreSymbols]int, w),
		Scale:  pssmRange / (maxLod - minLod),
		Offset: minLod,
	}
	for p := 0; p < w; p++ {
		for a := 0; a < motif.NumCoreSymbols; a++ {
			pm.Scores[p][a] = int(math.Round((lods[p][a] - minLod) * pm.Scale))
		}
	}

	// Exact distribution of the scaled window score under the background,
	// by convolution over motif positions.
	size := w*pssmRange + 1
	cur := make([]float64, size)
	next := make([]float64, size)
	cur[0] = 1
	width := 0
	for p := 0; p < w; p++ {
		for i := 0; i <= width; i++ {
			if cur[i] == 0 {
				continue
			}
			for a := 0; a < motif.NumCoreSymbols; a++ {
				next[i+pm.Scores[p][a]] += cur[i] * bg[a]
			}
		}
		width += pssmRange
		cur, next = next, cur
		for i := range next {
			next[i] = 0
		}
	}

	// Tail sums give p-values.
	pm.Pvalues = make([]float64, size)
	var tail float64
	for s := size - 1; s >= 0; s-- {
		tail += cur[s]
		pm.Pvalues[s] = math.Min(tail, 1)
	}
	return pm
}

// WindowScore returns the scaled integer score of the window starting at
// position j of the index-encoded sequence. ok is false when the window
// touches a wildcard (masked or boundary) symbol.
func (pm *PSSM) WindowScore(iseq []byte, j int) (int, bool) {
	if j < 0 || j+pm.Width > len(iseq) {
		return 0, false
	}
	var s int
	for p := 0; p < pm.Width; p++ {
		a := iseq[j+p]
		if a >= motif.NumCoreSymbols {
			return 0, false
		}
		s += pm.Scores[p][a]
	}
	return s, true
}

// Pvalue returns the p-value of a scaled window score.
func (pm *PSSM) Pvalue(scaled int) float64 {
	if scaled < 0 {
		return 1
	}
	if scaled >= len(pm.Pvalues) {
		scaled = len(pm.Pvalues) - 1
	}
	return pm.Pvalues[scaled]
}

// MinPvalue is the best p-value the motif can achieve; a motif whose best
// p-value exceeds the hit threshold can never produce a hit ("weak motif").
func (pm *PSSM) MinPvalue() float64 {
	return pm.Pvalues[len(pm.Pvalues)-1]
}

// BakedScore converts a hit p-value into the log2-scaled DP score:
// s = log2(pthresh/pvalue), so that pvalue = 2^(-s) * pthresh.
// Sub-threshold windows score -Inf and never enter the DP.
func BakedScore(pvalue, pthresh float64) float64 {
	if pvalue > pthresh {
		return math.Inf(-1)
	}
	return math.Log2(pthresh / pvalue)
}

// ScoreParams carries the derived DP scoring constants.
type ScoreParams struct {
	MotifPthresh float64
	MaxGap       int
	EHitScore    float64 // expected hit score: E[log2(pthresh/p)], p ~ U(0, pthresh]
	EGap         float64 // expected distance between random hits
	DPThresh     float64 // minimum total match score
	GapExtend    float64 // per-symbol gap cost; opening costs the same as extending
}

// ComputeScoreParams derives the minimum match score and the gap penalties.
// The gap cost is a fraction (egcost) of the expected hit score accumulated
// over maxGap background positions, so gaps longer than maxGap cost more
// than a whole match threshold and split matches apart.
func ComputeScoreParams(h *HMM, motifPthresh float64, maxGap int, egcost float64) ScoreParams {
	sp := ScoreParams{
		MotifPthresh: motifPthresh,
		MaxGap:       maxGap,
		EHitScore:    1 / math.Ln2,
	}

	// Probability that some branch produces a hit at a random position.
	noHit := 1.0
	for range h.Branches {
		noHit *= 1 - motifPthresh
	}
	hitProb := 1 - noHit
	if hitProb > 0 {
		sp.EGap = 1 / hitProb
	}

	sp.DPThresh = 1e-6 // floor so the spacer baseline restarts at no cost
	if egcost > 0 {
		if sp.EGap == 0 {
			sp.DPThresh = 1e17
		} else {
			sp.DPThresh = egcost * float64(maxGap) * sp.EHitScore / sp.EGap
		}
	}

	if maxGap > 0 {
		sp.GapExtend = sp.DPThresh / float64(maxGap)
	} else {
		sp.GapExtend = math.Inf(1)
	}
	return sp
}
