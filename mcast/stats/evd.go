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

package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Match score distributions vary systematically with local GC content, so
// scores are partitioned into GC bins and each bin is fitted separately.
const (
	maxGCBins      = 100
	minScoresPerBin = 100
)

// EVD is the fitted exponential distribution of one GC bin.
type EVD struct {
	MaxGC float64 // upper GC boundary of the bin (inclusive)
	Rate  float64 // exponential rate, 1/mean
	Mean  float64
	Count int
}

// EVDSet is the per-GC-bin collection of fitted score distributions plus the
// global multiplier for E-value scaling and outlier summary statistics.
type EVDSet struct {
	EVDs []EVD
	N    int // E-value multiplier: number of candidate scores seen

	// Summary statistics filled by the final significance pass.
	MinE     float64
	Outliers int // matches with E < 1
	SumLogE  float64
}

// Fitted reports whether a usable distribution is available.
func (es *EVDSet) Fitted() bool { return es != nil && len(es.EVDs) > 0 }

// Bin returns the index of the GC bin covering gc.
func (es *EVDSet) Bin(gc float64) int {
	for i := range es.EVDs {
		if gc <= es.EVDs[i].MaxGC {
			return i
		}
	}
	return len(es.EVDs) - 1
}

// Pvalue converts a score (already reduced by the DP threshold) into a
// p-value using the bin covering gc.
func (es *EVDSet) Pvalue(score, gc float64) float64 {
	if !es.Fitted() {
		return math.NaN()
	}
	e := es.EVDs[es.Bin(gc)]
	if score <= 0 {
		return 1
	}
	d := distuv.Exponential{Rate: e.Rate}
	return d.Survival(score)
}

// CalcDistr fits the reservoir sample to per-GC-bin exponential
// distributions. Bins are GC quantiles with at least minScoresPerBin scores
// each, at most maxGCBins bins. An empty or degenerate sample yields an
// unfitted set.
func CalcDistr(ss *ScoreSet) *EVDSet {
	es := &EVDSet{}
	n := ss.N()
	if n == 0 {
		return es
	}

	nbins := n / minScoresPerBin
	if nbins > maxGCBins {
		nbins = maxGCBins
	}
	if nbins < 1 {
		nbins = 1
	}

	// Sort score indices by GC, then cut into equal-count bins.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		sa, sb := ss.Scores[idx[a]], ss.Scores[idx[b]]
		if sa.GC != sb.GC {
			return sa.GC < sb.GC
		}
		return sa.Serial < sb.Serial
	})

	scores := make([]float64, 0, n/nbins+1)
	for b := 0; b < nbins; b++ {
		lo := b * n / nbins
		hi := (b + 1) * n / nbins
		if hi <= lo {
			continue
		}
		scores = scores[:0]
		for _, i := range idx[lo:hi] {
			scores = append(scores, ss.Scores[i].S)
		}
		mean := stat.Mean(scores, nil)
		if mean <= 0 || math.IsNaN(mean) {
			continue
		}
		maxGC := ss.Scores[idx[hi-1]].GC
		if b == nbins-1 {
			maxGC = 1 // last bin is the catch-all
		}
		es.EVDs = append(es.EVDs, EVD{
			MaxGC: maxGC,
			Rate:  1 / mean,
			Mean:  mean,
			Count: hi - lo,
		})
	}
	return es
}
