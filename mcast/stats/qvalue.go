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
	"math/rand"
	"sort"
)

// Bootstrap FDR parameters (Storey's pi0 estimation).
const (
	numBootstraps = 1000
	numLambda     = 96
	maxLambda     = 0.5
)

// Qvalues converts p-values into FDR-adjusted q-values.
//
// pvalues must be sorted ascending; they are the p-values of the retained
// matches (the best totalScores candidates, so the rank of pvalues[i] within
// the whole candidate population is i+1). sampledPvalues is a uniform sample
// of p-values over the whole candidate stream, used only to estimate pi0,
// the proportion of candidates that follow the null. totalScores is the
// number of candidates seen. The returned slice is aligned with pvalues.
func Qvalues(pvalues, sampledPvalues []float64, totalScores int, rng *rand.Rand) []float64 {
	q := make([]float64, len(pvalues))
	if len(pvalues) == 0 {
		return q
	}

	pi0 := estimatePi0(sampledPvalues, rng)

	for i, p := range pvalues {
		rank := float64(i + 1)
		v := pi0 * p * float64(totalScores) / rank
		if v > 1 {
			v = 1
		}
		q[i] = v
	}
	// q-values are monotone in p-value rank.
	for i := len(q) - 2; i >= 0; i-- {
		if q[i+1] < q[i] {
			q[i] = q[i+1]
		}
	}
	return q
}

// estimatePi0 picks the lambda whose pi0 estimate has the smallest
// bootstrapped mean-squared error against the most conservative estimate
// (Storey & Tibshirani 2003).
func estimatePi0(sampled []float64, rng *rand.Rand) float64 {
	m := len(sampled)
	if m == 0 {
		return 1
	}
	ps := make([]float64, m)
	copy(ps, sampled)
	sort.Float64s(ps)

	lambdas := make([]float64, 0, numLambda)
	pi0s := make([]float64, 0, numLambda)
	for k := 1; k <= numLambda; k++ {
		l := maxLambda * float64(k) / numLambda
		above := m - sort.SearchFloat64s(ps, l)
		pi0 := float64(above) / (float64(m) * (1 - l))
		lambdas = append(lambdas, l)
		pi0s = append(pi0s, pi0)
	}

	minPi0 := math.Inf(1)
	for _, v := range pi0s {
		if v < minPi0 {
			minPi0 = v
		}
	}

	mse := make([]float64, len(lambdas))
	boot := make([]float64, m)
	for b := 0; b < numBootstraps; b++ {
		for i := range boot {
			boot[i] = ps[rng.Intn(m)]
		}
		sort.Float64s(boot)
		for j, l := range lambdas {
			above := m - sort.SearchFloat64s(boot, l)
			pi0b := float64(above) / (float64(m) * (1 - l))
			d := pi0b - minPi0
			mse[j] += d * d
		}
	}

	best := 0
	for j := range mse {
		if mse[j] < mse[best] {
			best = j
		}
	}
	pi0 := pi0s[best]
	if pi0 > 1 {
		pi0 = 1
	}
	if pi0 <= 0 {
		pi0 = 1.0 / float64(m) // degenerate sample; stay conservative but nonzero
	}
	return pi0
}
