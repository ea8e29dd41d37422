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

// Package stats holds the score reservoir, the GC-binned exponential score
// distribution, and the q-value routine used to calibrate match
// significance.
package stats

import "math/rand"

// Score is one sampled candidate match score.
type Score struct {
	S      float64 // score above the DP threshold
	T      int     // length of the scored sequence block
	NHits  int     // motif hits in the match
	Span   int     // end - start + 1
	GC     float64 // windowed GC content around the match
	Serial float64 // stream order, for reproducible refits
}

// ScoreSet collects candidate match scores by reservoir sampling: every
// candidate is counted, the first MaxScoresSaved fill the reservoir, and
// afterwards the k-th candidate replaces a uniformly random slot with
// probability MaxScoresSaved/k. The sample stays uniform over the whole
// stream regardless of which matches are ultimately retained.
type ScoreSet struct {
	Scores         []Score
	MaxScoresSaved int
	NumScoresSeen  int
	TotalLength    int64 // symbols scanned
	MaxT           int   // longest block a sampled score came from
	NegativesOnly  bool  // set for synthetic (null) scans
}

// NewScoreSet creates a reservoir with the given capacity.
func NewScoreSet(capacity int, negativesOnly bool) *ScoreSet {
	return &ScoreSet{
		Scores:         make([]Score, 0, capacity),
		MaxScoresSaved: capacity,
		NegativesOnly:  negativesOnly,
	}
}

// N returns the number of scores currently held.
func (ss *ScoreSet) N() int { return len(ss.Scores) }

// Sample offers one candidate score to the reservoir.
func (ss *ScoreSet) Sample(sc Score, rng *rand.Rand) {
	ss.NumScoresSeen++

	if len(ss.Scores) < ss.MaxScoresSaved {
		ss.save(sc, len(ss.Scores), true)
		return
	}
	idx := int(float64(ss.NumScoresSeen) * rng.Float64())
	if idx < ss.MaxScoresSaved {
		ss.save(sc, idx, false)
	}
}

func (ss *ScoreSet) save(sc Score, idx int, grow bool) {
	if sc.T > ss.MaxT {
		ss.MaxT = sc.T
	}
	if grow {
		ss.Scores = append(ss.Scores, sc)
		return
	}
	ss.Scores[idx] = sc
}
