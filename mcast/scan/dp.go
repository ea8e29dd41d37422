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

import "math"

// rawHit is one motif occurrence inside a match, in padded block coordinates
// (iseq index of the first and last symbol, inclusive).
type rawHit struct {
	branch     int
	start, end int
}

// rawMatch is one repeated-match cluster recovered from the trace matrix.
// score is the summed path score (hit scores minus gap penalties), before
// subtracting the match threshold.
type rawMatch struct {
	start, end int
	score      float64
	hits       []rawHit
}

// Trace codes for the collector row: 0 carries the previous column, any
// other value e closes a match whose last hit ends in state e.

// repeatedMatchAlgorithm fills the DP and trace matrices for the current
// block and recovers all closed matches in left-to-right order.
//
// Row layout mirrors the model: row 0 is the collector accumulating the
// total score of all closed matches, row 1 is the in-match spacer charging
// GapExtend per skipped symbol, and each branch occupies Width consecutive
// rows with the whole hit score granted on entry. A match closes in the
// collector only when its path score exceeds DPThresh, so the per-symbol gap
// penalty DPThresh/MaxGap splits clusters at gaps longer than MaxGap.
func (s *Session) repeatedMatchAlgorithm() {
	h := s.HMM
	n := len(s.iseq)
	negInf := math.Inf(-1)
	thresh := s.Params.DPThresh
	gapExtend := s.Params.GapExtend

	dp, tr := s.dp, s.tr
	for r := range dp {
		dp[r][0] = negInf
		tr[r][0] = 0
	}
	dp[0][0] = 0

	branches := h.Branches
	for i := 1; i <= n; i++ {
		// Best branch-end score in the previous column, for gap-row and
		// hit-entry transitions.
		bestEnd := negInf
		bestEndState := int32(0)
		for b := range branches {
			e := branches[b].StartState + branches[b].Width - 1
			if v := dp[e][i-1]; v > bestEnd {
				bestEnd = v
				bestEndState = int32(e)
			}
		}

		// Spacer row: extend the gap or leave the last hit.
		from := dp[1][i-1]
		tr[1][i] = 1
		if bestEnd > from {
			from = bestEnd
			tr[1][i] = bestEndState
		}
		dp[1][i] = from - gapExtend

		// Branch rows. The start state receives the whole hit score for
		// the window beginning at symbol i-1; interior states only shift
		// the path one symbol to the right.
		for b := range branches {
			st := branches[b].StartState
			w := branches[b].Width

			hit := s.mm[b][i-1]
			if math.IsInf(hit, -1) {
				dp[st][i] = negInf
			} else {
				prev := dp[0][i-1]
				tr[st][i] = 0
				if dp[1][i-1] > prev {
					prev = dp[1][i-1]
					tr[st][i] = 1
				}
				if bestEnd > prev {
					prev = bestEnd
					tr[st][i] = bestEndState
				}
				dp[st][i] = prev + hit
			}
			for k := 1; k < w; k++ {
				dp[st+k][i] = dp[st+k-1][i-1]
				tr[st+k][i] = int32(st + k - 1)
			}
		}

		// Collector row: carry, or close the best match ending here if it
		// beats the threshold.
		dp[0][i] = dp[0][i-1]
		tr[0][i] = 0
		for b := range branches {
			e := branches[b].StartState + branches[b].Width - 1
			if v := dp[e][i] - thresh; v > dp[0][i] {
				dp[0][i] = v
				tr[0][i] = int32(e)
			}
		}
	}

	s.recoverMatches(n)
	s.matchIdx = 0
}

// recoverMatches walks the collector trace right to left and rebuilds each
// closed match, hits included, from the trace matrix.
func (s *Session) recoverMatches(n int) {
	s.matches = s.matches[:0]
	tr := s.tr

	endWidth := make(map[int]int, len(s.HMM.Branches))
	endBranch := make(map[int]int, len(s.HMM.Branches))
	for b, br := range s.HMM.Branches {
		e := br.StartState + br.Width - 1
		endWidth[e] = br.Width
		endBranch[e] = b
	}

	for i := n; i >= 1; {
		e := int(tr[0][i])
		if e == 0 {
			i--
			continue
		}

		m := rawMatch{end: i - 1}
		col, state := i, e
		for {
			w := endWidth[state]
			hitStart := col - w + 1 // start-state column
			m.hits = append(m.hits, rawHit{
				branch: endBranch[state],
				start:  hitStart - 1,
				end:    col - 1,
			})

			p := int(tr[state-w+1][hitStart])
			switch {
			case p == 0:
				m.start = hitStart - 1
				m.score = s.dp[e][i] - s.dp[0][m.start]
				reverseHits(m.hits)
				s.matches = append(s.matches, m)
				i = hitStart - 1
			case p == 1:
				// Walk the gap row back to the previous hit.
				c := hitStart - 1
				for tr[1][c] == 1 {
					c--
				}
				col, state = c-1, int(tr[1][c])
				continue
			default:
				col, state = hitStart-1, p
				continue
			}
			break
		}
	}

	// Recovered right to left.
	for l, r := 0, len(s.matches)-1; l < r; l, r = l+1, r-1 {
		s.matches[l], s.matches[r] = s.matches[r], s.matches[l]
	}
}

func reverseHits(hits []rawHit) {
	for l, r := 0, len(hits)-1; l < r; l, r = l+1, r-1 {
		hits[l], hits[r] = hits[r], hits[l]
	}
}

// findNextMatch returns the first remaining match starting at or after
// startPos (padded block coordinates).
func (s *Session) findNextMatch(startPos int) (rawMatch, bool) {
	for s.matchIdx < len(s.matches) {
		m := s.matches[s.matchIdx]
		s.matchIdx++
		if m.start >= startPos {
			return m, true
		}
	}
	return rawMatch{}, false
}
