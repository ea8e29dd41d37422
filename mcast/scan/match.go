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

	"github.com/motiftools/mcast/mcast/seqs"
)

// MotifHit is one motif occurrence inside a match.
type MotifHit struct {
	MotifID    string
	MotifIndex int  // 1-based motif number
	Strand     byte // '+' or '-'

	// Start and Stop are 0-based inclusive coordinates on the source
	// sequence (offset-adjusted for genomic headers).
	Start, Stop int64

	Pvalue float64
	Seq    string
}

// Match is one motif cluster with its significance estimates. Score is the
// full path score of the cluster, including the match threshold.
type Match struct {
	SeqName   string
	SeqLength int

	// Start and Stop are 0-based inclusive coordinates on the source
	// sequence.
	Start, Stop int64

	Sequence string
	LFlank   string
	RFlank   string

	Hits []MotifHit

	Score float64
	GC    float64
	GCBin int

	Pvalue float64
	Evalue float64
	Qvalue float64
}

// extractMatch materializes a recovered match against the block it came
// from: sequence text, flanks, hit list, and offset-adjusted coordinates.
// The leading wildcard pad shifts block coordinates up by one relative to
// the raw sequence, hence the -1 throughout.
func (s *Session) extractMatch(m rawMatch, seg *seqs.Segment) *Match {
	data := seg.Data
	n := len(s.iseq)

	out := &Match{
		SeqName:   seg.Name,
		SeqLength: n - 2,
		Start:     seg.Offset + int64(m.start) - 1,
		Stop:      seg.Offset + int64(m.end) - 1,
		Sequence:  string(data[m.start-1 : m.end]),
		Score:     m.score,
		GC:        s.gcAround(m.start, m.end),
		GCBin:     -1,
		Pvalue:    math.NaN(),
		Evalue:    math.NaN(),
		Qvalue:    math.NaN(),
	}

	lf := m.start - 1
	if lf > preferredFlankSize {
		lf = preferredFlankSize
	}
	rf := n - m.end - 2
	if rf > preferredFlankSize {
		rf = preferredFlankSize
	}
	out.LFlank = string(data[m.start-1-lf : m.start-1])
	out.RFlank = string(data[m.end : m.end+rf])

	out.Hits = make([]MotifHit, 0, len(m.hits))
	for _, h := range m.hits {
		mo := s.motifOf(h.branch)
		// Invert the baked score back to the window p-value.
		pv := math.Exp2(-s.mm[h.branch][h.start]) * s.Params.MotifPthresh
		out.Hits = append(out.Hits, MotifHit{
			MotifID:    mo.ID,
			MotifIndex: s.MotifIndexOf(h.branch),
			Strand:     mo.Strand,
			Start:      seg.Offset + int64(h.start) - 1,
			Stop:       seg.Offset + int64(h.end) - 1,
			Pvalue:     pv,
			Seq:        string(data[h.start-1 : h.end]),
		})
	}
	return out
}
