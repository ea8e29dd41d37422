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

// Package hmm builds a star-topology hidden Markov model from DNA motifs:
// one shared spacer/background state, one state chain per motif branch
// (forward and reverse complement), all converging back to the spacer.
package hmm

import (
	"math"

	"github.com/pkg/errors"

	"github.com/motiftools/mcast/mcast/motif"
)

// StateType distinguishes the roles states play in the star topology.
type StateType uint8

const (
	StateStart StateType = iota // entry state; doubles as the repeated-match collector row in the DP
	StateSpacer                 // shared background state between motif occurrences
	StateMotifStart             // first state of a motif branch
	StateMotifMid               // interior state of a motif branch
	StateMotifEnd               // last state of a motif branch
	StateEnd
)

// State is one HMM state. Motif states reference (not own) their motif.
type State struct {
	Type   StateType
	Branch int // branch index for motif states, -1 otherwise
	Pos    int // position within the motif for motif states
	Motif  *motif.Motif

	// Emit holds emission probabilities over the core symbols for motif
	// states, background probabilities for the spacer. After ToLog it holds
	// log2-odds against the background instead.
	Emit [motif.NumCoreSymbols]float64
}

// HMM is the star-topology model. Branches come in forward/reverse-complement
// pairs, ordered by (abs(rank), reverse complement second).
type HMM struct {
	States   []State
	Branches []Branch
	Bg       motif.Background

	logSpace bool
}

// Branch is one motif chain inside the star.
type Branch struct {
	Motif      *motif.Motif
	Width      int
	StartState int // index of the StateMotifStart state
}

// BuildStar builds the star HMM from an ordered, filtered motif list
// (forward and reverse-complement variants included).
func BuildStar(motifs []*motif.Motif, bg motif.Background) (*HMM, error) {
	if len(motifs) == 0 {
		return nil, errors.New("cannot build an HMM from zero motifs")
	}
	h := &HMM{Bg: bg}

	h.States = append(h.States, State{Type: StateStart, Branch: -1})
	h.States = append(h.States, State{Type: StateSpacer, Branch: -1, Emit: bg})

	for bi, m := range motifs {
		w := m.Width()
		h.Branches = append(h.Branches, Branch{Motif: m, Width: w, StartState: len(h.States)})
		for p := 0; p < w; p++ {
			t := StateMotifMid
			switch p {
			case 0:
				t = StateMotifStart
			case w - 1:
				t = StateMotifEnd
			}
			h.States = append(h.States, State{
				Type:   t,
				Branch: bi,
				Pos:    p,
				Motif:  m,
				Emit:   m.Freqs[p],
			})
		}
	}
	h.States = append(h.States, State{Type: StateEnd, Branch: -1})
	return h, nil
}

// NumStates returns the number of states, the row count of the DP matrices.
func (h *HMM) NumStates() int { return len(h.States) }

// SetBackground swaps in a new background model. Must be called before
// ToLog: emissions are turned into log-odds against this background.
func (h *HMM) SetBackground(bg motif.Background) error {
	if h.logSpace {
		return errors.New("background must be replaced before log conversion")
	}
	h.Bg = bg
	h.States[1].Emit = bg
	return nil
}

// ToLog converts emissions to log2-odds against the background; the branch
// scoring matrices are built from these. The spacer scores zero per symbol;
// gap costs are charged by the matcher instead.
func (h *HMM) ToLog() {
	if h.logSpace {
		return
	}
	for i := range h.States {
		s := &h.States[i]
		switch s.Type {
		case StateSpacer:
			for a := range s.Emit {
				s.Emit[a] = 0
			}
		case StateMotifStart, StateMotifMid, StateMotifEnd:
			for a := range s.Emit {
				s.Emit[a] = logOdds(s.Emit[a], h.Bg[a])
			}
		}
	}
	h.logSpace = true
}

// logOdds guards against zero frequencies with a small floor.
func logOdds(p, q float64) float64 {
	const eps = 1e-7
	if p < eps {
		p = eps
	}
	if q < eps {
		q = eps
	}
	return math.Log2(p / q)
}

// CheckComplementable verifies the alphabet supports synthetic-sequence
// generation: 4 core symbols forming 2 complementary pairs. The DNA encoding
// is fixed here, so the check is structural, but calibration refuses to run
// without it.
func (h *HMM) CheckComplementable() error {
	if motif.NumCoreSymbols != 4 {
		return errors.Errorf("random sequence generation needs an alphabet with 4 core symbols, have %d", motif.NumCoreSymbols)
	}
	for a := 0; a < motif.NumCoreSymbols; a++ {
		if motif.Complement(motif.Complement(a)) != a {
			return errors.New("random sequence generation needs an alphabet with 2 complementary pairs")
		}
	}
	return nil
}
