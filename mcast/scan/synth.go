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
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/motiftools/mcast/mcast/motif"
	"github.com/motiftools/mcast/mcast/seqs"
	"github.com/motiftools/mcast/mcast/stats"
)

// CalibrationParams controls the synthetic-sequence calibration. Tests
// shrink these; real runs use DefaultCalibrationParams.
type CalibrationParams struct {
	WantScores float64 // target number of synthetic match scores
	SeqLen     int     // length of each synthetic sequence
	MaxBP      float64 // total synthetic sequence budget
	MinRounds  int     // rounds to run before the target can stop us
	Verbose    bool
}

// DefaultCalibrationParams returns the standard calibration budget.
func DefaultCalibrationParams() CalibrationParams {
	return CalibrationParams{
		WantScores: 100_000,
		SeqLen:     1_000_000,
		MaxBP:      1e9,
		MinRounds:  100,
	}
}

// GenerateRandomSeq fills dst with n bases drawn i.i.d. from bg.
func GenerateRandomSeq(dst []byte, n int, bg motif.Background, rng *rand.Rand) []byte {
	dst = dst[:0]
	var cum [4]float64
	t := 0.0
	for i, f := range bg {
		t += f
		cum[i] = t
	}
	for i := 0; i < n; i++ {
		r := rng.Float64() * t
		a := 0
		for a < 3 && r > cum[a] {
			a++
		}
		dst = append(dst, motif.Letters[a])
	}
	return dst
}

// Calibrate fits the score distribution on synthetic random sequences whose
// GC content is drawn uniformly from the GC range observed in the real
// matches. It scans synthetic sequences, round by round, until WantScores
// scores are collected (but at least MinRounds rounds), the sequence budget
// MaxBP runs out, or scores arrive so slowly that the target is clearly out
// of reach. The returned bool reports whether the target was met.
func (s *Session) Calibrate(real *stats.ScoreSet, cp CalibrationParams, rng *rand.Rand) (*stats.EVDSet, bool, error) {
	if err := s.HMM.CheckComplementable(); err != nil {
		return nil, false, errors.Wrap(err, "calibration needs a strand-symmetric model")
	}
	if real.N() == 0 {
		return nil, false, errors.New("no match scores to calibrate against")
	}

	minGC, maxGC := 1.0, 0.0
	for _, sc := range real.Scores {
		if sc.GC < minGC {
			minGC = sc.GC
		}
		if sc.GC > maxGC {
			maxGC = sc.GC
		}
	}

	synth := stats.NewScoreSet(real.MaxScoresSaved, true)
	st := &ScanState{Scores: synth} // no heap: scores only
	maxRounds := int(cp.MaxBP / float64(cp.SeqLen))
	if maxRounds < 1 {
		maxRounds = 1
	}

	var pbs *mpb.Progress
	var bar *mpb.Bar
	if cp.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(maxRounds),
			mpb.PrependDecorators(
				decor.Name("calibration rounds: ", decor.WC{W: len("calibration rounds: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 3),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	reached := false
	var seq []byte
	for round := 1; round <= maxRounds; round++ {
		t := time.Now()

		gc := minGC + rng.Float64()*(maxGC-minGC)
		bg := motif.WithGC(gc)
		seq = GenerateRandomSeq(seq, cp.SeqLen, bg, rng)

		src := seqs.NewMemSource()
		src.Add(fmt.Sprintf("synth-%d", round), seq, 0)
		if err := s.ScanSource(src, st, rng); err != nil {
			return nil, false, err
		}

		found := float64(synth.NumScoresSeen)
		if cp.Verbose {
			bar.EwmaIncrBy(1, time.Since(t))
		}
		if round >= cp.MinRounds && found >= cp.WantScores {
			reached = true
			break
		}
		// Too few scores per round to ever reach the target within the
		// budget: stop early rather than burn the remaining rounds.
		if round >= 10 && found/cp.WantScores < float64(round)/float64(maxRounds) {
			break
		}
	}

	if cp.Verbose {
		bar.SetTotal(-1, true)
		pbs.Wait()
	}

	es := stats.CalcDistr(synth)
	if !es.Fitted() {
		return nil, false, errors.New("calibration produced no usable score distribution")
	}
	return es, reached, nil
}
