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

package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/motiftools/mcast/mcast/scan"
)

type threshKind int

const (
	threshEvalue threshKind = iota
	threshPvalue
	threshQvalue
)

func (k threshKind) String() string {
	switch k {
	case threshPvalue:
		return "p-value <="
	case threshQvalue:
		return "q-value <="
	default:
		return "E-value <="
	}
}

// outputThreshold decides at write time which matches are reported.
type outputThreshold struct {
	kind  threshKind
	value float64
}

func (t outputThreshold) pass(m *scan.Match) bool {
	switch t.kind {
	case threshPvalue:
		return m.Pvalue <= t.value
	case threshQvalue:
		return m.Qvalue <= t.value
	default:
		return m.Evalue <= t.value
	}
}

func countPassing(matches []*scan.Match, t outputThreshold) int {
	n := 0
	for _, m := range matches {
		if t.pass(m) {
			n++
		}
	}
	return n
}

// gffScore converts a p-value to the conventional 0-1000 display score.
func gffScore(pvalue float64) int {
	if math.IsNaN(pvalue) || pvalue <= 0 {
		return 1000
	}
	s := int(-4.342 * math.Log(pvalue))
	if s > 1000 {
		s = 1000
	}
	if s < 0 {
		s = 0
	}
	return s
}

// writeTSV writes one line per reported match, coordinates 1-based
// inclusive. file "-" writes to stdout.
func writeTSV(file string, matches []*scan.Match, t outputThreshold, gzipped bool) error {
	outfh, gw, w, err := outStream(file, gzipped, -1)
	if err != nil {
		return err
	}
	defer func() {
		outfh.Flush()
		if gw != nil {
			gw.Close()
		}
		if !isStdin(file) {
			w.Close()
		}
	}()

	fmt.Fprint(outfh, "#sequence_name\tstart\tstop\tscore\tp-value\tE-value\tq-value\tsequence\n")
	for _, m := range matches {
		if !t.pass(m) {
			continue
		}
		fmt.Fprintf(outfh, "%s\t%d\t%d\t%.4f\t%.3g\t%.3g\t%.3g\t%s\n",
			m.SeqName, m.Start+1, m.Stop+1, m.Score, m.Pvalue, m.Evalue, m.Qvalue,
			strings.ToUpper(m.Sequence))
	}
	return nil
}

// writeGFF writes GFF3: one nucleotide_motif row per match, with its motif
// hits as child rows.
func writeGFF(file string, matches []*scan.Match, t outputThreshold) error {
	outfh, gw, w, err := outStream(file, false, -1)
	if err != nil {
		return err
	}
	defer func() {
		outfh.Flush()
		if gw != nil {
			gw.Close()
		}
		w.Close()
	}()

	fmt.Fprint(outfh, "##gff-version 3\n")
	i := 0
	for _, m := range matches {
		if !t.pass(m) {
			continue
		}
		i++
		id := fmt.Sprintf("cluster-%d", i)
		fmt.Fprintf(outfh, "%s\tmcast\tnucleotide_motif\t%d\t%d\t%d\t.\t.\tID=%s;pvalue=%.3g;evalue=%.3g;qvalue=%.3g\n",
			m.SeqName, m.Start+1, m.Stop+1, gffScore(m.Pvalue), id, m.Pvalue, m.Evalue, m.Qvalue)
		for _, h := range m.Hits {
			fmt.Fprintf(outfh, "%s\tmcast\tnucleotide_motif\t%d\t%d\t%d\t%c\t.\tParent=%s;Name=%s;pvalue=%.3g\n",
				m.SeqName, h.Start+1, h.Stop+1, gffScore(h.Pvalue), h.Strand, id, h.MotifID, h.Pvalue)
		}
	}
	return nil
}

// writeBED writes half-open 0-based intervals of the reported matches.
func writeBED(file string, matches []*scan.Match, t outputThreshold) error {
	outfh, gw, w, err := outStream(file, false, -1)
	if err != nil {
		return err
	}
	defer func() {
		outfh.Flush()
		if gw != nil {
			gw.Close()
		}
		w.Close()
	}()

	i := 0
	for _, m := range matches {
		if !t.pass(m) {
			continue
		}
		i++
		fmt.Fprintf(outfh, "%s\t%d\t%d\tcluster-%d\t%d\t.\n",
			m.SeqName, m.Start, m.Stop+1, i, gffScore(m.Pvalue))
	}
	return nil
}

// runRecord is the serialized parameter/statistics record of one scan,
// written next to the match lists.
type runRecord struct {
	Version   string   `toml:"version"`
	MotifFile string   `toml:"motif_file"`
	SeqFiles  []string `toml:"sequence_files"`

	MotifPthresh    float64 `toml:"motif_pthresh"`
	MaxGap          int     `toml:"max_gap"`
	Alpha           float64 `toml:"alpha"`
	MaxStoredScores int     `toml:"max_stored_scores"`
	Seed            int64   `toml:"seed"`
	HardMask        bool    `toml:"hardmask"`
	ParseGenomic    bool    `toml:"parse_genomic_coord"`
	Threshold       string  `toml:"output_threshold"`
	DPThresh        float64 `toml:"match_score_threshold"`

	MotifsAccepted  int   `toml:"motifs_accepted"`
	MotifsSkipped   int   `toml:"motifs_skipped"`
	NumSeqs         int   `toml:"sequences"`
	TotalLength     int64 `toml:"total_length"`
	ScoresSeen      int   `toml:"candidate_matches"`
	MatchesReported int   `toml:"matches_reported"`
	GCBins          int   `toml:"gc_bins"`
}

func writeRunRecord(file string, rec *runRecord) error {
	outfh, gw, w, err := outStream(file, false, -1)
	if err != nil {
		return err
	}
	defer func() {
		outfh.Flush()
		if gw != nil {
			gw.Close()
		}
		w.Close()
	}()

	enc := toml.NewEncoder(outfh)
	return enc.Encode(rec)
}
