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
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"

	"github.com/motiftools/mcast/mcast/hmm"
	"github.com/motiftools/mcast/mcast/motif"
	"github.com/motiftools/mcast/mcast/scan"
	"github.com/motiftools/mcast/mcast/seqs"
	"github.com/motiftools/mcast/mcast/stats"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Search sequences for clusters of motif occurrences",
	Long: `Search sequences for clusters of motif occurrences

mcast scan reads motifs in MEME text format and searches DNA sequences for
statistically significant clusters of non-overlapping motif occurrences,
on both strands. Matches are scored with a motif-based hidden Markov model,
and their significance is calibrated against synthetic sequences with the
same GC content range as the real matches.

Attention:
  1. Sequence file arguments may be FASTA files (plain or gzipped) or
     directories of FASTA files.
  2. --psp and --prior-dist must be given together.
  3. Only one of --output-ethresh, --output-pthresh and --output-qthresh
     may be given.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false
		closeLog := addLog(opt.LogFile, !opt.Verbose)
		defer closeLog()

		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
		}()

		// ------------------------------------------------------------------
		// flags

		motifFile := getFlagString(cmd, "motifs")
		if motifFile == "" {
			checkError(fmt.Errorf("flag -m/--motifs needed"))
		}

		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		text := getFlagBool(cmd, "text")

		hardMask := getFlagBool(cmd, "hardmask")
		parseGenomicCoord := getFlagBool(cmd, "parse-genomic-coord")

		bgFile := getFlagString(cmd, "bfile")
		pspFile := getFlagString(cmd, "psp")
		priorDistFile := getFlagString(cmd, "prior-dist")
		alpha := getFlagPositiveFloat64(cmd, "alpha")
		if alpha > 1 {
			checkError(fmt.Errorf("value of flag --alpha should be in (0, 1]"))
		}
		if (pspFile == "") != (priorDistFile == "") {
			checkError(fmt.Errorf("--psp and --prior-dist must be given together"))
		}

		motifPthresh := getFlagPositiveFloat64(cmd, "motif-pthresh")
		if motifPthresh > 1 {
			checkError(fmt.Errorf("value of flag --motif-pthresh should be in (0, 1]"))
		}
		maxGap := getFlagNonNegativeInt(cmd, "max-gap")
		maxTotalWidth := getFlagNonNegativeInt(cmd, "max-total-width")
		if maxTotalWidth == 0 {
			maxTotalWidth = -1 // no cap
		}
		maxStoredScores := getFlagPositiveInt(cmd, "max-stored-scores")
		seed := getFlagInt64(cmd, "seed")

		nThresh := 0
		for _, f := range []string{"output-ethresh", "output-pthresh", "output-qthresh"} {
			if cmd.Flags().Changed(f) {
				nThresh++
			}
		}
		if nThresh > 1 {
			checkError(fmt.Errorf("only one of --output-ethresh, --output-pthresh and --output-qthresh may be given"))
		}
		thresh := outputThreshold{kind: threshEvalue, value: getFlagPositiveFloat64(cmd, "output-ethresh")}
		switch {
		case cmd.Flags().Changed("output-pthresh"):
			thresh = outputThreshold{kind: threshPvalue, value: getFlagPositiveFloat64(cmd, "output-pthresh")}
		case cmd.Flags().Changed("output-qthresh"):
			thresh = outputThreshold{kind: threshQvalue, value: getFlagPositiveFloat64(cmd, "output-qthresh")}
		}

		if len(args) == 0 {
			checkError(fmt.Errorf("sequence files or directories needed"))
		}
		seqFiles, err := getSeqFiles(args, opt.NumCPUs)
		checkError(err)

		// ------------------------------------------------------------------
		// motifs and model

		if opt.Verbose || opt.Log2File {
			log.Infof("mcast v%s", VERSION)
			log.Info()
			log.Infof("reading motifs from %s ...", motifFile)
		}

		memeFile, err := motif.ReadMEMEFile(motifFile)
		checkError(err)

		fr, err := motif.Filter(memeFile.Motifs, maxTotalWidth)
		checkError(err)

		bg := motif.Uniform()
		if memeFile.HasBg {
			bg = memeFile.Background
		}

		h, err := hmm.BuildStar(fr.Motifs, bg)
		checkError(err)

		// A --bfile background replaces the motif-file background; the swap
		// must precede the log-odds conversion.
		if bgFile != "" {
			bg2, err := motif.ReadBackground(bgFile)
			checkError(err)
			checkError(h.SetBackground(bg2))
		}

		sp := hmm.ComputeScoreParams(h, motifPthresh, maxGap, 1.0)
		h.ToLog()

		if opt.Verbose || opt.Log2File {
			log.Infof("  %d motifs accepted (%d branches, %d states)",
				len(fr.Motifs)/2, len(h.Branches), h.NumStates())
			log.Infof("  match score threshold: %.4f, gap penalty per symbol: %.6f",
				sp.DPThresh, sp.GapExtend)
		}

		// priors
		var priorSrc *seqs.PriorSource
		var defaultPrior float64
		if pspFile != "" {
			defaultPrior, err = seqs.ReadPriorDist(priorDistFile)
			checkError(err)
			if strings.HasSuffix(strings.ToLower(pspFile), ".wig") {
				priorSrc, err = seqs.ReadWIG(pspFile, defaultPrior)
			} else {
				priorSrc, err = seqs.ReadPSP(pspFile, defaultPrior)
			}
			checkError(err)
		}

		params := scan.Params{
			MotifPthresh:    motifPthresh,
			MaxGap:          maxGap,
			DPThresh:        sp.DPThresh,
			GapExtend:       sp.GapExtend,
			Alpha:           alpha,
			DefaultPrior:    defaultPrior,
			HardMask:        hardMask,
			MaxStoredScores: maxStoredScores,
		}
		sess, weak, err := scan.NewSession(h, params)
		checkError(err)
		for _, id := range weak {
			log.Warningf("motif %s: best possible p-value is above --motif-pthresh %g, it can never produce a hit",
				id, motifPthresh)
		}

		// output directory is created before any scanning begins
		if !text {
			makeOutDir(outDir, force, "--out-dir", opt.Verbose)
		}

		// ------------------------------------------------------------------
		// scan

		st := scan.NewScanState(maxStoredScores)
		rng := rand.New(rand.NewSource(seed))

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("scanning %d sequence file(s) ...", len(seqFiles))
		}
		for _, file := range seqFiles {
			src, err := seqs.NewFastaSource(file, parseGenomicCoord)
			checkError(err)
			if priorSrc != nil {
				src.AttachPriors(priorSrc)
			}
			checkError(sess.ScanSource(src, st, rng))
			checkError(src.Close())
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d sequences (%d bp) in %d block(s), %d candidate matches, %d stored",
				st.NumSeqs, st.Scores.TotalLength, st.NumSegments, st.Scores.NumScoresSeen, st.Heap.Len())
			if st.NumPurges > 0 {
				log.Infof("  match store purged %d time(s); matches with p-value >= %.3g were dropped",
					st.NumPurges, st.MinPvalueDiscarded)
			}
		}

		matches := st.Heap.Drain()

		// ------------------------------------------------------------------
		// calibration and significance

		var evd *stats.EVDSet
		if len(matches) > 0 {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Info("calibrating score distribution on synthetic sequences ...")
			}
			cp := scan.DefaultCalibrationParams()
			cp.Verbose = opt.Verbose && !opt.Log2File
			var reached bool
			evd, reached, err = sess.Calibrate(st.Scores, cp, rng)
			checkError(err)
			if !reached {
				log.Warning("calibration stopped short of its score target; p-values will be less accurate")
			}
			evd.N = st.Scores.NumScoresSeen

			assignSignificance(matches, evd, st.Scores, sp.DPThresh, rng)
		}

		// discard what can no longer be ranked fairly against purged matches
		if st.MinPvalueDiscarded < 1 {
			kept := matches[:0]
			for _, m := range matches {
				if m.Pvalue < st.MinPvalueDiscarded {
					kept = append(kept, m)
				}
			}
			matches = kept
		}

		// ------------------------------------------------------------------
		// output

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("writing %d matches (%s %g) ...", countPassing(matches, thresh), thresh.kind, thresh.value)
		}
		if text {
			checkError(writeTSV("-", matches, thresh, false))
		} else {
			checkError(writeTSV(filepath.Join(outDir, "mcast.tsv"), matches, thresh, false))
			checkError(writeGFF(filepath.Join(outDir, "mcast.gff"), matches, thresh))
			checkError(writeBED(filepath.Join(outDir, "mcast.bed"), matches, thresh))
			checkError(writeRunRecord(filepath.Join(outDir, "mcast.toml"), &runRecord{
				Version:         VERSION,
				MotifFile:       motifFile,
				SeqFiles:        seqFiles,
				MotifPthresh:    motifPthresh,
				MaxGap:          maxGap,
				Alpha:           alpha,
				MaxStoredScores: maxStoredScores,
				Seed:            seed,
				HardMask:        hardMask,
				ParseGenomic:    parseGenomicCoord,
				Threshold:       fmt.Sprintf("%s %g", thresh.kind, thresh.value),
				DPThresh:        sp.DPThresh,
				MotifsAccepted:  len(fr.Motifs) / 2,
				MotifsSkipped:   fr.SkippedNarrow + fr.SkippedTotalWidth,
				NumSeqs:         st.NumSeqs,
				TotalLength:     st.Scores.TotalLength,
				ScoresSeen:      st.Scores.NumScoresSeen,
				MatchesReported: countPassing(matches, thresh),
				GCBins:          numGCBins(evd),
			}))
		}

		// data-quality skips are reported at the end, not buried mid-run
		if fr.SkippedNarrow > 0 {
			log.Warningf("%d motif(s) skipped: width < 2", fr.SkippedNarrow)
		}
		if fr.SkippedTotalWidth > 0 {
			log.Warningf("%d motif(s) skipped: total motif width cap %d exceeded", fr.SkippedTotalWidth, maxTotalWidth)
		}
	},
}

// assignSignificance computes the final p-values, E-values and q-values of
// the retained matches from the calibrated distribution, then orders them by
// p-value.
func assignSignificance(matches []*scan.Match, evd *stats.EVDSet, scores *stats.ScoreSet, dpThresh float64, rng *rand.Rand) {
	for _, m := range matches {
		m.GCBin = evd.Bin(m.GC)
		m.Pvalue = evd.Pvalue(m.Score-dpThresh, m.GC)
		m.Evalue = m.Pvalue * float64(evd.N)
		if m.Evalue < 1 {
			evd.Outliers++
			evd.SumLogE += math.Log(m.Evalue)
			if math.IsInf(evd.MinE, 0) || evd.MinE == 0 || m.Evalue < evd.MinE {
				evd.MinE = m.Evalue
			}
		}
	}

	sorts.Quicksort(byPvalue(matches))

	pvalues := make([]float64, len(matches))
	for i, m := range matches {
		pvalues[i] = m.Pvalue
	}
	sampled := make([]float64, scores.N())
	for i, sc := range scores.Scores {
		sampled[i] = evd.Pvalue(sc.S, sc.GC)
	}
	qvalues := stats.Qvalues(pvalues, sampled, scores.NumScoresSeen, rng)
	for i, m := range matches {
		m.Qvalue = qvalues[i]
	}
}

type byPvalue []*scan.Match

func (s byPvalue) Len() int      { return len(s) }
func (s byPvalue) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byPvalue) Less(i, j int) bool {
	a, b := s[i], s[j]
	if a.Pvalue != b.Pvalue {
		return a.Pvalue < b.Pvalue
	}
	if a.SeqName != b.SeqName {
		return a.SeqName < b.SeqName
	}
	return a.Start < b.Start
}

var _ sort.Interface = byPvalue(nil)

func numGCBins(evd *stats.EVDSet) int {
	if evd == nil {
		return 0
	}
	return len(evd.EVDs)
}

func init() {
	RootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("motifs", "m", "",
		formatFlagUsage(`Motif file in MEME text format (required).`))

	scanCmd.Flags().StringP("out-dir", "o", "mcast_out",
		formatFlagUsage(`Output directory.`))
	scanCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))
	scanCmd.Flags().BoolP("text", "", false,
		formatFlagUsage(`Write tab-separated matches to stdout instead of an output directory.`))

	scanCmd.Flags().Float64P("motif-pthresh", "p", 0.0005,
		formatFlagUsage(`P-value threshold for a single motif hit.`))
	scanCmd.Flags().IntP("max-gap", "g", 50,
		formatFlagUsage(`Maximum gap (in bp) between motif hits of one match.`))
	scanCmd.Flags().IntP("max-total-width", "", 0,
		formatFlagUsage(`Skip motifs once the cumulative motif width exceeds this cap. 0 for no cap.`))

	scanCmd.Flags().Float64P("output-ethresh", "e", 10.0,
		formatFlagUsage(`Report matches with E-value up to this value.`))
	scanCmd.Flags().Float64P("output-pthresh", "", 1.0,
		formatFlagUsage(`Report matches with p-value up to this value. Excludes --output-ethresh/--output-qthresh.`))
	scanCmd.Flags().Float64P("output-qthresh", "", 1.0,
		formatFlagUsage(`Report matches with q-value up to this value. Excludes --output-ethresh/--output-pthresh.`))

	scanCmd.Flags().IntP("max-stored-scores", "", 100000,
		formatFlagUsage(`Maximum number of matches stored in memory; the worse half is dropped when full.`))
	scanCmd.Flags().Int64P("seed", "s", 0,
		formatFlagUsage(`Random seed for reservoir sampling and calibration.`))

	scanCmd.Flags().StringP("bfile", "b", "",
		formatFlagUsage(`Background model file (order-0 letter frequencies). Defaults to the motif-file background.`))
	scanCmd.Flags().StringP("psp", "", "",
		formatFlagUsage(`Position-specific prior file (plain PSP or .wig). Requires --prior-dist.`))
	scanCmd.Flags().StringP("prior-dist", "", "",
		formatFlagUsage(`Prior distribution file giving the default prior. Requires --psp.`))
	scanCmd.Flags().Float64P("alpha", "a", 1.0,
		formatFlagUsage(`Weight of position-specific priors, in (0, 1].`))

	scanCmd.Flags().BoolP("hardmask", "", false,
		formatFlagUsage(`Treat lowercase (repeat-masked) sequence as wildcards.`))
	scanCmd.Flags().BoolP("parse-genomic-coord", "", false,
		formatFlagUsage(`Parse genomic coordinates from sequence headers like "chr1:1000-2000".`))

	scanCmd.SetUsageTemplate(usageTemplate("-m <motif file> [flags] <seq files/dirs>"))
}
