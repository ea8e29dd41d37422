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
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/motiftools/mcast/mcast/motif"
	"github.com/motiftools/mcast/mcast/scan"
)

// genseqCmd exposes the calibration sequence generator as a utility, handy
// for building test data and null sets.
var genseqCmd = &cobra.Command{
	Use:   "genseq",
	Short: "Generate random DNA sequences",
	Long: `Generate random DNA sequences

Sequences are drawn i.i.d. from an order-0 background, either a given GC
content (A=T=(1-gc)/2, C=G=gc/2) or a background model file. This is the
same generator the scan command calibrates against.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		closeLog := addLog(opt.LogFile, !opt.Verbose)
		defer closeLog()

		n := getFlagPositiveInt(cmd, "number")
		length := getFlagPositiveInt(cmd, "length")
		gc := getFlagNonNegativeFloat64(cmd, "gc")
		if gc > 1 {
			checkError(fmt.Errorf("value of flag --gc should be in [0, 1]"))
		}
		bgFile := getFlagString(cmd, "bfile")
		seed := getFlagInt64(cmd, "seed")
		lineWidth := getFlagPositiveInt(cmd, "line-width")
		outFile := getFlagString(cmd, "out-file")

		bg := motif.WithGC(gc)
		if bgFile != "" {
			var err error
			bg, err = motif.ReadBackground(bgFile)
			checkError(err)
		}

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			if !isStdin(outFile) {
				w.Close()
			}
		}()

		rng := rand.New(rand.NewSource(seed))
		var seq []byte
		for i := 1; i <= n; i++ {
			seq = scan.GenerateRandomSeq(seq, length, bg, rng)
			fmt.Fprintf(outfh, ">rand-%d\n", i)
			for p := 0; p < len(seq); p += lineWidth {
				e := p + lineWidth
				if e > len(seq) {
					e = len(seq)
				}
				outfh.Write(seq[p:e])
				outfh.WriteByte('\n')
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(genseqCmd)

	genseqCmd.Flags().IntP("number", "n", 1,
		formatFlagUsage(`Number of sequences.`))
	genseqCmd.Flags().IntP("length", "l", 1000,
		formatFlagUsage(`Length of each sequence.`))
	genseqCmd.Flags().Float64P("gc", "", 0.5,
		formatFlagUsage(`GC content of the background.`))
	genseqCmd.Flags().StringP("bfile", "b", "",
		formatFlagUsage(`Background model file, overrides --gc.`))
	genseqCmd.Flags().Int64P("seed", "s", 0,
		formatFlagUsage(`Random seed.`))
	genseqCmd.Flags().IntP("line-width", "w", 70,
		formatFlagUsage(`Line width of the sequence.`))
	genseqCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	genseqCmd.SetUsageTemplate(usageTemplate(""))
}
