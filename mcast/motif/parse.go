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

package motif

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// MEMEFile holds the motifs and the background section of a MEME text file.
type MEMEFile struct {
	Version    string
	Alphabet   string
	Motifs     []*Motif
	Background Background
	HasBg      bool
}

// ReadMEMEFile reads motifs in MEME (minimal or full) text format from file,
// which may be gzipped.
func ReadMEMEFile(file string) (*MEMEFile, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()
	mf, err := ParseMEME(fh)
	return mf, errors.Wrap(err, file)
}

// ParseMEME parses MEME text format from r.
func ParseMEME(r io.Reader) (*MEMEFile, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	mf := &MEMEFile{Background: Uniform()}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "MEME version"):
			mf.Version = strings.TrimSpace(strings.TrimPrefix(line, "MEME version"))

		case strings.HasPrefix(line, "ALPHABET="):
			mf.Alphabet = strings.TrimSpace(strings.TrimPrefix(line, "ALPHABET="))
			if !isDNAAlphabet(mf.Alphabet) {
				return nil, errors.Errorf("the provided motifs don't seem to be in the DNA alphabet: %q", mf.Alphabet)
			}

		case strings.HasPrefix(line, "Background letter frequencies"):
			// Frequencies may span multiple lines: "A 0.3 C 0.2 G 0.2 T 0.3".
			var fields []string
			for i+1 < len(lines) && lines[i+1] != "" && !strings.HasPrefix(lines[i+1], "MOTIF") {
				i++
				fields = append(fields, strings.Fields(lines[i])...)
			}
			if err := parseBgFields(fields, &mf.Background); err != nil {
				return nil, err
			}
			mf.HasBg = true

		case strings.HasPrefix(line, "MOTIF"):
			m, n, err := parseMotifBlock(lines[i:])
			if err != nil {
				return nil, err
			}
			mf.Motifs = append(mf.Motifs, m)
			i += n - 1
		}
	}

	if len(mf.Motifs) == 0 {
		return nil, errors.New("no motifs found")
	}
	return mf, nil
}

func isDNAAlphabet(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s == "ACGT" || s == "DNA" || strings.HasPrefix(s, "ACGT")
}

func parseBgFields(fields []string, bg *Background) error {
	for i := 0; i+1 < len(fields); i += 2 {
		idx := Index(fields[i][0], false)
		if idx == IdxWildcard {
			continue
		}
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return errors.Wrapf(err, "bad background frequency for %s", fields[i])
		}
		bg[idx] = v
	}
	bg.Normalize()
	return nil
}

// parseMotifBlock parses one MOTIF block starting at block[0] (the "MOTIF ..."
// line) and returns the motif and the number of lines consumed.
func parseMotifBlock(block []string) (*Motif, int, error) {
	fields := strings.Fields(block[0])
	if len(fields) < 2 {
		return nil, 0, errors.Errorf("malformed MOTIF line: %q", block[0])
	}
	m := &Motif{ID: fields[1], Strand: '+', EValue: 1}
	if len(fields) > 2 {
		m.AltID = fields[2]
	}

	// Locate the letter-probability matrix header.
	i := 1
	for ; i < len(block); i++ {
		if strings.HasPrefix(block[i], "letter-probability matrix") {
			break
		}
		if strings.HasPrefix(block[i], "MOTIF") {
			return nil, 0, errors.Errorf("motif %s has no letter-probability matrix", m.ID)
		}
	}
	if i == len(block) {
		return nil, 0, errors.Errorf("motif %s has no letter-probability matrix", m.ID)
	}

	width := -1
	alength := NumCoreSymbols
	hdr := strings.Fields(block[i])
	for j := 0; j+1 < len(hdr); j++ {
		var err error
		switch hdr[j] {
		case "alength=":
			alength, err = strconv.Atoi(hdr[j+1])
		case "w=":
			width, err = strconv.Atoi(hdr[j+1])
		case "nsites=":
			m.NSites, err = strconv.Atoi(hdr[j+1])
		case "E=":
			m.EValue, err = strconv.ParseFloat(hdr[j+1], 64)
		}
		if err != nil {
			return nil, 0, errors.Wrapf(err, "motif %s: bad matrix header", m.ID)
		}
	}
	if alength != NumCoreSymbols {
		return nil, 0, errors.Errorf("motif %s: alphabet length %d, want %d (DNA)", m.ID, alength, NumCoreSymbols)
	}

	// Read matrix rows until the declared width (or until the rows stop).
	i++
	for ; i < len(block); i++ {
		line := block[i]
		if line == "" || strings.HasPrefix(line, "MOTIF") || strings.HasPrefix(line, "URL") {
			break
		}
		vals := strings.Fields(line)
		if len(vals) < NumCoreSymbols {
			break
		}
		var row [NumCoreSymbols]float64
		var sum float64
		for a := 0; a < NumCoreSymbols; a++ {
			v, err := strconv.ParseFloat(vals[a], 64)
			if err != nil {
				return nil, 0, errors.Wrapf(err, "motif %s: bad matrix row %d", m.ID, len(m.Freqs)+1)
			}
			row[a] = v
			sum += v
		}
		if sum > 0 { // tolerate rounding in published motifs
			for a := range row {
				row[a] /= sum
			}
		}
		m.Freqs = append(m.Freqs, row)
		if width > 0 && len(m.Freqs) == width {
			i++
			break
		}
	}
	if width > 0 && len(m.Freqs) != width {
		return nil, 0, errors.Errorf("motif %s: %d matrix rows, header declares w= %d", m.ID, len(m.Freqs), width)
	}
	return m, i, nil
}

// ReadBackground reads an order-0 background from a Markov background file:
// whitespace-separated "<word> <frequency>" rows, '#' comments. Rows for
// words longer than one symbol (higher-order models) are ignored; the spacer
// state emits zero log-odds, so only the order-0 marginals affect scoring.
func ReadBackground(file string) (Background, error) {
	bg := Uniform()
	fh, err := xopen.Ropen(file)
	if err != nil {
		return bg, errors.Wrap(err, file)
	}
	defer fh.Close()

	got := false
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 1 {
			continue
		}
		idx := Index(fields[0][0], false)
		if idx == IdxWildcard {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return bg, errors.Wrapf(err, "%s: bad frequency for %s", file, fields[0])
		}
		bg[idx] = v
		got = true
	}
	if err := scanner.Err(); err != nil {
		return bg, errors.Wrap(err, file)
	}
	if !got {
		return bg, errors.Errorf("%s: no single-letter frequencies found", file)
	}
	bg.Normalize()
	return bg, nil
}
