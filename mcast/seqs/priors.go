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

package seqs

import (
	"bufio"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// PriorSource holds position-specific priors keyed by sequence name.
// Positions without an explicit value get the default prior (the median of
// the prior distribution file).
type PriorSource struct {
	byName       map[string][]float64
	DefaultPrior float64
}

// For returns a prior overlay of the given length for a sequence, filling
// missing positions (or whole missing sequences) with the default prior.
func (p *PriorSource) For(name string, length int) []float64 {
	out := make([]float64, length)
	vals := p.byName[name]
	for i := range out {
		if i < len(vals) && vals[i] > 0 {
			out[i] = vals[i]
		} else {
			out[i] = p.DefaultPrior
		}
	}
	return out
}

// ReadPriorDist reads a prior distribution file (one probability per line)
// and returns the median, used as the default prior.
func ReadPriorDist(file string) (float64, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return 0, errors.Wrap(err, file)
	}
	defer fh.Close()

	var vals []float64
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "%s: bad prior value %q", file, line)
		}
		vals = append(vals, v)
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, file)
	}
	if len(vals) == 0 {
		return 0, errors.Errorf("%s: empty prior distribution", file)
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2], nil
	}
	return (vals[n/2-1] + vals[n/2]) / 2, nil
}

// ReadPSP reads plain position-specific prior files: FASTA-like headers
// followed by whitespace-separated prior values, one per sequence position.
// When parseGenomicCoord is set the coordinate suffix of the header is kept
// as-is so names match the sequence reader's.
func ReadPSP(file string, defaultPrior float64) (*PriorSource, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	ps := &PriorSource{byName: make(map[string][]float64), DefaultPrior: defaultPrior}
	var name string
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			name = strings.Fields(line[1:])[0]
			continue
		}
		if name == "" {
			return nil, errors.Errorf("%s: prior values before any sequence header", file)
		}
		for _, f := range strings.Fields(line) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: bad prior for %s", file, name)
			}
			ps.byName[name] = append(ps.byName[name], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, file)
	}
	return ps, nil
}

// ReadWIG reads priors from a wiggle file supporting fixedStep and
// variableStep tracks with step/span of 1.
func ReadWIG(file string, defaultPrior float64) (*PriorSource, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	defer fh.Close()

	ps := &PriorSource{byName: make(map[string][]float64), DefaultPrior: defaultPrior}
	var (
		chrom    string
		pos      int // 0-based next position for fixedStep
		step     = 1
		variable bool
	)

	set := func(chrom string, pos int, v float64) {
		vals := ps.byName[chrom]
		for len(vals) <= pos {
			vals = append(vals, 0)
		}
		vals[pos] = v
		ps.byName[chrom] = vals
	}

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "fixedStep", "variableStep":
			variable = fields[0] == "variableStep"
			step = 1
			pos = 0
			for _, f := range fields[1:] {
				kv := strings.SplitN(f, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch kv[0] {
				case "chrom":
					chrom = kv[1]
				case "start":
					n, err := strconv.Atoi(kv[1])
					if err != nil {
						return nil, errors.Wrapf(err, "%s: bad start", file)
					}
					pos = n - 1 // wiggle is 1-based
				case "step":
					n, err := strconv.Atoi(kv[1])
					if err != nil {
						return nil, errors.Wrapf(err, "%s: bad step", file)
					}
					step = n
				}
			}
			continue
		}
		if chrom == "" {
			return nil, errors.Errorf("%s: data before any track declaration", file)
		}
		if variable {
			if len(fields) < 2 {
				return nil, errors.Errorf("%s: variableStep line needs position and value", file)
			}
			p, err1 := strconv.Atoi(fields[0])
			v, err2 := strconv.ParseFloat(fields[1], 64)
			if err1 != nil || err2 != nil {
				return nil, errors.Errorf("%s: bad variableStep line %q", file, line)
			}
			set(chrom, p-1, v)
		} else {
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: bad fixedStep value", file)
			}
			set(chrom, pos, v)
			pos += step
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, file)
	}
	return ps, nil
}
