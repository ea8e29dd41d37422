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

// Package seqs provides block-wise sequence sources for the scanner: long
// sequences are served in bounded, overlapping segments so the DP matrices
// stay at a fixed size.
package seqs

import (
	"io"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/motiftools/mcast/mcast/motif"
)

// Segment is the working window of one sequence. Data holds the current
// block of raw symbols (no boundary pads); Offset is the coordinate of
// Data[0] in the logical sequence, including any genomic base parsed from
// the header.
type Segment struct {
	Name   string
	Offset int64
	Data   []byte
	Priors []float64 // optional per-position priors aligned with Data

	full       []byte
	fullPriors []float64
	base       int64
	lo, hi     int
}

// NewSegment wraps a complete in-memory sequence and serves its first block
// of at most maxChars symbols.
func NewSegment(name string, data []byte, base int64, priors []float64, maxChars int) *Segment {
	s := &Segment{Name: name, full: data, fullPriors: priors, base: base}
	s.hi = len(data)
	if maxChars > 0 && s.hi > maxChars {
		s.hi = maxChars
	}
	s.window()
	return s
}

func (s *Segment) window() {
	s.Data = s.full[s.lo:s.hi]
	if s.fullPriors != nil {
		s.Priors = s.fullPriors[s.lo:s.hi]
	}
	s.Offset = s.base + int64(s.lo)
}

// Complete reports whether this block reaches the end of the sequence.
func (s *Segment) Complete() bool { return s.hi == len(s.full) }

// Extend shifts the trailing overlap symbols of the current block to the
// front and refills the block up to maxChars symbols. It returns the number
// of symbols removed from the front, the amount the caller's search cursor
// must move back by.
func (s *Segment) Extend(maxChars, overlap int) int {
	removed := (s.hi - s.lo) - overlap
	if removed < 0 {
		removed = 0
	}
	s.lo += removed
	s.hi = s.lo + maxChars
	if s.hi > len(s.full) {
		s.hi = len(s.full)
	}
	s.window()
	return removed
}

// Fresh returns the number of symbols in the current block that were not
// part of the previous block (the whole block for the first one).
func (s *Segment) Fresh(overlap int) int {
	if s.lo == 0 {
		return s.hi - s.lo
	}
	return s.hi - s.lo - overlap
}

// Prepare encodes the current block into symbol indices with the artificial
// boundary wildcard prepended and appended, reusing dst.
func (s *Segment) Prepare(dst []byte, hardMask bool) []byte {
	dst = dst[:0]
	dst = append(dst, motif.IdxWildcard)
	for _, b := range s.Data {
		dst = append(dst, byte(motif.Index(b, hardMask)))
	}
	return append(dst, motif.IdxWildcard)
}

// GCPrefix fills prefix sums of G/C counts over the padded index-encoded
// block: dst[i] = number of G/C symbols among iseq[:i].
func GCPrefix(iseq []byte, dst []int32) []int32 {
	dst = dst[:0]
	dst = append(dst, 0)
	var n int32
	for _, a := range iseq {
		if a == motif.IdxC || a == motif.IdxG {
			n++
		}
		dst = append(dst, n)
	}
	return dst
}

// GCWindow returns the GC fraction of iseq[start:end] from prefix sums.
func GCWindow(prefix []int32, start, end int) float64 {
	if end <= start {
		return 0
	}
	return float64(prefix[end]-prefix[start]) / float64(end-start)
}

// Source yields sequences block by block.
type Source interface {
	// Next returns the first block (at most maxChars symbols) of the next
	// sequence, or nil when the input is exhausted.
	Next(maxChars int) (*Segment, error)
}

// genomic coordinates in UCSC-style headers: name:start-end
var reGenomicCoord = regexp.MustCompile(`^(.+):(\d+)-(\d+)$`)

// FastaSource reads sequences from a FASTA file (possibly gzipped, "-" for
// stdin) and serves them in blocks.
type FastaSource struct {
	reader            *fastx.Reader
	parseGenomicCoord bool
	priors            *PriorSource
}

// NewFastaSource opens a FASTA file. When parseGenomicCoord is set, headers
// like ">chr1:1000-2000" place the sequence at genomic offset 999 (headers
// are 1-based).
func NewFastaSource(file string, parseGenomicCoord bool) (*FastaSource, error) {
	seq.ValidateSeq = false
	reader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return &FastaSource{reader: reader, parseGenomicCoord: parseGenomicCoord}, nil
}

// AttachPriors overlays position-specific priors onto sequences read from
// this source, matched by sequence name.
func (f *FastaSource) AttachPriors(p *PriorSource) { f.priors = p }

// Next implements Source.
func (f *FastaSource) Next(maxChars int) (*Segment, error) {
	record, err := f.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	name := string(record.ID)
	var base int64
	if f.parseGenomicCoord {
		if sub := reGenomicCoord.FindStringSubmatch(name); sub != nil {
			if start, err := strconv.ParseInt(sub[2], 10, 64); err == nil && start > 0 {
				base = start - 1
			}
		}
	}

	// The record buffer is reused by the reader, so the block must own its
	// symbols for the lifetime of the scan of this sequence.
	data := make([]byte, len(record.Seq.Seq))
	copy(data, record.Seq.Seq)

	var priors []float64
	if f.priors != nil {
		priors = f.priors.For(name, len(data))
	}
	return NewSegment(name, data, base, priors, maxChars), nil
}

// Close releases the underlying reader.
func (f *FastaSource) Close() error {
	f.reader.Close()
	return nil
}

// MemSource serves in-memory sequences; the synthetic calibrator and tests
// use it so that generated sequences go through the exact same block
// protocol as file-backed ones.
type MemSource struct {
	names []string
	datas [][]byte
	bases []int64
	i     int
}

// NewMemSource creates an empty in-memory source.
func NewMemSource() *MemSource { return &MemSource{} }

// Add appends one sequence.
func (m *MemSource) Add(name string, data []byte, base int64) {
	m.names = append(m.names, name)
	m.datas = append(m.datas, data)
	m.bases = append(m.bases, base)
}

// Next implements Source.
func (m *MemSource) Next(maxChars int) (*Segment, error) {
	if m.i >= len(m.datas) {
		return nil, nil
	}
	i := m.i
	m.i++
	return NewSegment(m.names[i], m.datas[i], m.bases[i], nil, maxChars), nil
}
