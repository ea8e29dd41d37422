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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/motiftools/mcast/mcast/motif"
)

func TestSegmentBlocks(t *testing.T) {
	data := []byte("ACGTACGTAC") // 10 symbols
	s := NewSegment("s", data, 0, nil, 6)

	if s.Complete() {
		t.Fatal("first block of a 10-symbol sequence with maxChars 6 cannot be complete")
	}
	if string(s.Data) != "ACGTAC" || s.Offset != 0 {
		t.Fatalf("first block: %q offset %d", s.Data, s.Offset)
	}
	if got := s.Fresh(2); got != 6 {
		t.Errorf("Fresh of first block = %d, want 6", got)
	}

	removed := s.Extend(6, 2)
	if removed != 4 {
		t.Errorf("Extend removed %d symbols, want 4", removed)
	}
	if string(s.Data) != "ACGTAC" || s.Offset != 4 {
		t.Fatalf("second block: %q offset %d", s.Data, s.Offset)
	}
	if !s.Complete() {
		t.Error("second block reaches the sequence end")
	}
	if got := s.Fresh(2); got != 4 {
		t.Errorf("Fresh of second block = %d, want 4", got)
	}
}

func TestSegmentGenomicBase(t *testing.T) {
	s := NewSegment("chr1:100-120", []byte("ACGTACGT"), 99, nil, 0)
	if s.Offset != 99 {
		t.Errorf("Offset = %d, want 99", s.Offset)
	}
}

func TestPrepare(t *testing.T) {
	s := NewSegment("s", []byte("ACgTN"), 0, nil, 0)

	iseq := s.Prepare(nil, false)
	want := []byte{motif.IdxWildcard, motif.IdxA, motif.IdxC, motif.IdxG, motif.IdxT, motif.IdxWildcard, motif.IdxWildcard}
	if !bytes.Equal(iseq, want) {
		t.Errorf("Prepare soft = %v, want %v", iseq, want)
	}

	iseq = s.Prepare(iseq, true)
	if iseq[3] != motif.IdxWildcard {
		t.Errorf("hard masking left lowercase g as %d", iseq[3])
	}
	if len(iseq) != len(s.Data)+2 {
		t.Errorf("padded length = %d", len(iseq))
	}
}

func TestGCPrefix(t *testing.T) {
	s := NewSegment("s", []byte("ACGTGG"), 0, nil, 0)
	iseq := s.Prepare(nil, false)
	pre := GCPrefix(iseq, nil)

	if len(pre) != len(iseq)+1 {
		t.Fatalf("prefix length = %d", len(pre))
	}
	// whole padded block: C,G,G,G among 8 symbols
	if gc := GCWindow(pre, 0, len(iseq)); gc != 0.5 {
		t.Errorf("GC of whole block = %g, want 0.5", gc)
	}
	// symbols 1..4 (ACGT): 2 of 4
	if gc := GCWindow(pre, 1, 5); gc != 0.5 {
		t.Errorf("GC of ACGT = %g, want 0.5", gc)
	}
	if gc := GCWindow(pre, 3, 3); gc != 0 {
		t.Errorf("empty window GC = %g", gc)
	}
}

func TestFastaSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.fa")
	fasta := ">chr1:1000-1019\nACGTACGTAC\nGTACGTACGT\n>plain desc here\nTTTT\n"
	if err := os.WriteFile(file, []byte(fasta), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := NewFastaSource(file, true)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	seg, err := src.Next(0)
	if err != nil {
		t.Fatal(err)
	}
	if seg == nil {
		t.Fatal("no first sequence")
	}
	if seg.Name != "chr1:1000-1019" {
		t.Errorf("name = %q", seg.Name)
	}
	if seg.Offset != 999 {
		t.Errorf("genomic offset = %d, want 999 (1-based header)", seg.Offset)
	}
	if len(seg.Data) != 20 || !seg.Complete() {
		t.Errorf("data = %q complete = %v", seg.Data, seg.Complete())
	}

	seg, err = src.Next(0)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Name != "plain" || seg.Offset != 0 {
		t.Errorf("second record: name=%q offset=%d", seg.Name, seg.Offset)
	}

	seg, err = src.Next(0)
	if err != nil || seg != nil {
		t.Errorf("expected end of input, got %v %v", seg, err)
	}
}

func TestFastaSourceNoGenomicParsing(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.fa")
	if err := os.WriteFile(file, []byte(">chr1:1000-1019\nACGT\n"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := NewFastaSource(file, false)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	seg, err := src.Next(0)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Offset != 0 {
		t.Errorf("offset parsed without --parse-genomic-coord: %d", seg.Offset)
	}
}

func TestMemSource(t *testing.T) {
	src := NewMemSource()
	src.Add("a", []byte("ACGT"), 0)
	src.Add("b", []byte("GGGG"), 10)

	seg, _ := src.Next(0)
	if seg.Name != "a" || string(seg.Data) != "ACGT" {
		t.Errorf("first: %q %q", seg.Name, seg.Data)
	}
	seg, _ = src.Next(0)
	if seg.Name != "b" || seg.Offset != 10 {
		t.Errorf("second: %q offset %d", seg.Name, seg.Offset)
	}
	if seg, _ := src.Next(0); seg != nil {
		t.Error("source not exhausted")
	}
}
