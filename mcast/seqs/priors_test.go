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
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestReadPriorDist(t *testing.T) {
	file := writeTemp(t, "dist.txt", "# comment\n0.1\n0.3\n0.2\n")
	median, err := ReadPriorDist(file)
	if err != nil {
		t.Fatal(err)
	}
	if median != 0.2 {
		t.Errorf("odd-count median = %g, want 0.2", median)
	}

	file = writeTemp(t, "dist2.txt", "0.1\n0.2\n0.3\n0.4\n")
	median, err = ReadPriorDist(file)
	if err != nil {
		t.Fatal(err)
	}
	if median != 0.25 {
		t.Errorf("even-count median = %g, want 0.25", median)
	}

	file = writeTemp(t, "empty.txt", "# nothing here\n")
	if _, err = ReadPriorDist(file); err == nil {
		t.Error("empty distribution must fail")
	}
}

func TestReadPSP(t *testing.T) {
	file := writeTemp(t, "p.psp", ">chr1 some description\n0.1 0.2\n0.3\n>chr2\n0.5\n")
	ps, err := ReadPSP(file, 0.05)
	if err != nil {
		t.Fatal(err)
	}

	got := ps.For("chr1", 5)
	want := []float64{0.1, 0.2, 0.3, 0.05, 0.05} // default fills the tail
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chr1 prior[%d] = %g, want %g", i, got[i], want[i])
		}
	}

	// Unknown sequences get a flat default overlay.
	for i, v := range ps.For("chrX", 3) {
		if v != 0.05 {
			t.Errorf("chrX prior[%d] = %g, want default 0.05", i, v)
		}
	}
}

func TestReadPSPValuesBeforeHeader(t *testing.T) {
	file := writeTemp(t, "bad.psp", "0.1 0.2\n")
	if _, err := ReadPSP(file, 0.05); err == nil {
		t.Error("values before a header must fail")
	}
}

func TestReadWIG(t *testing.T) {
	wig := `track type=wiggle_0
fixedStep chrom=chr1 start=3 step=1
0.2
0.4
variableStep chrom=chr2
5 0.9
2 0.7
`
	ps, err := ReadWIG(writeTemp(t, "p.wig", wig), 0.05)
	if err != nil {
		t.Fatal(err)
	}

	got := ps.For("chr1", 5)
	// wiggle start is 1-based: values land on 0-based positions 2 and 3.
	want := []float64{0.05, 0.05, 0.2, 0.4, 0.05}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chr1 prior[%d] = %g, want %g", i, got[i], want[i])
		}
	}

	got = ps.For("chr2", 6)
	want = []float64{0.05, 0.7, 0.05, 0.05, 0.9, 0.05}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chr2 prior[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestReadWIGDataBeforeTrack(t *testing.T) {
	if _, err := ReadWIG(writeTemp(t, "bad.wig", "0.5\n"), 0.05); err == nil {
		t.Error("data before a track declaration must fail")
	}
}
