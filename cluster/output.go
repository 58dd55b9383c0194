// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cluster

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/grailbio/base/tsv"
)

// Header describes the run in the optional comment lines at the top of a
// report.
type Header struct {
	Generated      time.Time
	QueryFile      string
	SizeScale      float64
	MinBlockHeight float64
	Merge          int
}

// Writer renders Reports as tab-separated text:
//   >cluster_N  chrom  start  end  strand  height  tags  blocks
// followed by either one line per qualifying block
//   number  chrom  start  end  strand  height  tags
// or one line per read of a qualifying block
//   chrom  start  end  id  height  strand  number
// Cluster numbers count reported clusters from 1.
type Writer struct {
	tsvw      *tsv.Writer
	mode      OutputMode
	nClusters int
}

// NewWriter returns a Writer which writes to w in the given mode.
func NewWriter(w io.Writer, mode OutputMode) *Writer {
	return &Writer{tsvw: tsv.NewWriter(w), mode: mode}
}

// NClusters returns the number of clusters written so far.
func (w *Writer) NClusters() int {
	return w.nClusters
}

func formatHeight(h float64, prec int) string {
	return strconv.FormatFloat(h, 'f', prec, 64)
}

// WriteHeader writes "#"-prefixed comment lines describing the run.
func (w *Writer) WriteHeader(h Header) error {
	w.tsvw.WriteString("# blockbuster result file generated " + h.Generated.Format(time.ANSIC))
	if err := w.tsvw.EndLine(); err != nil {
		return err
	}
	w.tsvw.WriteString("# query file: " + h.QueryFile)
	if err := w.tsvw.EndLine(); err != nil {
		return err
	}
	w.tsvw.WriteString(fmt.Sprintf("# scale: %.1f, minblockheight: %f, mergeDistance: %d", h.SizeScale, h.MinBlockHeight, h.Merge))
	if err := w.tsvw.EndLine(); err != nil {
		return err
	}
	if w.mode == OutputReads {
		w.tsvw.WriteString("# chromosome\tstart\tend\tread_id\theight\tstrand\tblock_number")
	} else {
		w.tsvw.WriteString("# block_number\tchromosome\tstart_of_block\tend_of_block\tstrand\theight\ttag_count")
	}
	return w.tsvw.EndLine()
}

// Write appends one cluster to the report.
func (w *Writer) Write(rep *Report) error {
	w.nClusters++
	t := w.tsvw
	t.WriteString(">cluster_" + strconv.Itoa(w.nClusters))
	t.WriteString(rep.Chrom)
	t.WriteInt64(int64(rep.Start))
	t.WriteInt64(int64(rep.End))
	t.WriteString(rep.Strand)
	t.WriteString(formatHeight(rep.Height, 2))
	t.WriteInt64(int64(rep.TagCount))
	t.WriteInt64(int64(len(rep.Blocks)))
	if err := t.EndLine(); err != nil {
		return err
	}
	switch w.mode {
	case OutputReads:
		for _, b := range rep.Blocks {
			for _, i := range b.Reads {
				r := &rep.Reads[i]
				t.WriteString(r.Chrom)
				t.WriteInt64(int64(r.Start))
				t.WriteInt64(int64(r.End))
				t.WriteString(r.ID)
				t.WriteString(formatHeight(r.Height, 6))
				t.WriteString(r.Strand)
				t.WriteInt64(int64(b.Number))
				if err := t.EndLine(); err != nil {
					return err
				}
			}
		}
	default:
		for _, b := range rep.Blocks {
			t.WriteInt64(int64(b.Number))
			t.WriteString(rep.Chrom)
			t.WriteInt64(int64(b.Start))
			t.WriteInt64(int64(b.End))
			t.WriteString(rep.Strand)
			t.WriteString(formatHeight(b.Height, 2))
			t.WriteInt64(int64(b.TagCount()))
			if err := t.EndLine(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.tsvw.Flush()
}
