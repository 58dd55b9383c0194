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

// Block is one qualifying block of a reported cluster.
type Block struct {
	// Number is the block's 1-based position among the cluster's qualifying
	// blocks; Label is its decomposition label.
	Number int
	Label  int
	Start  int
	End    int
	Height float64
	// Reads indexes the member reads in Report.Reads, in input order.
	Reads []int
}

// TagCount returns the number of member reads.
func (b *Block) TagCount() int {
	return len(b.Reads)
}

// Report is a cluster that survived block filtering.  Its extent, height and
// tag count are rolled up over the qualifying blocks only.
type Report struct {
	Chrom    string
	Strand   string
	Start    int
	End      int
	Height   float64
	TagCount int
	Blocks   []Block
	Reads    []Read
}

// Aggregate recomputes per-block statistics from the decomposition labels,
// keeps blocks whose height is at least threshold, and rolls the cluster up
// over them.  It returns nil if no block qualifies or the rolled-up height
// does not exceed minClusterHeight.  Reads labeled Unassigned, or with a label
// outside 1..nBlocks, belong to no block.
func Aggregate(c *Cluster, labels []int, nBlocks int, threshold, minClusterHeight float64) *Report {
	type blockAcc struct {
		start, end int
		height     float64
		reads      []int
	}
	acc := make([]blockAcc, nBlocks+1)
	for i, label := range labels {
		if label < 1 || label > nBlocks {
			continue
		}
		r := &c.Reads[i]
		b := &acc[label]
		if len(b.reads) == 0 {
			b.start, b.end = r.Start, r.End
		} else {
			if r.Start < b.start {
				b.start = r.Start
			}
			if r.End > b.end {
				b.end = r.End
			}
		}
		b.height += r.Height
		b.reads = append(b.reads, i)
	}

	rep := &Report{
		Chrom:  c.Chrom,
		Strand: c.Strand,
		Reads:  c.Reads,
	}
	for label := 1; label <= nBlocks; label++ {
		b := &acc[label]
		if len(b.reads) == 0 || !(b.height >= threshold) {
			continue
		}
		if len(rep.Blocks) == 0 {
			rep.Start, rep.End = b.start, b.end
		} else {
			if b.start < rep.Start {
				rep.Start = b.start
			}
			if b.end > rep.End {
				rep.End = b.end
			}
		}
		rep.Height += b.height
		rep.TagCount += len(b.reads)
		rep.Blocks = append(rep.Blocks, Block{
			Number: len(rep.Blocks) + 1,
			Label:  label,
			Start:  b.start,
			End:    b.end,
			Height: b.height,
			Reads:  b.reads,
		})
	}
	if len(rep.Blocks) == 0 || !(rep.Height > minClusterHeight) {
		return nil
	}
	return rep
}
