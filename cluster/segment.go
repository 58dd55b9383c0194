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
	"github.com/grailbio/base/log"
)

// Read is one tag taking part in clustering.  Start and End are inclusive.
// Its fields mirror tagfile.Record, so records convert directly.
type Read struct {
	Chrom  string
	Start  int
	End    int
	ID     string
	Height float64
	Strand string
}

// Cluster is a maximal run of reads on one chrom/strand whose consecutive
// members are at most Opts.Distance apart.
type Cluster struct {
	Chrom  string
	Strand string
	// Start is the smallest read start, End the largest read end.
	Start  int
	End    int
	Height float64
	Reads  []Read
}

// TagCount returns the number of member reads.
func (c *Cluster) TagCount() int {
	return len(c.Reads)
}

// Builder partitions a chrom/strand/position-sorted read stream into
// clusters.  Only one cluster is open at a time; Add returns the previous
// cluster once a read breaks contiguity and the previous cluster passes the
// height and span tests.
type Builder struct {
	distance  int
	minHeight float64
	maxSpan   int
	m         *Metrics

	cur       Cluster
	open      bool
	lastStart int
	lastEnd   int
	warned    bool
}

// NewBuilder returns a Builder configured from opts.  Dropped clusters and
// unsorted reads are counted in m.
func NewBuilder(opts *Opts, m *Metrics) *Builder {
	maxSpan := opts.MaxClusterSpan
	if maxSpan <= 0 {
		maxSpan = MaxClusterSpan
	}
	return &Builder{
		distance:  opts.Distance,
		minHeight: opts.MinClusterHeight,
		maxSpan:   maxSpan,
		m:         m,
	}
}

// continues reports whether r extends the open cluster.  lastEnd is the end
// of the most recently added read, not the cluster's max end.
func (b *Builder) continues(r *Read) bool {
	return b.open && r.Chrom == b.cur.Chrom && r.Strand == b.cur.Strand && r.Start-b.lastEnd <= b.distance
}

// Add appends r to the open cluster, or seals the open cluster and starts a
// new one seeded by r.  The sealed cluster is returned if it qualifies for
// decomposition, nil otherwise.
func (b *Builder) Add(r Read) *Cluster {
	if b.continues(&r) {
		if r.Start < b.lastStart {
			b.m.UnsortedReads++
			if !b.warned {
				log.Error.Printf("input is not sorted by position: %s:%d(%s) follows start %d; clusters may be fragmented",
					r.Chrom, r.Start, r.Strand, b.lastStart)
				b.warned = true
			}
		}
		if r.Start < b.cur.Start {
			b.cur.Start = r.Start
		}
		if r.End > b.cur.End {
			b.cur.End = r.End
		}
		b.cur.Height += r.Height
		b.cur.Reads = append(b.cur.Reads, r)
		b.lastStart, b.lastEnd = r.Start, r.End
		return nil
	}
	sealed := b.seal()
	b.cur.Chrom = r.Chrom
	b.cur.Strand = r.Strand
	b.cur.Start = r.Start
	b.cur.End = r.End
	b.cur.Height = r.Height
	b.cur.Reads = append(b.cur.Reads, r)
	b.open = true
	b.lastStart, b.lastEnd = r.Start, r.End
	return sealed
}

// Flush seals the open cluster at end of input, applying the same test as
// Add.
func (b *Builder) Flush() *Cluster {
	sealed := b.seal()
	b.open = false
	return sealed
}

// seal closes the open cluster.  A qualifying cluster is handed off together
// with its read slice; otherwise the slice is kept for reuse.
func (b *Builder) seal() *Cluster {
	if !b.open {
		return nil
	}
	b.m.ClustersSealed++
	var sealed *Cluster
	switch {
	case !(b.cur.Height > b.minHeight):
		b.m.ClustersLowHeight++
	case b.cur.End-b.cur.Start > b.maxSpan:
		b.m.ClustersOversize++
		log.Debug.Printf("skipping cluster %s:%d-%d(%s): span %d exceeds %d",
			b.cur.Chrom, b.cur.Start, b.cur.End, b.cur.Strand, b.cur.End-b.cur.Start, b.maxSpan)
	default:
		c := b.cur
		sealed = &c
		b.cur.Reads = nil
	}
	b.cur.Reads = b.cur.Reads[:0]
	b.cur.Height = 0
	return sealed
}
