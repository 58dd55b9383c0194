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
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"gonum.org/v1/gonum/stat"
)

// Unassigned is the block label of a read not (yet) assigned to a block.
const Unassigned = -1

// Decomposition algorithm:
// Every unassigned read is modeled as a bell curve centered on its midpoint,
// with a spread proportional to its length (scaled by Opts.SizeScale) and an
// amplitude proportional to its height.  The curves are summed into a
// per-position density covering the cluster, and the highest point of that
// density is taken as the center of the next block.
//
// Reads are then assigned to that block if their [mean-variance,
// mean+variance] window, widened on both sides by the weighted standard
// deviation of the means already assigned to the block, covers the peak, or
// if their mean is within Opts.Merge positions of the peak.  As the block
// grows the deviation grows, so assignment is repeated until a scan adds
// nothing.
//
// The density is then rebuilt from the remaining reads and the procedure
// repeats.  Every pass either assigns at least one read or ends the loop, so
// there are at most len(reads) passes.

// decomposer holds the per-run buffers.  It is reused across clusters.
type decomposer struct {
	sizeScale float64
	merge     float64

	reads     []Read
	start     int
	means     []float64
	variances []float64
	weights   []float64
	labels    []int
	density   []float64
	nUnassig  int

	blockMeans   []float64
	blockWeights []float64
}

func newDecomposer(opts *Opts) *decomposer {
	return &decomposer{
		sizeScale: opts.SizeScale,
		merge:     float64(opts.Merge),
	}
}

// Decompose assigns every read of c to a block.  It returns one label per
// read, in c.Reads order, and the number of blocks; labels run from 1 to
// nBlocks.  An errors.Integrity error is returned if some read cannot be
// assigned.
func Decompose(c *Cluster, opts *Opts) (labels []int, nBlocks int, err error) {
	return newDecomposer(opts).decompose(c)
}

func growFloat64s(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

func (d *decomposer) reset(c *Cluster) {
	n := len(c.Reads)
	d.reads = c.Reads
	d.start = c.Start
	d.means = growFloat64s(d.means, n)
	d.variances = growFloat64s(d.variances, n)
	d.weights = growFloat64s(d.weights, n)
	d.density = growFloat64s(d.density, c.End-c.Start+1)
	// labels are handed to the caller, so they are never reused.
	d.labels = make([]int, n)
	for i := range c.Reads {
		d.means[i], d.variances[i] = readShape(&c.Reads[i], c.Start, d.sizeScale)
		d.weights[i] = repeatWeight(c.Reads[i].Height)
		d.labels[i] = Unassigned
	}
	d.nUnassig = n
}

// readShape returns the read's mean (relative to clusterStart) and
// variance.  Both use integer halving of the read coordinates.
func readShape(r *Read, clusterStart int, sizeScale float64) (mean, variance float64) {
	mean = float64((r.Start+r.End)/2 - clusterStart)
	span := r.End - r.Start
	if span < 0 {
		span = -span
	}
	variance = sizeScale * float64(span/2)
	return
}

// repeatWeight is the number of times a read's mean is counted when
// computing a block's deviation: its height rounded up, or zero for
// non-positive heights.
func repeatWeight(height float64) float64 {
	if !(height > 0) {
		return 0
	}
	return math.Ceil(height)
}

// gaussian evaluates 1/(v*sqrt(2*pi)) * exp(-(x-mean)^2 / (2v)^2).  The
// exponent's divisor is (2v)^2, not 2v^2.
func gaussian(x, mean, variance float64) float64 {
	d := x - mean
	w := 2 * variance
	return (1 / (variance * math.Sqrt(2*math.Pi))) * math.Exp(-(d*d)/(w*w))
}

// synthesize rebuilds the density from the unassigned reads.  Each read
// contributes at integer offsets 0..2*variance on both sides of its mean (the
// mean itself once per side); positions outside the cluster are dropped.  A
// read with zero variance contributes its height at its mean.
func (d *decomposer) synthesize() {
	density := d.density
	for i := range density {
		density[i] = 0
	}
	n := len(density)
	for i := range d.reads {
		if d.labels[i] != Unassigned {
			continue
		}
		mean := d.means[i]
		variance := d.variances[i]
		height := d.reads[i].Height
		center := int(mean)
		if variance == 0 {
			if center >= 0 && center < n {
				density[center] += height
			}
			continue
		}
		for off := 0; float64(off) <= 2*variance; off++ {
			y := height * gaussian(mean+float64(off), mean, variance)
			if p := center + off; p < n {
				density[p] += y
			}
			if p := center - off; p >= 0 {
				density[p] += y
			}
		}
	}
}

// highestPeak returns the first position holding the density's maximum.  If
// no position is positive, it returns 0.
func highestPeak(density []float64) int {
	peak := 0
	best := 0.0
	for i, y := range density {
		if y > best {
			peak = i
			best = y
		}
	}
	return peak
}

// deviation is the weighted population standard deviation of the means
// assigned to the current block, or 0 if nothing with positive weight has
// been assigned.
func (d *decomposer) deviation() float64 {
	total := 0.0
	for _, w := range d.blockWeights {
		total += w
	}
	if total == 0 {
		return 0
	}
	return math.Sqrt(stat.PopVariance(d.blockMeans, d.blockWeights))
}

// accepts reports whether read i belongs to a block centered at peak, given
// the block's current deviation.
func (d *decomposer) accepts(i int, peak, dev float64) bool {
	mean := d.means[i]
	variance := d.variances[i]
	if mean-variance-dev <= peak && mean+variance+dev >= peak {
		return true
	}
	return mean >= peak-d.merge && mean <= peak+d.merge
}

// assign labels every unassigned read accepted by the block centered at
// peak, repeating until a scan accepts nothing.  The deviation is fixed for
// the duration of each scan.  It returns the number of reads assigned.
func (d *decomposer) assign(peak int, label int) int {
	d.blockMeans = d.blockMeans[:0]
	d.blockWeights = d.blockWeights[:0]
	p := float64(peak)
	total := 0
	for {
		dev := d.deviation()
		n := 0
		for i := range d.reads {
			if d.labels[i] != Unassigned || !d.accepts(i, p, dev) {
				continue
			}
			d.labels[i] = label
			d.blockMeans = append(d.blockMeans, d.means[i])
			d.blockWeights = append(d.blockWeights, d.weights[i])
			n++
		}
		if n == 0 {
			break
		}
		total += n
		d.nUnassig -= n
	}
	return total
}

func (d *decomposer) decompose(c *Cluster) (labels []int, nBlocks int, err error) {
	d.reset(c)
	defer func() {
		// Drop references to the cluster's reads.
		d.reads = nil
	}()
	label := 1
	maxPasses := len(c.Reads) + 1
	for pass := 0; d.nUnassig > 0; pass++ {
		if pass >= maxPasses {
			err = errors.E(errors.Integrity, fmt.Sprintf("cluster %s:%d-%d(%s): decomposition did not converge after %d passes",
				c.Chrom, c.Start, c.End, c.Strand, pass))
			return
		}
		before := d.nUnassig
		d.synthesize()
		peak := highestPeak(d.density)
		if d.assign(peak, label) == 0 {
			break
		}
		if d.nUnassig >= before {
			err = errors.E(errors.Integrity, fmt.Sprintf("cluster %s:%d-%d(%s): unassigned read count did not decrease",
				c.Chrom, c.Start, c.End, c.Strand))
			return
		}
		log.Debug.Printf("cluster %s:%d-%d(%s): block %d at offset %d, %d read(s) left",
			c.Chrom, c.Start, c.End, c.Strand, label, peak, d.nUnassig)
		label++
	}
	if d.nUnassig > 0 {
		err = errors.E(errors.Integrity, fmt.Sprintf("cluster %s:%d-%d(%s): %d of %d read(s) could not be assigned to a block",
			c.Chrom, c.Start, c.End, c.Strand, d.nUnassig, len(c.Reads)))
		return
	}
	return d.labels, label - 1, nil
}
