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
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestAggregate(t *testing.T) {
	c := clusterOf(plusRead(0, 10, 60), plusRead(5, 15, 50))
	labels := []int{1, 2}

	rep := Aggregate(c, labels, 2, 1, 50)
	assert.NotNil(t, rep)
	expect.EQ(t, rep.Chrom, "chr1")
	expect.EQ(t, rep.Strand, "+")
	expect.EQ(t, rep.Start, 0)
	expect.EQ(t, rep.End, 15)
	expect.EQ(t, rep.Height, 110.0)
	expect.EQ(t, rep.TagCount, 2)
	expect.EQ(t, rep.Blocks, []Block{
		{Number: 1, Label: 1, Start: 0, End: 10, Height: 60, Reads: []int{0}},
		{Number: 2, Label: 2, Start: 5, End: 15, Height: 50, Reads: []int{1}},
	})

	// Blocks below the threshold drop out of the rollup.
	rep = Aggregate(c, labels, 2, 55, 50)
	assert.NotNil(t, rep)
	expect.EQ(t, rep.Start, 0)
	expect.EQ(t, rep.End, 10)
	expect.EQ(t, rep.Height, 60.0)
	expect.EQ(t, rep.TagCount, 1)
	expect.EQ(t, len(rep.Blocks), 1)

	// A block exactly at the threshold qualifies.
	rep = Aggregate(c, labels, 2, 50, 50)
	assert.NotNil(t, rep)
	expect.EQ(t, len(rep.Blocks), 2)

	expect.True(t, Aggregate(c, labels, 2, 61, 50) == nil)
	// The rollup must exceed MinClusterHeight.
	expect.True(t, Aggregate(c, labels, 2, 1, 110) == nil)
}

func TestAggregateRenumbers(t *testing.T) {
	c := clusterOf(plusRead(0, 10, 60), plusRead(100, 110, 5), plusRead(200, 210, 60), plusRead(3, 12, 1))
	rep := Aggregate(c, []int{1, 2, 3, 1}, 3, 10, 50)
	assert.NotNil(t, rep)
	expect.EQ(t, rep.Blocks, []Block{
		{Number: 1, Label: 1, Start: 0, End: 12, Height: 61, Reads: []int{0, 3}},
		{Number: 2, Label: 3, Start: 200, End: 210, Height: 60, Reads: []int{2}},
	})
	expect.EQ(t, rep.Start, 0)
	expect.EQ(t, rep.End, 210)
	expect.EQ(t, rep.TagCount, 3)
	expect.EQ(t, rep.Blocks[0].TagCount(), 2)

	// Reaggregating the qualifying reads with the same threshold reproduces
	// the report.
	var reads []Read
	var labels []int
	for _, b := range rep.Blocks {
		for _, i := range b.Reads {
			reads = append(reads, rep.Reads[i])
			labels = append(labels, b.Number)
		}
	}
	rep2 := Aggregate(clusterOf(reads...), labels, len(rep.Blocks), 10, 50)
	assert.NotNil(t, rep2)
	expect.EQ(t, rep2.Start, rep.Start)
	expect.EQ(t, rep2.End, rep.End)
	expect.EQ(t, rep2.Height, rep.Height)
	expect.EQ(t, rep2.TagCount, rep.TagCount)
	assert.EQ(t, len(rep2.Blocks), len(rep.Blocks))
	for i := range rep.Blocks {
		expect.EQ(t, rep2.Blocks[i].Start, rep.Blocks[i].Start)
		expect.EQ(t, rep2.Blocks[i].End, rep.Blocks[i].End)
		expect.EQ(t, rep2.Blocks[i].Height, rep.Blocks[i].Height)
		expect.EQ(t, rep2.Blocks[i].TagCount(), rep.Blocks[i].TagCount())
	}
}

func TestAggregateSkipsUnassigned(t *testing.T) {
	c := clusterOf(plusRead(0, 10, 60), plusRead(5, 15, 50))
	rep := Aggregate(c, []int{1, Unassigned}, 1, 1, 50)
	assert.NotNil(t, rep)
	expect.EQ(t, rep.TagCount, 1)
	expect.EQ(t, rep.Height, 60.0)
}

func TestBlockThreshold(t *testing.T) {
	opts := DefaultOpts
	opts.MinBlockHeight = 50
	expect.EQ(t, opts.blockThreshold(110), 50.0)
	opts.BlockHeight = RelativeHeight
	expect.EQ(t, opts.blockThreshold(110), 55.0)

	c := clusterOf(plusRead(0, 10, 60), plusRead(5, 15, 50))
	labels, n, err := Decompose(c, &opts)
	assert.NoError(t, err)
	rep := Aggregate(c, labels, n, opts.blockThreshold(c.Height), opts.MinClusterHeight)
	assert.NotNil(t, rep)
	expect.EQ(t, len(rep.Blocks), 1)
	expect.EQ(t, rep.Blocks[0].Height, 60.0)
}
