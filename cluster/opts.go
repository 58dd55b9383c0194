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
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/blockbuster/encoding/tagfile"
)

// BlockHeightMode selects how Opts.MinBlockHeight is interpreted.
type BlockHeightMode int

const (
	// AbsoluteHeight compares block heights against MinBlockHeight directly.
	AbsoluteHeight BlockHeightMode = iota
	// RelativeHeight treats MinBlockHeight as a percentage of the cluster's
	// total height.
	RelativeHeight
)

// ParseBlockHeightMode maps "abs"/"rel" to a BlockHeightMode.
func ParseBlockHeightMode(s string) (BlockHeightMode, error) {
	switch strings.ToLower(s) {
	case "abs":
		return AbsoluteHeight, nil
	case "rel":
		return RelativeHeight, nil
	}
	return AbsoluteHeight, errors.E(errors.Invalid, fmt.Sprintf("unknown block height mode %q; 'abs' and 'rel' supported", s))
}

func (m BlockHeightMode) String() string {
	if m == RelativeHeight {
		return "rel"
	}
	return "abs"
}

// OutputMode selects the report body written below each cluster line.
type OutputMode int

const (
	// OutputBlocks writes one summary line per block.
	OutputBlocks OutputMode = 1
	// OutputReads writes one line per read, annotated with its block number.
	OutputReads OutputMode = 2
)

// MaxClusterSpan is the largest end-start a cluster may have and still be
// decomposed.
const MaxClusterSpan = 1000000

type Opts struct {
	// Commandline options.
	Format           tagfile.Format
	DefaultCount     float64
	SizeScale        float64
	MinBlockHeight   float64
	BlockHeight      BlockHeightMode
	Merge            int
	Distance         int
	MinClusterHeight float64
	TagFilter        float64
	Output           OutputMode
	Chr              string
	Regions          string
	BedPath          string
	Header           bool
	MetricsFile      string

	// MaxClusterSpan overrides the package constant; only tests lower it.
	MaxClusterSpan int
}

var DefaultOpts = Opts{
	Format:           tagfile.BED,
	DefaultCount:     1,
	SizeScale:        0.5,
	MinBlockHeight:   1,
	BlockHeight:      AbsoluteHeight,
	Merge:            0,
	Distance:         30,
	MinClusterHeight: 50,
	TagFilter:        0,
	Output:           OutputBlocks,
	MaxClusterSpan:   MaxClusterSpan,
}

func nonNegative(name string, v float64) error {
	if math.IsNaN(v) || v < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("%s must be non-negative, got %v", name, v))
	}
	return nil
}

func validate(opts *Opts) error {
	if opts.Format != tagfile.BED && opts.Format != tagfile.Segemehl {
		return errors.E(errors.Invalid, fmt.Sprintf("unknown input format %v", opts.Format))
	}
	if !(opts.SizeScale > 0) || math.IsInf(opts.SizeScale, 0) {
		return errors.E(errors.Invalid, fmt.Sprintf("scale must be positive, got %v", opts.SizeScale))
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"minBlockHeight", opts.MinBlockHeight},
		{"merge", float64(opts.Merge)},
		{"distance", float64(opts.Distance)},
		{"minClusterHeight", opts.MinClusterHeight},
		{"tagFilter", opts.TagFilter},
		{"defaultCount", opts.DefaultCount},
	} {
		if err := nonNegative(c.name, c.v); err != nil {
			return err
		}
	}
	if opts.BlockHeight != AbsoluteHeight && opts.BlockHeight != RelativeHeight {
		return errors.E(errors.Invalid, fmt.Sprintf("unknown block height mode %d", opts.BlockHeight))
	}
	if opts.Output != OutputBlocks && opts.Output != OutputReads {
		return errors.E(errors.Invalid, fmt.Sprintf("print must be 1 (blocks) or 2 (reads), got %d", opts.Output))
	}
	if opts.MaxClusterSpan <= 0 {
		opts.MaxClusterSpan = MaxClusterSpan
	}
	return nil
}

// blockThreshold returns the minimum block height for a cluster of the given
// total height.
func (opts *Opts) blockThreshold(clusterHeight float64) float64 {
	if opts.BlockHeight == RelativeHeight {
		return (clusterHeight * opts.MinBlockHeight) / 100
	}
	return opts.MinBlockHeight
}
