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
package main

/*
bio-blockbuster groups mapped reads (tags) into clusters of nearby reads on
the same chromosome and strand, and splits each cluster into blocks of reads
that share a common peak of coverage.  Input is a BED or segemehl file sorted
by chromosome, strand and start; output is a tab-separated list of clusters,
each followed by its blocks or by its reads annotated with block numbers.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/blockbuster/cluster"
	"github.com/grailbio/blockbuster/encoding/tagfile"
)

var (
	format           = flag.String("format", "1", "Input format; '1' or 'bed' (chrom, start, end, id, height, strand), '2' or 'segemehl'")
	distance         = flag.Int("distance", cluster.DefaultOpts.Distance, "Maximum gap between the end of a read and the start of the next read in the same cluster")
	minClusterHeight = flag.Float64("minClusterHeight", cluster.DefaultOpts.MinClusterHeight, "Clusters (and their qualifying blocks) must exceed this summed height to be reported")
	minBlockHeight   = flag.Float64("minBlockHeight", cluster.DefaultOpts.MinBlockHeight, "Minimum block height; absolute, or a percentage of the cluster height with -blockHeight rel")
	blockHeight      = flag.String("blockHeight", cluster.DefaultOpts.BlockHeight.String(), "Interpretation of -minBlockHeight; 'abs' or 'rel' supported")
	scale            = flag.Float64("scale", cluster.DefaultOpts.SizeScale, "Scale factor applied to half the read length to get the spread of its distribution")
	merge            = flag.Int("merge", cluster.DefaultOpts.Merge, "Reads whose center lies within this distance of a block's peak join the block")
	tagFilter        = flag.Float64("tagFilter", cluster.DefaultOpts.TagFilter, "Skip reads with height below this value")
	printMode        = flag.Int("print", int(cluster.DefaultOpts.Output), "Output; 1 = blocks, 2 = reads annotated with block numbers")
	chr              = flag.String("chr", cluster.DefaultOpts.Chr, "Only cluster reads on this chromosome")
	region           = flag.String("region", cluster.DefaultOpts.Regions, "Only cluster reads overlapping these comma-separated regions. Format each as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>")
	bedPath          = flag.String("bed", cluster.DefaultOpts.BedPath, "Only cluster reads overlapping the regions in this BED file")
	defaultCount     = flag.Float64("defaultCount", cluster.DefaultOpts.DefaultCount, "Read count assumed for segemehl ids without a '|count' suffix")
	header           = flag.Bool("header", cluster.DefaultOpts.Header, "Write a comment header describing the run")
	outPath          = flag.String("out", "-", "Output path; '-' writes stdout, a .gz suffix selects BGZF compression")
	metricsFile      = flag.String("metrics", cluster.DefaultOpts.MetricsFile, "If nonempty, write run metrics to this path")
)

func bioBlockbusterUsage() {
	fmt.Printf("Usage: %s [OPTIONS] tagpath\n", os.Args[0])
	fmt.Printf("tagpath may be '-' to read stdin.\nOther options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioBlockbusterUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Expected exactly one positional argument (tagpath); please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	inFormat := tagfile.ParseFormat(*format)
	if inFormat == tagfile.UnknownFormat {
		log.Fatalf("Unknown -format %q; '1', 'bed', '2' and 'segemehl' supported", *format)
	}
	heightMode, err := cluster.ParseBlockHeightMode(*blockHeight)
	if err != nil {
		log.Fatalf("%v", err)
	}
	ctx := vcontext.Background()
	opts := cluster.Opts{
		Format:           inFormat,
		DefaultCount:     *defaultCount,
		SizeScale:        *scale,
		MinBlockHeight:   *minBlockHeight,
		BlockHeight:      heightMode,
		Merge:            *merge,
		Distance:         *distance,
		MinClusterHeight: *minClusterHeight,
		TagFilter:        *tagFilter,
		Output:           cluster.OutputMode(*printMode),
		Chr:              *chr,
		Regions:          *region,
		BedPath:          *bedPath,
		Header:           *header,
		MetricsFile:      *metricsFile,
		MaxClusterSpan:   cluster.MaxClusterSpan,
	}
	if _, err := cluster.Run(ctx, flag.Arg(0), *outPath, &opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
