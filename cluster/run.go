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
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/blockbuster/encoding/tagfile"
	"github.com/grailbio/blockbuster/interval"
	"github.com/grailbio/hts/bgzf"
)

// recordFilter drops records before they reach the Builder.
type recordFilter struct {
	minHeight float64
	// regions is nil when no region restriction is configured.
	regions *interval.BEDUnion
}

func newRecordFilter(opts *Opts) (*recordFilter, error) {
	f := &recordFilter{minHeight: opts.TagFilter}
	var entries []interval.Entry
	if opts.BedPath != "" {
		bedEntries, err := interval.ReadBEDEntriesFromPath(opts.BedPath, interval.NewBEDOpts{})
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "bed", opts.BedPath)
		}
		if len(bedEntries) == 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("bed %s: no regions", opts.BedPath))
		}
		entries = append(entries, bedEntries...)
	}
	var regions []string
	if opts.Chr != "" {
		regions = append(regions, opts.Chr)
	}
	if opts.Regions != "" {
		regions = append(regions, strings.Split(opts.Regions, ",")...)
	}
	for _, s := range regions {
		e, err := interval.ParseRegionString(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "region", s)
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return f, nil
	}
	u, err := interval.NewBEDUnionFromEntries(entries)
	if err != nil {
		return nil, errors.E(errors.Invalid, err)
	}
	f.regions = &u
	return f, nil
}

func clampPos(x int) interval.PosType {
	if x >= int(interval.PosTypeMax) {
		return interval.PosTypeMax - 1
	}
	return interval.PosType(x)
}

func (f *recordFilter) pass(rec *tagfile.Record) bool {
	if rec.Height < f.minHeight {
		return false
	}
	if f.regions == nil {
		return true
	}
	return f.regions.OverlapsByName(rec.Chrom, clampPos(rec.Start), clampPos(rec.End))
}

// Process reads records from sc until EOF, clusters and decomposes them, and
// writes every reportable cluster to w.  Clusters are processed one at a
// time; nothing is retained once a cluster is written.  The first error stops
// processing; clusters written before it stay written.  The caller flushes
// w.
func Process(ctx context.Context, sc *tagfile.Scanner, w *Writer, opts *Opts) (*Metrics, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}
	filter, err := newRecordFilter(opts)
	if err != nil {
		return nil, err
	}
	m := &Metrics{}
	b := NewBuilder(opts, m)
	d := newDecomposer(opts)
	report := func(c *Cluster) error {
		m.ClustersDecomposed++
		labels, nBlocks, err := d.decompose(c)
		if err != nil {
			return err
		}
		m.BlocksFound += nBlocks
		rep := Aggregate(c, labels, nBlocks, opts.blockThreshold(c.Height), opts.MinClusterHeight)
		if rep == nil {
			m.ClustersBelowHeight++
			return nil
		}
		m.ClustersEmitted++
		m.BlocksEmitted += len(rep.Blocks)
		return w.Write(rep)
	}

	var rec tagfile.Record
	for sc.Scan(&rec) {
		m.RecordsRead++
		if !filter.pass(&rec) {
			m.RecordsFiltered++
			continue
		}
		if c := b.Add(Read(rec)); c != nil {
			if err := report(c); err != nil {
				return m, err
			}
			if err := ctx.Err(); err != nil {
				return m, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return m, err
	}
	if c := b.Flush(); c != nil {
		if err := report(c); err != nil {
			return m, err
		}
	}
	return m, nil
}

// Run clusters the tag file at inPath and writes the report to outPath.
// inPath "-" reads stdin; outPath "" or "-" writes stdout.  An outPath ending
// in ".gz" is BGZF-compressed.
func Run(ctx context.Context, inPath, outPath string, opts *Opts) (m *Metrics, err error) {
	if err = validate(opts); err != nil {
		return nil, err
	}
	in, err := tagfile.Open(ctx, inPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	var out io.Writer = os.Stdout
	if outPath != "" && outPath != "-" {
		var dst file.File
		if dst, err = file.Create(ctx, outPath); err != nil {
			return nil, errors.E(err, "couldn't create output file:", outPath)
		}
		defer file.CloseAndReport(ctx, dst, &err)
		out = dst.Writer(ctx)
		if strings.HasSuffix(outPath, ".gz") {
			bgzfWriter := bgzf.NewWriter(out, 1)
			out = bgzfWriter
			defer func() {
				if e := bgzfWriter.Close(); e != nil && err == nil {
					err = e
				}
			}()
		}
	}
	w := NewWriter(out, opts.Output)
	defer func() {
		if e := w.Flush(); e != nil && err == nil {
			err = e
		}
	}()
	if opts.Header {
		if err = w.WriteHeader(Header{
			Generated:      time.Now(),
			QueryFile:      inPath,
			SizeScale:      opts.SizeScale,
			MinBlockHeight: opts.MinBlockHeight,
			Merge:          opts.Merge,
		}); err != nil {
			return nil, err
		}
	}

	sc := tagfile.NewScanner(in, tagfile.Opts{Format: opts.Format, DefaultCount: opts.DefaultCount})
	if m, err = Process(ctx, sc, w, opts); err != nil {
		return m, err
	}
	log.Printf("%s: %d record(s) read, %d filtered, %d cluster(s) decomposed, %d cluster(s) and %d block(s) written",
		inPath, m.RecordsRead, m.RecordsFiltered, m.ClustersDecomposed, m.ClustersEmitted, m.BlocksEmitted)
	if m.UnsortedReads > 0 {
		log.Error.Printf("%s: %d record(s) out of order; sort the input by chromosome, strand and start", inPath, m.UnsortedReads)
	}
	if opts.MetricsFile != "" {
		if err = writeMetrics(ctx, opts.MetricsFile, m); err != nil {
			return m, err
		}
	}
	return m, nil
}
