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

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Metrics counts what happened to the input during a run.
type Metrics struct {
	RecordsRead int
	// RecordsFiltered counts records dropped by the tag or region filter.
	RecordsFiltered int
	UnsortedReads   int

	ClustersSealed    int
	ClustersLowHeight int
	ClustersOversize  int
	// ClustersDecomposed counts clusters handed to the decomposer.
	ClustersDecomposed int
	// ClustersBelowHeight counts decomposed clusters whose qualifying blocks
	// did not add up to more than MinClusterHeight.
	ClustersBelowHeight int
	ClustersEmitted     int

	BlocksFound   int
	BlocksEmitted int
}

const metricsHeader = "RECORDS_READ\tRECORDS_FILTERED\tUNSORTED_READS\t" +
	"CLUSTERS_SEALED\tCLUSTERS_LOW_HEIGHT\tCLUSTERS_OVERSIZE\tCLUSTERS_DECOMPOSED\t" +
	"CLUSTERS_BELOW_HEIGHT\tCLUSTERS_EMITTED\tBLOCKS_FOUND\tBLOCKS_EMITTED"

// String returns the metrics as one tab-separated row, in metricsHeader
// order.
func (m *Metrics) String() string {
	return fmt.Sprintf("%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d",
		m.RecordsRead, m.RecordsFiltered, m.UnsortedReads,
		m.ClustersSealed, m.ClustersLowHeight, m.ClustersOversize, m.ClustersDecomposed,
		m.ClustersBelowHeight, m.ClustersEmitted, m.BlocksFound, m.BlocksEmitted)
}

func writeMetrics(ctx context.Context, path string, m *Metrics) (err error) {
	var f file.File
	if f, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create metrics file:", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	s := "# bio-blockbuster\n" + metricsHeader + "\n" + m.String() + "\n"
	if _, err = f.Writer(ctx).Write([]byte(s)); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	return nil
}
