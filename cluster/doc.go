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

// Package cluster groups position-sorted tags into clusters and splits each
// cluster into blocks around peaks of a smoothed coverage density.
//
// Tags are read with encoding/tagfile.  A Builder cuts the stream into
// clusters of tags on the same chromosome and strand whose gaps are at most
// Opts.Distance.  Decompose assigns the tags of a cluster to blocks, and
// Aggregate applies the block and cluster height thresholds.  Writer renders
// the result; Process and Run tie the stages together.
package cluster
