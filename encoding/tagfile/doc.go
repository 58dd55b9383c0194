// Package tagfile reads positional tag records from the two supported input
// shapes, BED and segemehl alignment output, and normalizes them to
// (chrom, start, end, id, height, strand) records.
package tagfile
