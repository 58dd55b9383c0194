package interval

import (
	"math"
	"sort"
)

// This file includes support datatypes and functions for representing an
// interval-union as a []PosType containing a sorted sequence of
// interval-endpoints.
//
// For example, given the regions
//   [5, 15)
//   [7, 17)
//   [20, 25)
// the interval-union would be
//   [5, 17) U [20, 25)
// so the sorted sequence of endpoints would be
//   {5, 17, 20, 25}.
// A position p is inside the union iff SearchPosTypes(endpoints, p+1) is odd.

// PosType is the type used to represent interval coordinates.  int32 is wide
// enough for any chromosome we expect to see.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// SearchPosTypes returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInts(), except for PosType.
func SearchPosTypes(a []PosType, x PosType) EndpointIndex {
	return EndpointIndex(sort.Search(len(a), func(i int) bool { return a[i] >= x }))
}

// ExpsearchPosType performs exponential search, checking a[idx], then
// a[idx + 1], then a[idx + 3], then a[idx + 7], etc., and finishing with
// binary search once it's either found an element larger than the target or
// has hit the end of the slice.  Tags arrive in position order, so this is
// usually a better choice than SearchPosTypes.
func ExpsearchPosType(a []PosType, x PosType, idx EndpointIndex) EndpointIndex {
	nextIncr := EndpointIndex(1)
	startIdx := idx
	endIdx := EndpointIndex(len(a))
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := EndpointIndex((uint(startIdx) + uint(endIdx)) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// EndpointIndex is intended to represent the result of
// SearchPosTypes(endpoints, pos+1).
// NOTE THE "+1"!  This is necessary to get SearchPosTypes to line up with our
// usual left-closed right-open intervals.
type EndpointIndex uint32

// NewEndpointIndex returns an EndpointIndex initialized to
// SearchPosTypes(endpoints, pos+1).
func NewEndpointIndex(pos PosType, endpoints []PosType) EndpointIndex {
	return SearchPosTypes(endpoints, pos+1)
}

// Contained returns whether we're inside an interval.
func (ei EndpointIndex) Contained() bool {
	return ei&1 != 0
}

// Finished returns whether we're past all the intervals.
func (ei EndpointIndex) Finished(endpoints []PosType) bool {
	return ei >= EndpointIndex(len(endpoints))
}

// Update updates the EndpointIndex to refer to newPos, which cannot be smaller
// than the previous position referred to by this EndpointIndex.
func (ei *EndpointIndex) Update(newPos PosType, endpoints []PosType) {
	*ei = ExpsearchPosType(endpoints, newPos+1, *ei)
}
