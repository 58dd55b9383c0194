package interval

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// NewBEDOpts defines behavior of this package's BED-loading function(s).
type NewBEDOpts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// Entry represents a single region, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// BEDUnion is a chromosome-keyed collection of length-2N endpoint sequences,
// where N is the number of disjoint regions on that chromosome; region #k
// occupies elements [2k] (0-based start) and [2k+1] (end).  See
// endpoint_index.go for the query conventions.
type BEDUnion struct {
	// nameMap is a chromosome-keyed map with disjoint-interval-set values.
	// Always initialized.
	nameMap map[string]([]PosType)
	// lastChrIntervals points to the disjoint-interval-set for the most recently
	// queried chromosome.
	lastChrIntervals []PosType
	// lastChrName is the name of the last queried chromosome.  If it's
	// nonempty, it must be in sync with lastChrIntervals.
	lastChrName string
	// lastPos is the last queried position.
	lastPos PosType
	// lastIdx is NewEndpointIndex(lastPos, lastChrIntervals).  Cached to
	// accelerate sequential queries.
	lastIdx EndpointIndex
	// isSequential is true if all queries since the last chromosome change have
	// been in order of nondecreasing position.
	isSequential bool
}

func initBEDUnion() (bedUnion BEDUnion) {
	bedUnion.nameMap = make(map[string]([]PosType))
	return
}

// NChromosomes returns the number of chromosomes with at least one nonempty
// region.
func (u *BEDUnion) NChromosomes() int {
	return len(u.nameMap)
}

// endpointIndex moves the query cursor to (chrName, pos) and returns the
// chromosome's endpoint sequence (nil if the chromosome has no regions) along
// with NewEndpointIndex(pos, endpoints).
func (u *BEDUnion) endpointIndex(chrName string, pos PosType) ([]PosType, EndpointIndex) {
	if chrName != u.lastChrName {
		u.lastChrName = chrName
		u.lastChrIntervals = u.nameMap[chrName]
		if u.lastChrIntervals == nil {
			return nil, 0
		}
		u.lastIdx = NewEndpointIndex(pos, u.lastChrIntervals)
		u.lastPos = pos
		u.isSequential = true
		return u.lastChrIntervals, u.lastIdx
	}
	if u.lastChrIntervals == nil {
		return nil, 0
	}
	if u.isSequential {
		if pos >= u.lastPos {
			u.lastIdx.Update(pos, u.lastChrIntervals)
			u.lastPos = pos
			return u.lastChrIntervals, u.lastIdx
		}
		u.isSequential = false
	}
	return u.lastChrIntervals, NewEndpointIndex(pos, u.lastChrIntervals)
}

// ContainsByName checks whether the (0-based) interval [pos, pos+1) is
// contained within the BEDUnion.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	endpoints, idx := u.endpointIndex(chrName, pos)
	if endpoints == nil {
		return false
	}
	return idx.Contained()
}

// OverlapsByName checks whether the closed interval [start, end] shares at
// least one position with the BEDUnion.  Queries are fastest when start is
// nondecreasing within each chromosome.
func (u *BEDUnion) OverlapsByName(chrName string, start, end PosType) bool {
	endpoints, idx := u.endpointIndex(chrName, start)
	if endpoints == nil {
		return false
	}
	if idx.Contained() {
		return true
	}
	if idx.Finished(endpoints) {
		return false
	}
	// endpoints[idx] is the start of the next region to the right of start.
	return endpoints[idx] <= end
}

// ReadBEDEntries loads the first three columns of every line of a BED
// stream.  Blank lines and "#"/"track"/"browser" header lines are skipped.
func ReadBEDEntries(reader io.Reader, opts NewBEDOpts) (entries []Entry, err error) {
	scanner := bufio.NewScanner(reader)
	var startSubtract int
	if opts.OneBasedInput {
		startSubtract++
	}
	var tokens [3][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		first := gunsafe.BytesToString(tokens[0])
		if first[0] == '#' || first == "track" || first == "browser" {
			continue
		}
		if nToken != 3 {
			err = fmt.Errorf("interval.ReadBEDEntries: line %d has fewer tokens than expected", lineIdx)
			return
		}
		var parsedStart int
		if parsedStart, err = strconv.Atoi(gunsafe.BytesToString(tokens[1])); err != nil {
			return
		}
		parsedStart -= startSubtract
		if parsedStart < 0 {
			err = fmt.Errorf("interval.ReadBEDEntries: negative start coordinate %s on line %d", tokens[1], lineIdx)
			return
		}
		var parsedEnd int
		if parsedEnd, err = strconv.Atoi(gunsafe.BytesToString(tokens[2])); err != nil {
			return
		}
		if (parsedEnd < parsedStart) || (parsedEnd >= PosTypeMax) {
			err = fmt.Errorf("interval.ReadBEDEntries: invalid coordinate pair on line %d", lineIdx)
			return
		}
		// tokens[0] refers to scanner-owned bytes, so the name must be copied.
		entries = append(entries, Entry{
			ChrName: string(tokens[0]),
			Start0:  PosType(parsedStart),
			End:     PosType(parsedEnd),
		})
	}
	err = scanner.Err()
	return
}

// NewBEDUnion loads the regions of a BED stream, merging touching/overlapping
// regions and eliminating empty ones in the process.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	var entries []Entry
	if entries, err = ReadBEDEntries(reader, opts); err != nil {
		return
	}
	return NewBEDUnionFromEntries(entries)
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.
func NewBEDUnionFromPath(path string, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	var entries []Entry
	if entries, err = ReadBEDEntriesFromPath(path, opts); err != nil {
		return
	}
	return NewBEDUnionFromEntries(entries)
}

// ReadBEDEntriesFromPath is a wrapper for ReadBEDEntries that takes a path
// instead of an io.Reader.  Gzipped files are decompressed.
func ReadBEDEntriesFromPath(path string, opts NewBEDOpts) (entries []Entry, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close()
		reader = gz
	}
	return ReadBEDEntries(reader, opts)
}

// NewBEDUnionFromEntries initializes a BEDUnion from a []Entry.  Unlike the
// BED loaders' input, entries may arrive in any order (they typically combine
// a BED file with command-line regions); a sorted copy is merged.
func NewBEDUnionFromEntries(entries []Entry) (bedUnion BEDUnion, err error) {
	for _, entry := range entries {
		if entry.ChrName == "" {
			err = fmt.Errorf("interval.NewBEDUnionFromEntries: empty contig ID")
			return
		}
		if entry.Start0 < 0 {
			err = fmt.Errorf("interval.NewBEDUnionFromEntries: negative start coordinate")
			return
		}
		if (entry.End < entry.Start0) || (entry.End >= PosTypeMax) {
			err = fmt.Errorf("interval.NewBEDUnionFromEntries: invalid coordinate pair [%d, %d)", entry.Start0, entry.End)
			return
		}
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ChrName != sorted[j].ChrName {
			return sorted[i].ChrName < sorted[j].ChrName
		}
		return sorted[i].Start0 < sorted[j].Start0
	})

	bedUnion = initBEDUnion()
	totBases := 0
	flush := func(chrName string, chrIntervals []PosType) {
		if len(chrIntervals) != 0 {
			bedUnion.nameMap[chrName] = chrIntervals
		}
	}
	prevChr := ""
	var chrIntervals []PosType
	for _, entry := range sorted {
		if entry.End == entry.Start0 {
			continue
		}
		if entry.ChrName != prevChr {
			flush(prevChr, chrIntervals)
			prevChr = entry.ChrName
			chrIntervals = []PosType{entry.Start0, entry.End}
			totBases += int(entry.End - entry.Start0)
			continue
		}
		lastEnd := chrIntervals[len(chrIntervals)-1]
		if entry.Start0 > lastEnd {
			chrIntervals = append(chrIntervals, entry.Start0, entry.End)
			totBases += int(entry.End - entry.Start0)
		} else if entry.End > lastEnd {
			// Regions overlap or touch, merge them.
			totBases += int(entry.End - lastEnd)
			chrIntervals[len(chrIntervals)-1] = entry.End
		}
	}
	flush(prevChr, chrIntervals)
	log.Debug.Printf("regions loaded, %d base(s) covered on %d chromosome(s)", totBases, len(bedUnion.nameMap))
	return
}

// ParseRegionString parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
//   [contig ID]
// returning a contig ID and 0-based interval boundaries.  The interval
// [0, PosTypeMax - 1) is returned if there is no positional restriction.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.IndexByte(region, ':')
	if colonPos == -1 {
		result.ChrName = region
		result.Start0 = 0
		result.End = PosTypeMax - 1
		return
	}
	if colonPos == 0 {
		err = fmt.Errorf("interval.ParseRegionString: empty contig ID")
		return
	}
	result.ChrName = region[0:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 int64
		if pos1, err = strconv.ParseInt(rangeStr, 10, 32); err != nil {
			return
		}
		if pos1 <= 0 {
			err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", rangeStr)
			return
		}
		result.Start0 = PosType(pos1 - 1)
		result.End = PosType(pos1)
		return
	}
	start1Str := rangeStr[:dashPos]
	endStr := rangeStr[dashPos+1:]
	var start1 int
	if start1, err = strconv.Atoi(start1Str); err != nil {
		return
	}
	if start1 <= 0 {
		err = fmt.Errorf("interval.ParseRegionString: position %v in region string out of range", start1Str)
		return
	}
	var end0 int
	if end0, err = strconv.Atoi(endStr); err != nil {
		return
	}
	// end0 == start1 is a single base, as in samtools.
	if end0 < start1 || end0 >= PosTypeMax {
		err = fmt.Errorf("interval.ParseRegionString: invalid range string %v", rangeStr)
		return
	}
	result.Start0 = PosType(start1 - 1)
	result.End = PosType(end0)
	return
}
