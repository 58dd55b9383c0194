package tagfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	gunsafe "github.com/grailbio/base/unsafe"
)

// Format enumerates the supported input shapes.
type Format int

const (
	// UnknownFormat is returned by ParseFormat for unrecognized names.
	UnknownFormat Format = iota
	// BED is "chrom start end id height strand", extra columns ignored.
	BED
	// Segemehl is segemehl alignment output, where the height is derived from
	// the packed "id|count" field and the multi-mapping frequency.
	Segemehl
)

// ParseFormat maps a format name or its historical number to a Format.
func ParseFormat(name string) Format {
	switch strings.ToLower(name) {
	case "1", "bed":
		return BED
	case "2", "segemehl":
		return Segemehl
	}
	return UnknownFormat
}

func (f Format) String() string {
	switch f {
	case BED:
		return "bed"
	case Segemehl:
		return "segemehl"
	}
	return "unknown"
}

// Record is one normalized tag.  Start and End are both inclusive.
type Record struct {
	Chrom  string
	Start  int
	End    int
	ID     string
	Height float64
	Strand string
}

// Opts configures a Scanner.
type Opts struct {
	Format Format
	// DefaultCount is the read count assumed when a segemehl "id|count" field
	// carries no count.
	DefaultCount float64
}

// DefaultOpts reads BED input.
var DefaultOpts = Opts{
	Format:       BED,
	DefaultCount: 1,
}

const (
	bedMinTokens      = 6
	segemehlMinTokens = 15
	maxTokens         = segemehlMinTokens
)

var errEOF = fmt.Errorf("eof")

// Scanner reads Records from a tag file.  The Scan method returns the next
// record, returning a boolean indicating whether the read succeeded.
// Scanners are not threadsafe.
//
// Scanner validates coordinates (start >= 0, end >= start) and heights; the
// first invalid line stops the scan with an errors.Invalid error.
type Scanner struct {
	b      *bufio.Scanner
	opts   Opts
	err    error
	line   int
	tokens [maxTokens][]byte
}

// NewScanner constructs a new Scanner that reads tag records from r.
func NewScanner(r io.Reader, opts Opts) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64<<10), 16<<20)
	return &Scanner{b: b, opts: opts}
}

// Line returns the 1-based number of the last line read.
func (s *Scanner) Line() int {
	return s.line
}

// Scan the next record into rec.  Once Scan returns false, it never returns
// true again.  Upon completion, the user should check the Err method to
// determine whether scanning stopped because of an error or because the end
// of the stream was reached.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	for {
		if !s.b.Scan() {
			if s.err = s.b.Err(); s.err == nil {
				s.err = errEOF
			}
			return false
		}
		s.line++
		n := getTokens(s.tokens[:], s.b.Bytes())
		if n == 0 || isHeader(s.tokens[0]) {
			continue
		}
		switch s.opts.Format {
		case BED:
			s.err = s.parseBED(n, rec)
		case Segemehl:
			s.err = s.parseSegemehl(n, rec)
		default:
			s.err = errors.E(errors.Invalid, fmt.Sprintf("tagfile: unsupported format %v", s.opts.Format))
		}
		return s.err == nil
	}
}

// Err returns the scanning error, if any.
func (s *Scanner) Err() error {
	if s.err == errEOF {
		return nil
	}
	return s.err
}

func isHeader(first []byte) bool {
	if first[0] == '#' {
		return true
	}
	name := gunsafe.BytesToString(first)
	return name == "track" || name == "browser"
}

// getTokens identifies up to the first len(tokens) whitespace-delimited tokens
// from curLine, returning the number of tokens saved.
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

func (s *Scanner) invalid(format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf("tagfile: line %d: ", s.line)+fmt.Sprintf(format, args...))
}

func (s *Scanner) atoi(token []byte, what string) (int, error) {
	v, err := strconv.Atoi(gunsafe.BytesToString(token))
	if err != nil {
		return 0, s.invalid("bad %s %q", what, token)
	}
	return v, nil
}

func (s *Scanner) atof(token []byte, what string) (float64, error) {
	v, err := strconv.ParseFloat(gunsafe.BytesToString(token), 64)
	if err != nil {
		return 0, s.invalid("bad %s %q", what, token)
	}
	return v, nil
}

func (s *Scanner) checkCoords(start, end int) error {
	if start < 0 || end < 0 || end < start {
		return s.invalid("wrong file format at %d %d", start, end)
	}
	return nil
}

func (s *Scanner) checkHeight(height float64) error {
	if math.IsNaN(height) || math.IsInf(height, 0) || height < 0 {
		return s.invalid("bad height %v", height)
	}
	return nil
}

func (s *Scanner) parseBED(n int, rec *Record) (err error) {
	if n < bedMinTokens {
		return s.invalid("%d columns, expected at least %d", n, bedMinTokens)
	}
	t := s.tokens
	var start, end int
	if start, err = s.atoi(t[1], "start"); err != nil {
		return
	}
	if end, err = s.atoi(t[2], "end"); err != nil {
		return
	}
	if err = s.checkCoords(start, end); err != nil {
		return
	}
	var height float64
	if height, err = s.atof(t[4], "height"); err != nil {
		return
	}
	if err = s.checkHeight(height); err != nil {
		return
	}
	rec.Chrom = string(t[0])
	rec.Start = start
	rec.End = end
	rec.ID = string(t[3])
	rec.Height = height
	rec.Strand = string(t[5])
	return nil
}

// parseSegemehl handles the column layout
//   0 descriptor, 1 id|count, 2-8 alignment statistics, 9 strand,
//   10 start, 11 end, 12 chrom, 13 alignment, 14 frequency
func (s *Scanner) parseSegemehl(n int, rec *Record) (err error) {
	if n < segemehlMinTokens {
		return s.invalid("%d columns, expected at least %d", n, segemehlMinTokens)
	}
	t := s.tokens
	var start, end int
	if start, err = s.atoi(t[10], "start"); err != nil {
		return
	}
	if end, err = s.atoi(t[11], "end"); err != nil {
		return
	}
	if err = s.checkCoords(start, end); err != nil {
		return
	}
	var freq float64
	if freq, err = s.atof(t[14], "frequency"); err != nil {
		return
	}
	if !(freq > 0) || math.IsInf(freq, 0) {
		return s.invalid("frequency must be positive, got %v", freq)
	}
	id, count, err := s.splitPacked(gunsafe.BytesToString(t[1]))
	if err != nil {
		return
	}
	height := count / freq
	if err = s.checkHeight(height); err != nil {
		return
	}
	rec.Chrom = string(t[12])
	rec.Start = start
	rec.End = end
	rec.ID = id + "_" + strconv.Itoa(int(freq))
	rec.Height = height
	rec.Strand = string(t[9])
	return nil
}

// splitPacked splits "id|count".  The count defaults to opts.DefaultCount when
// absent.  The returned id is a copy.
func (s *Scanner) splitPacked(packed string) (id string, count float64, err error) {
	count = s.opts.DefaultCount
	bar := strings.IndexByte(packed, '|')
	if bar < 0 {
		return string([]byte(packed)), count, nil
	}
	id = string([]byte(packed[:bar]))
	rest := packed[bar+1:]
	if next := strings.IndexByte(rest, '|'); next >= 0 {
		rest = rest[:next]
	}
	if rest == "" {
		return id, count, nil
	}
	if count, err = strconv.ParseFloat(rest, 64); err != nil {
		return "", 0, s.invalid("bad read count in %q", packed)
	}
	return id, count, nil
}
