package tagfile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const bed = `# header
track name=tags
chr1	100	120	tag1	60	+	0	0	x	1	y	z
chr1	105	125	tag2	2.5	+

chr2	0	0	tag3	1	-
`

func scanAll(t *testing.T, s *Scanner) []Record {
	var recs []Record
	var rec Record
	for s.Scan(&rec) {
		recs = append(recs, rec)
	}
	return recs
}

func TestScanBED(t *testing.T) {
	s := NewScanner(strings.NewReader(bed), DefaultOpts)
	recs := scanAll(t, s)
	assert.NoError(t, s.Err())
	expect.EQ(t, recs, []Record{
		{Chrom: "chr1", Start: 100, End: 120, ID: "tag1", Height: 60, Strand: "+"},
		{Chrom: "chr1", Start: 105, End: 125, ID: "tag2", Height: 2.5, Strand: "+"},
		{Chrom: "chr2", Start: 0, End: 0, ID: "tag3", Height: 1, Strand: "-"},
	})
	expect.EQ(t, s.Line(), 6)
	// Scan never succeeds again after EOF.
	var rec Record
	expect.False(t, s.Scan(&rec))
}

func TestScanBEDInvalid(t *testing.T) {
	tests := []struct {
		input string
		good  int
		msg   string
	}{
		{"chr1\t10\t5\tid\t1\t+\n", 0, "wrong file format at 10 5"},
		{"chr1\t-1\t5\tid\t1\t+\n", 0, "wrong file format at -1 5"},
		{"chr1\t1\t5\tid\t1\t+\nchr1\t10\t5\tid\t1\t+\n", 1, "line 2"},
		{"chr1\t1\t5\tid\t1\n", 0, "expected at least 6"},
		{"chr1\t1\tfive\tid\t1\t+\n", 0, "bad end"},
		{"chr1\t1\t5\tid\t-3\t+\n", 0, "bad height"},
		{"chr1\t1\t5\tid\tNaN\t+\n", 0, "bad height"},
	}
	for _, tt := range tests {
		s := NewScanner(strings.NewReader(tt.input), DefaultOpts)
		recs := scanAll(t, s)
		expect.EQ(t, len(recs), tt.good, tt.input)
		err := s.Err()
		assert.NotNil(t, err, tt.input)
		expect.True(t, errors.Is(errors.Invalid, err), tt.input)
		expect.HasSubstr(t, err.Error(), tt.msg)
	}
}

func segemehlLine(packed, strand, start, end, chrom, freq string) string {
	return strings.Join([]string{"HWI-1", packed, "0", "0", "21", "21", "100", "0", "1",
		strand, start, end, chrom, "ACGT", freq}, "\t") + "\n"
}

func TestScanSegemehl(t *testing.T) {
	input := segemehlLine("read1|12", "+", "100", "121", "chr5", "4") +
		segemehlLine("read2", "-", "200", "220", "chr5", "2") +
		segemehlLine("read3|", "-", "300", "320", "chr6", "1")
	s := NewScanner(strings.NewReader(input), Opts{Format: Segemehl, DefaultCount: 1})
	recs := scanAll(t, s)
	assert.NoError(t, s.Err())
	expect.EQ(t, recs, []Record{
		{Chrom: "chr5", Start: 100, End: 121, ID: "read1_4", Height: 3, Strand: "+"},
		{Chrom: "chr5", Start: 200, End: 220, ID: "read2_2", Height: 0.5, Strand: "-"},
		{Chrom: "chr6", Start: 300, End: 320, ID: "read3_1", Height: 1, Strand: "-"},
	})

	s = NewScanner(strings.NewReader(segemehlLine("read2", "-", "200", "220", "chr5", "2")),
		Opts{Format: Segemehl, DefaultCount: 4})
	recs = scanAll(t, s)
	assert.NoError(t, s.Err())
	expect.EQ(t, recs[0].Height, 2.0)
}

func TestScanSegemehlInvalid(t *testing.T) {
	for _, line := range []string{
		segemehlLine("read1|12", "+", "121", "100", "chr5", "4"),
		segemehlLine("read1|12", "+", "100", "121", "chr5", "0"),
		segemehlLine("read1|x", "+", "100", "121", "chr5", "1"),
		"too\tfew\tcolumns\n",
	} {
		s := NewScanner(strings.NewReader(line), Opts{Format: Segemehl, DefaultCount: 1})
		scanAll(t, s)
		expect.True(t, errors.Is(errors.Invalid, s.Err()), line)
	}
}

func TestParseFormat(t *testing.T) {
	expect.EQ(t, ParseFormat("1"), BED)
	expect.EQ(t, ParseFormat("BED"), BED)
	expect.EQ(t, ParseFormat("2"), Segemehl)
	expect.EQ(t, ParseFormat("segemehl"), Segemehl)
	expect.EQ(t, ParseFormat("sam"), UnknownFormat)
	expect.EQ(t, Segemehl.String(), "segemehl")
}

func TestOpenGzip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	ctx := vcontext.Background()
	path := filepath.Join(tmpdir, "tags.bed.gz")
	out, err := file.Create(ctx, path)
	assert.NoError(t, err)
	gz := gzip.NewWriter(out.Writer(ctx))
	_, err = gz.Write([]byte(bed))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, out.Close(ctx))

	r, err := Open(ctx, path)
	assert.NoError(t, err)
	s := NewScanner(r, DefaultOpts)
	recs := scanAll(t, s)
	assert.NoError(t, s.Err())
	assert.NoError(t, r.Close(ctx))
	expect.EQ(t, len(recs), 3)

	_, err = Open(ctx, filepath.Join(tmpdir, "missing.bed"))
	expect.NotNil(t, err)
}
