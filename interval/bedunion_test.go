package interval

import (
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const testBED = `track name=regions
chr1	2488104	2488172
chr1	2488150	2488200
chr1	2489165	2489273
# comment
chr2	100	200
chr2	200	250
chr2	300	300
chr3	5	5
`

func TestLoadBEDIntervals(t *testing.T) {
	result, err := NewBEDUnion(strings.NewReader(testBED), NewBEDOpts{})
	assert.NoError(t, err)
	want := map[string]([]PosType){
		"chr1": []PosType{
			2488104, 2488200,
			2489165, 2489273},
		"chr2": []PosType{
			100, 250},
	}
	if !reflect.DeepEqual(result.nameMap, want) {
		t.Errorf("Wanted: %v  Got: %v", want, result.nameMap)
	}
	expect.EQ(t, result.NChromosomes(), 2)

	oneBased, err := NewBEDUnion(strings.NewReader("chr1\t1\t10\n"), NewBEDOpts{OneBasedInput: true})
	assert.NoError(t, err)
	expect.EQ(t, oneBased.nameMap["chr1"], []PosType{0, 10})
}

func TestLoadBEDErrors(t *testing.T) {
	for _, bed := range []string{
		"chr1\t10\n",
		"chr1\t-1\t10\n",
		"chr1\t10\t5\n",
		"chr1\tx\t5\n",
	} {
		_, err := NewBEDUnion(strings.NewReader(bed), NewBEDOpts{})
		expect.NotNil(t, err, bed)
	}
}

func TestLoadBEDFromGzipPath(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	ctx := vcontext.Background()
	bedpath := filepath.Join(tmpdir, "regions.bed.gz")
	out, err := file.Create(ctx, bedpath)
	assert.NoError(t, err)
	gz := gzip.NewWriter(out.Writer(ctx))
	_, err = gz.Write([]byte("chrX\t10\t20\nchrX\t30\t40\n"))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	assert.NoError(t, out.Close(ctx))

	result, err := NewBEDUnionFromPath(bedpath, NewBEDOpts{})
	assert.NoError(t, err)
	expect.EQ(t, result.nameMap["chrX"], []PosType{10, 20, 30, 40})
}

func TestNewBEDUnionFromEntriesUnsorted(t *testing.T) {
	result, err := NewBEDUnionFromEntries([]Entry{
		{"chr2", 50, 60},
		{"chr1", 30, 40},
		{"chr1", 0, 10},
		{"chr1", 5, 35},
	})
	assert.NoError(t, err)
	expect.EQ(t, result.nameMap["chr1"], []PosType{0, 40})
	expect.EQ(t, result.nameMap["chr2"], []PosType{50, 60})

	_, err = NewBEDUnionFromEntries([]Entry{{"chr1", 10, 5}})
	expect.NotNil(t, err)
	_, err = NewBEDUnionFromEntries([]Entry{{"", 0, 5}})
	expect.NotNil(t, err)
}

func TestContainsAndOverlaps(t *testing.T) {
	u, err := NewBEDUnionFromEntries([]Entry{
		{"chr1", 10, 20},
		{"chr1", 30, 40},
	})
	assert.NoError(t, err)

	tests := []struct {
		chr        string
		start, end PosType
		contains   bool
		overlaps   bool
	}{
		{"chr1", 0, 9, false, false},
		{"chr1", 5, 10, false, true},
		{"chr1", 10, 12, true, true},
		{"chr1", 19, 25, true, true},
		{"chr1", 20, 29, false, false},
		{"chr1", 20, 30, false, true},
		{"chr1", 41, 50, false, false},
		// Backwards query falls off the sequential fast path.
		{"chr1", 12, 12, true, true},
		{"chr2", 12, 12, false, false},
		{"chr1", 35, 100, true, true},
	}
	for _, tt := range tests {
		expect.EQ(t, u.ContainsByName(tt.chr, tt.start), tt.contains, tt)
		expect.EQ(t, u.OverlapsByName(tt.chr, tt.start, tt.end), tt.overlaps, tt)
	}
}

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		chrName string
		start0  PosType
		end     PosType
	}{
		{
			"chr1:1-1000",
			"chr1",
			0,
			1000,
		},
		{
			"chr1:1000",
			"chr1",
			999,
			1000,
		},
		{
			"chr1:5-5",
			"chr1",
			4,
			5,
		},
		{
			"chr1",
			"chr1",
			0,
			math.MaxInt32 - 1,
		},
	}

	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		expect.NoError(t, err)
		expect.EQ(t, tt.chrName, result.ChrName)
		expect.EQ(t, tt.start0, result.Start0)
		expect.EQ(t, tt.end, result.End)
	}

	for _, bad := range []string{"", ":1-10", "chr1:0", "chr1:10-5", "chr1:a-5"} {
		_, err := ParseRegionString(bad)
		expect.NotNil(t, err, bad)
	}
}
