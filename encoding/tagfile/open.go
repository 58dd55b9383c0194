package tagfile

import (
	"context"
	"io"
	"os"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// Reader is an opened tag file.  It must be closed after use.
type Reader struct {
	io.Reader
	in    file.File
	inner io.Closer
}

// Open opens path for reading.  Any path supported by grailbio/base/file is
// accepted, and "-" reads stdin.  Gzip, bzip2 and zstd input is recognized by
// its file extension and decompressed on the fly.
func Open(ctx context.Context, path string) (*Reader, error) {
	if path == "-" {
		return &Reader{Reader: os.Stdin}, nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "tagfile: open", path)
	}
	r := &Reader{Reader: in.Reader(ctx), in: in}
	if u := compress.NewReaderPath(r.Reader, in.Name()); u != nil {
		r.Reader = u
		if c, ok := u.(io.Closer); ok {
			r.inner = c
		}
	}
	return r, nil
}

// Close releases the file and any decompressor.
func (r *Reader) Close(ctx context.Context) (err error) {
	if r.inner != nil {
		err = r.inner.Close()
	}
	if r.in != nil {
		if e := r.in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	return
}
