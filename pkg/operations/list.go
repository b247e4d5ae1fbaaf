package operations

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pojntfx/gtar/internal/formatting"
	"github.com/pojntfx/gtar/internal/pathext"
	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// List enumerates the archive's logical entries, printing each
// selected member, and returns the headers in archive order.
func (o *Operations) List(ctx context.Context, opts config.Options) ([]*tarfmt.Header, error) {
	opts = opts.WithDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	excludes, err := o.resolveExcludes(opts)
	if err != nil {
		return nil, err
	}

	fileList, err := o.resolveFileList(opts)
	if err != nil {
		return nil, err
	}

	rs, err := blockio.OpenRead(opts.ArchivePath, opts.Compression, opts.BlockingFactor)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	tr := tarfmt.NewReader(rs.R)
	tr.IgnoreZeros = opts.IgnoreZeros
	tr.OnWarning = o.warnEntry

	var headers []*tarfmt.Header
	for {
		if err := checkCancelled(ctx); err != nil {
			return headers, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return headers, err
		}

		if !tarfmt.IsRealType(hdr.Typeflag) {
			continue
		}

		if pathext.MatchesAnyExclude(excludes, hdr.Name) || !selectedByFileList(fileList, hdr.Name) {
			continue
		}

		headers = append(headers, hdr)

		if opts.Verbosity != config.VerbosityQuietKey {
			fmt.Fprintln(o.listW, formatting.EntryLine(hdr, verbose(opts), opts.NumericOwner))
		}
	}

	return headers, nil
}
