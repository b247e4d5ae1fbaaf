package operations

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// Append adds the configured paths to an existing uncompressed
// archive, resuming at the position of its end-of-archive marker. The
// prior content bytes are never rewritten.
func (o *Operations) Append(ctx context.Context, opts config.Options) error {
	o.diskOperationLock.Lock()
	defer o.diskOperationLock.Unlock()

	opts = opts.WithDefaults()
	if err := opts.Check(); err != nil {
		return err
	}

	sources, err := o.resolveFileList(opts)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errEmptyArchive
	}

	state, err := o.newWriteState(opts)
	if err != nil {
		return err
	}
	defer state.close()

	return o.appendEntries(ctx, opts, state, sources)
}

// appendEntries is the shared tail of append and update: locate the
// terminator, seek there, and write.
func (o *Operations) appendEntries(ctx context.Context, opts config.Options, state *writeState, sources []string) error {
	f, err := blockio.OpenReadWrite(opts.ArchivePath, opts.Compression)
	if err != nil {
		return err
	}
	defer f.Close()

	resumeAt, format, err := findResumePoint(f, opts)
	if err != nil {
		return err
	}

	if _, err := f.Seek(resumeAt, io.SeekStart); err != nil {
		return err
	}

	if opts.Format != config.FormatGNUKey || format == tarfmt.FormatUnknown {
		// An explicit --format wins; otherwise keep appending in the
		// dialect the archive already uses.
		format, err = tarfmt.ParseFormat(opts.Format)
		if err != nil {
			return err
		}
	}

	tw := tarfmt.NewWriter(f, format)

	if err := o.writeEntries(ctx, tw, state, sources); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}

	// Drop any stale blocks a previously longer archive left behind
	// the new terminator.
	if err := f.Truncate(resumeAt + tw.Offset()); err != nil {
		return err
	}

	if state.snapshot != nil {
		if err := state.snapshot.Commit(ctx); err != nil {
			return err
		}
	}

	return f.Sync()
}

// findResumePoint scans the archive forward and returns the offset of
// the first terminating zero block along with the dialect of the last
// entry seen. An empty archive resumes at zero.
func findResumePoint(f *os.File, opts config.Options) (int64, tarfmt.Format, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, tarfmt.FormatUnknown, err
	}
	if info.Size() == 0 {
		return 0, tarfmt.FormatUnknown, nil
	}

	tr := tarfmt.NewReader(f)
	tr.IgnoreZeros = opts.IgnoreZeros

	format := tarfmt.FormatUnknown
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, format, err
		}

		if hdr.Format != tarfmt.FormatUnknown {
			format = hdr.Format
		}
	}

	resumeAt := tr.TerminatorOffset()
	if resumeAt < 0 {
		resumeAt = tr.Offset()
	}

	return resumeAt, format, nil
}
