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

// Concatenate appends the members of the source archives onto the
// target archive, copying raw blocks verbatim without re-encoding.
// Both sides must be uncompressed.
func (o *Operations) Concatenate(ctx context.Context, opts config.Options) error {
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

	target, err := blockio.OpenReadWrite(opts.ArchivePath, opts.Compression)
	if err != nil {
		return err
	}
	defer target.Close()

	// Scanning for the first zero block is safer than probing the
	// tail: a malformed last entry cannot misplace the write pointer.
	resumeAt, _, err := findResumePoint(target, opts)
	if err != nil {
		return err
	}

	if _, err := target.Seek(resumeAt, io.SeekStart); err != nil {
		return err
	}

	written := int64(0)
	for _, source := range sources {
		if err := checkCancelled(ctx); err != nil {
			return err
		}

		n, err := o.copyArchiveMembers(ctx, target, source, opts)
		if err != nil {
			return err
		}

		written += n
	}

	var terminator [2 * config.BlockSize]byte
	if _, err := target.Write(terminator[:]); err != nil {
		return err
	}
	written += 2 * config.BlockSize

	if err := target.Truncate(resumeAt + written); err != nil {
		return err
	}

	return target.Sync()
}

// copyArchiveMembers copies every raw member segment of one source
// archive into the target, skipping the source's terminator.
func (o *Operations) copyArchiveMembers(ctx context.Context, target *os.File, sourcePath string, opts config.Options) (int64, error) {
	source, err := blockio.OpenSeekableRead(sourcePath, opts.Compression)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	tr := tarfmt.NewReader(source)
	tr.IgnoreZeros = opts.IgnoreZeros
	tr.OnWarning = o.warnEntry

	var written int64
	for {
		if err := checkCancelled(ctx); err != nil {
			return written, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, err
		}

		start, dataStart := tr.EntryOffsets()
		end := dataStart + tarfmt.BlocksNeeded(hdr.Size)*config.BlockSize

		n, err := io.Copy(target, io.NewSectionReader(source, start, end-start))
		written += n
		if err != nil {
			return written, err
		}

		if verbose(opts) {
			o.printMember(hdr, opts)
		}
	}

	return written, nil
}
