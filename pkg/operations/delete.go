package operations

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// Delete removes the members matching the configured patterns from an
// uncompressed archive. The surviving members are stream-copied, raw
// blocks untouched, into a temp file that atomically replaces the
// original; the original is never modified in place.
func (o *Operations) Delete(ctx context.Context, opts config.Options) error {
	o.diskOperationLock.Lock()
	defer o.diskOperationLock.Unlock()

	opts = opts.WithDefaults()
	if err := opts.Check(); err != nil {
		return err
	}

	patterns, err := o.resolveFileList(opts)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		return errEmptyArchive
	}

	f, err := blockio.OpenSeekableRead(opts.ArchivePath, opts.Compression)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	dir := filepath.Dir(opts.ArchivePath)
	tmp, err := os.CreateTemp(dir, ".gtar-delete-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if err := o.copySurvivors(ctx, f, tmp, patterns, opts); err != nil {
		cleanup()

		return err
	}

	if err := tmp.Chmod(info.Mode()); err != nil {
		cleanup()

		return err
	}

	if err := tmp.Sync(); err != nil {
		cleanup()

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)

		return err
	}

	return os.Rename(tmpPath, opts.ArchivePath)
}

func (o *Operations) copySurvivors(ctx context.Context, f *os.File, tmp *os.File, patterns []string, opts config.Options) error {
	tr := tarfmt.NewReader(f)
	tr.IgnoreZeros = opts.IgnoreZeros
	tr.OnWarning = o.warnEntry

	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		start, dataStart := tr.EntryOffsets()
		end := dataStart + tarfmt.BlocksNeeded(hdr.Size)*config.BlockSize

		if matchesDeletePattern(patterns, hdr.Name) {
			if verbose(opts) {
				o.printMember(hdr, opts)
			}

			continue
		}

		// Copy the whole raw segment (pre-entries, header, data,
		// padding) byte-identically. ReadAt leaves the sequential
		// scan position alone.
		if _, err := io.Copy(tmp, io.NewSectionReader(f, start, end-start)); err != nil {
			return err
		}
	}

	var terminator [2 * config.BlockSize]byte
	if _, err := tmp.Write(terminator[:]); err != nil {
		return err
	}

	return nil
}

// matchesDeletePattern implements the delete matcher: exact name,
// directory prefix followed by "/", or the pattern's own trailing
// slash marking a directory.
func matchesDeletePattern(patterns []string, name string) bool {
	trimmed := strings.TrimSuffix(name, "/")

	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")

		if pattern == trimmed || strings.HasPrefix(trimmed, pattern+"/") {
			return true
		}
	}

	return false
}
