package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pojntfx/gtar/internal/pathext"
	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/fsys"
	"github.com/pojntfx/gtar/pkg/sparse"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// Diff compares the archive's members against the filesystem and
// reports the differences it finds, returning how many were found. A
// type, size, content or link-target difference ends the checks for
// that member, so its mode and mtime are then not compared.
func (o *Operations) Diff(ctx context.Context, opts config.Options) (int, error) {
	opts = opts.WithDefaults()
	if err := opts.Check(); err != nil {
		return 0, err
	}

	excludes, err := o.resolveExcludes(opts)
	if err != nil {
		return 0, err
	}

	fileList, err := o.resolveFileList(opts)
	if err != nil {
		return 0, err
	}

	rs, err := blockio.OpenRead(opts.ArchivePath, opts.Compression, opts.BlockingFactor)
	if err != nil {
		return 0, err
	}
	defer rs.Close()

	tr := tarfmt.NewReader(rs.R)
	tr.IgnoreZeros = opts.IgnoreZeros
	tr.OnWarning = o.warnEntry

	differences := 0
	report := func(name, what string) {
		differences++
		fmt.Fprintf(o.listW, "%s: %s\n", name, what)
	}

	for {
		if err := checkCancelled(ctx); err != nil {
			return differences, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return differences, err
		}

		if !tarfmt.IsRealType(hdr.Typeflag) || hdr.Typeflag == tarfmt.TypeGNUMultiVol {
			continue
		}

		if pathext.MatchesAnyExclude(excludes, hdr.Name) || !selectedByFileList(fileList, hdr.Name) {
			continue
		}

		path := pathext.MakeRelative(hdr.Name, opts.AbsoluteNames)
		if opts.Directory != "" {
			path = filepath.Join(opts.Directory, path)
		}

		info, err := o.fs.Lstat(path)
		if err != nil {
			report(hdr.Name, "No such file or directory")

			continue
		}

		st, err := fsys.Enhance(info)
		if err != nil {
			return differences, err
		}

		o.diffOne(tr, hdr, path, info.Mode(), st, opts, report)
	}

	return differences, nil
}

func (o *Operations) diffOne(
	tr *tarfmt.Reader,
	hdr *tarfmt.Header,
	path string,
	mode os.FileMode,
	st fsys.Stat,
	opts config.Options,
	report func(name, what string),
) {
	if !typeMatches(hdr.Typeflag, mode) {
		report(hdr.Name, "File type differs")

		return
	}

	switch hdr.Typeflag {
	case tarfmt.TypeSymlink:
		target, err := o.fs.Readlink(path)
		if err != nil || target != hdr.Linkname {
			report(hdr.Name, "Symlink differs")
		}

		return
	case tarfmt.TypeDir, tarfmt.TypeLink, tarfmt.TypeFifo, tarfmt.TypeChar, tarfmt.TypeBlock:
	default:
		if st.Size != hdr.LogicalSize() {
			report(hdr.Name, "Size differs")

			return
		}

		if !o.contentMatches(tr, hdr, path) {
			report(hdr.Name, "Contents differ")

			return
		}
	}

	if hdr.Typeflag != tarfmt.TypeSymlink {
		if mode.Perm() != os.FileMode(hdr.Mode&0777) {
			report(hdr.Name, "Mode differs")
		}

		if !st.ModTime.Truncate(time.Second).Equal(hdr.ModTime.Truncate(time.Second)) {
			report(hdr.Name, "Mod time differs")
		}
	}
}

// contentMatches streams the archive payload and the file side by
// side. Sparse members are expanded before comparing.
func (o *Operations) contentMatches(tr *tarfmt.Reader, hdr *tarfmt.Header, path string) bool {
	f, err := o.fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var archived io.Reader = tr
	if hdr.IsSparse() {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(sparse.ExtractDense(pw, tr, hdr.Sparse, hdr.LogicalSize()))
		}()
		archived = pr
	}

	archiveBuf := make([]byte, 64*1024)
	fileBuf := make([]byte, 64*1024)

	for {
		n, err := io.ReadFull(archived, archiveBuf)
		if n > 0 {
			if _, ferr := io.ReadFull(f, fileBuf[:n]); ferr != nil {
				return false
			}

			if !bytes.Equal(archiveBuf[:n], fileBuf[:n]) {
				return false
			}
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return false
		}
	}

	// The file must not have trailing bytes beyond the member.
	var tail [1]byte
	if n, _ := f.Read(tail[:]); n > 0 {
		return false
	}

	return true
}

func typeMatches(typeflag byte, mode os.FileMode) bool {
	switch typeflag {
	case tarfmt.TypeDir:
		return mode.IsDir()
	case tarfmt.TypeSymlink:
		return mode&os.ModeSymlink != 0
	case tarfmt.TypeChar:
		return mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0
	case tarfmt.TypeBlock:
		return mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
	case tarfmt.TypeFifo:
		return mode&os.ModeNamedPipe != 0
	case tarfmt.TypeLink:
		return !mode.IsDir()
	default:
		return mode.IsRegular()
	}
}
