package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pojntfx/gtar/internal/pathext"
	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/fsys"
	"github.com/pojntfx/gtar/pkg/sparse"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// deferredDir remembers a directory whose mode and mtime must be set
// after its contents have been materialized.
type deferredDir struct {
	path string
	hdr  *tarfmt.Header
}

// Extract materializes the archive's members under the target
// directory.
func (o *Operations) Extract(ctx context.Context, opts config.Options) error {
	o.diskOperationLock.Lock()
	defer o.diskOperationLock.Unlock()

	opts = opts.WithDefaults()
	if err := opts.Check(); err != nil {
		return err
	}

	excludes, err := o.resolveExcludes(opts)
	if err != nil {
		return err
	}

	fileList, err := o.resolveFileList(opts)
	if err != nil {
		return err
	}

	rs, err := blockio.OpenRead(opts.ArchivePath, opts.Compression, opts.BlockingFactor)
	if err != nil {
		return err
	}
	defer rs.Close()

	tr := tarfmt.NewReader(rs.R)
	tr.IgnoreZeros = opts.IgnoreZeros
	tr.OnWarning = o.warnEntry

	var deferredDirs []deferredDir

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

		if !tarfmt.IsRealType(hdr.Typeflag) || hdr.Typeflag == tarfmt.TypeGNUMultiVol {
			continue
		}

		name, ok := pathext.StripComponents(hdr.Name, opts.StripComponents)
		if !ok || pathext.IsRoot(name, true) {
			continue
		}
		name = pathext.MakeRelative(name, false)
		name = applyTransforms(name, opts)

		if pathext.MatchesAnyExclude(excludes, name) || !selectedByFileList(fileList, hdr.Name) {
			continue
		}

		if opts.ToStdout {
			if isRegularType(hdr.Typeflag) || hdr.IsSparse() {
				if err := o.payloadToStdout(tr, hdr); err != nil {
					return err
				}
			}

			o.printMember(hdr, opts)

			continue
		}

		target := name
		if opts.Directory != "" {
			target = filepath.Join(opts.Directory, name)
		}

		deferred, err := o.materialize(tr, hdr, target, opts)
		if err != nil {
			return err
		}
		if deferred {
			deferredDirs = append(deferredDirs, deferredDir{path: target, hdr: hdr})
		}

		o.printMember(hdr, opts)
	}

	// Directory attributes go last, deepest first, so member writes
	// do not disturb them.
	sort.Slice(deferredDirs, func(i, j int) bool {
		return len(deferredDirs[i].path) > len(deferredDirs[j].path)
	})

	for _, dir := range deferredDirs {
		o.restoreAttributes(dir.path, dir.hdr, opts)
	}

	return nil
}

// payloadToStdout streams the member's logical contents to the payload
// writer, expanding sparse members.
func (o *Operations) payloadToStdout(tr *tarfmt.Reader, hdr *tarfmt.Header) error {
	if hdr.IsSparse() {
		return sparse.ExtractDense(o.payloadW, tr, hdr.Sparse, hdr.LogicalSize())
	}

	_, err := io.Copy(o.payloadW, tr)

	return err
}

// materialize creates one filesystem object for hdr. It reports
// whether attribute restoration was deferred (directories).
func (o *Operations) materialize(tr *tarfmt.Reader, hdr *tarfmt.Header, target string, opts config.Options) (bool, error) {
	switch hdr.Typeflag {
	case tarfmt.TypeDir:
		if err := o.fs.MkdirAll(target, os.FileMode(hdr.Mode&07777)|0700); err != nil {
			return false, err
		}

		return true, nil
	case tarfmt.TypeSymlink:
		if err := o.prepareTarget(target, hdr, opts); err != nil {
			return false, skipIfRefused(err)
		}

		if err := o.fs.Symlink(hdr.Linkname, target); err != nil {
			return false, err
		}

		o.restoreOwnership(target, hdr, opts)

		return false, nil
	case tarfmt.TypeLink:
		if err := o.prepareTarget(target, hdr, opts); err != nil {
			return false, skipIfRefused(err)
		}

		linkTarget := hdr.Linkname
		if opts.Directory != "" {
			linkTarget = filepath.Join(opts.Directory, pathext.MakeRelative(hdr.Linkname, false))
		}

		if err := o.fs.Link(linkTarget, target); err != nil {
			// Fall back to copying the link target's contents.
			o.warnEntry(fmt.Errorf("hard link failed, copying contents: %w", err), hdr.Name)

			if err := o.copyFile(linkTarget, target, hdr, opts); err != nil {
				return false, err
			}
		}

		return false, nil
	case tarfmt.TypeChar, tarfmt.TypeBlock:
		if err := o.prepareTarget(target, hdr, opts); err != nil {
			return false, skipIfRefused(err)
		}

		mode := uint32(hdr.Mode & 07777)
		if hdr.Typeflag == tarfmt.TypeChar {
			mode |= unixCharDevice
		} else {
			mode |= unixBlockDevice
		}

		if err := o.fs.Mknod(target, mode, fsys.Mkdev(hdr.Devmajor, hdr.Devminor)); err != nil {
			o.warnEntry(err, hdr.Name)

			return false, nil
		}

		o.restoreAttributes(target, hdr, opts)

		return false, nil
	case tarfmt.TypeFifo:
		if err := o.prepareTarget(target, hdr, opts); err != nil {
			return false, skipIfRefused(err)
		}

		if err := o.fs.Mkfifo(target, uint32(hdr.Mode&07777)); err != nil {
			o.warnEntry(err, hdr.Name)

			return false, nil
		}

		o.restoreAttributes(target, hdr, opts)

		return false, nil
	default:
		// Regular members and anything with an unknown typeflag.
		if err := o.prepareTarget(target, hdr, opts); err != nil {
			return false, skipIfRefused(err)
		}

		if err := o.extractRegular(tr, hdr, target, opts); err != nil {
			return false, err
		}

		return false, nil
	}
}

var errSkipMember = errors.New("member skipped by overwrite policy")

// prepareTarget creates parent directories and applies the overwrite
// policy to an existing file at target.
func (o *Operations) prepareTarget(target string, hdr *tarfmt.Header, opts config.Options) error {
	if parent := filepath.Dir(target); parent != "." && parent != "/" {
		if err := o.fs.MkdirAll(parent, 0755); err != nil {
			return err
		}
	}

	info, err := o.fs.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	if info.IsDir() {
		// Directories are merged, never replaced.
		return nil
	}

	switch opts.OverwriteMode {
	case config.OverwriteModeKeepOldKey:
		return fmt.Errorf("%q: %w", target, config.ErrOverwriteRefused)
	case config.OverwriteModeKeepNewerKey:
		if !info.ModTime().Before(hdr.ModTime) {
			return errSkipMember
		}
	case config.OverwriteModeSkipOldKey:
		return errSkipMember
	}

	// Plain overwrite truncates a regular file in place, so other
	// hard links to it keep seeing the new contents. Everything else
	// (unlink-first, non-regular members, type changes) removes the
	// old file so the new object lands cleanly.
	if opts.OverwriteMode != config.OverwriteModeUnlinkFirstKey &&
		isRegularType(hdr.Typeflag) && info.Mode().IsRegular() {
		return nil
	}

	if err := o.fs.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// skipIfRefused converts the policy skip into consuming the member
// quietly while letting real errors propagate.
func skipIfRefused(err error) error {
	if errors.Is(err, errSkipMember) {
		return nil
	}

	return err
}

// extractRegular writes a regular member, sparse-aware.
func (o *Operations) extractRegular(tr *tarfmt.Reader, hdr *tarfmt.Header, target string, opts config.Options) error {
	f, err := o.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode&0777)|0200)
	if err != nil {
		return err
	}

	if hdr.IsSparse() {
		err = sparse.Extract(f, tr, hdr.Sparse, hdr.LogicalSize())
	} else {
		_, err = io.Copy(f, tr)
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	o.restoreAttributes(target, hdr, opts)

	return nil
}

// copyFile materializes a hard link as a copy of its target.
func (o *Operations) copyFile(from, to string, hdr *tarfmt.Header, opts config.Options) error {
	src, err := o.fs.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := o.fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode&0777)|0200)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	o.restoreAttributes(to, hdr, opts)

	return nil
}

// restoreAttributes applies mode, times, and ownership per the
// preservation options. Failures are non-fatal.
func (o *Operations) restoreAttributes(target string, hdr *tarfmt.Header, opts config.Options) {
	if opts.PreservePermissions {
		if err := o.fs.Chmod(target, os.FileMode(hdr.Mode&07777)); err != nil {
			o.warnEntry(err, hdr.Name)
		}
	}

	if !opts.Touch {
		atime := hdr.AccessTime
		if atime.IsZero() {
			atime = hdr.ModTime
		}

		if err := o.fs.Chtimes(target, atime, hdr.ModTime); err != nil {
			o.warnEntry(err, hdr.Name)
		}
	}

	o.restoreOwnership(target, hdr, opts)
}

// restoreOwnership applies uid/gid when running with the privilege to
// do so. Failures are non-fatal.
func (o *Operations) restoreOwnership(target string, hdr *tarfmt.Header, opts config.Options) {
	if !opts.PreservePermissions || os.Geteuid() != 0 {
		return
	}

	if err := o.fs.Lchown(target, int(hdr.UID), int(hdr.GID)); err != nil {
		o.warnEntry(err, hdr.Name)
	}
}

func isRegularType(typeflag byte) bool {
	switch typeflag {
	case tarfmt.TypeReg, tarfmt.TypeRegA, tarfmt.TypeCont, tarfmt.TypeGNUSparse:
		return true
	default:
		return false
	}
}

const (
	unixCharDevice  = 0x2000
	unixBlockDevice = 0x6000
)
