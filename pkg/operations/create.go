package operations

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pojntfx/gtar/internal/ioext"
	"github.com/pojntfx/gtar/internal/pathext"
	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/fsys"
	"github.com/pojntfx/gtar/pkg/persisters"
	"github.com/pojntfx/gtar/pkg/sparse"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

var errEmptyArchive = errors.New("refusing to create an empty archive")

// writeState carries the per-operation accumulators the walker needs:
// the hard-link table, the snapshot persister, and the optional
// update-mode inclusion filter.
type writeState struct {
	opts     config.Options
	excludes []string

	owners    *fsys.OwnerLookup
	hardLinks map[[2]uint64]string

	snapshot *persisters.SnapshotPersister

	// include decides whether a non-directory member is written;
	// update mode narrows this to newer-than-archive files.
	include func(name string, st fsys.Stat) (bool, error)

	headerCount uint32

	// archived collects written member names for --verify and
	// --remove-files.
	archived     []string
	archivedDirs []string
}

func (o *Operations) newWriteState(opts config.Options) (*writeState, error) {
	excludes, err := o.resolveExcludes(opts)
	if err != nil {
		return nil, err
	}

	state := &writeState{
		opts:     opts,
		excludes: excludes,

		owners:    fsys.NewOwnerLookup(opts.NumericOwner),
		hardLinks: map[[2]uint64]string{},
	}

	if opts.ListedIncremental != "" {
		state.snapshot = persisters.NewSnapshotPersister(opts.ListedIncremental)
		if err := state.snapshot.Open(); err != nil {
			return nil, err
		}
	}

	return state, nil
}

func (state *writeState) close() {
	if state.snapshot != nil {
		_ = state.snapshot.Close()
	}
}

// Create archives the configured paths into a new archive.
func (o *Operations) Create(ctx context.Context, opts config.Options) error {
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

	format, err := tarfmt.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	state, err := o.newWriteState(opts)
	if err != nil {
		return err
	}
	defer state.close()

	ws, err := blockio.OpenWrite(opts.ArchivePath, opts.Compression, opts.CompressionLevel, opts.BlockingFactor)
	if err != nil {
		return err
	}

	counter := &ioext.CounterWriter{Writer: ws.W}
	tw := tarfmt.NewWriter(counter, format)

	if err := o.writeEntries(ctx, tw, state, sources); err != nil {
		ws.Abort()

		return err
	}

	if err := tw.Close(); err != nil {
		ws.Abort()

		return err
	}

	if err := ws.Finish(); err != nil {
		return err
	}

	if state.snapshot != nil {
		if err := state.snapshot.Commit(ctx); err != nil {
			return err
		}
	}

	if opts.Totals {
		o.log.Info("total bytes written", "bytes", counter.BytesWritten)
	}

	if opts.Verify {
		verifyOpts := opts
		verifyOpts.FileList = nil
		verifyOpts.Verify = false

		differences, err := o.Diff(ctx, verifyOpts)
		if err != nil {
			return err
		}
		if differences > 0 {
			return config.ErrVerificationFailed
		}
	}

	if opts.RemoveFiles {
		if err := o.removeArchived(state); err != nil {
			return err
		}
	}

	return nil
}

// writeEntries walks the source paths and writes each as an entry.
// Shared by create, append, and update.
func (o *Operations) writeEntries(ctx context.Context, tw *tarfmt.Writer, state *writeState, sources []string) error {
	opts := state.opts

	for _, source := range sources {
		root := source
		if opts.Directory != "" {
			root = filepath.Join(opts.Directory, source)
		}

		var rootDev uint64
		seenRoot := false

		err := fsys.Walk(o.fs, root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if err := checkCancelled(ctx); err != nil {
				return err
			}

			name := path
			if opts.Directory != "" {
				if rel, relErr := filepath.Rel(opts.Directory, path); relErr == nil {
					name = rel
				}
			}

			if opts.Dereference && info.Mode()&fs.ModeSymlink != 0 {
				resolved, statErr := o.fs.Stat(path)
				if statErr != nil {
					return statErr
				}

				info = resolved
			}

			st, err := fsys.Enhance(info)
			if err != nil {
				return err
			}

			if !seenRoot {
				rootDev = st.Dev
				seenRoot = true
			}

			if opts.OneFileSystem && st.Dev != rootDev {
				if info.IsDir() {
					return fs.SkipDir
				}

				return nil
			}

			name = memberName(name, info.IsDir(), opts)
			if pathext.IsRoot(name, true) {
				return nil
			}

			if pathext.MatchesAnyExclude(state.excludes, name) {
				if info.IsDir() {
					return fs.SkipDir
				}

				return nil
			}

			if !info.IsDir() {
				if opts.NewerMTime != nil && !st.ModTime.After(*opts.NewerMTime) {
					return nil
				}

				if state.include != nil {
					ok, err := state.include(name, st)
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
				}

				if state.snapshot != nil {
					if err := state.snapshot.Record(ctx, name, st.Dev, st.Ino, st.ModTime.UnixNano()); err != nil {
						return err
					}

					recorded, ok, err := state.snapshot.Lookup(ctx, name)
					if err != nil {
						return err
					}
					if ok && st.ModTime.UnixNano() <= recorded {
						return nil
					}
				}
			}

			return o.writeOneEntry(tw, state, path, name, info, st)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// writeOneEntry builds and emits the header and payload for one
// filesystem object.
func (o *Operations) writeOneEntry(tw *tarfmt.Writer, state *writeState, path, name string, info fs.FileInfo, st fsys.Stat) error {
	opts := state.opts

	hdr := &tarfmt.Header{
		Name:    name,
		Mode:    int64(st.Mode.Perm()) | specialModeBits(st.Mode),
		UID:     st.UID,
		GID:     st.GID,
		ModTime: st.ModTime,
		Uname:   state.owners.Uname(st.UID),
		Gname:   state.owners.Gname(st.GID),
	}

	if opts.Format == config.FormatPAXKey {
		hdr.AccessTime = st.AccessTime
		hdr.ChangeTime = st.ChangeTime
	}

	if opts.XAttrs || opts.ACLs || opts.SELinux {
		if lister, ok := o.fs.(fsys.XattrLister); ok {
			xattrs, err := lister.ListXattrs(path)
			if err != nil {
				o.warnEntry(err, name)
			}

			for key, value := range xattrs {
				if !xattrSelected(key, opts) {
					continue
				}

				if hdr.PAXRecords == nil {
					hdr.PAXRecords = map[string]string{}
				}
				hdr.PAXRecords["SCHILY.xattr."+key] = value
			}
		}
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		target, err := o.fs.Readlink(path)
		if err != nil {
			return err
		}

		hdr.Typeflag = tarfmt.TypeSymlink
		hdr.Linkname = target
	case mode.IsDir():
		hdr.Typeflag = tarfmt.TypeDir
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		hdr.Typeflag = tarfmt.TypeChar
		hdr.Devmajor, hdr.Devminor = st.Devmajor, st.Devminor
	case mode&fs.ModeDevice != 0:
		hdr.Typeflag = tarfmt.TypeBlock
		hdr.Devmajor, hdr.Devminor = st.Devmajor, st.Devminor
	case mode&fs.ModeNamedPipe != 0:
		hdr.Typeflag = tarfmt.TypeFifo
	case mode&fs.ModeSocket != 0:
		// Sockets cannot be archived.
		o.warnEntry(errors.New("socket ignored"), name)

		return nil
	default:
		hdr.Typeflag = tarfmt.TypeReg
		hdr.Size = st.Size
	}

	// Hard links: the first path seen under a (dev, ino) pair becomes
	// the stored file, later ones become type-1 references to it.
	if hdr.Typeflag == tarfmt.TypeReg && st.Nlink > 1 {
		key := [2]uint64{st.Dev, st.Ino}
		if first, ok := state.hardLinks[key]; ok {
			hdr.Typeflag = tarfmt.TypeLink
			hdr.Linkname = first
			hdr.Size = 0
		} else {
			state.hardLinks[key] = name
		}
	}

	if hdr.Typeflag == tarfmt.TypeReg && hdr.Size > 0 {
		return o.writeRegular(tw, state, path, hdr)
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	o.finishMember(hdr, state, info.IsDir())

	return nil
}

// writeRegular streams a regular file's payload, sparse-aware.
func (o *Operations) writeRegular(tw *tarfmt.Writer, state *writeState, path string, hdr *tarfmt.Header) error {
	opts := state.opts

	f, err := o.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	logicalSize := hdr.Size

	if opts.Sparse && sparseCapable(opts.Format) {
		regions, err := sparse.Detect(f, logicalSize)
		if err != nil {
			return err
		}

		if sparse.IsWorthy(regions, logicalSize) {
			hdr.Sparse = regions
			hdr.RealSize = logicalSize
			hdr.Size = tarfmt.PhysicalSize(regions)

			if opts.Format == config.FormatGNUKey || opts.Format == config.FormatOldGNUKey {
				hdr.Typeflag = tarfmt.TypeGNUSparse
			}

			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}

			if err := sparse.WriteData(tw, f, regions); err != nil {
				return err
			}

			o.finishMember(hdr, state, false)

			return nil
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	if _, err := io.Copy(tw, f); err != nil {
		return err
	}

	o.finishMember(hdr, state, false)

	return nil
}

func (o *Operations) finishMember(hdr *tarfmt.Header, state *writeState, isDir bool) {
	o.printMember(hdr, state.opts)

	if isDir {
		state.archivedDirs = append(state.archivedDirs, strings.TrimSuffix(hdr.Name, "/"))
	} else {
		state.archived = append(state.archived, hdr.Name)
	}

	state.headerCount++
	if state.opts.Checkpoint != nil && *state.opts.Checkpoint > 0 && state.headerCount%*state.opts.Checkpoint == 0 {
		o.log.Info("checkpoint", "headers", state.headerCount)
	}
}

// removeArchived deletes the source files after a successful create:
// files first, then emptied directories bottom up.
func (o *Operations) removeArchived(state *writeState) error {
	opts := state.opts

	for _, name := range state.archived {
		path := name
		if opts.Directory != "" {
			path = filepath.Join(opts.Directory, name)
		}

		if err := o.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	dirs := append([]string{}, state.archivedDirs...)
	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i]) > len(dirs[j])
	})

	for _, name := range dirs {
		path := name
		if opts.Directory != "" {
			path = filepath.Join(opts.Directory, name)
		}

		if err := o.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			o.warnEntry(err, name)
		}
	}

	return nil
}

// specialModeBits maps the fs.FileMode permission extensions onto the
// tar mode bits.
func specialModeBits(mode fs.FileMode) int64 {
	var bits int64
	if mode&fs.ModeSetuid != 0 {
		bits |= 04000
	}
	if mode&fs.ModeSetgid != 0 {
		bits |= 02000
	}
	if mode&fs.ModeSticky != 0 {
		bits |= 01000
	}

	return bits
}

// xattrSelected gates attribute namespaces on the carriage flags.
func xattrSelected(key string, opts config.Options) bool {
	switch {
	case strings.HasPrefix(key, "security.selinux"):
		return opts.SELinux
	case strings.HasPrefix(key, "system.posix_acl_"):
		return opts.ACLs
	default:
		return opts.XAttrs
	}
}

// sparseCapable reports whether the dialect can represent sparse
// members.
func sparseCapable(format string) bool {
	switch format {
	case config.FormatPAXKey, config.FormatGNUKey, config.FormatOldGNUKey:
		return true
	default:
		return false
	}
}
