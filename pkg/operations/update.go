package operations

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/pojntfx/gtar/pkg/blockio"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/fsys"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// Update appends only those configured paths that are missing from
// the archive or newer on disk than their archived copy.
func (o *Operations) Update(ctx context.Context, opts config.Options) error {
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

	archivedMTimes, err := o.scanArchiveMTimes(opts)
	if err != nil {
		return err
	}

	state, err := o.newWriteState(opts)
	if err != nil {
		return err
	}
	defer state.close()

	state.include = func(name string, st fsys.Stat) (bool, error) {
		archived, ok := archivedMTimes[strings.TrimSuffix(name, "/")]
		if !ok {
			return true, nil
		}

		// The archive stores whole seconds; round the disk mtime down
		// so sub-second noise does not re-add unchanged files.
		diskMTime := st.ModTime.Truncate(time.Second)

		return diskMTime.After(archived), nil
	}

	return o.appendEntries(ctx, opts, state, sources)
}

// scanArchiveMTimes maps each member name to its archived mtime; the
// last occurrence of a name wins, like extraction order would.
func (o *Operations) scanArchiveMTimes(opts config.Options) (map[string]time.Time, error) {
	rs, err := blockio.OpenRead(opts.ArchivePath, opts.Compression, opts.BlockingFactor)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	tr := tarfmt.NewReader(rs.R)
	tr.IgnoreZeros = opts.IgnoreZeros
	tr.OnWarning = o.warnEntry

	mtimes := map[string]time.Time{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if !tarfmt.IsRealType(hdr.Typeflag) {
			continue
		}

		mtimes[strings.TrimSuffix(hdr.Name, "/")] = hdr.ModTime
	}

	return mtimes, nil
}
