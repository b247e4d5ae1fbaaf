package operations

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pojntfx/gtar/internal/formatting"
	"github.com/pojntfx/gtar/internal/pathext"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/pojntfx/gtar/pkg/fsys"
	"github.com/pojntfx/gtar/pkg/logging"
	"github.com/pojntfx/gtar/pkg/tarfmt"
)

// Operations is the archive operation engine. One instance may be
// shared; each operation takes the disk lock for its lifetime.
type Operations struct {
	fs  fsys.FileSystem
	log logging.StructuredLogger

	// listW receives listing lines and diff reports; payloadW
	// receives member payloads under --to-stdout.
	listW    io.Writer
	payloadW io.Writer

	diskOperationLock sync.Mutex
}

func NewOperations(
	fs fsys.FileSystem,
	log logging.StructuredLogger,
	listW io.Writer,
	payloadW io.Writer,
) *Operations {
	if listW == nil {
		listW = os.Stdout
	}
	if payloadW == nil {
		payloadW = os.Stdout
	}

	return &Operations{
		fs:  fs,
		log: log,

		listW:    listW,
		payloadW: payloadW,
	}
}

// checkCancelled is polled between logical entries.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return config.ErrCancelled
	default:
		return nil
	}
}

func (o *Operations) warnEntry(err error, name string) {
	o.log.Warn("entry warning", "name", name, "error", err.Error())
}

func verbose(opts config.Options) bool {
	return opts.Verbosity == config.VerbosityVerboseKey || opts.Verbosity == config.VerbosityVeryVerboseKey
}

// printMember emits one member line for verbose create/extract.
func (o *Operations) printMember(hdr *tarfmt.Header, opts config.Options) {
	if !verbose(opts) {
		return
	}

	fmt.Fprintln(o.listW, formatting.EntryLine(hdr, opts.Verbosity == config.VerbosityVeryVerboseKey, opts.NumericOwner))
}

// resolveFileList merges the positional file list with --files-from.
func (o *Operations) resolveFileList(opts config.Options) ([]string, error) {
	sources := append([]string{}, opts.FileList...)

	if opts.FilesFrom != "" {
		fromFile, err := readListFile(o.fs, opts.FilesFrom, opts.NullTerminated)
		if err != nil {
			return nil, err
		}

		sources = append(sources, fromFile...)
	}

	return sources, nil
}

// resolveExcludes merges --exclude patterns with --exclude-from.
func (o *Operations) resolveExcludes(opts config.Options) ([]string, error) {
	patterns := append([]string{}, opts.ExcludePatterns...)

	if opts.ExcludeFrom != "" {
		fromFile, err := readListFile(o.fs, opts.ExcludeFrom, opts.NullTerminated)
		if err != nil {
			return nil, err
		}

		patterns = append(patterns, fromFile...)
	}

	return patterns, nil
}

func readListFile(fs fsys.FileSystem, path string, nullTerminated bool) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if nullTerminated {
		scanner.Split(scanNull)
	}

	var entries []string
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			entries = append(entries, line)
		}
	}

	return entries, scanner.Err()
}

func scanNull(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}

// applyTransforms runs the member-name transform hooks in order.
func applyTransforms(name string, opts config.Options) string {
	for _, transform := range opts.Transforms {
		name = transform(name)
	}

	return name
}

// memberName normalizes a path into the name stored in the archive.
func memberName(name string, isDir bool, opts config.Options) string {
	name = pathext.MakeRelative(name, opts.AbsoluteNames)
	name = applyTransforms(name, opts)

	if isDir && !strings.HasSuffix(name, "/") {
		name += "/"
	}

	return name
}

// selectedByFileList reports whether a member matches the extract/list
// name filter: exact match or directory prefix.
func selectedByFileList(fileList []string, name string) bool {
	if len(fileList) == 0 {
		return true
	}

	trimmed := strings.TrimSuffix(name, "/")
	for _, candidate := range fileList {
		candidate = strings.TrimSuffix(candidate, "/")

		if candidate == trimmed || strings.HasPrefix(trimmed, candidate+"/") {
			return true
		}
	}

	return false
}
