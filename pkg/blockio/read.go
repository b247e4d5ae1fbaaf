package blockio

import (
	"bufio"
	"io"
	"os"

	"github.com/pojntfx/gtar/pkg/compression"
	"github.com/pojntfx/gtar/pkg/config"
)

// ReadStream is a block-aligned read side over an archive file or
// stdin, with the compression filter already applied. It owns the
// underlying handle for the duration of one operation.
type ReadStream struct {
	// R is the (decompressed) tar stream.
	R io.Reader

	// Compression is the resolved format key.
	Compression string

	closers []io.Closer
}

// OpenRead opens archivePath for reading, resolving "auto" compression
// by suffix first and magic bytes second. An empty path reads stdin.
func OpenRead(archivePath string, compressionFormat string, blockingFactor uint32) (*ReadStream, error) {
	var (
		src     io.Reader
		closers []io.Closer
	)

	if archivePath == "" {
		src = os.Stdin
	} else {
		f, err := os.Open(archivePath)
		if err != nil {
			return nil, err
		}

		src = f
		closers = append(closers, f)
	}

	buffered := bufio.NewReaderSize(src, int(blockingFactor)*config.BlockSize)

	format := compressionFormat
	if format == config.CompressionFormatAutoKey {
		format = compression.DetectBySuffix(archivePath)

		if format == config.NoneKey {
			head, err := buffered.Peek(compression.MaxMagicLen)
			if err == nil || len(head) > 0 {
				format = compression.DetectByMagic(head)
			}
		}
	}

	decompressor, err := compression.Decompress(buffered, format)
	if err != nil {
		for _, closer := range closers {
			_ = closer.Close()
		}

		return nil, err
	}
	closers = append(closers, decompressor)

	return &ReadStream{
		R:           decompressor,
		Compression: format,
		closers:     closers,
	}, nil
}

// Close releases the filter and the file handle.
func (rs *ReadStream) Close() error {
	var firstErr error
	for i := len(rs.closers) - 1; i >= 0; i-- {
		if err := rs.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
