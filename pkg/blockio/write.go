package blockio

import (
	"bufio"
	"io"
	"os"

	"github.com/pojntfx/gtar/internal/ioext"
	"github.com/pojntfx/gtar/pkg/compression"
	"github.com/pojntfx/gtar/pkg/config"
)

// WriteStream is the write side: a compressing filter over a buffered
// archive file or stdout.
type WriteStream struct {
	// W is the stream the tar writer should target.
	W io.Writer

	// Compression is the resolved format key.
	Compression string

	compressor ioext.Flusher
	buffered   *bufio.Writer
	file       *os.File
	isStdout   bool
}

// OpenWrite creates or truncates archivePath for writing. An empty
// path writes to stdout. "auto" compression resolves by suffix, with
// stdout defaulting to none.
func OpenWrite(archivePath string, compressionFormat string, compressionLevel string, blockingFactor uint32) (*WriteStream, error) {
	format := compressionFormat
	if format == config.CompressionFormatAutoKey {
		format = compression.DetectBySuffix(archivePath)
	}

	ws := &WriteStream{Compression: format}

	if archivePath == "" {
		ws.file = os.Stdout
		ws.isStdout = true
	} else {
		f, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, err
		}

		ws.file = f
	}

	ws.buffered = bufio.NewWriterSize(ws.file, int(blockingFactor)*config.BlockSize)

	compressor, err := compression.Compress(ws.buffered, format, compressionLevel, blockingFactor)
	if err != nil {
		if !ws.isStdout {
			_ = ws.file.Close()
		}

		return nil, err
	}
	ws.compressor = compressor
	ws.W = compressor

	return ws, nil
}

// Finish flushes and closes the filter, drains the buffer, and closes
// the file.
func (ws *WriteStream) Finish() error {
	if err := ws.compressor.Flush(); err != nil {
		return err
	}
	if err := ws.compressor.Close(); err != nil {
		return err
	}
	if err := ws.buffered.Flush(); err != nil {
		return err
	}

	if ws.isStdout {
		return nil
	}

	return ws.file.Close()
}

// Abort closes the file without caring about buffered state, for
// error paths.
func (ws *WriteStream) Abort() {
	if !ws.isStdout {
		_ = ws.file.Close()
	}
}
