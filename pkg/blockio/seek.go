package blockio

import (
	"fmt"
	"os"

	"github.com/pojntfx/gtar/pkg/compression"
	"github.com/pojntfx/gtar/pkg/config"
)

// OpenReadWrite opens an archive for in-place editing (append,
// update, concatenate targets). Compressed archives are rejected: a
// filter stream is not seekable.
func OpenReadWrite(archivePath string, compressionFormat string) (*os.File, error) {
	if archivePath == "" {
		return nil, config.ErrMissingArchive
	}

	if err := rejectCompressed(archivePath, compressionFormat); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(archivePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	if err := checkSeekable(f); err != nil {
		_ = f.Close()

		return nil, err
	}

	return f, nil
}

// OpenSeekableRead opens an archive read-only for block-addressed
// copying (concatenate sources, delete scans).
func OpenSeekableRead(archivePath string, compressionFormat string) (*os.File, error) {
	if archivePath == "" {
		return nil, config.ErrMissingArchive
	}

	if err := rejectCompressed(archivePath, compressionFormat); err != nil {
		return nil, err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}

	if err := checkSeekable(f); err != nil {
		_ = f.Close()

		return nil, err
	}

	return f, nil
}

func rejectCompressed(archivePath string, compressionFormat string) error {
	format := compressionFormat
	if format == config.CompressionFormatAutoKey {
		format = compression.DetectBySuffix(archivePath)
	}
	if format != config.NoneKey {
		return config.ErrCompressedArchiveNotSeekable
	}

	return nil
}

// checkSeekable verifies the archive is block-aligned and not secretly
// a compressed stream, then rewinds it.
func checkSeekable(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size()%config.BlockSize != 0 {
		return fmt.Errorf("archive size %d is not block-aligned: %w", info.Size(), config.ErrInvalidArchive)
	}

	head := make([]byte, compression.MaxMagicLen)
	if n, _ := f.ReadAt(head, 0); n > 0 {
		if compression.DetectByMagic(head[:n]) != config.NoneKey {
			return config.ErrCompressedArchiveNotSeekable
		}
	}

	if _, err := f.Seek(0, 0); err != nil {
		return err
	}

	return nil
}
