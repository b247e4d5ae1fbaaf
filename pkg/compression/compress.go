package compression

import (
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/pojntfx/gtar/internal/ioext"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/ulikunitz/xz"
)

// pgzip compresses 64 KiB chunks in parallel; a record buffer below
// one chunk gains nothing from it, so those use the stdlib encoder.
const parallelGZipMinBuffer = 64 * 1024

// Compress wraps dst in a compressing writer for the given format.
// The caller must Flush and Close the returned writer before closing
// dst. blockingFactor is the record size in 512-byte blocks; it picks
// the gzip encoder.
func Compress(
	dst io.Writer,
	compressionFormat string,
	compressionLevel string,
	blockingFactor uint32,
) (ioext.Flusher, error) {
	switch compressionFormat {
	case config.CompressionFormatGZipKey:
		if int(blockingFactor)*config.BlockSize < parallelGZipMinBuffer {
			l := gzip.DefaultCompression
			switch compressionLevel {
			case config.CompressionLevelFastestKey:
				l = gzip.BestSpeed
			case config.CompressionLevelBalancedKey:
				l = gzip.DefaultCompression
			case config.CompressionLevelSmallestKey:
				l = gzip.BestCompression
			default:
				return nil, config.ErrCompressionLevelUnsupported
			}

			return gzip.NewWriterLevel(dst, l)
		}

		l := pgzip.DefaultCompression
		switch compressionLevel {
		case config.CompressionLevelFastestKey:
			l = pgzip.BestSpeed
		case config.CompressionLevelBalancedKey:
			l = pgzip.DefaultCompression
		case config.CompressionLevelSmallestKey:
			l = pgzip.BestCompression
		default:
			return nil, config.ErrCompressionLevelUnsupported
		}

		return pgzip.NewWriterLevel(dst, l)
	case config.CompressionFormatBzip2Key:
		l := bzip2.DefaultCompression
		switch compressionLevel {
		case config.CompressionLevelFastestKey:
			l = bzip2.BestSpeed
		case config.CompressionLevelBalancedKey:
			l = bzip2.DefaultCompression
		case config.CompressionLevelSmallestKey:
			l = bzip2.BestCompression
		default:
			return nil, config.ErrCompressionLevelUnsupported
		}

		bz, err := bzip2.NewWriter(dst, &bzip2.WriterConfig{
			Level: l,
		})
		if err != nil {
			return nil, err
		}

		return ioext.AddFlush(bz), nil
	case config.CompressionFormatXZKey:
		xw, err := xz.NewWriter(dst)
		if err != nil {
			return nil, err
		}

		return ioext.AddFlush(xw), nil
	case config.CompressionFormatZStandardKey:
		l := zstd.SpeedDefault
		switch compressionLevel {
		case config.CompressionLevelFastestKey:
			l = zstd.SpeedFastest
		case config.CompressionLevelBalancedKey:
			l = zstd.SpeedDefault
		case config.CompressionLevelSmallestKey:
			l = zstd.SpeedBestCompression
		default:
			return nil, config.ErrCompressionLevelUnsupported
		}

		zz, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(l))
		if err != nil {
			return nil, err
		}

		return zz, nil
	case config.CompressionFormatLZ4Key:
		l := lz4.Level5
		switch compressionLevel {
		case config.CompressionLevelFastestKey:
			l = lz4.Level1
		case config.CompressionLevelBalancedKey:
			l = lz4.Level5
		case config.CompressionLevelSmallestKey:
			l = lz4.Level9
		default:
			return nil, config.ErrCompressionLevelUnsupported
		}

		lz := lz4.NewWriter(dst)
		if err := lz.Apply(lz4.CompressionLevelOption(l), lz4.ConcurrencyOption(-1)); err != nil {
			return nil, err
		}

		return ioext.AddFlush(lz), nil
	case config.CompressionFormatBrotliKey:
		l := brotli.DefaultCompression
		switch compressionLevel {
		case config.CompressionLevelFastestKey:
			l = brotli.BestSpeed
		case config.CompressionLevelBalancedKey:
			l = brotli.DefaultCompression
		case config.CompressionLevelSmallestKey:
			l = brotli.BestCompression
		default:
			return nil, config.ErrCompressionLevelUnsupported
		}

		return brotli.NewWriterLevel(dst, l), nil
	case config.NoneKey:
		return ioext.AddFlush(ioext.AddClose(dst)), nil
	default:
		return nil, config.ErrCompressionFormatUnsupported
	}
}
