package compression

import (
	"context"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/cosnicolaou/pbzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/pojntfx/gtar/pkg/config"
	"github.com/ulikunitz/xz"
)

// Decompress wraps src in a decompressing reader for the given
// format.
func Decompress(
	src io.Reader,
	compressionFormat string,
) (io.ReadCloser, error) {
	switch compressionFormat {
	case config.CompressionFormatGZipKey:
		return pgzip.NewReader(src)
	case config.CompressionFormatBzip2Key:
		bz := pbzip2.NewReader(context.Background(), src)

		return io.NopCloser(bz), nil
	case config.CompressionFormatXZKey:
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(xr), nil
	case config.CompressionFormatZStandardKey:
		zz, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(zz), nil
	case config.CompressionFormatLZ4Key:
		lz := lz4.NewReader(src)
		if err := lz.Apply(lz4.ConcurrencyOption(-1)); err != nil {
			return nil, err
		}

		return io.NopCloser(lz), nil
	case config.CompressionFormatBrotliKey:
		return io.NopCloser(brotli.NewReader(src)), nil
	case config.NoneKey:
		return io.NopCloser(src), nil
	default:
		return nil, config.ErrCompressionFormatUnsupported
	}
}
