package compression

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/pojntfx/gtar/pkg/config"
)

func TestDetectBySuffix(t *testing.T) {
	for _, tc := range []struct {
		name string
		want string
	}{
		{"backup.tar.gz", config.CompressionFormatGZipKey},
		{"backup.tgz", config.CompressionFormatGZipKey},
		{"backup.tar.bz2", config.CompressionFormatBzip2Key},
		{"backup.tbz", config.CompressionFormatBzip2Key},
		{"backup.tar.xz", config.CompressionFormatXZKey},
		{"backup.txz", config.CompressionFormatXZKey},
		{"backup.tar.zst", config.CompressionFormatZStandardKey},
		{"backup.tzst", config.CompressionFormatZStandardKey},
		{"backup.tar.lz4", config.CompressionFormatLZ4Key},
		{"backup.tar.br", config.CompressionFormatBrotliKey},
		{"backup.tar", config.NoneKey},
		{"", config.NoneKey},
	} {
		if got := DetectBySuffix(tc.name); got != tc.want {
			t.Errorf("DetectBySuffix(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDetectByMagic(t *testing.T) {
	for _, tc := range []struct {
		head []byte
		want string
	}{
		{[]byte{0x1f, 0x8b, 0x08}, config.CompressionFormatGZipKey},
		{[]byte{0x42, 0x5a, 0x68, 0x39}, config.CompressionFormatBzip2Key},
		{[]byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, config.CompressionFormatXZKey},
		{[]byte{0x28, 0xb5, 0x2f, 0xfd}, config.CompressionFormatZStandardKey},
		{[]byte{0x04, 0x22, 0x4d, 0x18}, config.CompressionFormatLZ4Key},
		{[]byte("ustar"), config.NoneKey},
		{nil, config.NoneKey},
	} {
		if got := DetectByMagic(tc.head); got != tc.want {
			t.Errorf("DetectByMagic(%v) = %q, want %q", tc.head, got, tc.want)
		}
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("some compressible data\n"), 1024)

	formats := []string{
		config.NoneKey,
		config.CompressionFormatGZipKey,
		config.CompressionFormatBzip2Key,
		config.CompressionFormatXZKey,
		config.CompressionFormatZStandardKey,
		config.CompressionFormatLZ4Key,
		config.CompressionFormatBrotliKey,
	}

	// A small blocking factor selects the stdlib gzip encoder, a large
	// one the parallel encoder; both must interoperate with Decompress.
	blockingFactors := []uint32{config.DefaultBlockingFactor, 256}

	for _, format := range formats {
		for _, blockingFactor := range blockingFactors {
			name := format
			if name == "" {
				name = "none"
			}
			name = fmt.Sprintf("%s-b%d", name, blockingFactor)

			t.Run(name, func(t *testing.T) {
				var compressed bytes.Buffer

				w, err := Compress(&compressed, format, config.CompressionLevelBalancedKey, blockingFactor)
				if err != nil {
					t.Fatal(err)
				}

				if _, err := w.Write(payload); err != nil {
					t.Fatal(err)
				}
				if err := w.Flush(); err != nil {
					t.Fatal(err)
				}
				if err := w.Close(); err != nil {
					t.Fatal(err)
				}

				r, err := Decompress(&compressed, format)
				if err != nil {
					t.Fatal(err)
				}

				got, err := io.ReadAll(r)
				if err != nil {
					t.Fatal(err)
				}
				if err := r.Close(); err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(got, payload) {
					t.Errorf("round trip through %q mangled the payload", format)
				}
			})
		}
	}
}

func TestCompressUnknownFormat(t *testing.T) {
	if _, err := Compress(io.Discard, "snappy", config.CompressionLevelBalancedKey, config.DefaultBlockingFactor); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
