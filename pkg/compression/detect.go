package compression

import (
	"bytes"
	"strings"

	"github.com/pojntfx/gtar/pkg/config"
)

// Suffixes each compression format announces on archive names.
var formatSuffixes = map[string][]string{
	config.CompressionFormatGZipKey:      {".gz", ".tgz", ".taz"},
	config.CompressionFormatBzip2Key:     {".bz2", ".tbz", ".tbz2", ".tz2"},
	config.CompressionFormatXZKey:        {".xz", ".txz"},
	config.CompressionFormatZStandardKey: {".zst", ".tzst"},
	config.CompressionFormatLZ4Key:       {".lz4"},
	config.CompressionFormatBrotliKey:    {".br"},
}

// Leading magic bytes per format.
var formatMagics = []struct {
	format string
	magic  []byte
}{
	{config.CompressionFormatGZipKey, []byte{0x1f, 0x8b}},
	{config.CompressionFormatBzip2Key, []byte{0x42, 0x5a, 0x68}},
	{config.CompressionFormatXZKey, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{config.CompressionFormatZStandardKey, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{config.CompressionFormatLZ4Key, []byte{0x04, 0x22, 0x4d, 0x18}},
}

// MaxMagicLen is how many leading bytes DetectByMagic needs.
const MaxMagicLen = 6

// DetectBySuffix maps an archive file name to a compression format,
// returning NoneKey when no known suffix matches.
func DetectBySuffix(name string) string {
	for format, suffixes := range formatSuffixes {
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				return format
			}
		}
	}

	return config.NoneKey
}

// DetectByMagic sniffs the leading bytes of an archive. Brotli has no
// magic and is only reachable by suffix.
func DetectByMagic(head []byte) string {
	for _, candidate := range formatMagics {
		if bytes.HasPrefix(head, candidate.magic) {
			return candidate.format
		}
	}

	return config.NoneKey
}

// Suffix returns the canonical suffix for a format, for suffix-adding
// helpers.
func Suffix(format string) string {
	if suffixes, ok := formatSuffixes[format]; ok {
		return suffixes[0]
	}

	return ""
}
