package tarfmt

import (
	"github.com/pojntfx/gtar/pkg/config"
)

// Format is the archive dialect a header is encoded in.
type Format int

const (
	FormatUnknown Format = iota

	// FormatV7 is the original Unix V7 tar format: no magic, names up
	// to 100 bytes, octal fields only.
	FormatV7

	// FormatUSTAR is POSIX.1-1988: "ustar\x00" magic, prefix field,
	// still octal-only.
	FormatUSTAR

	// FormatOldGNU is the pre-1.12 GNU format: "ustar  " magic,
	// in-header sparse maps, base-256 numerics.
	FormatOldGNU

	// FormatGNU is the GNU format: like old GNU plus L/K long-name
	// pre-entries.
	FormatGNU

	// FormatPAX is POSIX.1-2001: USTAR framing plus x/g extended
	// attribute pre-entries.
	FormatPAX
)

const (
	magicUSTAR   = "ustar\x00"
	versionUSTAR = "00"
	magicGNU     = "ustar "
	versionGNU   = " \x00"

	// GNU tar names L/K pre-entries after its scratch directory.
	gnuLongNameEntry = "././@LongLink"

	// Name prefix convention for PAX extended header pre-entries.
	paxHeaderPrefix = "PaxHeaders.0"
)

func (f Format) String() string {
	switch f {
	case FormatV7:
		return config.FormatV7Key
	case FormatUSTAR:
		return config.FormatUSTARKey
	case FormatOldGNU:
		return config.FormatOldGNUKey
	case FormatGNU:
		return config.FormatGNUKey
	case FormatPAX:
		return config.FormatPAXKey
	default:
		return "unknown"
	}
}

// ParseFormat maps a config format key to a Format.
func ParseFormat(key string) (Format, error) {
	switch key {
	case config.FormatV7Key:
		return FormatV7, nil
	case config.FormatUSTARKey:
		return FormatUSTAR, nil
	case config.FormatOldGNUKey:
		return FormatOldGNU, nil
	case config.FormatGNUKey:
		return FormatGNU, nil
	case config.FormatPAXKey:
		return FormatPAX, nil
	default:
		return FormatUnknown, config.ErrFormatUnsupported
	}
}

// isGNU reports whether the dialect allows base-256 numerics and L/K
// pre-entries.
func (f Format) isGNU() bool {
	return f == FormatOldGNU || f == FormatGNU
}
