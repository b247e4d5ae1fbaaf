package tarfmt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/pojntfx/gtar/pkg/config"
)

// BlockSize is the archive's IO unit.
const BlockSize = 512

// Type flags as stored in a header's typeflag byte.
const (
	TypeReg           = '0'
	TypeRegA          = '\x00' // V7 regular file
	TypeLink          = '1'
	TypeSymlink       = '2'
	TypeChar          = '3'
	TypeBlock         = '4'
	TypeDir           = '5'
	TypeFifo          = '6'
	TypeCont          = '7' // Contiguous, read as regular
	TypeXHeader       = 'x'
	TypeXGlobalHeader = 'g'
	TypeGNULongName   = 'L'
	TypeGNULongLink   = 'K'
	TypeGNUSparse     = 'S'
	TypeGNUMultiVol   = 'M'
	TypeGNUVolHeader  = 'V'
)

// Largest value the 12-byte size field holds in octal (11 digits plus NUL).
const maxOctalSize = 077777777777

// Header is one logical archive member, the composite of any
// pre-entries and the real header that follows them.
type Header struct {
	Name     string
	Linkname string

	Mode     int64
	UID, GID int64
	Size     int64 // Stored (physical) payload bytes

	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time

	Typeflag byte

	Uname, Gname string

	Devmajor, Devminor int64

	Format Format

	// PAXRecords holds every extended attribute seen for this entry,
	// merged over the sticky global records. Values under
	// SCHILY.xattr.* may contain arbitrary bytes.
	PAXRecords map[string]string

	// Sparse is the data-region map for sparse entries, ordered by
	// offset. RealSize is then the logical file length while Size
	// stays the physical byte count stored in the archive.
	Sparse   []SparseRegion
	RealSize int64
}

// IsSparse reports whether the entry carries a sparse region map.
func (h *Header) IsSparse() bool {
	return len(h.Sparse) > 0 || h.Typeflag == TypeGNUSparse
}

// LogicalSize is the extracted file length: RealSize for sparse
// entries, Size otherwise.
func (h *Header) LogicalSize() int64 {
	if h.IsSparse() && h.RealSize > 0 {
		return h.RealSize
	}

	return h.Size
}

// block is one raw 512-byte header record with typed views into its
// fixed field layout.
type block [BlockSize]byte

func (b *block) name() []byte     { return b[0:100] }
func (b *block) mode() []byte     { return b[100:108] }
func (b *block) uid() []byte      { return b[108:116] }
func (b *block) gid() []byte      { return b[116:124] }
func (b *block) size() []byte     { return b[124:136] }
func (b *block) mtime() []byte    { return b[136:148] }
func (b *block) chksum() []byte   { return b[148:156] }
func (b *block) typeflag() []byte { return b[156:157] }
func (b *block) linkname() []byte { return b[157:257] }
func (b *block) magic() []byte    { return b[257:263] }
func (b *block) version() []byte  { return b[263:265] }
func (b *block) uname() []byte    { return b[265:297] }
func (b *block) gname() []byte    { return b[297:329] }
func (b *block) devmajor() []byte { return b[329:337] }
func (b *block) devminor() []byte { return b[337:345] }
func (b *block) prefix() []byte   { return b[345:500] }

// Old GNU sparse layout: four map entries inline, then a continuation
// marker and the real (logical) size.
func (b *block) gnuSparse() []byte       { return b[386:482] }
func (b *block) gnuIsExtended() byte     { return b[482] }
func (b *block) gnuRealSize() []byte     { return b[483:495] }
func (b *block) setGNUIsExtended(x byte) { b[482] = x }

// Continuation blocks hold 21 more map entries and their own marker.
func (b *block) sparseCont() []byte  { return b[0 : 21*24] }
func (b *block) sparseContExt() byte { return b[21*24] }

// computeChecksums returns the unsigned and signed sums of the block
// with the chksum field counted as eight spaces. Some historic tars
// signed the bytes, so validation accepts either.
func (b *block) computeChecksums() (unsigned int64, signed int64) {
	for i, c := range b {
		if i >= 148 && i < 156 {
			c = ' '
		}

		unsigned += int64(c)
		signed += int64(int8(c))
	}

	return unsigned, signed
}

// setChecksum recomputes and stores the checksum as six octal digits,
// NUL, space.
func (b *block) setChecksum() {
	unsigned, _ := b.computeChecksums()

	s := fmt.Sprintf("%06o", unsigned)
	copy(b.chksum(), s)
	b.chksum()[6] = 0
	b.chksum()[7] = ' '
}

// validateChecksum recomputes the sum and compares it to the stored
// value.
func (b *block) validateChecksum() bool {
	stored, err := parseOctal(b.chksum())
	if err != nil {
		return false
	}

	unsigned, signed := b.computeChecksums()

	return stored == unsigned || stored == signed
}

// isZero reports whether every byte of the block is zero.
func (b *block) isZero() bool {
	return *b == block{}
}

// detectFormat classifies the block's dialect from its magic/version
// pair.
func (b *block) detectFormat() Format {
	magic, version := string(b.magic()), string(b.version())

	switch {
	case magic == magicUSTAR && version == versionUSTAR:
		return FormatUSTAR // PAX shares USTAR framing
	case magic == magicGNU && version == versionGNU:
		return FormatGNU
	default:
		return FormatV7
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}

func putCString(b []byte, s string) {
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

// splitUSTARPath splits a path into a prefix of at most 155 bytes and
// a name of at most 100 bytes at the rightmost eligible slash. The
// third return is false if no such split exists.
func splitUSTARPath(name string) (prefix, rest string, ok bool) {
	length := len(name)
	if length <= 100 {
		return "", "", false
	} else if length > 155+1 {
		length = 155 + 1
	}

	i := strings.LastIndexByte(name[:length], '/')
	nlen := len(name) - i - 1
	plen := i
	if i <= 0 || nlen > 100 || nlen == 0 || plen > 155 {
		return "", "", false
	}

	return name[:i], name[i+1:], true
}

// decodeBlock parses one raw header block into a Header. The caller
// has already checked for zero blocks and validated the checksum.
func decodeBlock(b *block) (*Header, error) {
	hdr := &Header{
		Typeflag: b.typeflag()[0],
		Format:   b.detectFormat(),
	}

	var err error
	numeric := parseOctalDefault
	if hdr.Format.isGNU() || hdr.Format == FormatUSTAR {
		numeric = parseNumericDefault
	}

	hdr.Name = cString(b.name())
	hdr.Linkname = cString(b.linkname())

	if hdr.Mode, err = numeric(b.mode()); err != nil {
		return nil, fmt.Errorf("mode: %w", config.ErrInvalidArchive)
	}
	if hdr.UID, err = numeric(b.uid()); err != nil {
		return nil, fmt.Errorf("uid: %w", config.ErrInvalidArchive)
	}
	if hdr.GID, err = numeric(b.gid()); err != nil {
		return nil, fmt.Errorf("gid: %w", config.ErrInvalidArchive)
	}
	if hdr.Size, err = numeric(b.size()); err != nil {
		return nil, fmt.Errorf("size: %w", config.ErrInvalidArchive)
	}

	mtime, err := numeric(b.mtime())
	if err != nil {
		return nil, fmt.Errorf("mtime: %w", config.ErrInvalidArchive)
	}
	hdr.ModTime = time.Unix(mtime, 0)

	switch hdr.Format {
	case FormatUSTAR:
		hdr.Uname = cString(b.uname())
		hdr.Gname = cString(b.gname())
		hdr.Devmajor, _ = parseNumericDefault(b.devmajor())
		hdr.Devminor, _ = parseNumericDefault(b.devminor())

		if prefix := cString(b.prefix()); prefix != "" {
			hdr.Name = prefix + "/" + hdr.Name
		}
	case FormatGNU, FormatOldGNU:
		hdr.Uname = cString(b.uname())
		hdr.Gname = cString(b.gname())
		hdr.Devmajor, _ = parseNumericDefault(b.devmajor())
		hdr.Devminor, _ = parseNumericDefault(b.devminor())
	}

	// Directories are sometimes only marked by a trailing slash.
	if hdr.Typeflag == TypeRegA && strings.HasSuffix(hdr.Name, "/") {
		hdr.Typeflag = TypeDir
	}

	return hdr, nil
}
