package tarfmt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pojntfx/gtar/pkg/config"
)

// Reader iterates the logical entries of a tar stream. It owns the
// long-name buffers and PAX attribute maps for the lifetime of one
// logical entry and keeps the sticky global PAX state across entries.
type Reader struct {
	r io.Reader

	// IgnoreZeros makes lone zero blocks skippable; the archive then
	// only ends at EOF.
	IgnoreZeros bool

	// OnWarning receives non-fatal decode problems (checksum
	// mismatches). A nil hook drops them.
	OnWarning func(err error, context string)

	offset     int64 // Bytes consumed from r
	entryStart int64 // Offset of the current entry's first pre-entry
	dataStart  int64 // Offset of the current entry's payload

	remaining int64 // Unread payload bytes of the current entry
	padding   int64 // Zero bytes after the payload

	globalPAX map[string]string

	terminatorStart int64
	atEOF           bool

	err error
}

// NewReader returns a Reader consuming whole blocks from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, terminatorStart: -1}
}

// Offset is the number of bytes consumed from the underlying stream.
func (tr *Reader) Offset() int64 { return tr.offset }

// EntryOffsets returns the byte range bookkeeping for the current
// logical entry: where its first header block (including pre-entries)
// starts and where its payload starts.
func (tr *Reader) EntryOffsets() (start, dataStart int64) {
	return tr.entryStart, tr.dataStart
}

// TerminatorOffset is the offset of the first terminating zero block,
// or -1 until one has been seen. After Next returns io.EOF on an
// archive that ended without a terminator (under IgnoreZeros), it is
// the archive length.
func (tr *Reader) TerminatorOffset() int64 { return tr.terminatorStart }

// Next advances to the next logical entry, accumulating any L/K/x/g
// pre-entries and sparse extension blocks that precede it.
func (tr *Reader) Next() (*Header, error) {
	if tr.err != nil {
		return nil, tr.err
	}

	hdr, err := tr.next()
	tr.err = err

	return hdr, err
}

func (tr *Reader) next() (*Header, error) {
	if err := tr.skipCurrent(); err != nil {
		return nil, err
	}

	var (
		longName string
		longLink string
		paxLocal map[string]string
	)

	tr.entryStart = tr.offset

	var b block
	zeroCount := 0
	for {
		n, err := tr.readBlock(&b)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if zeroCount > 0 || tr.IgnoreZeros {
				// Truncated terminator or ignore-zeros mode: the
				// archive ends at EOF.
				if tr.terminatorStart < 0 {
					tr.terminatorStart = tr.offset
				}
				tr.atEOF = true

				return nil, io.EOF
			}

			return nil, fmt.Errorf("unexpected EOF: %w", config.ErrInvalidArchive)
		}

		if b.isZero() {
			if zeroCount == 0 {
				tr.terminatorStart = tr.offset - BlockSize
			}
			zeroCount++

			if tr.IgnoreZeros {
				tr.entryStart = tr.offset

				continue
			}
			if zeroCount == 2 {
				tr.atEOF = true

				return nil, io.EOF
			}

			continue
		}

		if zeroCount > 0 && !tr.IgnoreZeros {
			return nil, fmt.Errorf("lone zero block at %d: %w", tr.terminatorStart/BlockSize, config.ErrInvalidArchive)
		}
		zeroCount = 0
		tr.terminatorStart = -1

		if !b.validateChecksum() {
			tr.warn(config.ErrChecksumMismatch, cString(b.name()))
		}

		hdr, err := decodeBlock(&b)
		if err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case TypeGNULongName:
			payload, err := tr.readPayload(hdr.Size)
			if err != nil {
				return nil, err
			}
			longName = cString(payload)

			continue
		case TypeGNULongLink:
			payload, err := tr.readPayload(hdr.Size)
			if err != nil {
				return nil, err
			}
			longLink = cString(payload)

			continue
		case TypeXHeader:
			payload, err := tr.readPayload(hdr.Size)
			if err != nil {
				return nil, err
			}

			records, err := ParsePAXRecords(payload)
			if err != nil {
				return nil, err
			}

			if paxLocal == nil {
				paxLocal = map[string]string{}
			}
			for key, value := range records {
				paxLocal[key] = value
			}

			continue
		case TypeXGlobalHeader:
			payload, err := tr.readPayload(hdr.Size)
			if err != nil {
				return nil, err
			}

			records, err := ParsePAXRecords(payload)
			if err != nil {
				return nil, err
			}

			if tr.globalPAX == nil {
				tr.globalPAX = map[string]string{}
			}
			for key, value := range records {
				tr.globalPAX[key] = value
			}

			continue
		}

		// A real-type header: emerge the logical entry. Precedence,
		// low to high: header fields, L/K names, global PAX, local PAX.
		if longName != "" {
			hdr.Name = longName
		}
		if longLink != "" {
			hdr.Linkname = longLink
		}

		merged := map[string]string{}
		for key, value := range tr.globalPAX {
			merged[key] = value
		}
		for key, value := range paxLocal {
			merged[key] = value
		}
		if err := mergePAX(hdr, merged); err != nil {
			return nil, err
		}
		if err := applySparsePAX(hdr, merged); err != nil {
			return nil, err
		}
		if len(merged) > 0 {
			hdr.Format = FormatPAX
		}

		if hdr.Typeflag == TypeGNUSparse {
			extended, err := decodeOldGNUSparse(&b, hdr)
			if err != nil {
				return nil, err
			}

			for extended {
				var cont block
				n, err := tr.readBlock(&cont)
				if err != nil {
					return nil, err
				}
				if n == 0 {
					return nil, fmt.Errorf("truncated sparse map: %w", config.ErrInvalidArchive)
				}

				extended, err = decodeSparseCont(&cont, hdr)
				if err != nil {
					return nil, err
				}
			}
		}

		tr.dataStart = tr.offset
		if hasPayload(hdr.Typeflag) {
			tr.remaining = hdr.Size
			tr.padding = Padding(hdr.Size)
		} else {
			hdr.Size = 0
			tr.remaining, tr.padding = 0, 0
		}

		return hdr, nil
	}
}

// Read reads the current entry's stored payload. Sparse entries yield
// their physical data regions back to back; use the sparse engine to
// expand them.
func (tr *Reader) Read(p []byte) (int, error) {
	if tr.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > tr.remaining {
		p = p[:tr.remaining]
	}

	n, err := tr.r.Read(p)
	tr.offset += int64(n)
	tr.remaining -= int64(n)

	if err == io.EOF && tr.remaining > 0 {
		err = fmt.Errorf("truncated payload: %w", config.ErrInvalidArchive)
	}

	return n, err
}

// skipCurrent discards the rest of the current entry's payload and
// its padding.
func (tr *Reader) skipCurrent() error {
	if tr.remaining+tr.padding == 0 {
		return nil
	}

	if _, err := io.CopyN(io.Discard, tr.r, tr.remaining+tr.padding); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("truncated payload: %w", config.ErrInvalidArchive)
		}

		return err
	}
	tr.offset += tr.remaining + tr.padding
	tr.remaining, tr.padding = 0, 0

	return nil
}

// readBlock reads exactly one block, returning 0 at a clean EOF.
func (tr *Reader) readBlock(b *block) (int, error) {
	n, err := io.ReadFull(tr.r, b[:])
	tr.offset += int64(n)

	if err == io.EOF && n == 0 {
		return 0, nil
	}
	if err == io.ErrUnexpectedEOF || (err == io.EOF && n > 0) {
		return n, fmt.Errorf("short block: %w", config.ErrInvalidArchive)
	}

	return n, err
}

// readPayload reads a pre-entry's payload plus its padding.
func (tr *Reader) readPayload(size int64) ([]byte, error) {
	if size < 0 || size > 1<<30 {
		return nil, fmt.Errorf("oversized pre-entry: %w", config.ErrInvalidArchive)
	}

	payload := make([]byte, size)
	n, err := io.ReadFull(tr.r, payload)
	tr.offset += int64(n)
	if err != nil {
		return nil, fmt.Errorf("truncated pre-entry: %w", config.ErrInvalidArchive)
	}

	pad := Padding(size)
	m, err := io.CopyN(io.Discard, tr.r, pad)
	tr.offset += m
	if err != nil {
		return nil, fmt.Errorf("truncated pre-entry: %w", config.ErrInvalidArchive)
	}

	return payload, nil
}

func (tr *Reader) warn(err error, context string) {
	if tr.OnWarning != nil {
		tr.OnWarning(err, context)
	}
}

// hasPayload reports whether the type stores data blocks after the
// header. Unknown typeflags are treated as regular files.
func hasPayload(typeflag byte) bool {
	switch typeflag {
	case TypeLink, TypeSymlink, TypeChar, TypeBlock, TypeDir, TypeFifo:
		return false
	default:
		return true
	}
}

// IsRealType reports whether the type describes a member rather than
// control metadata.
func IsRealType(typeflag byte) bool {
	switch typeflag {
	case TypeXHeader, TypeXGlobalHeader, TypeGNULongName, TypeGNULongLink, TypeGNUVolHeader:
		return false
	default:
		return true
	}
}

// baseName is the path-free trailing component, used when synthesizing
// pre-entry names.
func baseName(name string) string {
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}

	return name
}
