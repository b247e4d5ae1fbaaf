package tarfmt

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pojntfx/gtar/pkg/config"
)

var zeroBlock block

// Writer emits logical entries as raw blocks: pre-entries per the
// selected dialect, the real header, payload, and padding, then the
// two-zero-block terminator on Close.
type Writer struct {
	w      io.Writer
	format Format

	remaining int64 // Payload bytes still expected for the current entry
	padding   int64

	offset int64

	closed bool
	err    error
}

// NewWriter returns a Writer encoding in the given dialect.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// Offset is the number of bytes written so far.
func (tw *Writer) Offset() int64 { return tw.offset }

// WriteHeader finishes the previous entry's padding and emits hdr,
// including whatever pre-entries the dialect needs for long names,
// large values, attributes, or sparse maps.
func (tw *Writer) WriteHeader(hdr *Header) error {
	if tw.err != nil {
		return tw.err
	}

	if err := tw.finishPayload(); err != nil {
		return err
	}

	switch tw.format {
	case FormatV7:
		tw.err = tw.writeV7Header(hdr)
	case FormatUSTAR:
		tw.err = tw.writeUSTARHeader(hdr)
	case FormatOldGNU, FormatGNU:
		tw.err = tw.writeGNUHeader(hdr)
	case FormatPAX:
		tw.err = tw.writePAXHeader(hdr)
	default:
		tw.err = config.ErrFormatUnsupported
	}
	if tw.err != nil {
		return tw.err
	}

	if hasPayload(hdr.Typeflag) {
		tw.remaining = hdr.Size
		tw.padding = Padding(hdr.Size)
	} else {
		tw.remaining, tw.padding = 0, 0
	}

	return nil
}

// Write appends payload bytes for the current entry.
func (tw *Writer) Write(p []byte) (int, error) {
	if tw.err != nil {
		return 0, tw.err
	}

	if int64(len(p)) > tw.remaining {
		return 0, fmt.Errorf("payload exceeds declared size by %d bytes", int64(len(p))-tw.remaining)
	}

	n, err := tw.w.Write(p)
	tw.offset += int64(n)
	tw.remaining -= int64(n)
	tw.err = err

	return n, err
}

// WriteRawBlocks copies verbatim blocks through, for block-level
// concatenation.
func (tw *Writer) WriteRawBlocks(r io.Reader, n int64) error {
	if tw.err != nil {
		return tw.err
	}

	written, err := io.CopyN(tw.w, r, n*BlockSize)
	tw.offset += written
	tw.err = err

	return err
}

// Close finishes the current entry and writes the end-of-archive
// terminator. It does not close the underlying writer.
func (tw *Writer) Close() error {
	if tw.err != nil {
		return tw.err
	}
	if tw.closed {
		return nil
	}
	tw.closed = true

	if err := tw.finishPayload(); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if err := tw.writeBlock(&zeroBlock); err != nil {
			return err
		}
	}

	return nil
}

func (tw *Writer) finishPayload() error {
	if tw.remaining > 0 {
		tw.err = fmt.Errorf("entry closed with %d unwritten payload bytes", tw.remaining)

		return tw.err
	}

	if tw.padding > 0 {
		n, err := tw.w.Write(zeroBlock[:tw.padding])
		tw.offset += int64(n)
		tw.padding = 0
		if err != nil {
			tw.err = err

			return err
		}
	}

	return nil
}

func (tw *Writer) writeBlock(b *block) error {
	n, err := tw.w.Write(b[:])
	tw.offset += int64(n)
	if err != nil {
		tw.err = err
	}

	return err
}

// fillCommon encodes the fields shared by every dialect. numeric
// encodes octal-or-base-256 for GNU and strict octal otherwise,
// failing with ErrFieldTooLong when a value cannot be represented.
func (tw *Writer) fillCommon(b *block, hdr *Header, name string) error {
	numeric := func(field []byte, x int64) error {
		if fitsInOctal(len(field), x) {
			formatOctal(field, x)

			return nil
		}

		if tw.format.isGNU() && fitsInBase256(len(field), x) {
			formatNumeric(field, x)

			return nil
		}

		return fmt.Errorf("%d: %w", x, config.ErrFieldTooLong)
	}

	putCString(b.name(), name)
	if err := numeric(b.mode(), hdr.Mode&07777); err != nil {
		return err
	}
	if err := numeric(b.uid(), hdr.UID); err != nil {
		return err
	}
	if err := numeric(b.gid(), hdr.GID); err != nil {
		return err
	}
	if err := numeric(b.size(), hdr.Size); err != nil {
		return err
	}
	// An unset ModTime (as on L/K/x/g pre-entries) is stored as 0.
	mtime := int64(0)
	if !hdr.ModTime.IsZero() {
		mtime = hdr.ModTime.Unix()
	}
	if err := numeric(b.mtime(), mtime); err != nil {
		return err
	}

	typeflag := hdr.Typeflag
	if typeflag == TypeRegA {
		typeflag = TypeReg
	}
	b.typeflag()[0] = typeflag

	if len(hdr.Linkname) > len(b.linkname()) {
		return fmt.Errorf("linkname %q: %w", hdr.Linkname, config.ErrNameTooLong)
	}
	putCString(b.linkname(), hdr.Linkname)

	return nil
}

// fillUSTARExtras writes the post-V7 fields: magic, owner names,
// device numbers.
func (tw *Writer) fillUSTARExtras(b *block, hdr *Header) error {
	if tw.format.isGNU() {
		copy(b.magic(), magicGNU)
		copy(b.version(), versionGNU)
	} else {
		copy(b.magic(), magicUSTAR)
		copy(b.version(), versionUSTAR)
	}

	putCString(b.uname(), hdr.Uname)
	putCString(b.gname(), hdr.Gname)

	if hdr.Typeflag == TypeChar || hdr.Typeflag == TypeBlock {
		formatNumeric(b.devmajor(), hdr.Devmajor)
		formatNumeric(b.devminor(), hdr.Devminor)
	}

	return nil
}

func (tw *Writer) writeV7Header(hdr *Header) error {
	if len(hdr.Name) > 100 {
		return fmt.Errorf("%q: %w", hdr.Name, config.ErrNameTooLong)
	}

	switch hdr.Typeflag {
	case TypeReg, TypeRegA, TypeLink, TypeSymlink, TypeDir:
	default:
		return fmt.Errorf("type %q: %w", hdr.Typeflag, config.ErrFormatUnsupported)
	}

	var b block
	if err := tw.fillCommon(&b, hdr, hdr.Name); err != nil {
		return err
	}

	b.setChecksum()

	return tw.writeBlock(&b)
}

func (tw *Writer) writeUSTARHeader(hdr *Header) error {
	name, prefix := hdr.Name, ""
	if len(name) > 100 {
		var ok bool
		prefix, name, ok = splitUSTARPath(hdr.Name)
		if !ok {
			return fmt.Errorf("%q: %w", hdr.Name, config.ErrNameTooLong)
		}
	}

	var b block
	if err := tw.fillCommon(&b, hdr, name); err != nil {
		return err
	}
	if err := tw.fillUSTARExtras(&b, hdr); err != nil {
		return err
	}
	putCString(b.prefix(), prefix)

	b.setChecksum()

	return tw.writeBlock(&b)
}

func (tw *Writer) writeGNUHeader(hdr *Header) error {
	if len(hdr.Name) > 100 {
		if err := tw.writeLongNameEntry(TypeGNULongName, hdr.Name); err != nil {
			return err
		}
	}
	if len(hdr.Linkname) > 100 {
		if err := tw.writeLongNameEntry(TypeGNULongLink, hdr.Linkname); err != nil {
			return err
		}
	}

	truncated := *hdr
	if len(truncated.Name) > 100 {
		truncated.Name = truncated.Name[:100]
	}
	if len(truncated.Linkname) > 100 {
		truncated.Linkname = truncated.Linkname[:100]
	}

	var b block
	if err := tw.fillCommon(&b, &truncated, truncated.Name); err != nil {
		return err
	}
	if err := tw.fillUSTARExtras(&b, &truncated); err != nil {
		return err
	}

	if hdr.Typeflag == TypeGNUSparse {
		if err := tw.fillOldGNUSparse(&b, hdr); err != nil {
			return err
		}

		b.setChecksum()
		if err := tw.writeBlock(&b); err != nil {
			return err
		}

		return tw.writeSparseContBlocks(hdr)
	}

	b.setChecksum()

	return tw.writeBlock(&b)
}

// fillOldGNUSparse packs the first four map entries and the real size
// into the header itself.
func (tw *Writer) fillOldGNUSparse(b *block, hdr *Header) error {
	formatNumeric(b.gnuRealSize(), hdr.RealSize)

	raw := b.gnuSparse()
	for i, region := range hdr.Sparse {
		if i >= 4 {
			b.setGNUIsExtended(1)

			break
		}

		encodeSparseEntry(raw[i*24:], region)
	}

	return nil
}

// writeSparseContBlocks emits continuation blocks for map entries
// beyond the four that fit in the header.
func (tw *Writer) writeSparseContBlocks(hdr *Header) error {
	rest := hdr.Sparse
	if len(rest) <= 4 {
		return nil
	}
	rest = rest[4:]

	for len(rest) > 0 {
		var b block

		n := len(rest)
		if n > 21 {
			n = 21
		}

		for i := 0; i < n; i++ {
			encodeSparseEntry(b.sparseCont()[i*24:], rest[i])
		}
		rest = rest[n:]

		if len(rest) > 0 {
			b[21*24] = 1
		}

		if err := tw.writeBlock(&b); err != nil {
			return err
		}
	}

	return nil
}

// writeLongNameEntry emits a type-L or type-K pre-entry whose payload
// is the NUL-terminated full name.
func (tw *Writer) writeLongNameEntry(typeflag byte, name string) error {
	payload := append([]byte(name), 0)

	pre := &Header{
		Name:     gnuLongNameEntry,
		Mode:     0644,
		Size:     int64(len(payload)),
		Typeflag: typeflag,
		Uname:    "root",
		Gname:    "root",
	}

	var b block
	if err := tw.fillCommon(&b, pre, pre.Name); err != nil {
		return err
	}
	if err := tw.fillUSTARExtras(&b, pre); err != nil {
		return err
	}

	b.setChecksum()
	if err := tw.writeBlock(&b); err != nil {
		return err
	}

	return tw.writePaddedPayload(payload)
}

func (tw *Writer) writePaddedPayload(payload []byte) error {
	n, err := tw.w.Write(payload)
	tw.offset += int64(n)
	if err != nil {
		tw.err = err

		return err
	}

	if pad := Padding(int64(len(payload))); pad > 0 {
		n, err := tw.w.Write(zeroBlock[:pad])
		tw.offset += int64(n)
		if err != nil {
			tw.err = err

			return err
		}
	}

	return nil
}

func (tw *Writer) writePAXHeader(hdr *Header) error {
	records := map[string]string{}
	for key, value := range hdr.PAXRecords {
		records[key] = value
	}

	needsSplit := false

	if len(hdr.Name) > 100 {
		if _, _, ok := splitUSTARPath(hdr.Name); !ok {
			records[paxPath] = hdr.Name
		} else {
			needsSplit = true
		}
	}
	if len(hdr.Linkname) > 100 {
		records[paxLinkpath] = hdr.Linkname
	}
	if !fitsInOctal(12, hdr.Size) {
		records[paxSize] = strconv.FormatInt(hdr.Size, 10)
	}
	if !fitsInOctal(8, hdr.UID) {
		records[paxUID] = strconv.FormatInt(hdr.UID, 10)
	}
	if !fitsInOctal(8, hdr.GID) {
		records[paxGID] = strconv.FormatInt(hdr.GID, 10)
	}
	if len(hdr.Uname) > 32 {
		records[paxUname] = hdr.Uname
	}
	if len(hdr.Gname) > 32 {
		records[paxGname] = hdr.Gname
	}
	if !hdr.ModTime.IsZero() && hdr.ModTime.Nanosecond() != 0 {
		records[paxMtime] = formatPAXTime(hdr.ModTime)
	}
	if !hdr.AccessTime.IsZero() {
		records[paxAtime] = formatPAXTime(hdr.AccessTime)
	}
	if !hdr.ChangeTime.IsZero() {
		records[paxCtime] = formatPAXTime(hdr.ChangeTime)
	}

	if hdr.IsSparse() && len(hdr.Sparse) > 0 {
		for key, value := range sparsePAXRecords(hdr.Name, hdr.RealSize, hdr.Sparse) {
			records[key] = value
		}
	}

	if len(records) > 0 {
		if err := tw.writePAXPreEntry(TypeXHeader, hdr.Name, records); err != nil {
			return err
		}
	}

	// The fallback header carries best-effort values for pre-PAX
	// readers: oversized numerics are clamped, long names truncated.
	fallback := *hdr
	fallback.Typeflag = hdr.Typeflag
	if fallback.Typeflag == TypeGNUSparse {
		fallback.Typeflag = TypeReg
	}
	if !fitsInOctal(12, fallback.Size) {
		fallback.Size = maxOctalSize
	}
	if !fitsInOctal(8, fallback.UID) {
		fallback.UID = 07777777
	}
	if !fitsInOctal(8, fallback.GID) {
		fallback.GID = 07777777
	}
	if len(fallback.Uname) > 32 {
		fallback.Uname = fallback.Uname[:32]
	}
	if len(fallback.Gname) > 32 {
		fallback.Gname = fallback.Gname[:32]
	}
	if len(fallback.Linkname) > 100 {
		fallback.Linkname = fallback.Linkname[:100]
	}

	name, prefix := fallback.Name, ""
	switch {
	case len(fallback.Name) <= 100:
	case needsSplit:
		prefix, name, _ = splitUSTARPath(fallback.Name)
	default:
		name = truncatePAXFallbackName(fallback.Name)
	}

	var b block
	if err := tw.fillCommon(&b, &fallback, name); err != nil {
		return err
	}
	if err := tw.fillUSTARExtras(&b, &fallback); err != nil {
		return err
	}
	putCString(b.prefix(), prefix)

	b.setChecksum()

	return tw.writeBlock(&b)
}

// writePAXPreEntry emits a type-x or type-g entry holding records.
func (tw *Writer) writePAXPreEntry(typeflag byte, name string, records map[string]string) error {
	payload := FormatPAXRecords(records)

	preName := paxHeaderPrefix + "/" + baseName(name)
	if len(preName) > 100 {
		preName = preName[:100]
	}

	pre := &Header{
		Name:     preName,
		Mode:     0644,
		Size:     int64(len(payload)),
		Typeflag: typeflag,
	}

	var b block
	if err := tw.fillCommon(&b, pre, pre.Name); err != nil {
		return err
	}
	if err := tw.fillUSTARExtras(&b, pre); err != nil {
		return err
	}

	b.setChecksum()
	if err := tw.writeBlock(&b); err != nil {
		return err
	}

	return tw.writePaddedPayload(payload)
}

// WriteGlobalPAX emits a type-g global extended header whose records
// stick to every subsequent entry.
func (tw *Writer) WriteGlobalPAX(records map[string]string) error {
	if tw.err != nil {
		return tw.err
	}

	if err := tw.finishPayload(); err != nil {
		return err
	}

	return tw.writePAXPreEntry(TypeXGlobalHeader, "GlobalHead.0.0", records)
}

// truncatePAXFallbackName shortens a long member name for the
// compatibility header that follows an x pre-entry.
func truncatePAXFallbackName(name string) string {
	if len(name) <= 100 {
		return name
	}

	return name[:100]
}
