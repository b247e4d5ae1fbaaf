package tarfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pojntfx/gtar/pkg/config"
)

// SparseRegion is one (offset, length) data stretch of a sparse file;
// the gaps between regions are holes.
type SparseRegion struct {
	Offset int64
	Length int64
}

// PhysicalSize sums the data bytes the region set stores.
func PhysicalSize(regions []SparseRegion) int64 {
	var total int64
	for _, region := range regions {
		total += region.Length
	}

	return total
}

// EncodeSparseMap renders regions as the comma-separated decimal
// off,len pairs carried in GNU.sparse.map.
func EncodeSparseMap(regions []SparseRegion) string {
	pairs := make([]string, 0, len(regions)*2)
	for _, region := range regions {
		pairs = append(pairs,
			strconv.FormatInt(region.Offset, 10),
			strconv.FormatInt(region.Length, 10))
	}

	return strings.Join(pairs, ",")
}

// ParseSparseMap parses a GNU.sparse.map value back into regions.
func ParseSparseMap(s string) ([]SparseRegion, error) {
	if s == "" {
		return nil, nil
	}

	fields := strings.Split(s, ",")
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("odd sparse map: %w", config.ErrInvalidArchive)
	}

	regions := make([]SparseRegion, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		offset, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sparse offset: %w", config.ErrInvalidArchive)
		}

		length, err := strconv.ParseInt(fields[i+1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sparse length: %w", config.ErrInvalidArchive)
		}

		regions = append(regions, SparseRegion{Offset: offset, Length: length})
	}

	return regions, nil
}

// sparsePAXRecords builds the PAX 1.0-style record set for a sparse
// entry: major/minor, the original name, the logical size, and the
// map itself.
func sparsePAXRecords(name string, realSize int64, regions []SparseRegion) map[string]string {
	return map[string]string{
		paxGNUSparseMajor:    "1",
		paxGNUSparseMinor:    "0",
		paxGNUSparseName:     name,
		paxGNUSparseRealSize: strconv.FormatInt(realSize, 10),
		paxGNUSparseMap:      EncodeSparseMap(regions),
	}
}

// applySparsePAX recognizes the three GNU sparse PAX vintages on a
// decoded entry and normalizes them onto Header.Sparse/RealSize.
// Unknown combinations leave the entry dense.
func applySparsePAX(hdr *Header, records map[string]string) error {
	major, majorOK := records[paxGNUSparseMajor]
	minor, minorOK := records[paxGNUSparseMinor]
	name, nameOK := records[paxGNUSparseName]
	mapValue, mapOK := records[paxGNUSparseMap]
	size, sizeOK := records[paxGNUSparseSize]
	realSize, realSizeOK := records[paxGNUSparseRealSize]

	var format string
	switch {
	case majorOK && minorOK:
		format = major + "." + minor
	case nameOK && mapOK:
		format = "0.1"
	case sizeOK:
		format = "0.0"
	default:
		return nil
	}

	switch format {
	case "0.0", "0.1", "1.0":
	default:
		return nil
	}

	if nameOK {
		hdr.Name = name
	}

	switch {
	case realSizeOK:
		parsed, err := strconv.ParseInt(realSize, 10, 64)
		if err != nil {
			return fmt.Errorf("sparse realsize: %w", config.ErrInvalidArchive)
		}
		hdr.RealSize = parsed
	case sizeOK:
		parsed, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return fmt.Errorf("sparse size: %w", config.ErrInvalidArchive)
		}
		hdr.RealSize = parsed
	}

	if mapOK {
		regions, err := ParseSparseMap(mapValue)
		if err != nil {
			return err
		}
		hdr.Sparse = regions
	}

	return nil
}

// decodeOldGNUSparse reads the in-header sparse map of a type-S old
// GNU entry. The remaining continuation entries live in extension
// blocks which the reader feeds in via decodeSparseCont.
func decodeOldGNUSparse(b *block, hdr *Header) (extended bool, err error) {
	realSize, err := parseNumericDefault(b.gnuRealSize())
	if err != nil {
		return false, fmt.Errorf("sparse realsize: %w", config.ErrInvalidArchive)
	}
	hdr.RealSize = realSize

	regions, err := decodeSparseEntries(b.gnuSparse())
	if err != nil {
		return false, err
	}
	hdr.Sparse = regions

	return b.gnuIsExtended() != 0, nil
}

// decodeSparseCont parses one sparse continuation block, appending
// onto hdr.Sparse.
func decodeSparseCont(b *block, hdr *Header) (extended bool, err error) {
	regions, err := decodeSparseEntries(b.sparseCont())
	if err != nil {
		return false, err
	}
	hdr.Sparse = append(hdr.Sparse, regions...)

	return b.sparseContExt() != 0, nil
}

// decodeSparseEntries parses packed (offset[12], numbytes[12]) pairs,
// stopping at the first empty entry.
func decodeSparseEntries(raw []byte) ([]SparseRegion, error) {
	var regions []SparseRegion
	for i := 0; i+24 <= len(raw); i += 24 {
		offsetField, lengthField := raw[i:i+12], raw[i+12:i+24]
		if offsetField[0] == 0 && lengthField[0] == 0 {
			break
		}

		offset, err := parseNumericDefault(offsetField)
		if err != nil {
			return nil, fmt.Errorf("sparse entry offset: %w", config.ErrInvalidArchive)
		}

		length, err := parseNumericDefault(lengthField)
		if err != nil {
			return nil, fmt.Errorf("sparse entry length: %w", config.ErrInvalidArchive)
		}

		regions = append(regions, SparseRegion{Offset: offset, Length: length})
	}

	return regions, nil
}

// encodeSparseEntry packs one (offset, numbytes) pair into 24 bytes.
func encodeSparseEntry(raw []byte, region SparseRegion) {
	formatNumeric(raw[0:12], region.Offset)
	formatNumeric(raw[12:24], region.Length)
}
