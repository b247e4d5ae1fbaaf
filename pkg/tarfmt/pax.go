package tarfmt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pojntfx/gtar/pkg/config"
)

// Keys for PAX extended header records.
const (
	paxPath       = "path"
	paxLinkpath   = "linkpath"
	paxSize       = "size"
	paxUID        = "uid"
	paxGID        = "gid"
	paxUname      = "uname"
	paxGname      = "gname"
	paxMtime      = "mtime"
	paxAtime      = "atime"
	paxCtime      = "ctime"
	paxCharset    = "charset"
	paxComment    = "comment"
	paxHdrCharset = "hdrcharset"

	paxSchilyXattr = "SCHILY.xattr."

	paxGNUSparse          = "GNU.sparse."
	paxGNUSparseMajor     = "GNU.sparse.major"
	paxGNUSparseMinor     = "GNU.sparse.minor"
	paxGNUSparseName      = "GNU.sparse.name"
	paxGNUSparseRealSize  = "GNU.sparse.realsize"
	paxGNUSparseMap       = "GNU.sparse.map"
	paxGNUSparseSize      = "GNU.sparse.size"
	paxGNUSparseNumBlocks = "GNU.sparse.numblocks"
	paxGNUSparseOffset    = "GNU.sparse.offset"
	paxGNUSparseNumBytes  = "GNU.sparse.numbytes"
)

// Keys emitted before the free-form remainder, in this order, so
// emission is deterministic.
var paxWellKnownKeys = []string{
	paxPath, paxLinkpath, paxSize, paxUID, paxGID, paxUname, paxGname,
	paxMtime, paxAtime, paxCtime, paxCharset, paxComment, paxHdrCharset,
}

// ParsePAXRecords parses a type-x or type-g payload of
// "<len> <key>=<value>\n" records. Values under SCHILY.xattr.* may
// contain NULs; everything is carried through as raw bytes. The
// repeated GNU sparse 0.0 offset/numbytes pairs are folded into a
// single GNU.sparse.map value so later merging sees one key.
func ParsePAXRecords(payload []byte) (map[string]string, error) {
	records := map[string]string{}

	var sparse00 []string
	rest := string(payload)
	for len(rest) > 0 {
		key, value, remainder, err := parsePAXRecord(rest)
		if err != nil {
			return nil, err
		}
		rest = remainder

		switch key {
		case paxGNUSparseOffset, paxGNUSparseNumBytes:
			// Validate and accumulate the 0.0 map in stream order.
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				return nil, fmt.Errorf("sparse pair: %w", config.ErrInvalidArchive)
			}
			if (len(sparse00)%2 == 0) != (key == paxGNUSparseOffset) {
				return nil, fmt.Errorf("sparse pair order: %w", config.ErrInvalidArchive)
			}

			sparse00 = append(sparse00, value)
		default:
			records[key] = value
		}
	}

	if len(sparse00) > 0 {
		records[paxGNUSparseMap] = strings.Join(sparse00, ",")
	}

	return records, nil
}

// parsePAXRecord reads one length-prefixed record off s and returns
// the remainder.
func parsePAXRecord(s string) (key, value, rest string, err error) {
	sp := strings.IndexByte(s, ' ')
	if sp == -1 {
		return "", "", s, config.ErrInvalidArchive
	}

	n, perr := strconv.ParseInt(s[:sp], 10, 0)
	if perr != nil || n < 5 || int64(len(s)) < n {
		return "", "", s, config.ErrInvalidArchive
	}

	rec, nl, rest := s[sp+1:n-1], s[n-1:n], s[n:]
	if nl != "\n" {
		return "", "", s, config.ErrInvalidArchive
	}

	eq := strings.IndexByte(rec, '=')
	if eq == -1 {
		return "", "", s, config.ErrInvalidArchive
	}
	key, value = rec[:eq], rec[eq+1:]

	if key == "" || strings.Contains(key, "=") {
		return "", "", s, config.ErrInvalidArchive
	}

	return key, value, rest, nil
}

// formatPAXRecord encodes one record, iterating the length prefix to
// its fixed point because the length counts its own digits.
func formatPAXRecord(key, value string) string {
	const padding = 3 // Space, '=', '\n'

	size := len(key) + len(value) + padding
	size += len(strconv.Itoa(size))
	record := strconv.Itoa(size) + " " + key + "=" + value + "\n"

	if len(record) != size {
		size = len(record)
		record = strconv.Itoa(size) + " " + key + "=" + value + "\n"
	}

	return record
}

// FormatPAXRecords emits the records in deterministic order: the
// well-known keys first, then the rest sorted.
func FormatPAXRecords(records map[string]string) []byte {
	var sb strings.Builder

	seen := map[string]bool{}
	for _, key := range paxWellKnownKeys {
		if value, ok := records[key]; ok {
			sb.WriteString(formatPAXRecord(key, value))
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(records))
	for key := range records {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	for _, key := range rest {
		sb.WriteString(formatPAXRecord(key, records[key]))
	}

	return []byte(sb.String())
}

// parsePAXTime parses a decimal timestamp with an optional fractional
// part at up to nanosecond precision.
func parsePAXTime(s string) (time.Time, error) {
	const maxNanoSecondDigits = 9

	ss, sn := s, ""
	if pos := strings.IndexByte(s, '.'); pos >= 0 {
		ss, sn = s[:pos], s[pos+1:]
	}

	secs, err := strconv.ParseInt(ss, 10, 64)
	if err != nil {
		return time.Time{}, config.ErrInvalidArchive
	}
	if len(sn) == 0 {
		return time.Unix(secs, 0), nil
	}

	if strings.Trim(sn, "0123456789") != "" {
		return time.Time{}, config.ErrInvalidArchive
	}
	if len(sn) < maxNanoSecondDigits {
		sn += strings.Repeat("0", maxNanoSecondDigits-len(sn))
	} else {
		sn = sn[:maxNanoSecondDigits]
	}

	nsecs, _ := strconv.ParseInt(sn, 10, 64)
	if len(ss) > 0 && ss[0] == '-' {
		return time.Unix(secs, -nsecs), nil
	}

	return time.Unix(secs, nsecs), nil
}

// formatPAXTime encodes ts, dropping the fractional part when it is
// zero so whole-second times stay compact.
func formatPAXTime(ts time.Time) string {
	secs, nsecs := ts.Unix(), ts.Nanosecond()
	if nsecs == 0 {
		return strconv.FormatInt(secs, 10)
	}

	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -(secs + 1)
		nsecs = -(nsecs - 1e9)
	}

	return strings.TrimRight(fmt.Sprintf("%s%d.%09d", sign, secs, nsecs), "0")
}

// mergePAX overlays parsed PAX records onto hdr. Record values win
// over what the raw header carried.
func mergePAX(hdr *Header, records map[string]string) error {
	for key, value := range records {
		var err error
		switch key {
		case paxPath:
			hdr.Name = value
		case paxLinkpath:
			hdr.Linkname = value
		case paxSize:
			hdr.Size, err = strconv.ParseInt(value, 10, 64)
		case paxUID:
			hdr.UID, err = strconv.ParseInt(value, 10, 64)
		case paxGID:
			hdr.GID, err = strconv.ParseInt(value, 10, 64)
		case paxUname:
			hdr.Uname = value
		case paxGname:
			hdr.Gname = value
		case paxMtime:
			hdr.ModTime, err = parsePAXTime(value)
		case paxAtime:
			hdr.AccessTime, err = parsePAXTime(value)
		case paxCtime:
			hdr.ChangeTime, err = parsePAXTime(value)
		}

		if err != nil {
			return fmt.Errorf("pax record %q: %w", key, config.ErrInvalidArchive)
		}
	}

	if len(records) > 0 {
		if hdr.PAXRecords == nil {
			hdr.PAXRecords = map[string]string{}
		}
		for key, value := range records {
			hdr.PAXRecords[key] = value
		}
	}

	return nil
}
