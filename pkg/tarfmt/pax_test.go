package tarfmt

import (
	"reflect"
	"testing"
	"time"
)

func TestFormatPAXRecordFixedPoint(t *testing.T) {
	if got := formatPAXRecord("path", "hello"); got != "15 path=hello\n" {
		t.Errorf("got %q, want %q", got, "15 path=hello\n")
	}

	// Length crossing a digit boundary must re-fix-point.
	record := formatPAXRecord("comment", "0123456789012345678901234567890123456789012345678901234567890123456789012345678901234567")
	if got := len(record); got != atoiPrefix(t, record) {
		t.Errorf("record length %d does not match its prefix", got)
	}
}

func atoiPrefix(t *testing.T, record string) int {
	t.Helper()

	n := 0
	for _, c := range record {
		if c == ' ' {
			return n
		}

		n = n*10 + int(c-'0')
	}

	t.Fatalf("no space in record %q", record)

	return 0
}

func TestPAXRecordsRoundTrip(t *testing.T) {
	records := map[string]string{
		"path":             "some/long/path",
		"linkpath":         "target",
		"size":             "8589934592",
		"mtime":            "1600000000.123456789",
		"SCHILY.xattr.user.comment": "value=with=equals",
	}

	parsed, err := ParsePAXRecords(FormatPAXRecords(records))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(parsed, records) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", parsed, records)
	}
}

func TestParsePAXRecordsNULInXattr(t *testing.T) {
	records := map[string]string{
		"SCHILY.xattr.user.binary": "a\x00b",
	}

	parsed, err := ParsePAXRecords(FormatPAXRecords(records))
	if err != nil {
		t.Fatal(err)
	}

	if parsed["SCHILY.xattr.user.binary"] != "a\x00b" {
		t.Errorf("binary value mangled: %q", parsed["SCHILY.xattr.user.binary"])
	}
}

func TestParsePAXRecordsSparse00Folding(t *testing.T) {
	payload := []byte(
		formatPAXRecord("GNU.sparse.size", "1000") +
			formatPAXRecord("GNU.sparse.numblocks", "2") +
			formatPAXRecord("GNU.sparse.offset", "0") +
			formatPAXRecord("GNU.sparse.numbytes", "100") +
			formatPAXRecord("GNU.sparse.offset", "500") +
			formatPAXRecord("GNU.sparse.numbytes", "100"),
	)

	parsed, err := ParsePAXRecords(payload)
	if err != nil {
		t.Fatal(err)
	}

	if parsed[paxGNUSparseMap] != "0,100,500,100" {
		t.Errorf("folded map = %q", parsed[paxGNUSparseMap])
	}
}

func TestParsePAXRecordsMalformed(t *testing.T) {
	for _, tc := range []struct {
		name    string
		payload string
	}{
		{"no space", "15path=hello\n"},
		{"no newline", "14 path=hello"},
		{"no equals", "11 pathval\n"},
		{"length too long", "99 path=hello\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePAXRecords([]byte(tc.payload)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParsePAXTime(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  time.Time
	}{
		{"1600000000", time.Unix(1600000000, 0)},
		{"1600000000.5", time.Unix(1600000000, 500000000)},
		{"1600000000.123456789", time.Unix(1600000000, 123456789)},
		{"1600000000.1234567891", time.Unix(1600000000, 123456789)},
	} {
		got, err := parsePAXTime(tc.input)
		if err != nil {
			t.Fatalf("parsePAXTime(%q): %v", tc.input, err)
		}

		if !got.Equal(tc.want) {
			t.Errorf("parsePAXTime(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
