package tarfmt

import (
	"strings"
	"testing"
	"time"
)

func TestChecksumInvariant(t *testing.T) {
	var b block
	putCString(b.name(), "hello.txt")
	formatOctal(b.mode(), 0644)
	formatOctal(b.size(), 4)
	formatOctal(b.mtime(), 1600000000)
	b.typeflag()[0] = TypeReg
	copy(b.magic(), magicUSTAR)
	copy(b.version(), versionUSTAR)

	b.setChecksum()
	if !b.validateChecksum() {
		t.Fatal("checksum invalid immediately after setChecksum")
	}

	// Mutating a non-chksum byte invalidates the stored sum.
	b.name()[0]++
	if b.validateChecksum() {
		t.Error("checksum still valid after mutation")
	}

	b.setChecksum()
	if !b.validateChecksum() {
		t.Error("checksum invalid after re-set")
	}
}

func TestSplitUSTARPath(t *testing.T) {
	for _, tc := range []struct {
		name       string
		path       string
		wantPrefix string
		wantRest   string
		wantOK     bool
	}{
		{
			name:   "short name stays whole",
			path:   "usr/bin/tar",
			wantOK: false,
		},
		{
			name:       "split at rightmost slash",
			path:       strings.Repeat("a", 80) + "/" + strings.Repeat("b", 40),
			wantPrefix: strings.Repeat("a", 80),
			wantRest:   strings.Repeat("b", 40),
			wantOK:     true,
		},
		{
			name:       "prefix of exactly 155",
			path:       strings.Repeat("p", 155) + "/" + strings.Repeat("n", 100),
			wantPrefix: strings.Repeat("p", 155),
			wantRest:   strings.Repeat("n", 100),
			wantOK:     true,
		},
		{
			name:   "basename too long",
			path:   "d/" + strings.Repeat("n", 101),
			wantOK: false,
		},
		{
			name:   "no slash",
			path:   strings.Repeat("x", 150),
			wantOK: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prefix, rest, ok := splitUSTARPath(tc.path)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}

			if prefix != tc.wantPrefix || rest != tc.wantRest {
				t.Errorf("got (%q, %q), want (%q, %q)", prefix, rest, tc.wantPrefix, tc.wantRest)
			}
		})
	}
}

func TestDecodeBlockUSTARPrefix(t *testing.T) {
	var b block
	putCString(b.name(), "name")
	putCString(b.prefix(), "some/deep/prefix")
	formatOctal(b.mode(), 0755)
	formatOctal(b.mtime(), 1500000000)
	b.typeflag()[0] = TypeDir
	copy(b.magic(), magicUSTAR)
	copy(b.version(), versionUSTAR)
	b.setChecksum()

	hdr, err := decodeBlock(&b)
	if err != nil {
		t.Fatal(err)
	}

	if hdr.Name != "some/deep/prefix/name" {
		t.Errorf("joined name = %q", hdr.Name)
	}
	if hdr.Format != FormatUSTAR {
		t.Errorf("format = %v", hdr.Format)
	}
	if !hdr.ModTime.Equal(time.Unix(1500000000, 0)) {
		t.Errorf("mtime = %v", hdr.ModTime)
	}
}

func TestIsZero(t *testing.T) {
	var b block
	if !b.isZero() {
		t.Error("fresh block should be zero")
	}

	b[511] = 1
	if b.isZero() {
		t.Error("dirtied block should not be zero")
	}
}
