package formatting

import (
	"strings"
	"testing"
	"time"

	"github.com/pojntfx/gtar/pkg/tarfmt"
)

func TestEntryLine(t *testing.T) {
	hdr := &tarfmt.Header{
		Name:    "dir/file.txt",
		Mode:    0644,
		UID:     1000,
		GID:     1000,
		Uname:   "user",
		Gname:   "group",
		Size:    42,
		ModTime: time.Date(2021, 6, 1, 12, 30, 0, 0, time.UTC),
	}

	if got := EntryLine(hdr, false, false); got != "dir/file.txt" {
		t.Errorf("bare line = %q", got)
	}

	long := EntryLine(hdr, true, false)
	for _, want := range []string{"-rw-r--r--", "user/group", "42", "2021-06-01", "dir/file.txt"} {
		if !strings.Contains(long, want) {
			t.Errorf("verbose line %q missing %q", long, want)
		}
	}

	numeric := EntryLine(hdr, true, true)
	if !strings.Contains(numeric, "1000/1000") {
		t.Errorf("numeric line %q missing ids", numeric)
	}
}

func TestEntryLineTypes(t *testing.T) {
	symlink := &tarfmt.Header{
		Name:     "s",
		Linkname: "t",
		Mode:     0777,
		Typeflag: tarfmt.TypeSymlink,
		ModTime:  time.Unix(0, 0),
	}

	line := EntryLine(symlink, true, true)
	if !strings.HasPrefix(line, "lrwxrwxrwx") {
		t.Errorf("symlink line = %q", line)
	}
	if !strings.HasSuffix(line, " -> t") {
		t.Errorf("symlink target missing: %q", line)
	}

	dir := &tarfmt.Header{Name: "d/", Mode: 0755, Typeflag: tarfmt.TypeDir, ModTime: time.Unix(0, 0)}
	if line := EntryLine(dir, true, true); !strings.HasPrefix(line, "drwxr-xr-x") {
		t.Errorf("dir line = %q", line)
	}
}
