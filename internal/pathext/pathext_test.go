package pathext

import "testing"

func TestMatchesExclude(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		name    string
		want    bool
	}{
		{"a/b.txt", "a/b.txt", true},
		{"b.txt", "a/b.txt", true},
		{"a", "a/b.txt", true},
		{"a/b", "a/b.txt", false},
		{"*.txt", "a/b.txt", true},
		{"b.*", "a/b.txt", true},
		{"*.log", "a/b.txt", false},
		{"a/*", "a/b.txt", true},
		{"c", "a/b.txt", false},
		{"a/b.txt", "a/b.txt/", true},
	} {
		if got := MatchesExclude(tc.pattern, tc.name); got != tc.want {
			t.Errorf("MatchesExclude(%q, %q) = %v, want %v", tc.pattern, tc.name, got, tc.want)
		}
	}
}

func TestStripComponents(t *testing.T) {
	for _, tc := range []struct {
		path   string
		n      uint32
		want   string
		wantOK bool
	}{
		{"a/b/c", 0, "a/b/c", true},
		{"a/b/c", 1, "b/c", true},
		{"a/b/c", 2, "c", true},
		{"a/b/c", 3, "", false},
		{"a/b/", 1, "b/", true},
		{"a/", 1, "", false},
	} {
		got, ok := StripComponents(tc.path, tc.n)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("StripComponents(%q, %d) = (%q, %v), want (%q, %v)", tc.path, tc.n, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestMakeRelative(t *testing.T) {
	for _, tc := range []struct {
		path          string
		allowAbsolute bool
		want          string
	}{
		{"/etc/passwd", false, "etc/passwd"},
		{"/etc/passwd", true, "/etc/passwd"},
		{"../../x", false, "x"},
		{"plain", false, "plain"},
	} {
		if got := MakeRelative(tc.path, tc.allowAbsolute); got != tc.want {
			t.Errorf("MakeRelative(%q, %v) = %q, want %q", tc.path, tc.allowAbsolute, got, tc.want)
		}
	}
}
