package sparse

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pojntfx/gtar/pkg/tarfmt"
)

func TestDetect(t *testing.T) {
	for _, tc := range []struct {
		name string
		data []byte
		want []tarfmt.SparseRegion
	}{
		{
			name: "empty",
			data: nil,
			want: nil,
		},
		{
			name: "all data",
			data: bytes.Repeat([]byte{'x'}, 100),
			want: []tarfmt.SparseRegion{{Offset: 0, Length: 100}},
		},
		{
			name: "all zeros",
			data: make([]byte, 256*1024),
			want: nil,
		},
		{
			name: "hole then data",
			data: append(make([]byte, 128*1024), bytes.Repeat([]byte{'x'}, 64*1024)...),
			want: []tarfmt.SparseRegion{{Offset: 128 * 1024, Length: 64 * 1024}},
		},
		{
			name: "data hole data",
			data: append(append(
				bytes.Repeat([]byte{'x'}, 64*1024),
				make([]byte, 128*1024)...),
				bytes.Repeat([]byte{'y'}, 10)...),
			want: []tarfmt.SparseRegion{
				{Offset: 0, Length: 64 * 1024},
				{Offset: 192 * 1024, Length: 10},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(bytes.NewReader(tc.data), int64(len(tc.data)))
			if err != nil {
				t.Fatal(err)
			}

			if len(got) != len(tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("region %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestIsWorthy(t *testing.T) {
	for _, tc := range []struct {
		name    string
		regions []tarfmt.SparseRegion
		logical int64
		want    bool
	}{
		{"dense file", []tarfmt.SparseRegion{{Offset: 0, Length: 1000}}, 1000, false},
		{"mostly hole", []tarfmt.SparseRegion{{Offset: 0, Length: 100}}, 1000, true},
		{"two regions", []tarfmt.SparseRegion{{Offset: 0, Length: 500}, {Offset: 600, Length: 400}}, 1000, true},
		{"empty file", nil, 0, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsWorthy(tc.regions, tc.logical); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWriteData(t *testing.T) {
	src := bytes.NewReader(append(bytes.Repeat([]byte{'a'}, 100), bytes.Repeat([]byte{'b'}, 100)...))
	regions := []tarfmt.SparseRegion{
		{Offset: 0, Length: 10},
		{Offset: 100, Length: 10},
	}

	var out bytes.Buffer
	if err := WriteData(&out, src, regions); err != nil {
		t.Fatal(err)
	}

	want := "aaaaaaaaaabbbbbbbbbb"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestExtractRoundTrip(t *testing.T) {
	// A 1 MiB logical file with two data regions.
	logical := int64(1 << 20)
	regions := []tarfmt.SparseRegion{
		{Offset: 0, Length: 512},
		{Offset: 512 * 1024, Length: 1024},
	}

	physical := bytes.Repeat([]byte{'d'}, 512+1024)

	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := Extract(f, bytes.NewReader(physical), regions, logical); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if int64(len(got)) != logical {
		t.Fatalf("size = %d, want %d", len(got), logical)
	}

	for _, region := range regions {
		for i := region.Offset; i < region.Offset+region.Length; i++ {
			if got[i] != 'd' {
				t.Fatalf("byte %d = %q, want 'd'", i, got[i])
			}
		}
	}

	// Spot-check a hole byte.
	if got[1024] != 0 {
		t.Errorf("hole byte not zero")
	}
}

func TestExtractDense(t *testing.T) {
	regions := []tarfmt.SparseRegion{{Offset: 4, Length: 4}}

	var out bytes.Buffer
	if err := ExtractDense(&out, bytes.NewReader([]byte("data")), regions, 12); err != nil {
		t.Fatal(err)
	}

	want := []byte{0, 0, 0, 0, 'd', 'a', 't', 'a', 0, 0, 0, 0}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("got %v, want %v", out.Bytes(), want)
	}
}
