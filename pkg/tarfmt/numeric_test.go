package tarfmt

import (
	"testing"
)

func TestNumericRoundTrip(t *testing.T) {
	values := []int64{
		0,
		1,
		0777,
		077777777777,     // Largest 12-byte octal value
		077777777777 + 1, // First base-256 value
		8589934592,
		1 << 40,
		1<<62 - 1,
	}

	for _, value := range values {
		var field [12]byte
		formatNumeric(field[:], value)

		got, err := parseNumeric(field[:])
		if err != nil {
			t.Fatalf("parseNumeric(%d): %v", value, err)
		}

		if got != value {
			t.Errorf("round trip of %d yielded %d", value, got)
		}

		wantBase256 := value > 077777777777
		gotBase256 := field[0]&0x80 != 0
		if wantBase256 != gotBase256 {
			t.Errorf("value %d: base-256 used = %v, want %v", value, gotBase256, wantBase256)
		}
	}
}

func TestParseOctal(t *testing.T) {
	for _, tc := range []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"plain", "0000644\x00", 0644, false},
		{"space terminated", "0000644 ", 0644, false},
		{"leading spaces", "   644\x00 ", 0644, false},
		{"empty", "\x00\x00\x00\x00", 0, true},
		{"all spaces", "        ", 0, true},
		{"bad digit", "00009\x00", 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseOctal([]byte(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %d", got)
				}

				return
			}

			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBlocksNeeded(t *testing.T) {
	for _, tc := range []struct {
		size int64
		want int64
	}{
		{0, 0},
		{1, 1},
		{511, 1},
		{512, 1},
		{513, 2},
		{1024, 2},
	} {
		if got := BlocksNeeded(tc.size); got != tc.want {
			t.Errorf("BlocksNeeded(%d) = %d, want %d", tc.size, got, tc.want)
		}
	}
}

func TestPadding(t *testing.T) {
	for _, tc := range []struct {
		size int64
		want int64
	}{
		{0, 0},
		{1, 511},
		{512, 0},
		{513, 511},
	} {
		if got := Padding(tc.size); got != tc.want {
			t.Errorf("Padding(%d) = %d, want %d", tc.size, got, tc.want)
		}
	}
}
