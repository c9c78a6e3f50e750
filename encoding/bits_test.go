package encoding

import (
	"reflect"
	"testing"
)

func TestPackBitsLength(t *testing.T) {
	cases := []struct {
		n        int
		wantLen  int
	}{
		{0, 0}, {1, 1}, {7, 1}, {8, 1}, {9, 2}, {2000, 250},
	}
	for _, c := range cases {
		bits := make([]bool, c.n)
		got := PackBits(bits)
		if len(got) != c.wantLen {
			t.Errorf("PackBits(%d bits): len=%d, want %d", c.n, len(got), c.wantLen)
		}
	}
}

func TestPackBitsLSBFirst(t *testing.T) {
	// bit 0 true, bit 1 false, bit 2 true -> byte 0b00000101 = 0x05
	got := PackBits([]bool{true, false, true})
	want := []byte{0x05}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PackBits = %#v, want %#v", got, want)
	}
}

func TestPackBitsScenario3(t *testing.T) {
	// 200 bits all true -> 25 bytes, first 24 are 0xFF, 25th also 0xFF (200 % 8 == 0)
	bits := make([]bool, 200)
	for i := range bits {
		bits[i] = true
	}
	got := PackBits(bits)
	if len(got) != 25 {
		t.Fatalf("len = %d, want 25", len(got))
	}
	for i, b := range got {
		if b != 0xFF {
			t.Errorf("byte %d = %#x, want 0xFF", i, b)
		}
	}
}

func TestUnpackBitsRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true, false, true}
	packed := PackBits(bits)
	got := UnpackBits(packed, len(bits))
	if !reflect.DeepEqual(got, bits) {
		t.Errorf("round trip = %#v, want %#v", got, bits)
	}
}
