package vector

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := [][]float32{
		{},
		{1},
		{0.25, -1.5, 3.1415927, 0},
		{float32(math.MaxFloat32), -float32(math.SmallestNonzeroFloat32), 1e-7},
	}
	for _, v := range tests {
		blob, dim := Encode(v)
		if dim != len(v) {
			t.Errorf("Encode dim = %d, want %d", dim, len(v))
		}
		if len(blob) != len(v)*4 {
			t.Errorf("blob length = %d, want %d", len(blob), len(v)*4)
		}
		got, err := Decode(blob, dim)
		if err != nil {
			t.Fatalf("Decode(%v): %v", v, err)
		}
		if len(got) != len(v) {
			t.Fatalf("Decode length = %d, want %d", len(got), len(v))
		}
		for i := range v {
			if got[i] != v[i] {
				t.Errorf("value %d: got %v, want %v", i, got[i], v[i])
			}
		}
	}
}

func TestEncode_LittleEndianLayout(t *testing.T) {
	blob, _ := Encode([]float32{1})
	// 1.0 == 0x3f800000
	want := []byte{0x00, 0x00, 0x80, 0x3f}
	for i := range want {
		if blob[i] != want[i] {
			t.Fatalf("blob = %x, want %x", blob, want)
		}
	}
}

func TestDecode_DimMismatch(t *testing.T) {
	blob, _ := Encode([]float32{1, 2, 3})
	if _, err := Decode(blob, 4); !errors.Is(err, ErrEmbeddingDimMismatch) {
		t.Errorf("expected ErrEmbeddingDimMismatch, got %v", err)
	}
	if _, err := Decode(blob[:5], 0); !errors.Is(err, ErrEmbeddingDimMismatch) {
		t.Errorf("expected ErrEmbeddingDimMismatch for ragged blob, got %v", err)
	}
}

func TestDecode_ZeroExpectedDimAcceptsAnyLength(t *testing.T) {
	blob, _ := Encode([]float32{1, 2, 3, 4, 5})
	got, err := Decode(blob, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("len = %d, want 5", len(got))
	}
}
