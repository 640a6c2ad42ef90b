package db

import (
	"slices"
	"testing"
)

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3, 0}
	blob := EncodeVector(in)
	if len(blob) != 16 {
		t.Fatalf("blob len = %d, want 16", len(blob))
	}
	if out := DecodeVector(blob); !slices.Equal(in, out) {
		t.Errorf("round trip = %v", out)
	}
}

func TestDecodeVector_IgnoresPartial(t *testing.T) {
	blob := EncodeVector([]float32{1}) + "xy"
	if out := DecodeVector(blob); len(out) != 1 || out[0] != 1 {
		t.Errorf("DecodeVector = %v", out)
	}
}
