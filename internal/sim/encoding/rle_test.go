package encoding

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRLERoundTrip(t *testing.T) {
	in := []uint16{1, 1, 1, 2, 2, 3}
	for i := 0; i < 300; i++ {
		in = append(in, 700)
	}
	in = append(in, 9, 10, 10, 10)

	out, err := DecodeRLE(EncodeRLE(in), len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestRLECompactsUniformChunk(t *testing.T) {
	in := make([]uint16, 4096)
	if n := len(EncodeRLE(in)); n != 3 {
		t.Fatalf("encoded %d bytes, want 3", n)
	}
}

func TestDecodeRLERejectsBadStreams(t *testing.T) {
	good := EncodeRLE([]uint16{5, 5, 6})
	cases := map[string]struct {
		raw  []byte
		want int
	}{
		"short":     {good, 4},
		"long":      {good, 2},
		"truncated": {good[:len(good)-1], 3},
		"zero run":  {[]byte{5, 0}, 0},
		"big id":    {[]byte{0x80, 0x80, 0x04, 1}, 1},
	}
	for name, tc := range cases {
		if _, err := DecodeRLE(tc.raw, tc.want); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
