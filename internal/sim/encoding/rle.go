package encoding

import (
	"encoding/binary"
	"fmt"
)

// EncodeRLE packs palette ids as uvarint (id, run) pairs. Chunks are mostly
// a handful of long runs, so this is far smaller than the raw slice.
func EncodeRLE(ids []uint16) []byte {
	out := make([]byte, 0, 64)
	for i := 0; i < len(ids); {
		b := ids[i]
		j := i + 1
		for j < len(ids) && ids[j] == b {
			j++
		}
		out = binary.AppendUvarint(out, uint64(b))
		out = binary.AppendUvarint(out, uint64(j-i))
		i = j
	}
	return out
}

// DecodeRLE expands pairs written by EncodeRLE. want is the expected number
// of ids; a stream that decodes to any other length is rejected.
func DecodeRLE(raw []byte, want int) ([]uint16, error) {
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad id varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad run varint at %d", i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("rle: block id too large: %d", b)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("rle: run of %d overflows %d ids", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("rle: decoded %d ids, want %d", len(out), want)
	}
	return out, nil
}
