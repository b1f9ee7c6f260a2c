package segment

import (
	"encoding/binary"
	"fmt"
)

// afterPrefix returns the smallest byte string sorting after every key that
// shares prefix, or nil when the prefix is all 0xff and no bound exists.
func afterPrefix(prefix []byte) []byte {
	i := len(prefix)
	for i > 0 && prefix[i-1] == 0xff {
		i--
	}
	if i == 0 {
		return nil
	}
	out := append([]byte(nil), prefix[:i]...)
	out[i-1]++
	return out
}

// afterKey returns the smallest byte string sorting strictly after key, for
// use as an exclusive scan bound that still admits key itself.
func afterKey(key []byte) []byte {
	return append(append(make([]byte, 0, len(key)+1), key...), 0)
}

// uvarReader decodes uvarints from a slice without copying it.
type uvarReader struct {
	data []byte
	pos  int
}

func (r *uvarReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("truncated uvarint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}
