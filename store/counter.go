package store

import (
	"fmt"
	"strconv"
)

// Counters are stored as ASCII decimal (the redis INCR convention) so that
// native Incrementer backends and the read-modify-write emulation in the
// cache layer operate on the same byte representation.

// FormatCounter encodes a counter value for storage.
func FormatCounter(v int64) []byte {
	return strconv.AppendInt(nil, v, 10)
}

// ParseCounter decodes a stored counter value. Empty input decodes to 0 so
// increments on absent keys start from zero.
func ParseCounter(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("store: non-numeric counter value %q: %w", b, err)
	}
	return v, nil
}
