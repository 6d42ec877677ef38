// Package entry implements the on-disk frame for persisted cache entries.
// It is used by backends that keep bytes outside process memory (file,
// table) and need to carry the absolute expiry alongside the payload.
package entry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry")
	magic4     = [...]byte{'T', 'A', 'G', 'C'}
)

const version byte = 1

// Frame: magic(4) | ver(1) | expiresAt(i64 be, unix nano, 0=never) | vlen(u32 be) | payload(vlen)
const header = 4 + 1 + 8 + 4

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// ExpiryFromTTL converts a call-site TTL into an absolute expiry.
// ttl <= 0 yields the zero time, meaning the entry never expires.
func ExpiryFromTTL(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Encode frames payload with its absolute expiry. A zero expiresAt means the
// entry never expires.
func Encode(expiresAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(header + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.UnixNano()
	}

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(exp))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode parses a frame. The returned payload aliases b (zero-copy).
func Decode(b []byte) (expiresAt time.Time, payload []byte, err error) {
	if len(b) < header || !hasMagic(b) || b[4] != version {
		return time.Time{}, nil, ErrCorrupt
	}

	off := 5

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if exp < 0 {
		return time.Time{}, nil, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // reject truncation and trailing junk
		return time.Time{}, nil, ErrCorrupt
	}

	if exp != 0 {
		expiresAt = time.Unix(0, exp)
	}
	return expiresAt, b[off : off+vlen], nil
}

// Expired reports whether an entry with the given expiry is dead at now.
// The zero time never expires.
func Expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}
