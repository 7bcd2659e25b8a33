// Package wire frames cache payloads for storage. The frame carries the
// entry kind (primary vs stale twin) and the wall-clock time the value was
// computed, so readers can tell a stale fallback apart from an authoritative
// entry and report its age. Framing is strict: wrong magic, wrong version,
// wrong kind byte, or trailing bytes all decode as ErrCorrupt and the cache
// self-heals by deleting the entry.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

type Kind byte

const (
	KindPrimary Kind = 1
	KindStale   Kind = 2
)

var (
	ErrCorrupt = errors.New("herdlock: corrupt entry")
	magic4     = [...]byte{'H', 'D', 'L', 'K'}
)

const header = 4 + 1 + 1 + 8 + 4 // magic | ver | kind | storedAt | vlen

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode: magic(4) | ver(1) | kind(1) | storedAt unixnano (u64 be) | vlen(u32 be) | payload
func Encode(kind Kind, storedAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(header + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(kind))

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(storedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func Decode(b []byte) (kind Kind, storedAt time.Time, payload []byte, err error) {
	if len(b) < header || !hasMagic(b) || b[4] != version {
		return 0, time.Time{}, nil, ErrCorrupt
	}
	kind = Kind(b[5])
	if kind != KindPrimary && kind != KindStale {
		return 0, time.Time{}, nil, ErrCorrupt
	}

	off := 6
	storedAt = time.Unix(0, int64(binary.BigEndian.Uint64(b[off:off+8])))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off { // strict: no trailing bytes
		return 0, time.Time{}, nil, ErrCorrupt
	}

	return kind, storedAt, b[off : off+vlen], nil
}
