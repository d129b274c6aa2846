// Package framering buffers encoded audio fragments for a capture
// session. Fragments are variable-length, so each is stored in the
// underlying byte ring with a small binary header.
package framering

import (
	"encoding/binary"
	"time"
)

// Fragment is one encoded audio segment produced by a capture stream.
type Fragment struct {
	Data      []byte
	Seq       uint32
	Timestamp time.Time
}

func (f *Fragment) MarshalBinary() ([]byte, error) {
	// Format: timestamp(8) + seq(4) + dataLen(4) + data
	buf := make([]byte, 8+4+4+len(f.Data))

	offset := 0
	binary.LittleEndian.PutUint64(buf[offset:], uint64(f.Timestamp.UnixNano()))
	offset += 8

	binary.LittleEndian.PutUint32(buf[offset:], f.Seq)
	offset += 4

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(f.Data)))
	offset += 4

	copy(buf[offset:], f.Data)
	return buf, nil
}

func (f *Fragment) UnmarshalBinary(data []byte) error {
	if len(data) < 16 { // minimum size: 8+4+4
		return nil
	}

	offset := 0
	f.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[offset:])))
	offset += 8

	f.Seq = binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	dataLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if len(data[offset:]) >= int(dataLen) {
		f.Data = make([]byte, dataLen)
		copy(f.Data, data[offset:offset+int(dataLen)])
	}
	return nil
}

// FragmentRing is an ordered bounded buffer of fragments. When full,
// the oldest complete fragment is evicted to make room.
type FragmentRing interface {
	Enqueue(frag Fragment) error
	Dequeue() (Fragment, bool)
	// Drain removes and returns all buffered fragments in order.
	Drain() []Fragment
	Len() int
	Capacity() int
	Reset()
}
