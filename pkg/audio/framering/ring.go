package framering

import (
	"encoding/binary"
	"errors"

	"github.com/smallnest/ringbuffer"
)

type ring struct {
	size int
	rb   *ringbuffer.RingBuffer
}

// New returns a FragmentRing over a byte ring of the given capacity.
func New(size int) FragmentRing {
	return &ring{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false), // non-blocking, overflow evicts
	}
}

// Enqueue implements FragmentRing.
func (r *ring) Enqueue(frag Fragment) error {
	data, err := frag.MarshalBinary()
	if err != nil {
		return err
	}

	// size prefix + payload
	requiredSpace := len(data) + 4
	if requiredSpace > r.rb.Capacity() {
		return errors.New("fragment too large for buffer")
	}

	// evict oldest complete fragments until the new one fits
	for r.rb.Free() < requiredSpace {
		if !r.skipOldest() {
			r.rb.Reset()
			break
		}
	}

	sizeBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBytes, uint32(len(data)))
	if _, err := r.rb.Write(sizeBytes); err != nil {
		return err
	}
	_, err = r.rb.Write(data)
	return err
}

// Dequeue implements FragmentRing.
func (r *ring) Dequeue() (Fragment, bool) {
	if r.rb.IsEmpty() {
		return Fragment{}, false
	}

	sizeBytes := make([]byte, 4)
	n, err := r.rb.Read(sizeBytes)
	if err != nil || n != 4 {
		return Fragment{}, false
	}
	size := int(binary.LittleEndian.Uint32(sizeBytes))

	data := make([]byte, size)
	n, err = r.rb.Read(data)
	if err != nil || n != size {
		return Fragment{}, false
	}

	var frag Fragment
	if err := frag.UnmarshalBinary(data); err != nil {
		return Fragment{}, false
	}
	return frag, true
}

// Drain implements FragmentRing.
func (r *ring) Drain() []Fragment {
	var frags []Fragment
	for {
		frag, ok := r.Dequeue()
		if !ok {
			return frags
		}
		frags = append(frags, frag)
	}
}

// skipOldest discards the oldest complete fragment from the buffer.
func (r *ring) skipOldest() bool {
	if r.rb.IsEmpty() {
		return false
	}

	sizeBytes := make([]byte, 4)
	n, err := r.rb.Read(sizeBytes)
	if err != nil || n != 4 {
		return false
	}
	size := int(binary.LittleEndian.Uint32(sizeBytes))

	if size > 0 {
		skip := make([]byte, size)
		n, err := r.rb.Read(skip)
		if err != nil || n != size {
			return false
		}
	}
	return true
}

// Len implements FragmentRing.
func (r *ring) Len() int {
	return r.rb.Length()
}

// Capacity implements FragmentRing.
func (r *ring) Capacity() int {
	return r.size
}

// Reset implements FragmentRing.
func (r *ring) Reset() {
	r.rb.Reset()
}
