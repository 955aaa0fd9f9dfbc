package logging

import "sync"

// Ring is a fixed-size circular byte buffer that keeps the most recent log
// output for crash dumps. It implements io.Writer; old data is overwritten
// once the buffer is full.
type Ring struct {
	mu      sync.Mutex
	buf     []byte
	written int // total bytes ever written
}

// NewRing returns a ring buffer holding up to size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1 << 20
	}
	return &Ring{buf: make([]byte, size)}
}

// Write implements io.Writer and never fails.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	// Only the final len(buf) bytes can survive anyway.
	if n > len(r.buf) {
		r.written += n - len(r.buf)
		p = p[n-len(r.buf):]
	}
	for len(p) > 0 {
		off := r.written % len(r.buf)
		c := copy(r.buf[off:], p)
		p = p[c:]
		r.written += c
	}
	return n, nil
}

// Snapshot returns the retained bytes in write order.
func (r *Ring) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.written <= len(r.buf) {
		out := make([]byte, r.written)
		copy(out, r.buf[:r.written])
		return out
	}
	off := r.written % len(r.buf)
	out := make([]byte, len(r.buf))
	copy(out, r.buf[off:])
	copy(out[len(r.buf)-off:], r.buf[:off])
	return out
}
