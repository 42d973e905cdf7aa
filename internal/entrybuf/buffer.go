// Package entrybuf provides a pooled byte buffer for building one append's
// worth of entry bytes (an optional channel-definition entry, a time entry,
// and a value entry) before a single Write to the day file.
//
// Adapted from the blob-building ByteBuffer/ByteBufferPool pair, with a
// default sizing that favors the small multi-entry groups a single Append
// call produces rather than a whole blob. Buffers grow through the built-in
// append.
package entrybuf

import "sync"

const (
	// DefaultSize comfortably holds a channel-definition entry (name up to
	// ~32 bytes) plus a time entry plus a value entry without growing.
	DefaultSize = 128
	// MaxThreshold discards buffers larger than this instead of pooling
	// them, so one pathologically long channel name doesn't pin memory.
	MaxThreshold = 64 * 1024
)

// Buffer is a growable byte slice meant to be obtained from a Pool, filled
// by one Append call, written out, and returned.
type Buffer struct {
	B []byte
}

// New creates a Buffer with the given starting capacity.
func New(size int) *Buffer {
	return &Buffer{B: make([]byte, 0, size)}
}

// Bytes returns the buffer's current contents.
func (b *Buffer) Bytes() []byte {
	return b.B
}

// Reset empties the buffer while retaining its backing array.
func (b *Buffer) Reset() {
	b.B = b.B[:0]
}

// Write appends data, growing the backing array as needed.
func (b *Buffer) Write(data []byte) (int, error) {
	b.B = append(b.B, data...)

	return len(data), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.B = append(b.B, c)

	return nil
}

// Pool is a sync.Pool of Buffers, capped so pathological growth doesn't pin
// memory across reuse.
type Pool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewPool creates a Pool whose buffers start at defaultSize and are
// discarded on Put if they grew past maxThreshold.
func NewPool(defaultSize, maxThreshold int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return New(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a Buffer from the pool.
func (p *Pool) Get() *Buffer {
	buf, _ := p.pool.Get().(*Buffer)

	return buf
}

// Put returns buf to the pool, discarding it if it grew past maxThreshold.
func (p *Pool) Put(buf *Buffer) {
	if buf == nil {
		return
	}
	if p.maxThreshold > 0 && cap(buf.B) > p.maxThreshold {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}

var defaultPool = NewPool(DefaultSize, MaxThreshold)

// Get retrieves a Buffer from the package-level default pool.
func Get() *Buffer { return defaultPool.Get() }

// Put returns buf to the package-level default pool.
func Put(buf *Buffer) { defaultPool.Put(buf) }
