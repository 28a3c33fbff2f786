package core

import (
	"sync"

	"github.com/armon/circbuf"
)

// BufferPool manages a pool of reusable circular buffers used to capture step
// output. Output beyond the buffer size keeps only the most recent bytes.
type BufferPool struct {
	pool    sync.Pool
	size    int64
	maxSize int64
	minSize int64
}

// NewBufferPool creates a new buffer pool with configurable sizes
func NewBufferPool(minSize, defaultSize, maxSize int64) *BufferPool {
	bp := &BufferPool{
		size:    defaultSize,
		maxSize: maxSize,
		minSize: minSize,
	}

	bp.pool = sync.Pool{
		New: func() any {
			buf, _ := circbuf.NewBuffer(bp.size)
			return buf
		},
	}

	return bp
}

// Get retrieves a buffer from the pool or creates a new one
func (bp *BufferPool) Get() *circbuf.Buffer {
	return bp.pool.Get().(*circbuf.Buffer)
}

// GetSized retrieves a buffer with a specific size requirement
func (bp *BufferPool) GetSized(size int64) *circbuf.Buffer {
	if size >= bp.minSize && size <= bp.size {
		return bp.Get()
	}

	if size > bp.maxSize {
		size = bp.maxSize
	}
	if size < bp.minSize {
		size = bp.minSize
	}

	buf, _ := circbuf.NewBuffer(size)
	return buf
}

// Put returns a buffer to the pool for reuse
func (bp *BufferPool) Put(buf *circbuf.Buffer) {
	if buf == nil {
		return
	}

	buf.Reset()

	// Custom-sized buffers are let go for GC
	if buf.Size() == bp.size {
		bp.pool.Put(buf)
	}
}

// DefaultBufferPool provides the stdout/stderr buffers of every step.
// Min: 1KB, default: 256KB, max: 10MB.
var DefaultBufferPool = NewBufferPool(1024, 256*1024, maxStreamSize)
