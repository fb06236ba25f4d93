package buffer

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// DefaultCopySize is the chunk size used when relaying segment bodies.
const DefaultCopySize = 32 * 1024

// BufferPool hands out fixed-size byte buffers backed by valyala/bytebufferpool
// so concurrent segment copies reuse memory instead of allocating per request.
type BufferPool struct {
	pool       *bytebufferpool.Pool
	bufferSize int
}

// NewBufferPool creates a pool whose buffers hold bufferSize bytes.
// A non-positive size falls back to DefaultCopySize.
func NewBufferPool(bufferSize int) *BufferPool {
	if bufferSize <= 0 {
		bufferSize = DefaultCopySize
	}
	return &BufferPool{
		bufferSize: bufferSize,
		pool:       &bytebufferpool.Pool{},
	}
}

// Get returns a buffer whose B slice is exactly the pool's buffer size.
func (bp *BufferPool) Get() *bytebufferpool.ByteBuffer {
	buf := bp.pool.Get()
	if cap(buf.B) < bp.bufferSize {
		buf.B = make([]byte, bp.bufferSize)
	}
	buf.B = buf.B[:bp.bufferSize]
	return buf
}

// Put returns a buffer to the pool.
func (bp *BufferPool) Put(buf *bytebufferpool.ByteBuffer) {
	if buf != nil {
		buf.Reset()
		bp.pool.Put(buf)
	}
}

// Copy relays src to dst through a pooled buffer. Every chunk is written as
// soon as it is read; nothing is accumulated.
func (bp *BufferPool) Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := bp.Get()
	defer bp.Put(buf)
	return io.CopyBuffer(onlyWriter{dst}, onlyReader{src}, buf.B)
}

// onlyReader and onlyWriter hide WriterTo and ReaderFrom so io.CopyBuffer
// really uses the pooled buffer and the chunk size stays bounded.
type onlyReader struct {
	io.Reader
}

type onlyWriter struct {
	io.Writer
}
