package util

import (
	"bytes"
	"sync"
)

var bytesBuffer = sync.Pool{
	New: func() interface{} { return &bytes.Buffer{} },
}

// GetBytesBuffer returns an empty buffer from the shared pool.
func GetBytesBuffer() *bytes.Buffer {
	return bytesBuffer.Get().(*bytes.Buffer)
}

// PutBytesBuffer resets p and hands it back to the pool. The caller must not
// keep references to the buffer contents.
func PutBytesBuffer(p *bytes.Buffer) {
	p.Reset()
	bytesBuffer.Put(p)
}
