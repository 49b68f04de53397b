package fernet

import "sync"

// bytePool holds reusable scratch slices for token assembly.
var bytePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 1024)
		return &b
	},
}

// tokenBuffer is pooled scratch space for building a token. The encrypt path
// pads the plaintext into it before encrypting in place, so Release must zero
// the buffer before returning it to the pool.
type tokenBuffer struct {
	ptr *[]byte
	buf []byte
}

func acquireBuffer(n int) *tokenBuffer {
	ptr := bytePool.Get().(*[]byte)
	buf := *ptr
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	return &tokenBuffer{ptr: ptr, buf: buf[:n]}
}

func (b *tokenBuffer) Bytes() []byte { return b.buf }

// Release zeros the buffer and returns it to the pool.
func (b *tokenBuffer) Release() {
	if b == nil || b.ptr == nil {
		return
	}
	for i := range b.buf {
		b.buf[i] = 0
	}
	*b.ptr = b.buf[:0]
	bytePool.Put(b.ptr)
	b.ptr = nil
}
