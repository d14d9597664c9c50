package audiocapture

import "sync"

// ChunkBuffer accumulates captured chunks in arrival order.
// It is safe for concurrent use; the capture callback appends while the
// session owner reads.
type ChunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

// Append adds a chunk to the end of the buffer. Empty chunks are dropped.
func (b *ChunkBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
	b.mu.Unlock()
}

// Bytes returns the buffered chunks joined into one contiguous payload.
func (b *ChunkBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Len returns the total number of buffered bytes.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Chunks returns the number of buffered chunks.
func (b *ChunkBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Reset empties the buffer.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	b.chunks = nil
	b.size = 0
	b.mu.Unlock()
}

// Duration returns the buffered audio length in milliseconds for format f.
func (b *ChunkBuffer) Duration(f Format) int64 {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return int64(b.Len()) * 1000 / int64(bps)
}
