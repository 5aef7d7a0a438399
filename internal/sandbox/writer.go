package sandbox

import (
	"io"
	"sync"
)

// cappedWriter keeps at most limit bytes and records whether more arrived.
// A limit <= 0 keeps everything.
type cappedWriter struct {
	mu        sync.Mutex
	w         io.Writer
	limit     int
	written   int
	truncated bool

	// overflow, when non-nil, is closed the first time output is dropped.
	overflow chan struct{}
}

func newCappedWriter(w io.Writer, limit int, overflow chan struct{}) *cappedWriter {
	return &cappedWriter{w: w, limit: limit, overflow: overflow}
}

func (cw *cappedWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.limit <= 0 {
		n, err := cw.w.Write(p)
		cw.written += n
		return n, err
	}
	if cw.written >= cw.limit {
		cw.markTruncated()
		return len(p), nil
	}
	chunk := p
	if remaining := cw.limit - cw.written; len(chunk) > remaining {
		chunk = chunk[:remaining]
		cw.markTruncated()
	}
	n, err := cw.w.Write(chunk)
	cw.written += n
	// Report the full length so the copy goroutine keeps draining the pipe.
	return len(p), err
}

func (cw *cappedWriter) markTruncated() {
	if !cw.truncated && cw.overflow != nil {
		close(cw.overflow)
	}
	cw.truncated = true
}

func (cw *cappedWriter) overflowed() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.truncated
}
