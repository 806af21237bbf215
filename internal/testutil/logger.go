package testutil

import (
	"bytes"
	"io"
	"sync"

	"github.com/dtroode/authkeeper-server/internal/logger"
)

// MakeNoopLogger returns a logger that discards everything.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, 0)
}

// Buffer is a goroutine-safe log sink for asserting on emitted records.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// MakeBufferedLogger returns a debug-level logger and the buffer it writes to.
func MakeBufferedLogger() (*logger.Logger, *Buffer) {
	buf := &Buffer{}
	return logger.NewWithWriter(buf, -4), buf
}
