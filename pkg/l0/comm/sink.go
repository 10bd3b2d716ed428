package comm

import (
	"bytes"
	"sync"
)

// ByteSink consumes raw bytes received from the device.
// It's the hand-off point to a telemetry parser.
type ByteSink interface {
	Write(p []byte) (int, error)
}

// Buffer is an append-only ByteSink keeping all received bytes in order.
type Buffer struct {
	buf  bytes.Buffer
	lock sync.Mutex
}

// Write implements ByteSink.
func (b *Buffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

// Bytes returns a copy of the accumulated bytes.
func (b *Buffer) Bytes() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// Len returns the number of accumulated bytes.
func (b *Buffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Len()
}

type teeSink []ByteSink

// TeeSink writes bytes to all sinks in order.
// It stops at the first error.
func TeeSink(sinks ...ByteSink) ByteSink {
	return teeSink(sinks)
}

func (t teeSink) Write(p []byte) (int, error) {
	for _, s := range t {
		if n, err := s.Write(p); err != nil {
			return n, err
		}
	}
	return len(p), nil
}
