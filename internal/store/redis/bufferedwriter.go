package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"risk-systemv1/internal/model"
)

// pendingWrite represents a write that was buffered during a Redis outage.
type pendingWrite struct {
	WriteType string // "risk", "position"
	Data      []byte // JSON-encoded payload
}

// resultBackend is the slice of Writer the buffered writer drives.
type resultBackend interface {
	WriteRiskUpdate(ctx context.Context, u model.RiskUpdate) error
	WritePositionUpdate(ctx context.Context, u model.PositionUpdate) error
	Close() error
}

// BufferedWriter wraps the Redis Writer with a circuit breaker.
// Writes that fail, and writes attempted while the circuit is open, are
// buffered locally and flushed in order when the circuit closes again, so
// a Redis outage does not drop risk results.
type BufferedWriter struct {
	writer resultBackend
	raw    *Writer
	cb     *CircuitBreaker
	ctx    context.Context

	mu     sync.Mutex
	buffer []pendingWrite
	maxBuf int // max buffered writes before dropping oldest (default: 10000)

	// Callbacks
	OnBuffer func()          // called when a write is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered writes
}

// NewBufferedWriter creates a BufferedWriter wrapping the given Writer.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	bw := newBufferedWriter(ctx, w, cb, maxBufferSize)
	bw.raw = w
	return bw
}

func newBufferedWriter(ctx context.Context, w resultBackend, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		writer: w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]pendingWrite, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Register flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteRiskUpdate publishes a risk update through the circuit breaker.
// A failed or circuit-rejected write is buffered for replay.
func (bw *BufferedWriter) WriteRiskUpdate(ctx context.Context, u model.RiskUpdate) {
	err := bw.cb.Execute(func() error {
		return bw.writer.WriteRiskUpdate(bw.ctx, u)
	})
	if err != nil {
		bw.bufferWrite("risk", u)
	}
}

// WritePositionUpdate publishes a position update through the circuit breaker.
func (bw *BufferedWriter) WritePositionUpdate(ctx context.Context, u model.PositionUpdate) {
	err := bw.cb.Execute(func() error {
		return bw.writer.WritePositionUpdate(bw.ctx, u)
	})
	if err != nil {
		bw.bufferWrite("position", u)
	}
}

// Close closes the underlying writer.
func (bw *BufferedWriter) Close() error {
	return bw.writer.Close()
}

func (bw *BufferedWriter) bufferWrite(writeType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[buffered-writer] marshal error: %v", err)
		return
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		// Buffer full — drop oldest
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, pendingWrite{WriteType: writeType, Data: data})

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays all buffered writes through the underlying writer.
// Replay errors are logged at the source; a write that fails again is lost
// rather than re-buffered, to avoid churning while Redis is flapping.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	// Take ownership of the buffer
	toFlush := bw.buffer
	bw.buffer = make([]pendingWrite, 0, 256)
	bw.mu.Unlock()

	flushed := 0
	for _, pw := range toFlush {
		switch pw.WriteType {
		case "risk":
			var u model.RiskUpdate
			if json.Unmarshal(pw.Data, &u) == nil {
				bw.writer.WriteRiskUpdate(bw.ctx, u)
			}
		case "position":
			var u model.PositionUpdate
			if json.Unmarshal(pw.Data, &u) == nil {
				bw.writer.WritePositionUpdate(bw.ctx, u)
			}
		}
		flushed++
	}

	log.Printf("[buffered-writer] flushed %d buffered writes", flushed)
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered writes waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Underlying returns the wrapped Redis writer for direct access.
func (bw *BufferedWriter) Underlying() *Writer {
	return bw.raw
}
