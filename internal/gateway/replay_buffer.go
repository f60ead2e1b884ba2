package gateway

import "sync"

// replayEntry holds one broadcasted envelope for replay.
type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer is a fixed-size circular buffer of recent WS envelopes for one
// channel. Clients that detect a channel_seq gap fetch the missed range over
// REST instead of reconnecting. Thread-safe.
type ReplayBuffer struct {
	mu    sync.RWMutex
	buf   []replayEntry
	pos   int // next write position
	count int // entries held, up to len(buf)
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{buf: make([]replayEntry, capacity)}
}

// Push appends an envelope, overwriting the oldest entry when full. The data
// is copied so callers may reuse their slice.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)

	rb.buf[rb.pos] = replayEntry{Seq: seq, Data: cp}
	rb.pos = (rb.pos + 1) % len(rb.buf)
	if rb.count < len(rb.buf) {
		rb.count++
	}
}

// Range returns entries with seq in [fromSeq, toSeq] inclusive, in seq order.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []replayEntry
	for i := 0; i < rb.count; i++ {
		e := rb.buf[rb.index(i)]
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of entries currently held.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (rb *ReplayBuffer) index(logical int) int {
	if rb.count == len(rb.buf) {
		return (rb.pos + logical) % len(rb.buf)
	}
	return logical
}
