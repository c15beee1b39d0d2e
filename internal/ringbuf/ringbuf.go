// Package ringbuf provides a fixed-capacity window over the most recent
// closed candles of one market. The stream collector pushes candles as they
// close; the live executor takes ascending snapshots. Unlike a queue, pushes
// overwrite the oldest entry once the window is full.
package ringbuf

import (
	"sync"

	"tradecore/internal/model"
)

// Window is a concurrency-safe ring of recent candles for a single market.
type Window struct {
	mu   sync.RWMutex
	buf  []model.Candle
	head int // index of the next write slot
	size int
}

// New creates a window holding up to capacity candles. Minimum capacity is 2.
func New(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]model.Candle, capacity)}
}

// Push appends a closed candle. A candle with the same bucket start as the
// newest entry replaces it (a re-sent close), older timestamps are ignored.
func (w *Window) Push(c model.Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 {
		last := w.buf[(w.head-1+len(w.buf))%len(w.buf)]
		if c.TS == last.TS {
			w.buf[(w.head-1+len(w.buf))%len(w.buf)] = c
			return
		}
		if c.TS < last.TS {
			return
		}
	}

	w.buf[w.head] = c
	w.head = (w.head + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

// Len returns the number of candles currently held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Last returns the newest candle, if any.
func (w *Window) Last() (model.Candle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.size == 0 {
		return model.Candle{}, false
	}
	return w.buf[(w.head-1+len(w.buf))%len(w.buf)], true
}

// SnapshotAscending copies the window contents oldest-first.
func (w *Window) SnapshotAscending() model.Series {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(model.Series, 0, w.size)
	start := (w.head - w.size + len(w.buf)) % len(w.buf)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}
