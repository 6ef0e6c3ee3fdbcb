package lyric

import "sync"

// Cursor walks a Store as playback time advances and reports the active cue.
// The read index follows playback in both directions; it restarts at 0 when
// the store is replaced for a new track.
type Cursor struct {
	mu     sync.Mutex
	store  *Store
	index  int
	offset float64
}

// NewCursor creates a cursor over store with a lyric latency offset in seconds.
func NewCursor(store *Store, offset float64) *Cursor {
	return &Cursor{store: store, offset: offset}
}

// Reset points the cursor at a new store and rewinds it.
func (c *Cursor) Reset(store *Store) {
	c.mu.Lock()
	c.store = store
	c.index = 0
	c.mu.Unlock()
}

// SetOffset changes the lyric latency offset.
func (c *Cursor) SetOffset(offset float64) {
	c.mu.Lock()
	c.offset = offset
	c.mu.Unlock()
}

// Offset returns the lyric latency offset.
func (c *Cursor) Offset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Store returns the store the cursor reads from.
func (c *Cursor) Store() *Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Advance moves the cursor to the last cue whose time is <= pos-offset and
// returns its text. ok is false when no cue has started yet.
//
// After a seek backwards the index steps back to the cue that covers the new
// position, so a stale line lasts at most until the next tick.
func (c *Cursor) Advance(pos float64) (text string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.Len()
	if n == 0 {
		return "", false
	}

	t := pos - c.offset
	for c.index > 0 && c.store.Time(c.index) > t {
		c.index--
	}
	for c.index+1 < n && c.store.Time(c.index+1) <= t {
		c.index++
	}
	if c.store.Time(c.index) <= t {
		return c.store.Text(c.index), true
	}
	return "", false
}

// Index returns the current read index.
func (c *Cursor) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}
