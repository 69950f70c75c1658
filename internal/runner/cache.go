package runner

// DefaultCacheSize is the number of lines kept for late subscribers.
const DefaultCacheSize = 500

// lineCache is a fixed-size ring of the most recent line events.
// It is not safe for concurrent use; LineBus guards it.
type lineCache struct {
	data     []LineEvent
	writePos int
	full     bool
}

func newLineCache(size int) *lineCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &lineCache{data: make([]LineEvent, size)}
}

// Append stores ev, overwriting the oldest entry once the ring is full
func (c *lineCache) Append(ev LineEvent) {
	c.data[c.writePos] = ev
	c.writePos++
	if c.writePos == len(c.data) {
		c.writePos = 0
		c.full = true
	}
}

// Events returns a copy of the cached events, oldest first
func (c *lineCache) Events() []LineEvent {
	if !c.full {
		result := make([]LineEvent, c.writePos)
		copy(result, c.data[:c.writePos])
		return result
	}

	result := make([]LineEvent, len(c.data))
	n := copy(result, c.data[c.writePos:])
	copy(result[n:], c.data[:c.writePos])
	return result
}

// Len returns the number of cached events
func (c *lineCache) Len() int {
	if c.full {
		return len(c.data)
	}
	return c.writePos
}

// Cap returns the capacity of the ring
func (c *lineCache) Cap() int {
	return len(c.data)
}
