package engine

// HardwareClock is a monotonic audio clock in seconds.
type HardwareClock interface {
	CurrentTime() float64
}

// PlaybackClock derives the playback position from a hardware clock while
// running and holds a frozen offset otherwise.
type PlaybackClock struct {
	hw      HardwareClock
	origin  float64
	offset  float64
	running bool
	// last is the highest position reported by Now since the last
	// Start or Set.
	last float64
}

// NewPlaybackClock creates a stopped clock at 0.
func NewPlaybackClock(hw HardwareClock) *PlaybackClock {
	return &PlaybackClock{hw: hw}
}

// Start runs the clock from offset, taking the hardware clock's present
// value as the origin.
func (c *PlaybackClock) Start(offset float64) {
	c.offset = offset
	c.origin = c.hw.CurrentTime()
	c.running = true
	c.last = offset
}

// Freeze stops the clock, folding elapsed hardware time into the offset, and
// returns the frozen position.
func (c *PlaybackClock) Freeze() float64 {
	if c.running {
		c.offset = max(c.last, c.offset+c.hw.CurrentTime()-c.origin)
		c.last = c.offset
		c.running = false
	}
	return c.offset
}

// Set moves the clock to t. A running clock keeps running from t.
func (c *PlaybackClock) Set(t float64) {
	c.offset = t
	c.last = t
	if c.running {
		c.origin = c.hw.CurrentTime()
	}
}

// Now returns the current position. While running it never reports less
// than it did before.
func (c *PlaybackClock) Now() float64 {
	if !c.running {
		return c.offset
	}
	c.last = max(c.last, c.offset+c.hw.CurrentTime()-c.origin)
	return c.last
}

// Running reports whether the clock follows the hardware clock.
func (c *PlaybackClock) Running() bool { return c.running }

// Origin returns the hardware time recorded at the last Start or Set.
func (c *PlaybackClock) Origin() float64 { return c.origin }
