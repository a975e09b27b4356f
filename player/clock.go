package player

import "time"

// Clock estimates playback position from wall-clock time instead of asking
// the audio device, which hides device buffering latency.
//
// Clock is not safe for concurrent use; Controller serializes access.
type Clock struct {
	now func() time.Time

	running    bool
	anchorPos  time.Duration
	anchorWall time.Time
	speed      float64
	limit      time.Duration
	bounded    bool // limit applies once SetLimit is called
}

// NewClock creates a stopped clock at position 0. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, speed: 1}
}

// SetLimit sets the upper bound for reported positions. A limit of 0 pins
// the clock at 0.
func (c *Clock) SetLimit(total time.Duration) {
	c.limit = max(0, total)
	c.bounded = true
	c.anchorPos = c.clamp(c.anchorPos)
}

// Start anchors the clock at pos and begins advancing at speed.
// Calling Start on a running clock re-anchors it.
func (c *Clock) Start(pos time.Duration, speed float64) {
	c.running = true
	c.anchorPos = c.clamp(pos)
	c.anchorWall = c.now()
	c.speed = max(0, speed)
}

// Stop freezes the clock at its current estimate and returns it.
func (c *Clock) Stop() time.Duration {
	pos := c.Position()
	c.running = false
	c.anchorPos = pos
	return pos
}

// Set moves the clock to pos. A running clock keeps running from pos.
func (c *Clock) Set(pos time.Duration) {
	if c.running {
		c.Start(pos, c.speed)
		return
	}
	c.anchorPos = c.clamp(pos)
}

// Running reports whether the clock is advancing.
func (c *Clock) Running() bool {
	return c.running
}

// Position returns the estimated position. While stopped it returns the
// last anchored position unchanged.
func (c *Clock) Position() time.Duration {
	if !c.running {
		return c.anchorPos
	}
	elapsed := c.now().Sub(c.anchorWall)
	if elapsed < 0 {
		elapsed = 0
	}
	return c.clamp(c.anchorPos + time.Duration(float64(elapsed)*c.speed))
}

func (c *Clock) clamp(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if c.bounded && pos > c.limit {
		return c.limit
	}
	return pos
}
