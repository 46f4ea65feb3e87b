package walk

// Clock is the logical clock that stamps trace events.
//
// Sequence numbers start at 0 and increase by exactly one per call to Next,
// so a trace's seq values are 0, 1, 2, ... with no gaps. Wall-clock time is
// never used for ordering.
//
// Each run owns its clock and only the run's loop calls Next, so Clock is
// not safe for concurrent use.
type Clock struct {
	issued int64
}

// NewClock creates a clock whose first Next returns 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	seq := c.issued
	c.issued++
	return seq
}
