package walk

// maxPrealloc bounds the initial event capacity so a huge span does not
// allocate its whole trace up front.
const maxPrealloc = 1 << 16

// Recorder is the append-only log of one run's events.
//
// Record assigns sequence numbers from the run's Clock in emission order.
// Finalize freezes the log; a frozen recorder panics on Record, which can
// only happen through a programming error inside this package.
type Recorder struct {
	clock   *Clock
	events  []Event
	observe func(Event)
	frozen  bool
}

// NewRecorder creates an empty recorder with room for capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity < 0 {
		capacity = 0
	}
	if capacity > maxPrealloc {
		capacity = maxPrealloc
	}
	return &Recorder{
		clock:  NewClock(),
		events: make([]Event, 0, capacity),
	}
}

// Record appends an event and returns its sequence number.
func (r *Recorder) Record(phase Phase, pos Position) int64 {
	if r.frozen {
		panic("walk: Record called on finalized recorder")
	}

	ev := Event{Phase: phase, Position: pos, Seq: r.clock.Next()}
	r.events = append(r.events, ev)

	if r.observe != nil {
		r.observe(ev)
	}
	return ev.Seq
}

// Finalize freezes the recorder and returns a Result owning a copy of the
// events. The recorder is immutable afterwards.
func (r *Recorder) Finalize(reason TerminationReason) Result {
	r.frozen = true

	events := make([]Event, len(r.events))
	copy(events, r.events)

	return Result{
		Events: events,
		Reason: reason,
	}
}
