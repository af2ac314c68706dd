package reader

// TimerKind identifies which phase a countdown drives.
type TimerKind string

const (
	TimerNone       TimerKind = ""
	TimerTempWait   TimerKind = "temp_wait"
	TimerIncubation TimerKind = "incubation"
	TimerReading    TimerKind = "reading"
	TimerAlert      TimerKind = "alert"
)

// Countdown is a channel's single live timer handle.
type Countdown struct {
	Kind      TimerKind
	Remaining int
}

// TickEvent is delivered to the state machine once per live countdown per
// tick. Expired is set on the tick that brings Remaining to zero; the handle
// has already been released by then.
type TickEvent struct {
	ChannelID int
	Kind      TimerKind
	Remaining int
	Expired   bool
}

// Scheduler owns every channel's countdown. A channel holds at most one.
type Scheduler struct {
	handles [ChannelCount + 1]*Countdown
}

// NewScheduler returns a scheduler with no live timers.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Start replaces any live countdown on the channel with a fresh one.
// Durations below one second are clamped so the phase still takes a tick.
func (s *Scheduler) Start(channelID int, kind TimerKind, seconds int) {
	s.Cancel(channelID)
	if seconds < 1 {
		seconds = 1
	}
	s.handles[channelID] = &Countdown{Kind: kind, Remaining: seconds}
}

// Cancel drops the channel's countdown. It reports whether one was live.
func (s *Scheduler) Cancel(channelID int) bool {
	if s.handles[channelID] == nil {
		return false
	}
	s.handles[channelID] = nil
	return true
}

// Active returns a copy of the channel's live countdown.
func (s *Scheduler) Active(channelID int) (Countdown, bool) {
	h := s.handles[channelID]
	if h == nil {
		return Countdown{}, false
	}
	return *h, true
}

// Advance moves every live countdown forward one second, in channel order,
// and returns the resulting events. Expired handles are released before the
// events are returned so handlers can start the next phase.
func (s *Scheduler) Advance() []TickEvent {
	var events []TickEvent
	for id := 1; id <= ChannelCount; id++ {
		h := s.handles[id]
		if h == nil {
			continue
		}
		h.Remaining--
		ev := TickEvent{ChannelID: id, Kind: h.Kind, Remaining: h.Remaining}
		if h.Remaining <= 0 {
			ev.Remaining = 0
			ev.Expired = true
			s.handles[id] = nil
		}
		events = append(events, ev)
	}
	return events
}
