package guide

// Schedule is the merged output: channels in insertion order, each with its
// programmes in insertion order. It only grows; nothing already appended is
// changed or removed.
type Schedule struct {
	channels []Channel
	index    map[string]int
	programs map[string][]ProgramEntry
	total    int
}

// NewSchedule returns an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{
		index:    make(map[string]int),
		programs: make(map[string][]ProgramEntry),
	}
}

// AddChannel registers ch. An id already present keeps its position and takes
// the new display name. It reports whether the id was new.
func (s *Schedule) AddChannel(ch Channel) bool {
	if i, ok := s.index[ch.ID]; ok {
		if ch.DisplayName != "" {
			s.channels[i].DisplayName = ch.DisplayName
		}
		return false
	}
	s.index[ch.ID] = len(s.channels)
	s.channels = append(s.channels, ch)
	return true
}

// HasChannel reports whether id is registered.
func (s *Schedule) HasChannel(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Channel returns the registered channel for id.
func (s *Schedule) Channel(id string) (Channel, bool) {
	i, ok := s.index[id]
	if !ok {
		return Channel{}, false
	}
	return s.channels[i], true
}

// Append adds p under its channel. Entries for unregistered channels are
// ignored and reported as false.
func (s *Schedule) Append(p ProgramEntry) bool {
	if _, ok := s.index[p.ChannelID]; !ok {
		return false
	}
	s.programs[p.ChannelID] = append(s.programs[p.ChannelID], p)
	s.total++
	return true
}

// Channels returns a copy of the channel list in insertion order.
func (s *Schedule) Channels() []Channel {
	out := make([]Channel, len(s.channels))
	copy(out, s.channels)
	return out
}

// Programs returns a copy of the programmes on channel id.
func (s *Schedule) Programs(id string) []ProgramEntry {
	src := s.programs[id]
	out := make([]ProgramEntry, len(src))
	copy(out, src)
	return out
}

// Entries returns every programme, grouped by channel in channel order.
func (s *Schedule) Entries() []ProgramEntry {
	out := make([]ProgramEntry, 0, s.total)
	for _, ch := range s.channels {
		out = append(out, s.programs[ch.ID]...)
	}
	return out
}

// Len returns the number of programmes.
func (s *Schedule) Len() int { return s.total }
