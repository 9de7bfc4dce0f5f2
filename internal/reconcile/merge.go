package reconcile

import (
	"github.com/snapetech/epgmerge/internal/guide"
)

// Merge shifts every entry by offsetMinutes and appends it to s under
// channelID. Primary entries already in s are left untouched; overlapping
// coverage from both feeds may coexist. It returns the number appended.
func Merge(s *guide.Schedule, channelID string, offsetMinutes int, secondary []guide.ProgramEntry) int {
	return MergeFiltered(s, channelID, offsetMinutes, secondary, nil)
}

// MergeFiltered is Merge with a keep predicate evaluated on each shifted
// entry. A nil keep accepts everything.
func MergeFiltered(s *guide.Schedule, channelID string, offsetMinutes int, secondary []guide.ProgramEntry, keep func(guide.ProgramEntry) bool) int {
	n := 0
	for _, e := range secondary {
		e.ChannelID = channelID
		e = e.Shift(offsetMinutes)
		if keep != nil && !keep(e) {
			continue
		}
		if s.Append(e) {
			n++
		}
	}
	return n
}

// noOverlapWith returns a keep predicate rejecting entries that overlap any
// of the given primary entries.
func noOverlapWith(primary []guide.ProgramEntry) func(guide.ProgramEntry) bool {
	return func(e guide.ProgramEntry) bool {
		for _, p := range primary {
			if e.Overlaps(p) {
				return false
			}
		}
		return true
	}
}
