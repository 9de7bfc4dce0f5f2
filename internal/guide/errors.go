package guide

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEntry marks an entry with a missing title, an unparsable
	// time or a non-positive duration. The entry is skipped.
	ErrMalformedEntry = errors.New("malformed entry")

	// ErrUnmatchedChannel marks a secondary channel with no primary counterpart.
	ErrUnmatchedChannel = errors.New("unmatched channel")

	// ErrAmbiguousChannel marks a secondary channel whose key resolves to more
	// than one primary channel.
	ErrAmbiguousChannel = errors.New("ambiguous channel")

	// ErrInsufficientDriftSamples means no secondary title matched a primary title.
	ErrInsufficientDriftSamples = errors.New("no drift samples")

	// ErrInconsistentDrift means at least one sample fell outside the tolerance.
	ErrInconsistentDrift = errors.New("inconsistent drift samples")

	// ErrEmptyFeed is the only fatal reconciliation error: the primary feed
	// has no usable channels.
	ErrEmptyFeed = errors.New("feed has no channels")
)

// MalformedEntryError describes one skipped feed entry.
type MalformedEntryError struct {
	Index      int
	ChannelRef string
	Reason     string
}

func (e *MalformedEntryError) Error() string {
	if e.ChannelRef != "" {
		return fmt.Sprintf("entry %d (channel %q): %s", e.Index, e.ChannelRef, e.Reason)
	}
	return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
}

// Is implements errors.Is support.
func (e *MalformedEntryError) Is(target error) bool {
	return target == ErrMalformedEntry
}

// Malformed builds a MalformedEntryError.
func Malformed(index int, channelRef, reason string) *MalformedEntryError {
	return &MalformedEntryError{Index: index, ChannelRef: channelRef, Reason: reason}
}
