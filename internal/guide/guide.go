// Package guide holds the program-guide data model shared by feed parsers,
// the reconciliation engine and the XMLTV writer.
package guide

import (
	"time"
)

// FeedChannel is one channel as a source reports it. Ref is whatever the
// source uses to tie programmes to the channel (an XMLTV id, a page slug).
type FeedChannel struct {
	Ref  string
	Name string
}

// FeedProgram is one programme as a source reports it.
type FeedProgram struct {
	ChannelRef string
	Title      string
	Start      time.Time
	Stop       time.Time
}

// Feed is one source's channel catalog plus programme sequence. Channels are
// in first-seen order.
type Feed struct {
	Source   string
	Channels []FeedChannel
	Programs []FeedProgram
	// Rejected lists entries the parser skipped.
	Rejected []*MalformedEntryError
}

// Empty reports whether the feed carries no channels.
func (f Feed) Empty() bool { return len(f.Channels) == 0 }

// Channel is a reconciled channel identity.
type Channel struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ProgramEntry is a programme placed on a reconciled channel.
type ProgramEntry struct {
	ChannelID string    `json:"channel_id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	Stop      time.Time `json:"stop"`
}

// Valid reports whether the entry has a title and a positive duration.
func (p ProgramEntry) Valid() bool {
	return p.Title != "" && !p.Start.IsZero() && p.Start.Before(p.Stop)
}

// Shift returns a copy of p moved by minutes.
func (p ProgramEntry) Shift(minutes int) ProgramEntry {
	if minutes == 0 {
		return p
	}
	d := time.Duration(minutes) * time.Minute
	p.Start = p.Start.Add(d)
	p.Stop = p.Stop.Add(d)
	return p
}

// Overlaps reports whether p and q share any instant on the same channel.
func (p ProgramEntry) Overlaps(q ProgramEntry) bool {
	return p.ChannelID == q.ChannelID && p.Start.Before(q.Stop) && q.Start.Before(p.Stop)
}

// LinkMethod records which matcher tier produced an identity link.
type LinkMethod string

const (
	LinkExact    LinkMethod = "exact"
	LinkAlias    LinkMethod = "alias"
	LinkBase     LinkMethod = "base"
	LinkInserted LinkMethod = "inserted"
)

// IdentityLink maps a secondary channel onto a primary channel id. An empty
// PrimaryID means the secondary channel has no counterpart.
type IdentityLink struct {
	SecondaryName string     `json:"secondary_name"`
	SecondaryRef  string     `json:"secondary_ref,omitempty"`
	PrimaryID     string     `json:"primary_id,omitempty"`
	Method        LinkMethod `json:"method,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// Matched reports whether the link resolved to a primary channel.
func (l IdentityLink) Matched() bool { return l.PrimaryID != "" }

// DriftEstimate is the per-channel offset between the two feeds. Reason is
// nil when Accepted is true.
type DriftEstimate struct {
	ChannelID     string `json:"channel_id"`
	OffsetMinutes int    `json:"offset_minutes"`
	SampleCount   int    `json:"sample_count"`
	Accepted      bool   `json:"accepted"`
	Reason        error  `json:"-"`
}

// Correction is the shift to apply to secondary entries: the negated offset
// when accepted, zero otherwise.
func (e DriftEstimate) Correction() int {
	if !e.Accepted {
		return 0
	}
	return -e.OffsetMinutes
}
