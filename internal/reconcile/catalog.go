package reconcile

import (
	"strings"

	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/identity"
)

// feedCatalog is one feed's channel list with normalized ids.
type feedCatalog struct {
	// feedChannels is the source catalog, one per ref, in first-seen order,
	// including refs only seen on programmes.
	feedChannels []guide.FeedChannel
	// channels holds one entry per feed channel with a usable id. Ids may
	// repeat; the schedule merges them.
	channels []guide.Channel
	refToID  map[string]string
}

// ChannelID derives a channel's id from its display name, falling back to the
// source ref when the name normalizes to nothing.
func ChannelID(ch guide.FeedChannel) string {
	if id := identity.Normalize(ch.Name); id != "" {
		return id
	}
	return identity.Normalize(ch.Ref)
}

func assignIDs(f guide.Feed) (*feedCatalog, []*guide.MalformedEntryError) {
	c := &feedCatalog{refToID: make(map[string]string, len(f.Channels))}
	var bad []*guide.MalformedEntryError
	add := func(i int, ch guide.FeedChannel) {
		if _, seen := c.refToID[ch.Ref]; seen {
			return
		}
		id := ChannelID(ch)
		c.refToID[ch.Ref] = id
		c.feedChannels = append(c.feedChannels, ch)
		if id == "" {
			bad = append(bad, guide.Malformed(i, ch.Ref, "channel name and ref normalize to an empty id"))
			return
		}
		name := strings.TrimSpace(ch.Name)
		if name == "" {
			name = strings.TrimSpace(ch.Ref)
		}
		c.channels = append(c.channels, guide.Channel{ID: id, DisplayName: name})
	}
	for i, ch := range f.Channels {
		add(i, ch)
	}
	for i, p := range f.Programs {
		if _, seen := c.refToID[p.ChannelRef]; !seen {
			add(i, guide.FeedChannel{Ref: p.ChannelRef, Name: p.ChannelRef})
		}
	}
	return c, bad
}

// entry converts one feed programme, rejecting malformed ones.
func (c *feedCatalog) entry(i int, p guide.FeedProgram) (guide.ProgramEntry, *guide.MalformedEntryError) {
	id := c.refToID[p.ChannelRef]
	if id == "" {
		return guide.ProgramEntry{}, guide.Malformed(i, p.ChannelRef, "programme on a channel without an id")
	}
	e := guide.ProgramEntry{
		ChannelID: id,
		Title:     strings.TrimSpace(p.Title),
		Start:     p.Start,
		Stop:      p.Stop,
	}
	if e.Valid() {
		return e, nil
	}
	switch {
	case e.Title == "":
		return e, guide.Malformed(i, p.ChannelRef, "missing title")
	case e.Start.IsZero() || e.Stop.IsZero():
		return e, guide.Malformed(i, p.ChannelRef, "missing or unparsable time")
	default:
		return e, guide.Malformed(i, p.ChannelRef, "stop is not after start")
	}
}
