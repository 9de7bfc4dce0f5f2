// Package reconcile merges a secondary guide feed into a primary one: it
// links channel identities, estimates per-channel clock drift and appends the
// corrected secondary programmes to the primary timeline.
//
// Reconcile does no I/O. Each channel is decided on its own; a channel with
// bad data is dropped or left uncorrected without affecting any other.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/epgmerge/internal/drift"
	"github.com/snapetech/epgmerge/internal/epglink"
	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/identity"
)

// UnmatchedPolicy says what happens to a secondary channel with no primary
// counterpart.
type UnmatchedPolicy string

const (
	// UnmatchedDrop discards the channel and its programmes.
	UnmatchedDrop UnmatchedPolicy = "drop"
	// UnmatchedInsert adds it as a new channel keyed by its normalized name.
	UnmatchedInsert UnmatchedPolicy = "insert"
)

// ParseUnmatchedPolicy accepts "drop" and "insert"; anything else is drop.
func ParseUnmatchedPolicy(s string) UnmatchedPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(UnmatchedInsert)) {
		return UnmatchedInsert
	}
	return UnmatchedDrop
}

// Options tunes a reconciliation run. The zero value is usable.
type Options struct {
	Rules   identity.Rules
	Aliases epglink.AliasOverrides
	Drift   drift.Policy
	// Unmatched defaults to UnmatchedDrop.
	Unmatched UnmatchedPolicy
	// PreferPrimaryOnOverlap drops a corrected secondary entry that overlaps
	// any primary entry on its channel. Off, the merge is additive only.
	PreferPrimaryOnOverlap bool
	// Concurrency bounds parallel drift estimation. <= 1 runs serially.
	Concurrency int
	Logger      *zerolog.Logger
}

// DefaultOptions returns the built-in suffix rules, the two-minute drift
// policy and the drop policy.
func DefaultOptions() Options {
	return Options{
		Rules:     identity.DefaultRules(),
		Drift:     drift.DefaultPolicy(),
		Unmatched: UnmatchedDrop,
	}
}

// Result is the merged schedule plus diagnostics.
type Result struct {
	Schedule *guide.Schedule
	Report   Report
}

// Report describes what a run decided for every channel.
type Report struct {
	Links epglink.Report        `json:"links"`
	Drift []guide.DriftEstimate `json:"drift"`

	PrimaryChannels    int `json:"primary_channels"`
	SecondaryChannels  int `json:"secondary_channels"`
	PrimaryProgrammes  int `json:"primary_programmes"`
	MergedProgrammes   int `json:"merged_programmes"`
	DroppedProgrammes  int `json:"dropped_programmes"`
	OverlapSkipped     int `json:"overlap_skipped"`
	InsertedChannels   int `json:"inserted_channels"`
	DriftAccepted      int `json:"drift_accepted"`
	DriftInconsistent  int `json:"drift_inconsistent"`
	DriftNoSamples     int `json:"drift_no_samples"`
	MalformedPrimary   int `json:"malformed_primary"`
	MalformedSecondary int `json:"malformed_secondary"`

	Malformed []*guide.MalformedEntryError `json:"-"`
}

// SummaryString is a one-line summary for logs.
func (r Report) SummaryString() string {
	return fmt.Sprintf("%s; programmes primary=%d merged=%d dropped=%d overlap=%d; drift accepted=%d inconsistent=%d no_samples=%d; inserted=%d malformed=%d/%d",
		r.Links.SummaryString(), r.PrimaryProgrammes, r.MergedProgrammes, r.DroppedProgrammes, r.OverlapSkipped,
		r.DriftAccepted, r.DriftInconsistent, r.DriftNoSamples, r.InsertedChannels,
		r.MalformedPrimary, r.MalformedSecondary)
}

// channelWork is one secondary channel's share of the run.
type channelWork struct {
	link     guide.IdentityLink
	entries  []guide.ProgramEntry
	estimate *guide.DriftEstimate
}

// Reconcile merges secondary into primary. The only error is
// guide.ErrEmptyFeed (primary has no usable channels) or a cancelled ctx.
// Identical inputs produce an identical schedule in identical order.
func Reconcile(ctx context.Context, primary, secondary guide.Feed, opts Options) (*Result, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.Unmatched == "" {
		opts.Unmatched = UnmatchedDrop
	}

	rep := Report{}
	sched := guide.NewSchedule()

	// Primary catalog and timeline, verbatim.
	pCatalog, pMalformed := assignIDs(primary)
	rep.Malformed = append(rep.Malformed, primary.Rejected...)
	rep.Malformed = append(rep.Malformed, pMalformed...)
	for _, ch := range pCatalog.channels {
		sched.AddChannel(ch)
	}
	if len(sched.Channels()) == 0 {
		return nil, fmt.Errorf("primary feed %q: %w", primary.Source, guide.ErrEmptyFeed)
	}
	rep.PrimaryChannels = len(sched.Channels())

	primaryByChannel := make(map[string][]guide.ProgramEntry, rep.PrimaryChannels)
	for i, p := range primary.Programs {
		e, err := pCatalog.entry(i, p)
		if err != nil {
			rep.Malformed = append(rep.Malformed, err)
			continue
		}
		sched.Append(e)
		primaryByChannel[e.ChannelID] = append(primaryByChannel[e.ChannelID], e)
		rep.PrimaryProgrammes++
	}
	rep.MalformedPrimary = len(rep.Malformed)

	catalog := epglink.NewCatalog(sched.Channels(), opts.Rules, opts.Aliases)

	// Secondary channels: link each, then group its programmes.
	sCatalog, sMalformed := assignIDs(secondary)
	rep.Malformed = append(rep.Malformed, secondary.Rejected...)
	rep.Malformed = append(rep.Malformed, sMalformed...)
	work := make([]*channelWork, 0, len(sCatalog.feedChannels))
	byRef := make(map[string]*channelWork, len(sCatalog.feedChannels))
	for _, fc := range sCatalog.feedChannels {
		w := &channelWork{link: catalog.Link(fc)}
		work = append(work, w)
		byRef[fc.Ref] = w
	}
	for i, p := range secondary.Programs {
		e, err := sCatalog.entry(i, p)
		if err != nil {
			rep.Malformed = append(rep.Malformed, err)
			continue
		}
		if w := byRef[p.ChannelRef]; w != nil {
			w.entries = append(w.entries, e)
		}
	}
	rep.SecondaryChannels = len(work)
	rep.MalformedSecondary = len(rep.Malformed) - rep.MalformedPrimary
	if secondary.Empty() {
		log.Warn().Str("source", secondary.Source).Msg("reconcile: secondary feed is empty; primary passes through unchanged")
	}

	if err := estimateAll(ctx, work, primaryByChannel, opts); err != nil {
		return nil, err
	}

	// Merge serially in secondary catalog order.
	links := make([]guide.IdentityLink, 0, len(work))
	for _, w := range work {
		switch {
		case w.link.Matched():
			est := *w.estimate
			rep.Drift = append(rep.Drift, est)
			countDrift(&rep, est)
			var keep func(guide.ProgramEntry) bool
			if opts.PreferPrimaryOnOverlap {
				keep = noOverlapWith(primaryByChannel[w.link.PrimaryID])
			}
			n := MergeFiltered(sched, w.link.PrimaryID, est.Correction(), w.entries, keep)
			rep.MergedProgrammes += n
			rep.OverlapSkipped += len(w.entries) - n
			log.Debug().
				Str("secondary", w.link.SecondaryName).
				Str("channel", w.link.PrimaryID).
				Str("method", string(w.link.Method)).
				Int("offset_minutes", est.OffsetMinutes).
				Int("samples", est.SampleCount).
				Bool("accepted", est.Accepted).
				Int("merged", n).
				Msg("reconcile: channel merged")
			if est.Reason != nil && est.SampleCount > 0 {
				log.Info().Str("channel", w.link.PrimaryID).Int("samples", est.SampleCount).
					Int("mode", est.OffsetMinutes).Msg("reconcile: drift samples inconsistent; merging uncorrected")
			}
		case opts.Unmatched == UnmatchedInsert && identity.Normalize(w.link.SecondaryName) != "":
			id := identity.Normalize(w.link.SecondaryName)
			if sched.AddChannel(guide.Channel{ID: id, DisplayName: w.link.SecondaryName}) {
				rep.InsertedChannels++
			}
			w.link.PrimaryID, w.link.Method = id, guide.LinkInserted
			rep.MergedProgrammes += Merge(sched, id, 0, w.entries)
		default:
			rep.DroppedProgrammes += len(w.entries)
			log.Debug().Str("secondary", w.link.SecondaryName).Str("reason", w.link.Reason).
				Int("dropped", len(w.entries)).Msg("reconcile: channel unmatched")
		}
		links = append(links, w.link)
	}
	rep.Links = epglink.NewReport(links)
	return &Result{Schedule: sched, Report: rep}, nil
}

// estimateAll fills in the drift estimate of every matched channel.
func estimateAll(ctx context.Context, work []*channelWork, primaryByChannel map[string][]guide.ProgramEntry, opts Options) error {
	g, ctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 1 {
		g.SetLimit(opts.Concurrency)
	} else {
		g.SetLimit(1)
	}
	for _, w := range work {
		if !w.link.Matched() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			est := drift.Estimate(w.link.PrimaryID, drift.Samples("", primaryByChannel[w.link.PrimaryID], w.entries), opts.Drift)
			w.estimate = &est
			return nil
		})
	}
	return g.Wait()
}

func countDrift(rep *Report, est guide.DriftEstimate) {
	switch {
	case est.Accepted:
		rep.DriftAccepted++
	case est.SampleCount == 0:
		rep.DriftNoSamples++
	default:
		rep.DriftInconsistent++
	}
}
