package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/epgmerge/internal/config"
	"github.com/snapetech/epgmerge/internal/drift"
	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/httpclient"
	"github.com/snapetech/epgmerge/internal/metrics"
	"github.com/snapetech/epgmerge/internal/reconcile"
	"github.com/snapetech/epgmerge/internal/store"
	"github.com/snapetech/epgmerge/internal/xmltv"
)

// pipeline is one configured fetch, reconcile and encode cycle. store and
// metrics are optional.
type pipeline struct {
	cfg     *config.Config
	rules   config.Rules
	log     zerolog.Logger
	store   *store.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// runOutcome is a finished cycle.
type runOutcome struct {
	Result    *reconcile.Result
	Guide     []byte
	Primary   string
	Secondary string
	Proxy     string
	StartedAt time.Time
	Took      time.Duration
}

func newPipeline(ctx *commandContext) (*pipeline, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return &pipeline{cfg: cfg, rules: ctx.rules, log: *ctx.log(), now: time.Now}, nil
}

func (p *pipeline) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// openStore opens the run history when EPGMERGE_DB is set. The returned
// close func is always safe to call.
func (p *pipeline) openStore(ctx context.Context) (func(), error) {
	if p.cfg.DBPath == "" {
		return func() {}, nil
	}
	st, err := store.Open(ctx, p.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	p.store = st
	return func() {
		if err := st.Close(); err != nil {
			p.log.Warn().Err(err).Msg("store: close")
		}
		p.store = nil
	}, nil
}

func (p *pipeline) retryPolicy() httpclient.RetryPolicy {
	if p.cfg.FeedRetries {
		return httpclient.DefaultRetryPolicy
	}
	return httpclient.NoRetry
}

func (p *pipeline) sources(loc *time.Location, client *http.Client) (feed.Source, feed.Source) {
	retry := p.retryPolicy()
	var primary feed.Source
	if p.cfg.PrimaryKind == config.KindXMLTV {
		primary = &feed.XMLTVSource{Label: "primary", Location: p.cfg.PrimaryURL, Zone: loc, Client: client, Retry: retry}
	} else {
		primary = &feed.HTMLGuideSource{
			Label:       "primary",
			URLTemplate: p.cfg.PrimaryURL,
			Days:        p.cfg.PrimaryDays,
			Zone:        loc,
			Selectors:   p.rules.Selectors,
			Client:      client,
			Retry:       retry,
			Now:         p.now,
		}
	}
	if p.cfg.SecondaryURL == "" {
		return primary, nil
	}
	secondary := &feed.XMLTVSource{Label: "secondary", Location: p.cfg.SecondaryURL, Zone: loc, Client: client, Retry: retry}
	return primary, secondary
}

func (p *pipeline) options() reconcile.Options {
	log := p.log
	return reconcile.Options{
		Rules:                  p.rules.Identity,
		Aliases:                p.rules.Aliases,
		Drift:                  drift.Policy{Tolerance: p.cfg.DriftTolerance},
		Unmatched:              reconcile.ParseUnmatchedPolicy(p.cfg.Unmatched),
		PreferPrimaryOnOverlap: p.cfg.PreferPrimaryOnOverlap,
		Concurrency:            p.cfg.Concurrency,
		Logger:                 &log,
	}
}

// run fetches both feeds, reconciles them and encodes the merged guide. The
// outcome is recorded in metrics and the store whether or not it failed.
func (p *pipeline) run(ctx context.Context) (*runOutcome, error) {
	out := &runOutcome{StartedAt: p.clock(), Primary: p.cfg.PrimaryURL, Secondary: p.cfg.SecondaryURL}
	err := p.cycle(ctx, out)
	out.Took = p.clock().Sub(out.StartedAt)
	p.record(ctx, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *pipeline) cycle(ctx context.Context, out *runOutcome) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	loc, err := p.cfg.Location()
	if err != nil {
		return err
	}
	client, proxyAddr := p.client(ctx, loc)
	out.Proxy = proxyAddr

	primarySrc, secondarySrc := p.sources(loc, client)
	primary, err := primarySrc.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch primary: %w", err)
	}
	secondary := guide.Feed{Source: "secondary"}
	if secondarySrc != nil {
		secondary = feed.FetchOrEmpty(ctx, secondarySrc, "secondary", p.log)
	} else {
		p.log.Info().Msg("no secondary feed configured; writing primary only")
	}

	res, err := reconcile.Reconcile(ctx, primary, secondary, p.options())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	var buf bytes.Buffer
	if err := xmltv.Encode(&buf, res.Schedule, xmltv.EncodeOptions{Location: loc, Lang: p.cfg.OutputLanguage}); err != nil {
		return err
	}
	out.Result = res
	out.Guide = buf.Bytes()
	p.log.Info().Str("summary", res.Report.SummaryString()).Int("programmes", res.Schedule.Len()).Msg("reconciled")
	return nil
}

func (p *pipeline) record(ctx context.Context, out *runOutcome, runErr error) {
	var rep reconcile.Report
	if out.Result != nil {
		rep = out.Result.Report
	}
	if p.metrics != nil {
		p.metrics.ObserveRun(rep, out.Took, runErr, p.clock())
	}
	if p.store == nil {
		return
	}
	r := store.Run{
		StartedAt:         out.StartedAt,
		Duration:          out.Took,
		PrimarySource:     out.Primary,
		SecondarySource:   out.Secondary,
		Output:            p.cfg.Output,
		PrimaryChannels:   rep.PrimaryChannels,
		SecondaryChannels: rep.SecondaryChannels,
		Matched:           rep.Links.Matched,
		Merged:            rep.MergedProgrammes,
		Dropped:           rep.DroppedProgrammes,
		DriftAccepted:     rep.DriftAccepted,
		DriftRejected:     rep.DriftInconsistent + rep.DriftNoSamples,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	// A cancelled run is still recorded.
	if _, err := p.store.RecordRun(context.WithoutCancel(ctx), r); err != nil {
		p.log.Warn().Err(err).Msg("store: record run")
	}
}
