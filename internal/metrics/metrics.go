// Package metrics exposes reconciliation outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/reconcile"
)

// Metrics is the set of collectors for one registry.
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Observer
	LastSuccess  prometheus.Gauge
	Channels     *prometheus.GaugeVec
	Links        *prometheus.GaugeVec
	Programmes   *prometheus.GaugeVec
	Drift        *prometheus.GaugeVec
	ChannelDrift *prometheus.GaugeVec
	ProxyProbes  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Runs:        f.NewCounterVec(prometheus.CounterOpts{Name: "epgmerge_runs_total", Help: "Reconciliation runs by result"}, []string{"result"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{Name: "epgmerge_run_duration_seconds", Help: "Fetch plus reconcile duration", Buckets: prometheus.DefBuckets}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{Name: "epgmerge_last_success_timestamp_seconds", Help: "Unix time of the last successful run"}),
		Channels:    f.NewGaugeVec(prometheus.GaugeOpts{Name: "epgmerge_channels", Help: "Channels seen in the last run by feed"}, []string{"feed"}),
		Links:       f.NewGaugeVec(prometheus.GaugeOpts{Name: "epgmerge_channel_links", Help: "Secondary channel links in the last run by method"}, []string{"method"}),
		Programmes:  f.NewGaugeVec(prometheus.GaugeOpts{Name: "epgmerge_programmes", Help: "Programmes in the last run by outcome"}, []string{"outcome"}),
		Drift:       f.NewGaugeVec(prometheus.GaugeOpts{Name: "epgmerge_drift_estimates", Help: "Drift estimates in the last run by outcome"}, []string{"outcome"}),
		ChannelDrift: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "epgmerge_channel_drift_minutes",
			Help: "Accepted secondary clock offset per channel in the last run",
		}, []string{"channel"}),
		ProxyProbes: f.NewCounterVec(prometheus.CounterOpts{Name: "epgmerge_proxy_probes_total", Help: "Proxy probes by status"}, []string{"status"}),
		gatherer:    reg,
	}
}

// ObserveRun records a finished run. rep is ignored when err is set.
func (m *Metrics) ObserveRun(rep reconcile.Report, took time.Duration, err error, now time.Time) {
	m.RunDuration.Observe(took.Seconds())
	if err != nil {
		m.Runs.WithLabelValues("error").Inc()
		return
	}
	m.Runs.WithLabelValues("ok").Inc()
	m.LastSuccess.Set(float64(now.Unix()))

	m.Channels.WithLabelValues("primary").Set(float64(rep.PrimaryChannels))
	m.Channels.WithLabelValues("secondary").Set(float64(rep.SecondaryChannels))
	m.Channels.WithLabelValues("inserted").Set(float64(rep.InsertedChannels))

	for _, method := range []guide.LinkMethod{guide.LinkExact, guide.LinkAlias, guide.LinkBase} {
		m.Links.WithLabelValues(string(method)).Set(float64(rep.Links.Methods[string(method)]))
	}
	inserted := 0
	for _, l := range rep.Links.Links {
		if l.Method == guide.LinkInserted {
			inserted++
		}
	}
	m.Links.WithLabelValues(string(guide.LinkInserted)).Set(float64(inserted))
	m.Links.WithLabelValues("unmatched").Set(float64(rep.Links.Unmatched - inserted))

	m.Programmes.WithLabelValues("primary").Set(float64(rep.PrimaryProgrammes))
	m.Programmes.WithLabelValues("merged").Set(float64(rep.MergedProgrammes))
	m.Programmes.WithLabelValues("dropped").Set(float64(rep.DroppedProgrammes))
	m.Programmes.WithLabelValues("overlap_skipped").Set(float64(rep.OverlapSkipped))
	m.Programmes.WithLabelValues("malformed").Set(float64(rep.MalformedPrimary + rep.MalformedSecondary))

	m.Drift.WithLabelValues("accepted").Set(float64(rep.DriftAccepted))
	m.Drift.WithLabelValues("inconsistent").Set(float64(rep.DriftInconsistent))
	m.Drift.WithLabelValues("no_samples").Set(float64(rep.DriftNoSamples))

	m.ChannelDrift.Reset()
	for _, d := range rep.Drift {
		if d.Accepted {
			m.ChannelDrift.WithLabelValues(d.ChannelID).Set(float64(d.OffsetMinutes))
		}
	}
}

// ObserveProbe counts one proxy probe outcome.
func (m *Metrics) ObserveProbe(status string) {
	m.ProxyProbes.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
