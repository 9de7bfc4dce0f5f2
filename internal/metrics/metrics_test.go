package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/snapetech/epgmerge/internal/epglink"
	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/reconcile"
)

func sampleReport() reconcile.Report {
	links := []guide.IdentityLink{
		{SecondaryName: "Sports", PrimaryID: "sportshd", Method: guide.LinkBase},
		{SecondaryName: "News", PrimaryID: "news", Method: guide.LinkExact},
		{SecondaryName: "Kids", PrimaryID: "kids", Method: guide.LinkInserted},
		{SecondaryName: "Radio", Reason: "no match"},
	}
	return reconcile.Report{
		Links:             epglink.NewReport(links),
		PrimaryChannels:   2,
		SecondaryChannels: 4,
		MergedProgrammes:  12,
		DroppedProgrammes: 3,
		InsertedChannels:  1,
		DriftAccepted:     1,
		DriftNoSamples:    1,
		Drift: []guide.DriftEstimate{
			{ChannelID: "sportshd", OffsetMinutes: 10, SampleCount: 4, Accepted: true},
			{ChannelID: "news", Reason: guide.ErrInsufficientDriftSamples},
		},
	}
}

func TestObserveRun(t *testing.T) {
	m := New(nil)
	now := time.Unix(1_800_000_000, 0)
	m.ObserveRun(sampleReport(), 2*time.Second, nil, now)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"runs ok", m.Runs.WithLabelValues("ok"), 1},
		{"last success", m.LastSuccess, 1_800_000_000},
		{"links base", m.Links.WithLabelValues("base"), 1},
		{"links exact", m.Links.WithLabelValues("exact"), 1},
		{"links inserted", m.Links.WithLabelValues("inserted"), 1},
		{"links unmatched", m.Links.WithLabelValues("unmatched"), 1},
		{"merged", m.Programmes.WithLabelValues("merged"), 12},
		{"drift accepted", m.Drift.WithLabelValues("accepted"), 1},
		{"channel drift", m.ChannelDrift.WithLabelValues("sportshd"), 10},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if n := testutil.CollectAndCount(m.ChannelDrift); n != 1 {
		t.Errorf("channel drift series = %d, want only accepted channels", n)
	}

	m.ObserveRun(reconcile.Report{}, time.Second, errors.New("boom"), now.Add(time.Hour))
	if got := testutil.ToFloat64(m.Runs.WithLabelValues("error")); got != 1 {
		t.Errorf("runs error = %v", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != 1_800_000_000 {
		t.Errorf("failed run moved last success: %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.ObserveProbe("ok")
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `epgmerge_proxy_probes_total{status="ok"} 1`) {
		t.Fatalf("metrics output:\n%s", body)
	}
}
