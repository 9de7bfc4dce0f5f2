package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "epgmerge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunsRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id, err := s.RecordRun(ctx, Run{
			StartedAt:       base.Add(time.Duration(i) * time.Hour),
			Duration:        1500 * time.Millisecond,
			PrimarySource:   "digiturk",
			SecondarySource: "belgeselsemo",
			Output:          "epg.xml",
			Matched:         i,
			Merged:          10 * i,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != 36 {
			t.Fatalf("run id %q is not a uuid", id)
		}
	}
	runs, err := s.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Matched != 2 || runs[1].Matched != 1 {
		t.Fatalf("want newest first: %+v", runs)
	}
	if !runs[0].StartedAt.Equal(base.Add(2*time.Hour)) || runs[0].Duration != 1500*time.Millisecond || runs[0].Merged != 20 {
		t.Fatalf("run 0 = %+v", runs[0])
	}
}

func TestRecordRunKeepsGivenID(t *testing.T) {
	s := openTemp(t)
	id, err := s.RecordRun(context.Background(), Run{ID: "fixed", Error: "primary feed empty"})
	if err != nil || id != "fixed" {
		t.Fatalf("id=%q err=%v", id, err)
	}
	runs, _ := s.RecentRuns(context.Background(), 0)
	if len(runs) != 1 || runs[0].Error != "primary feed empty" {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestLastGoodProxy(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	if addr, err := s.LastGoodProxy(ctx, time.Hour, now); err != nil || addr != "" {
		t.Fatalf("empty store: %q %v", addr, err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.RecordProxy(ctx, "http://1.1.1.1:80", "ok", 100*time.Millisecond, now.Add(-3*time.Hour)))
	must(s.RecordProxy(ctx, "http://2.2.2.2:80", "ok", 200*time.Millisecond, now.Add(-10*time.Minute)))
	must(s.RecordProxy(ctx, "http://3.3.3.3:80", "timeout", 0, now.Add(-time.Minute)))

	addr, err := s.LastGoodProxy(ctx, time.Hour, now)
	must(err)
	if addr != "http://2.2.2.2:80" {
		t.Fatalf("LastGoodProxy = %q", addr)
	}
	// A later failure replaces the good result.
	must(s.RecordProxy(ctx, "http://2.2.2.2:80", "error", 0, now))
	addr, err = s.LastGoodProxy(ctx, time.Hour, now)
	must(err)
	if addr != "" {
		t.Fatalf("LastGoodProxy after failure = %q", addr)
	}
	addr, err = s.LastGoodProxy(ctx, 24*time.Hour, now)
	must(err)
	if addr != "http://1.1.1.1:80" {
		t.Fatalf("LastGoodProxy with longer window = %q", addr)
	}
}
