package guide

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04 -0700", "2026-10-14 "+hhmm+" +0300")
	if err != nil {
		panic(err)
	}
	return t
}

func TestProgramEntryShift(t *testing.T) {
	p := ProgramEntry{ChannelID: "x", Title: "News", Start: at("10:05"), Stop: at("10:35")}
	got := p.Shift(5)
	if !got.Start.Equal(at("10:10")) || !got.Stop.Equal(at("10:40")) {
		t.Fatalf("Shift(5) = %v-%v", got.Start, got.Stop)
	}
	if same := p.Shift(0); same != p {
		t.Fatalf("Shift(0) changed entry: %+v", same)
	}
	if !p.Start.Equal(at("10:05")) {
		t.Fatal("Shift mutated receiver")
	}
}

func TestProgramEntryOverlaps(t *testing.T) {
	a := ProgramEntry{ChannelID: "x", Start: at("10:00"), Stop: at("11:00")}
	tests := []struct {
		name string
		b    ProgramEntry
		want bool
	}{
		{"inside", ProgramEntry{ChannelID: "x", Start: at("10:15"), Stop: at("10:45")}, true},
		{"touching", ProgramEntry{ChannelID: "x", Start: at("11:00"), Stop: at("12:00")}, false},
		{"other channel", ProgramEntry{ChannelID: "y", Start: at("10:15"), Stop: at("10:45")}, false},
		{"straddle", ProgramEntry{ChannelID: "x", Start: at("09:30"), Stop: at("10:01")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDriftEstimateCorrection(t *testing.T) {
	if got := (DriftEstimate{OffsetMinutes: 10, Accepted: true}).Correction(); got != -10 {
		t.Fatalf("Correction = %d, want -10", got)
	}
	if got := (DriftEstimate{OffsetMinutes: 10}).Correction(); got != 0 {
		t.Fatalf("rejected Correction = %d, want 0", got)
	}
}

func TestScheduleAppendOnly(t *testing.T) {
	s := NewSchedule()
	if !s.AddChannel(Channel{ID: "a", DisplayName: "A"}) {
		t.Fatal("first AddChannel should report new")
	}
	s.AddChannel(Channel{ID: "b", DisplayName: "B"})
	if s.AddChannel(Channel{ID: "a", DisplayName: "A2"}) {
		t.Fatal("duplicate AddChannel reported new")
	}
	ch, _ := s.Channel("a")
	if ch.DisplayName != "A2" {
		t.Fatalf("last write should win on display name, got %q", ch.DisplayName)
	}
	if s.Append(ProgramEntry{ChannelID: "zzz", Title: "t"}) {
		t.Fatal("Append to unknown channel accepted")
	}
	s.Append(ProgramEntry{ChannelID: "b", Title: "b1"})
	s.Append(ProgramEntry{ChannelID: "a", Title: "a1"})
	s.Append(ProgramEntry{ChannelID: "a", Title: "a2"})
	var titles []string
	for _, p := range s.Entries() {
		titles = append(titles, p.Title)
	}
	if fmt.Sprint(titles) != "[a1 a2 b1]" {
		t.Fatalf("Entries order = %v", titles)
	}
	progs := s.Programs("a")
	progs[0].Title = "changed"
	if s.Programs("a")[0].Title != "a1" {
		t.Fatal("Programs returned shared storage")
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestProgramEntryValid(t *testing.T) {
	tests := []struct {
		name string
		p    ProgramEntry
		want bool
	}{
		{"ok", ProgramEntry{Title: "News", Start: at("10:00"), Stop: at("10:30")}, true},
		{"no title", ProgramEntry{Start: at("10:00"), Stop: at("10:30")}, false},
		{"no start", ProgramEntry{Title: "News", Stop: at("10:30")}, false},
		{"empty span", ProgramEntry{Title: "News", Start: at("10:30"), Stop: at("10:30")}, false},
		{"backwards", ProgramEntry{Title: "News", Start: at("10:30"), Stop: at("10:00")}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMalformedEntryErrorIs(t *testing.T) {
	err := fmt.Errorf("parse: %w", Malformed(3, "trt1", "missing title"))
	if !errors.Is(err, ErrMalformedEntry) {
		t.Fatal("errors.Is(ErrMalformedEntry) = false")
	}
	var me *MalformedEntryError
	if !errors.As(err, &me) || me.Index != 3 {
		t.Fatalf("errors.As = %+v", me)
	}
}
