package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/epgmerge/internal/config"
	"github.com/snapetech/epgmerge/internal/logging"
)

const primaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="p1"><display-name>Sports HD</display-name></channel>
  <channel id="p2"><display-name>News 24</display-name></channel>
  <programme start="20261014200000 +0300" stop="20261014220000 +0300" channel="p1"><title>Match</title></programme>
  <programme start="20261014100000 +0300" stop="20261014103000 +0300" channel="p2"><title>Bulletin</title></programme>
</tv>
`

const secondaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="s1"><display-name>Sports</display-name></channel>
  <channel id="s9"><display-name>Cartoon Time</display-name></channel>
  <programme start="20261014201000 +0300" stop="20261014221000 +0300" channel="s1"><title>Match</title></programme>
  <programme start="20261014221000 +0300" stop="20261014231000 +0300" channel="s1"><title>Highlights</title></programme>
  <programme start="20261014090000 +0300" stop="20261014100000 +0300" channel="s9"><title>Toons</title></programme>
</tv>
`

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// testPipeline reconciles two local XMLTV files without touching the
// environment.
func testPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		PrimaryURL:     writeFile(t, dir, "primary.xml", primaryXML),
		PrimaryKind:    config.KindXMLTV,
		PrimaryDays:    1,
		SecondaryURL:   writeFile(t, dir, "secondary.xml", secondaryXML),
		Output:         filepath.Join(dir, "out", "epg.xml"),
		Timezone:       "+03:00",
		FetchTimeout:   5 * time.Second,
		Unmatched:      "drop",
		DriftTolerance: 2 * time.Minute,
		Concurrency:    2,
		ProxyCacheTTL:  time.Hour,
	}
	return &pipeline{
		cfg:   cfg,
		rules: config.DefaultRulesSet(),
		log:   logging.Nop(),
		now:   func() time.Time { return testNow },
	}
}
