package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setFeedEnv(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("EPGMERGE_PRIMARY_URL", writeFile(t, dir, "primary.xml", primaryXML))
	t.Setenv("EPGMERGE_PRIMARY_KIND", "xmltv")
	t.Setenv("EPGMERGE_SECONDARY_URL", writeFile(t, dir, "secondary.xml", secondaryXML))
	t.Setenv("EPGMERGE_TIMEZONE", "+03:00")
	t.Setenv("EPGMERGE_DB", "")
	t.Setenv("EPGMERGE_PROXIES", "")
	t.Setenv("EPGMERGE_PROXY_LIST_URL", "")
	t.Setenv("EPGMERGE_RULES_FILE", "")
	t.Setenv("EPGMERGE_LOG_LEVEL", "error")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"merge", "serve", "report", "probe", "rewrite-m3u", "history", "check"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
}

func TestMergeCommandWritesGuide(t *testing.T) {
	dir := t.TempDir()
	setFeedEnv(t, dir)
	out := filepath.Join(dir, "epg.xml")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--env-file", filepath.Join(dir, "missing.env"), "merge", "-o", out})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "<?xml") || !strings.Contains(string(data), "Highlights") {
		t.Fatalf("guide:\n%s", data)
	}
}

func TestMergeCommandFlagOverridesUnmatched(t *testing.T) {
	dir := t.TempDir()
	setFeedEnv(t, dir)

	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--env-file", "", "merge", "--unmatched", "insert", "-o", "-"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `<channel id="cartoontime">`) {
		t.Fatalf("stdout guide:\n%s", buf.String())
	}
}

func TestReportCommandPrintsLinks(t *testing.T) {
	dir := t.TempDir()
	setFeedEnv(t, dir)

	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--env-file", "", "report"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Sports\ts1\tsportshd\tbase\t10\t1\tcorrected -10 min", "Cartoon Time\ts9\t-\tunmatched"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReportCommandUnmatchedOnly(t *testing.T) {
	dir := t.TempDir()
	setFeedEnv(t, dir)

	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--env-file", "", "report", "--unmatched-only"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Cartoon Time\ts9\t-\tunmatched") {
		t.Errorf("unmatched channel missing:\n%s", out)
	}
	if strings.Contains(out, "Sports\ts1") {
		t.Errorf("matched channel listed:\n%s", out)
	}
}

func TestRewriteCommand(t *testing.T) {
	dir := t.TempDir()
	setFeedEnv(t, dir)
	in := writeFile(t, dir, "in.m3u", "#EXTM3U\n#EXTINF:-1,Sports\nhttp://upstream.example/live/u/p/101.ts\n")
	out := filepath.Join(dir, "out.m3u")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--env-file", "", "rewrite-m3u", "-i", in, "-o", out, "--base", "http://lan.example:8089/stream"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "http://lan.example:8089/stream/101.ts\n") {
		t.Fatalf("playlist:\n%s", data)
	}
}

func TestHistoryCommandNeedsStore(t *testing.T) {
	dir := t.TempDir()
	setFeedEnv(t, dir)
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--env-file", "", "history"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without EPGMERGE_DB")
	}
}
