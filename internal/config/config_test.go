package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c := Load()
	if c.PrimaryKind != KindHTML || c.PrimaryDays != 2 || c.Output != "epg.xml" {
		t.Errorf("feed defaults: %+v", c)
	}
	if c.Unmatched != "drop" || c.DriftTolerance != 2*time.Minute || c.PreferPrimaryOnOverlap || c.Concurrency != 4 {
		t.Errorf("merge defaults: %+v", c)
	}
	if c.ProxyConcurrency != 16 || c.ProxyTimeout != 8*time.Second || c.ProxyRate != 20 {
		t.Errorf("proxy defaults: %+v", c)
	}
	if c.Addr != ":8089" || c.RefreshCron != "0 */6 * * *" || c.DBPath != "" {
		t.Errorf("service defaults: %+v", c)
	}
	if !c.FeedRetries {
		t.Error("FeedRetries should default true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("EPGMERGE_PRIMARY_URL", "https://guide.example/Ajax?Day={day}")
	t.Setenv("EPGMERGE_PRIMARY_KIND", "XML")
	t.Setenv("EPGMERGE_PRIMARY_DAYS", "0")
	t.Setenv("EPGMERGE_UNMATCHED", "insert")
	t.Setenv("EPGMERGE_DRIFT_TOLERANCE", "5m")
	t.Setenv("EPGMERGE_PREFER_PRIMARY_ON_OVERLAP", "yes")
	t.Setenv("EPGMERGE_CONCURRENCY", "-3")
	t.Setenv("EPGMERGE_PROXY_RATE", "2.5")
	t.Setenv("EPGMERGE_FEED_RETRIES", "false")
	c := Load()
	if c.PrimaryKind != KindXMLTV {
		t.Errorf("PrimaryKind = %q", c.PrimaryKind)
	}
	if c.PrimaryDays != 2 {
		t.Errorf("PrimaryDays 0 should fall back to 2; got %d", c.PrimaryDays)
	}
	if c.Unmatched != "insert" || c.DriftTolerance != 5*time.Minute || !c.PreferPrimaryOnOverlap {
		t.Errorf("merge: %+v", c)
	}
	if c.Concurrency != 1 {
		t.Errorf("negative concurrency should clamp to 1; got %d", c.Concurrency)
	}
	if c.ProxyRate != 2.5 || c.FeedRetries {
		t.Errorf("ProxyRate=%v FeedRetries=%v", c.ProxyRate, c.FeedRetries)
	}
}

func TestUnknownValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("EPGMERGE_UNMATCHED", "maybe")
	t.Setenv("EPGMERGE_PRIMARY_KIND", "json")
	t.Setenv("EPGMERGE_FETCH_TIMEOUT", "soon")
	c := Load()
	if c.Unmatched != "drop" || c.PrimaryKind != KindHTML || c.FetchTimeout != 45*time.Second {
		t.Errorf("fallbacks: %+v", c)
	}
}

func TestLocation(t *testing.T) {
	for _, tz := range []string{"", "Europe/Istanbul", "+03:00"} {
		c := &Config{Timezone: tz}
		loc, err := c.Location()
		if err != nil {
			t.Fatalf("Location(%q): %v", tz, err)
		}
		_, off := time.Date(2026, 10, 14, 12, 0, 0, 0, loc).Zone()
		if off != 3*3600 {
			t.Errorf("Location(%q) offset = %d", tz, off)
		}
	}
	if _, err := (&Config{Timezone: "Mars/Olympus"}).Location(); err == nil {
		t.Error("unknown zone should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Config
		want string
	}{
		{"missing primary", Config{PrimaryKind: KindHTML}, "EPGMERGE_PRIMARY_URL"},
		{"html without placeholder", Config{PrimaryKind: KindHTML, PrimaryURL: "https://x/guide"}, "{day}"},
		{"bad zone", Config{PrimaryKind: KindXMLTV, PrimaryURL: "epg.xml", Timezone: "Nowhere/Land"}, "timezone"},
		{"ok html", Config{PrimaryKind: KindHTML, PrimaryURL: "https://x/guide?Day={day}"}, ""},
		{"ok local xmltv", Config{PrimaryKind: KindXMLTV, PrimaryURL: "/srv/epg.xml"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestHasProxies(t *testing.T) {
	if (&Config{}).HasProxies() {
		t.Error("no proxies configured")
	}
	if !(&Config{ProxyListURL: "https://lists.example/http.txt"}).HasProxies() {
		t.Error("list URL counts as configured")
	}
}

// clearEnv unsets every EPGMERGE_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PRIMARY_URL", "PRIMARY_KIND", "PRIMARY_DAYS", "SECONDARY_URL", "OUTPUT", "TIMEZONE",
		"FETCH_TIMEOUT", "FEED_RETRIES", "RULES_FILE", "OUTPUT_LANG", "UNMATCHED", "DRIFT_TOLERANCE",
		"PREFER_PRIMARY_ON_OVERLAP", "CONCURRENCY", "PROXIES", "PROXY_LIST_URL", "PROXY_TARGET",
		"PROXY_CONCURRENCY", "PROXY_TIMEOUT", "PROXY_RATE", "PROXY_CACHE_TTL", "DB", "ADDR",
		"REFRESH_CRON", "M3U_BASE_URL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv("EPGMERGE_"+k, "")
	}
}
