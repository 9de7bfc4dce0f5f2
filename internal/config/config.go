package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snapetech/epgmerge/internal/drift"
	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/proxy"
)

// Feed kinds for EPGMERGE_PRIMARY_KIND.
const (
	KindHTML  = "html"
	KindXMLTV = "xmltv"
)

// DefaultTimezone is the civil zone of the original guide sources.
const DefaultTimezone = "Europe/Istanbul"

// Config holds feed, merge, proxy and service settings.
// Load from env; subcommand flags override individual fields.
type Config struct {
	// Feeds
	PrimaryURL     string // HTML day URL template with {day}, or XMLTV URL/path
	PrimaryKind    string // "html" | "xmltv"
	PrimaryDays    int
	SecondaryURL   string // XMLTV URL or path; "" = primary only
	Output         string
	Timezone       string
	FetchTimeout   time.Duration
	FeedRetries    bool // retry 429/5xx once per request
	RulesFile      string
	OutputLanguage string // xml:lang on titles; "" omits it

	// Merge
	Unmatched              string // "drop" | "insert"
	DriftTolerance         time.Duration
	PreferPrimaryOnOverlap bool
	Concurrency            int

	// Proxies: candidates from EPGMERGE_PROXIES (comma/space separated) and/or a list URL.
	Proxies          string
	ProxyListURL     string
	ProxyTarget      string // URL probed through each proxy; defaults to today's primary page
	ProxyConcurrency int
	ProxyTimeout     time.Duration
	ProxyRate        float64
	ProxyCacheTTL    time.Duration // how long a stored good proxy is tried first

	// Service
	DBPath      string // "" = no run history
	Addr        string
	RefreshCron string
	M3UBaseURL  string

	LogLevel  string
	LogFormat string
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load() to use a .env file.
func Load() *Config {
	c := &Config{
		PrimaryURL:             os.Getenv("EPGMERGE_PRIMARY_URL"),
		PrimaryKind:            getEnvKind("EPGMERGE_PRIMARY_KIND", KindHTML),
		PrimaryDays:            getEnvInt("EPGMERGE_PRIMARY_DAYS", feed.DefaultDays),
		SecondaryURL:           os.Getenv("EPGMERGE_SECONDARY_URL"),
		Output:                 getEnv("EPGMERGE_OUTPUT", "epg.xml"),
		Timezone:               getEnv("EPGMERGE_TIMEZONE", DefaultTimezone),
		FetchTimeout:           getEnvDuration("EPGMERGE_FETCH_TIMEOUT", 45*time.Second),
		FeedRetries:            getEnvBool("EPGMERGE_FEED_RETRIES", true),
		RulesFile:              os.Getenv("EPGMERGE_RULES_FILE"),
		OutputLanguage:         os.Getenv("EPGMERGE_OUTPUT_LANG"),
		Unmatched:              getEnvUnmatched("EPGMERGE_UNMATCHED", "drop"),
		DriftTolerance:         getEnvDuration("EPGMERGE_DRIFT_TOLERANCE", drift.DefaultTolerance),
		PreferPrimaryOnOverlap: getEnvBool("EPGMERGE_PREFER_PRIMARY_ON_OVERLAP", false),
		Concurrency:            getEnvInt("EPGMERGE_CONCURRENCY", 4),
		Proxies:                os.Getenv("EPGMERGE_PROXIES"),
		ProxyListURL:           os.Getenv("EPGMERGE_PROXY_LIST_URL"),
		ProxyTarget:            os.Getenv("EPGMERGE_PROXY_TARGET"),
		ProxyConcurrency:       getEnvInt("EPGMERGE_PROXY_CONCURRENCY", proxy.DefaultConcurrency),
		ProxyTimeout:           getEnvDuration("EPGMERGE_PROXY_TIMEOUT", proxy.DefaultTimeout),
		ProxyRate:              getEnvFloat("EPGMERGE_PROXY_RATE", proxy.DefaultRate),
		ProxyCacheTTL:          getEnvDuration("EPGMERGE_PROXY_CACHE_TTL", 6*time.Hour),
		DBPath:                 os.Getenv("EPGMERGE_DB"),
		Addr:                   getEnv("EPGMERGE_ADDR", ":8089"),
		RefreshCron:            getEnv("EPGMERGE_REFRESH_CRON", "0 */6 * * *"),
		M3UBaseURL:             os.Getenv("EPGMERGE_M3U_BASE_URL"),
		LogLevel:               getEnv("EPGMERGE_LOG_LEVEL", "info"),
		LogFormat:              os.Getenv("EPGMERGE_LOG_FORMAT"),
	}
	if c.PrimaryDays <= 0 {
		c.PrimaryDays = feed.DefaultDays
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.ProxyConcurrency <= 0 {
		c.ProxyConcurrency = proxy.DefaultConcurrency
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 45 * time.Second
	}
	if c.DriftTolerance <= 0 {
		c.DriftTolerance = drift.DefaultTolerance
	}
	return c
}

// Location resolves Timezone. Fixed offsets such as "+03:00" are accepted
// for hosts without a zoneinfo database.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if t, err := time.Parse("-07:00", tz); err == nil {
		_, off := t.Zone()
		return time.FixedZone(tz, off), nil
	}
	if tz == DefaultTimezone {
		// Turkey has been on +03:00 year-round since 2016.
		return time.FixedZone("+03", 3*3600), nil
	}
	return nil, fmt.Errorf("unknown timezone %q", tz)
}

// Validate reports settings that make a merge impossible.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PrimaryURL) == "" {
		return fmt.Errorf("EPGMERGE_PRIMARY_URL is required")
	}
	if c.PrimaryKind == KindHTML && feed.IsRemote(c.PrimaryURL) && !strings.Contains(c.PrimaryURL, feed.DayPlaceholder) {
		return fmt.Errorf("html primary URL must contain %s", feed.DayPlaceholder)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// HasProxies reports whether any proxy candidates are configured.
func (c *Config) HasProxies() bool {
	return strings.TrimSpace(c.Proxies) != "" || strings.TrimSpace(c.ProxyListURL) != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvKind returns "html" or "xmltv".
func getEnvKind(key, defaultVal string) string {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case KindHTML:
		return KindHTML
	case KindXMLTV, "xml":
		return KindXMLTV
	}
	return defaultVal
}

// getEnvUnmatched returns "drop" or "insert".
func getEnvUnmatched(key, defaultVal string) string {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "insert", "add", "keep":
		return "insert"
	case "drop", "skip":
		return "drop"
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
