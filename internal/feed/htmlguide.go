package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/httpclient"
)

const (
	// DayPlaceholder in an HTML guide URL template is replaced by the
	// query-escaped "MM/DD/YYYY 00:00:00" of each fetched day.
	DayPlaceholder = "{day}"
	// DefaultDuration applies when a programme block carries no usable length.
	DefaultDuration = 30 * time.Minute
	DefaultDays     = 2
)

// Selectors locate guide data in a day page.
type Selectors struct {
	Channel     string `yaml:"channel"`
	ChannelName string `yaml:"channel_name"`
	Programme   string `yaml:"programme"`
	StartTime   string `yaml:"start_time"`
	Duration    string `yaml:"duration"`
	Title       string `yaml:"title"`
}

// DefaultSelectors match the Digiturk guide markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Channel:     "div.swiper-slide.channelContent",
		ChannelName: "h3.tvguide-channel-name",
		Programme:   "div.tvGuideResult-box-wholeDates.channelDetail",
		StartTime:   "span.tvGuideResult-box-wholeDates-time-hour",
		Duration:    "span.tvGuideResult-box-wholeDates-time-totalMinute",
		Title:       "span.tvGuideResult-box-wholeDates-title",
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Channel == "" {
		s.Channel = d.Channel
	}
	if s.ChannelName == "" {
		s.ChannelName = d.ChannelName
	}
	if s.Programme == "" {
		s.Programme = d.Programme
	}
	if s.StartTime == "" {
		s.StartTime = d.StartTime
	}
	if s.Duration == "" {
		s.Duration = d.Duration
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	return s
}

// HTMLGuideSource scrapes a guide site that serves one HTML page per day.
// Channels are keyed by their display name; start times are wall-clock
// "HH:MM" in Zone on the page's day.
type HTMLGuideSource struct {
	Label string
	// URLTemplate contains DayPlaceholder.
	URLTemplate string
	// Days fetched starting today; DefaultDays when <= 0.
	Days      int
	Zone      *time.Location
	Selectors Selectors
	Client    *http.Client
	Retry     httpclient.RetryPolicy
	// Header is sent with every page request.
	Header http.Header
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// DayURL expands the template for the day containing t.
func DayURL(template string, t time.Time) string {
	stamp := t.Format("01/02/2006") + " 00:00:00"
	return strings.ReplaceAll(template, DayPlaceholder, url.QueryEscape(stamp))
}

func (s *HTMLGuideSource) Fetch(ctx context.Context) (guide.Feed, error) {
	label := s.Label
	if label == "" {
		label = s.URLTemplate
	}
	feed := guide.Feed{Source: label}
	if s.URLTemplate == "" {
		return feed, fmt.Errorf("html guide %s: no URL template", label)
	}
	zone := s.Zone
	if zone == nil {
		zone = time.UTC
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	days := s.Days
	if days <= 0 {
		days = DefaultDays
	}
	today := now().In(zone)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, zone)

	pages := make([]guide.Feed, days)
	g, gctx := errgroup.WithContext(ctx)
	for i := range days {
		day := today.AddDate(0, 0, i)
		g.Go(func() error {
			page, err := s.fetchDay(gctx, day)
			if err != nil {
				return fmt.Errorf("html guide %s: day %s: %w", label, day.Format(time.DateOnly), err)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return feed, err
	}

	seen := make(map[string]bool)
	for _, p := range pages {
		for _, ch := range p.Channels {
			if !seen[ch.Ref] {
				seen[ch.Ref] = true
				feed.Channels = append(feed.Channels, ch)
			}
		}
		feed.Programs = append(feed.Programs, p.Programs...)
		feed.Rejected = append(feed.Rejected, p.Rejected...)
	}
	return feed, nil
}

func (s *HTMLGuideSource) fetchDay(ctx context.Context, day time.Time) (guide.Feed, error) {
	header := s.Header
	if header == nil {
		header = http.Header{"X-Requested-With": {"XMLHttpRequest"}}
	}
	body, err := httpclient.GetHeader(ctx, s.Client, DayURL(s.URLTemplate, day), header, s.Retry)
	if err != nil {
		return guide.Feed{}, err
	}
	defer body.Close()
	return ParseDay(body, day, s.Selectors)
}

// ParseDay extracts channels and programmes from one day page. day carries
// the date and zone start times are read in.
func ParseDay(r io.Reader, day time.Time, sels Selectors) (guide.Feed, error) {
	sel, err := sels.compile()
	if err != nil {
		return guide.Feed{}, err
	}
	doc, err := html.Parse(r)
	if err != nil {
		return guide.Feed{}, err
	}

	var feed guide.Feed
	index := 0
	for _, block := range cascadia.QueryAll(doc, sel.channel) {
		nameNode := cascadia.Query(block, sel.channelName)
		if nameNode == nil {
			continue
		}
		name := text(nameNode)
		if name == "" {
			continue
		}
		feed.Channels = append(feed.Channels, guide.FeedChannel{Ref: name, Name: name})
		for _, pn := range cascadia.QueryAll(block, sel.programme) {
			i := index
			index++
			startNode, titleNode := cascadia.Query(pn, sel.startTime), cascadia.Query(pn, sel.title)
			if startNode == nil || titleNode == nil {
				feed.Rejected = append(feed.Rejected, guide.Malformed(i, name, "programme block without start or title"))
				continue
			}
			start, err := clockOn(day, text(startNode))
			if err != nil {
				feed.Rejected = append(feed.Rejected, guide.Malformed(i, name, err.Error()))
				continue
			}
			dur := DefaultDuration
			if dn := cascadia.Query(pn, sel.duration); dn != nil {
				dur = parseMinutes(text(dn))
			}
			title := strings.TrimSpace(attr(titleNode, "title"))
			if title == "" {
				title = text(titleNode)
			}
			feed.Programs = append(feed.Programs, guide.FeedProgram{
				ChannelRef: name,
				Title:      title,
				Start:      start,
				Stop:       start.Add(dur),
			})
		}
	}
	return feed, nil
}

// clockOn places an "HH:MM" wall clock on day's date in day's zone.
func clockOn(day time.Time, hhmm string) (time.Time, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return time.Time{}, fmt.Errorf("bad start time %q", hhmm)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("bad start time %q", hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
}

// parseMinutes reads the digits of s ("45 dk", "90'") as minutes, falling
// back to DefaultDuration.
func parseMinutes(s string) time.Duration {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return DefaultDuration
	}
	return time.Duration(n) * time.Minute
}
