// Package xmltv reads XMLTV documents into guide feeds and writes merged
// schedules back out as XMLTV.
package xmltv

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/snapetech/epgmerge/internal/guide"
)

// TimeLayout is the XMLTV timestamp layout written by Encode.
const TimeLayout = "20060102150405 -0700"

// DefaultSourceName is written as source-info-name when none is given.
const DefaultSourceName = "epg-merge"

type xmlTVRoot struct {
	XMLName    xml.Name       `xml:"tv"`
	Source     string         `xml:"source-info-name,attr,omitempty"`
	Generator  string         `xml:"generator-info-name,attr,omitempty"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID       string     `xml:"id,attr"`
	Displays []xmlValue `xml:"display-name"`
}

type xmlProgramme struct {
	Start   string     `xml:"start,attr"`
	Stop    string     `xml:"stop,attr,omitempty"`
	Channel string     `xml:"channel,attr"`
	Titles  []xmlValue `xml:"title"`
}

type xmlValue struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// firstValue returns the first non-blank value, trimmed.
func firstValue(vs []xmlValue) string {
	for _, v := range vs {
		if s := strings.TrimSpace(v.Value); s != "" {
			return s
		}
	}
	return ""
}

// ParseTime parses an XMLTV timestamp. The offset is optional; without one the
// wall clock is read in loc (UTC when nil). Minute and day precision stamps are
// accepted as well.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	stamp, zone, _ := strings.Cut(strings.TrimSpace(s), " ")
	if i := strings.IndexAny(stamp, "+-"); i > 0 && zone == "" {
		stamp, zone = stamp[:i], stamp[i:]
	}
	var layout string
	switch len(stamp) {
	case 14:
		layout = "20060102150405"
	case 12:
		layout = "200601021504"
	case 8:
		layout = "20060102"
	default:
		return time.Time{}, fmt.Errorf("xmltv: bad timestamp %q", s)
	}
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return time.ParseInLocation(layout, stamp, loc)
	}
	t, err := time.Parse(layout+" -0700", stamp+" "+zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("xmltv: bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatTime renders t in loc (UTC when nil) using TimeLayout.
func FormatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

// Decode reads an XMLTV document. Programmes whose channel or times cannot be
// read are recorded in Feed.Rejected and skipped; only a document that is not
// XMLTV at all is an error. Element order is preserved.
func Decode(r io.Reader, source string, loc *time.Location) (guide.Feed, error) {
	feed := guide.Feed{Source: source}
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var sawRoot bool
	index := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return feed, fmt.Errorf("xmltv: %s: %w", source, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "tv":
			sawRoot = true
		case "channel":
			var node xmlChannel
			if err := dec.DecodeElement(&node, &start); err != nil {
				return feed, fmt.Errorf("xmltv: %s: channel: %w", source, err)
			}
			id := strings.TrimSpace(node.ID)
			if id == "" {
				continue
			}
			feed.Channels = append(feed.Channels, guide.FeedChannel{Ref: id, Name: firstValue(node.Displays)})
		case "programme":
			var node xmlProgramme
			if err := dec.DecodeElement(&node, &start); err != nil {
				return feed, fmt.Errorf("xmltv: %s: programme: %w", source, err)
			}
			i := index
			index++
			p, bad := programme(i, node, loc)
			if bad != nil {
				feed.Rejected = append(feed.Rejected, bad)
				continue
			}
			feed.Programs = append(feed.Programs, p)
		default:
			if sawRoot {
				_ = dec.Skip()
			}
		}
	}
	if !sawRoot {
		return feed, fmt.Errorf("xmltv: %s: root <tv> not found", source)
	}
	return feed, nil
}

func programme(i int, node xmlProgramme, loc *time.Location) (guide.FeedProgram, *guide.MalformedEntryError) {
	ref := strings.TrimSpace(node.Channel)
	if ref == "" {
		return guide.FeedProgram{}, guide.Malformed(i, ref, "missing channel attribute")
	}
	start, err := ParseTime(node.Start, loc)
	if err != nil {
		return guide.FeedProgram{}, guide.Malformed(i, ref, "bad start attribute")
	}
	if strings.TrimSpace(node.Stop) == "" {
		return guide.FeedProgram{}, guide.Malformed(i, ref, "missing stop attribute")
	}
	stop, err := ParseTime(node.Stop, loc)
	if err != nil {
		return guide.FeedProgram{}, guide.Malformed(i, ref, "bad stop attribute")
	}
	return guide.FeedProgram{ChannelRef: ref, Title: firstValue(node.Titles), Start: start, Stop: stop}, nil
}

// charsetReader decodes legacy encodings such as ISO-8859-9 by their
// declared label.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	r, err := charset.NewReaderLabel(label, input)
	if err != nil {
		return nil, fmt.Errorf("xmltv: charset %q: %w", label, err)
	}
	return r, nil
}

// EncodeOptions controls Encode output.
type EncodeOptions struct {
	// SourceName is written as source-info-name.
	SourceName string
	// Location is the zone timestamps are rendered in (UTC when nil).
	Location *time.Location
	// Lang, when set, is written on every title element.
	Lang string
}

// Encode writes s as an indented UTF-8 XMLTV document: channels in schedule
// order, then programmes grouped by channel in append order.
func Encode(w io.Writer, s *guide.Schedule, opts EncodeOptions) error {
	name := opts.SourceName
	if name == "" {
		name = DefaultSourceName
	}
	tv := &xmlTVRoot{
		XMLName:   xml.Name{Local: "tv"},
		Source:    name,
		Generator: DefaultSourceName,
	}
	for _, c := range s.Channels() {
		tv.Channels = append(tv.Channels, xmlChannel{
			ID:       c.ID,
			Displays: []xmlValue{{Lang: opts.Lang, Value: c.DisplayName}},
		})
	}
	for _, e := range s.Entries() {
		tv.Programmes = append(tv.Programmes, xmlProgramme{
			Start:   FormatTime(e.Start, opts.Location),
			Stop:    FormatTime(e.Stop, opts.Location),
			Channel: e.ChannelID,
			Titles:  []xmlValue{{Lang: opts.Lang, Value: e.Title}},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return fmt.Errorf("xmltv: encode: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return nil
}
