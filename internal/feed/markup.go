package feed

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// pageSelectors is Selectors compiled to CSS matchers.
type pageSelectors struct {
	channel, channelName, programme, startTime, duration, title cascadia.Selector
}

// Validate reports the first selector that is not valid CSS.
func (s Selectors) Validate() error {
	_, err := s.compile()
	return err
}

// compile parses every selector as CSS. Empty fields take the default.
func (s Selectors) compile() (pageSelectors, error) {
	s = s.withDefaults()
	var (
		out pageSelectors
		err error
	)
	for _, f := range []struct {
		name string
		src  string
		dst  *cascadia.Selector
	}{
		{"channel", s.Channel, &out.channel},
		{"channel_name", s.ChannelName, &out.channelName},
		{"programme", s.Programme, &out.programme},
		{"start_time", s.StartTime, &out.startTime},
		{"duration", s.Duration, &out.duration},
		{"title", s.Title, &out.title},
	} {
		if *f.dst, err = cascadia.Compile(f.src); err != nil {
			return pageSelectors{}, fmt.Errorf("html selector %s %q: %w", f.name, f.src, err)
		}
	}
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text is the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
