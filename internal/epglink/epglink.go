// Package epglink links secondary guide channels onto primary channel ids by
// deterministic key equality. There is no fuzzy matching.
package epglink

import (
	"fmt"
	"sort"
	"strings"

	"github.com/snapetech/epgmerge/internal/guide"
	"github.com/snapetech/epgmerge/internal/identity"
)

// AliasOverrides maps a normalized secondary channel name to a primary id.
type AliasOverrides struct {
	NameToID map[string]string
}

// Normalized returns a copy with keys normalized and empty pairs dropped.
func (a AliasOverrides) Normalized() AliasOverrides {
	out := AliasOverrides{NameToID: make(map[string]string, len(a.NameToID))}
	for k, v := range a.NameToID {
		nk := identity.Normalize(k)
		nv := identity.Normalize(v)
		if nk == "" || nv == "" {
			continue
		}
		out.NameToID[nk] = nv
	}
	return out
}

// Catalog is an immutable index over the primary feed's channels.
type Catalog struct {
	rules   identity.Rules
	aliases map[string]string
	// exact maps primary ids and normalized display names to an id.
	exact map[string]string
	// base maps suffix-stripped keys to a unique id; "" marks an ambiguous key.
	base map[string]string
	// raw maps trimmed display names that normalize to nothing.
	raw map[string]string
	ids map[string]struct{}
}

// NewCatalog indexes primary channels. Channels with an empty id are ignored.
func NewCatalog(primary []guide.Channel, rules identity.Rules, aliases AliasOverrides) *Catalog {
	c := &Catalog{
		rules:   rules,
		aliases: aliases.Normalized().NameToID,
		exact:   make(map[string]string, len(primary)*2),
		base:    make(map[string]string, len(primary)),
		raw:     make(map[string]string),
		ids:     make(map[string]struct{}, len(primary)),
	}
	for _, ch := range primary {
		if ch.ID == "" {
			continue
		}
		c.ids[ch.ID] = struct{}{}
		// An id always resolves to itself, even if another channel's display
		// name normalizes to the same string.
		c.exact[ch.ID] = ch.ID
	}
	for _, ch := range primary {
		if ch.ID == "" {
			continue
		}
		if nk := identity.Normalize(ch.DisplayName); nk != "" {
			if _, taken := c.exact[nk]; !taken {
				c.exact[nk] = ch.ID
			}
		} else if name := strings.TrimSpace(ch.DisplayName); name != "" {
			if _, taken := c.raw[name]; !taken {
				c.raw[name] = ch.ID
			}
		}
		for _, key := range []string{rules.Key(ch.DisplayName), rules.Key(ch.ID)} {
			if key == "" {
				continue
			}
			if existing, ok := c.base[key]; ok && existing != ch.ID {
				c.base[key] = ""
				continue
			}
			c.base[key] = ch.ID
		}
	}
	return c
}

// Len returns the number of primary channels indexed.
func (c *Catalog) Len() int { return len(c.ids) }

// Has reports whether id is a primary channel id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// Match resolves a secondary channel name to a primary id. The error is
// guide.ErrUnmatchedChannel or guide.ErrAmbiguousChannel when no id is found.
func (c *Catalog) Match(secondaryName string) (string, guide.LinkMethod, error) {
	if nk := identity.Normalize(secondaryName); nk != "" {
		if id, ok := c.exact[nk]; ok {
			return id, guide.LinkExact, nil
		}
		if id, ok := c.aliases[nk]; ok && c.Has(id) {
			return id, guide.LinkAlias, nil
		}
	} else if id, ok := c.raw[strings.TrimSpace(secondaryName)]; ok {
		return id, guide.LinkExact, nil
	}
	key := c.rules.Key(secondaryName)
	if key == "" {
		return "", "", guide.ErrUnmatchedChannel
	}
	if id, ok := c.exact[key]; ok {
		return id, guide.LinkBase, nil
	}
	if id, ok := c.base[key]; ok {
		if id == "" {
			return "", "", guide.ErrAmbiguousChannel
		}
		return id, guide.LinkBase, nil
	}
	return "", "", guide.ErrUnmatchedChannel
}

// Link matches one secondary channel and describes the outcome.
func (c *Catalog) Link(ch guide.FeedChannel) guide.IdentityLink {
	name := ch.Name
	if strings.TrimSpace(name) == "" {
		name = ch.Ref
	}
	link := guide.IdentityLink{SecondaryName: name, SecondaryRef: ch.Ref}
	id, method, err := c.Match(name)
	if err != nil && ch.Ref != "" && ch.Ref != name {
		// Some feeds key channels by a slug that already equals a primary id.
		if rid, rmethod, rerr := c.Match(ch.Ref); rerr == nil {
			id, method, err = rid, rmethod, nil
		}
	}
	if err != nil {
		link.Reason = err.Error()
		return link
	}
	link.PrimaryID, link.Method = id, method
	return link
}

// Report summarizes a set of identity links.
type Report struct {
	Total     int                  `json:"total"`
	Matched   int                  `json:"matched"`
	Unmatched int                  `json:"unmatched"`
	Methods   map[string]int       `json:"methods"`
	Links     []guide.IdentityLink `json:"links"`
}

// NewReport tallies links. Links keep their order.
func NewReport(links []guide.IdentityLink) Report {
	rep := Report{Total: len(links), Methods: map[string]int{}, Links: links}
	for _, l := range links {
		if l.Matched() && l.Method != guide.LinkInserted {
			rep.Matched++
			rep.Methods[string(l.Method)]++
		}
	}
	rep.Unmatched = rep.Total - rep.Matched
	return rep
}

// UnmatchedLinks returns the links that found no primary channel.
func (r Report) UnmatchedLinks() []guide.IdentityLink {
	out := make([]guide.IdentityLink, 0, r.Unmatched)
	for _, l := range r.Links {
		if !l.Matched() || l.Method == guide.LinkInserted {
			out = append(out, l)
		}
	}
	return out
}

func (r Report) SummaryString() string {
	methods := make([]string, 0, len(r.Methods))
	for k := range r.Methods {
		methods = append(methods, k)
	}
	sort.Strings(methods)
	var b strings.Builder
	fmt.Fprintf(&b, "channel links: %d/%d (%.1f%%)", r.Matched, r.Total, pct(r.Matched, r.Total))
	if len(methods) > 0 {
		b.WriteString(" [")
		for i, k := range methods {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%d", k, r.Methods[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

func pct(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) * 100 / float64(b)
}
