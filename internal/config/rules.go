package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snapetech/epgmerge/internal/epglink"
	"github.com/snapetech/epgmerge/internal/feed"
	"github.com/snapetech/epgmerge/internal/identity"
)

// RulesFile is the YAML identity rules document:
//
//	suffixes: [plus, max]      # added to the built-in set
//	replace_suffixes: false    # true: use only the listed suffixes
//	aliases:
//	  "TRT 1 Yedek": trt1
//	html:
//	  channel: div.swiper-slide.channelContent
type RulesFile struct {
	Suffixes        []string          `yaml:"suffixes"`
	ReplaceSuffixes bool              `yaml:"replace_suffixes"`
	Aliases         map[string]string `yaml:"aliases"`
	HTML            feed.Selectors    `yaml:"html"`
}

// Rules is a resolved RulesFile.
type Rules struct {
	Identity  identity.Rules
	Aliases   epglink.AliasOverrides
	Selectors feed.Selectors
}

// DefaultRulesSet is what runs without a rules file use.
func DefaultRulesSet() Rules {
	return Rules{Identity: identity.DefaultRules(), Selectors: feed.DefaultSelectors()}
}

// LoadRules reads a rules file. An empty path returns DefaultRulesSet.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRulesSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a rules document. Unknown keys are rejected so typos do
// not silently disable a rule.
func ParseRules(data []byte) (Rules, error) {
	var rf RulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, fmt.Errorf("rules file: %w", err)
	}
	r := DefaultRulesSet()
	if rf.ReplaceSuffixes {
		r.Identity = identity.NewRules(rf.Suffixes...)
	} else if len(rf.Suffixes) > 0 {
		r.Identity = r.Identity.With(rf.Suffixes...)
	}
	r.Aliases = epglink.AliasOverrides{NameToID: rf.Aliases}.Normalized()
	r.Selectors = mergeSelectors(r.Selectors, rf.HTML)
	if err := r.Selectors.Validate(); err != nil {
		return Rules{}, fmt.Errorf("rules file: %w", err)
	}
	return r, nil
}

func mergeSelectors(base, over feed.Selectors) feed.Selectors {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return feed.Selectors{
		Channel:     pick(base.Channel, over.Channel),
		ChannelName: pick(base.ChannelName, over.ChannelName),
		Programme:   pick(base.Programme, over.Programme),
		StartTime:   pick(base.StartTime, over.StartTime),
		Duration:    pick(base.Duration, over.Duration),
		Title:       pick(base.Title, over.Title),
	}
}
