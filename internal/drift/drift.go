// Package drift estimates the systematic clock offset between two guide
// feeds for one channel by pairing programmes with identical titles.
//
// The estimate is the mode of the paired start-time deltas, accepted only
// when every sample lies within a fixed tolerance of the mode. A single
// outlier voids the correction for the whole channel.
package drift

import (
	"time"

	"github.com/snapetech/epgmerge/internal/guide"
)

// DefaultTolerance is the maximum distance of any sample from the mode.
const DefaultTolerance = 2 * time.Minute

// Policy tunes the acceptance test.
type Policy struct {
	Tolerance time.Duration
}

// DefaultPolicy returns the two-minute tolerance policy.
func DefaultPolicy() Policy {
	return Policy{Tolerance: DefaultTolerance}
}

func (p Policy) toleranceMinutes() int {
	if p.Tolerance <= 0 {
		return int(DefaultTolerance / time.Minute)
	}
	return int(p.Tolerance / time.Minute)
}

// Samples pairs each secondary entry with the first primary entry carrying an
// identical title and returns secondary.Start - primary.Start in whole
// minutes, truncated toward zero. Entries on other channels are ignored when
// channelID is set.
func Samples(channelID string, primary, secondary []guide.ProgramEntry) []int {
	firstByTitle := make(map[string]time.Time, len(primary))
	for _, p := range primary {
		if channelID != "" && p.ChannelID != channelID {
			continue
		}
		if _, seen := firstByTitle[p.Title]; !seen {
			firstByTitle[p.Title] = p.Start
		}
	}
	if len(firstByTitle) == 0 {
		return nil
	}
	var deltas []int
	for _, s := range secondary {
		if channelID != "" && s.ChannelID != channelID {
			continue
		}
		start, ok := firstByTitle[s.Title]
		if !ok {
			continue
		}
		deltas = append(deltas, int(s.Start.Sub(start)/time.Minute))
	}
	return deltas
}

// Mode returns the most frequent value. Ties go to the value closest to zero,
// then to the smaller value, so the result does not depend on sample order.
// ok is false for an empty slice.
func Mode(samples []int) (mode int, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}
	counts := make(map[int]int, len(samples))
	for _, v := range samples {
		counts[v]++
	}
	best, bestCount := 0, 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && closerToZero(v, best)) {
			best, bestCount = v, n
		}
	}
	return best, true
}

func closerToZero(a, b int) bool {
	aa, ab := abs(a), abs(b)
	if aa != ab {
		return aa < ab
	}
	return a < b
}

// Consistent reports whether every sample lies within tol of center.
func Consistent(samples []int, center, tol int) bool {
	for _, v := range samples {
		if abs(v-center) > tol {
			return false
		}
	}
	return true
}

// Estimate computes the drift for one channel from already collected samples.
func Estimate(channelID string, samples []int, policy Policy) guide.DriftEstimate {
	est := guide.DriftEstimate{ChannelID: channelID, SampleCount: len(samples)}
	mode, ok := Mode(samples)
	if !ok {
		est.Reason = guide.ErrInsufficientDriftSamples
		return est
	}
	est.OffsetMinutes = mode
	if !Consistent(samples, mode, policy.toleranceMinutes()) {
		est.Reason = guide.ErrInconsistentDrift
		return est
	}
	est.Accepted = true
	return est
}

// EstimateEntries collects samples for channelID and estimates its drift.
func EstimateEntries(channelID string, primary, secondary []guide.ProgramEntry, policy Policy) guide.DriftEstimate {
	return Estimate(channelID, Samples(channelID, primary, secondary), policy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
