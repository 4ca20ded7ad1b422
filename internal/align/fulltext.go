package align

import (
	"time"

	"bialign/internal/segment"
)

const (
	defaultNearWindowSec = 12

	confidenceExact    = 0.98
	confidenceNearMax  = 0.92
	confidenceNearMin  = 0.70
	confidenceFallback = 0.56
)

type Options struct {
	// NearWindowSec is the maximum timestamp delta, in seconds, accepted by
	// the near-timestamp strategy. Defaults to 12.
	NearWindowSec int
}

func (o Options) nearWindow() int {
	if o.NearWindowSec <= 0 {
		return defaultNearWindowSec
	}
	return o.NearWindowSec
}

// candidate is the result of one matching strategy: a zh parse index plus the
// method tag and confidence it was found with.
type candidate struct {
	index      int
	method     string
	confidence float64
}

// BuildFullTextPayload pairs every English transcript line with at most one
// Chinese line via a cascade of strategies: exact timestamp, near timestamp,
// then positional fallback. Lines that exhaust the cascade come back as
// "missing" with a placeholder. The cursor only ever advances, so no Chinese
// line is used twice and fallback matches stay in causal order.
func BuildFullTextPayload(markdownEn, markdownZh string, opts Options) *FullTextPayload {
	enLines := segment.ParseTimestampedLines(markdownEn)
	zhLines := segment.ParseTimestampedLines(markdownZh)

	used := make([]bool, len(zhLines))
	cursor := 0
	window := opts.nearWindow()

	pairs := make([]Pair, 0, len(enLines))
	for i, en := range enLines {
		pair := Pair{
			Order:       i + 1,
			En:          en.Text,
			EnTimestamp: en.Timestamp,
		}

		match, ok := findExactTimestamp(en, zhLines, used, cursor)
		if !ok {
			match, ok = findNearTimestamp(en, zhLines, used, cursor, window)
		}
		if !ok {
			match, ok = findOrderFallback(zhLines, used, cursor)
		}

		if ok {
			zh := zhLines[match.index]
			pair.Zh = zh.Text
			pair.ZhTimestamp = zh.Timestamp
			pair.MatchMethod = match.method
			pair.Confidence = match.confidence
			used[match.index] = true
			cursor = match.index + 1
		} else {
			pair.Zh = Placeholder
			pair.MatchMethod = MethodMissing
			pair.Confidence = 0
		}

		pairs = append(pairs, pair)
	}

	return &FullTextPayload{
		Version:     PayloadVersion,
		Pairs:       pairs,
		Stats:       BuildStats(pairs),
		GeneratedAt: time.Now().UTC(),
	}
}

func findExactTimestamp(en segment.Line, zhLines []segment.Line, used []bool, cursor int) (candidate, bool) {
	if en.Timestamp == "" {
		return candidate{}, false
	}
	for i := cursor; i < len(zhLines); i++ {
		if used[i] || zhLines[i].Timestamp == "" {
			continue
		}
		if zhLines[i].Timestamp == en.Timestamp {
			return candidate{index: i, method: MethodTimestampExact, confidence: confidenceExact}, true
		}
	}
	return candidate{}, false
}

func findNearTimestamp(en segment.Line, zhLines []segment.Line, used []bool, cursor, window int) (candidate, bool) {
	enSec, ok := segment.TimestampSeconds(en.Timestamp)
	if !ok {
		return candidate{}, false
	}

	bestIndex := -1
	bestDelta := 0
	for i := cursor; i < len(zhLines); i++ {
		if used[i] {
			continue
		}
		zhSec, ok := segment.TimestampSeconds(zhLines[i].Timestamp)
		if !ok {
			continue
		}
		delta := enSec - zhSec
		if delta < 0 {
			delta = -delta
		}
		if delta > window {
			continue
		}
		if bestIndex < 0 || delta < bestDelta {
			bestIndex = i
			bestDelta = delta
		}
	}
	if bestIndex < 0 {
		return candidate{}, false
	}

	confidence := confidenceNearMax - (float64(bestDelta)/float64(window))*0.22
	return candidate{
		index:      bestIndex,
		method:     MethodTimestampNear,
		confidence: clamp(confidence, confidenceNearMin, confidenceNearMax),
	}, true
}

func findOrderFallback(zhLines []segment.Line, used []bool, cursor int) (candidate, bool) {
	for i := cursor; i < len(zhLines); i++ {
		if used[i] {
			continue
		}
		return candidate{index: i, method: MethodOrderFallback, confidence: confidenceFallback}, true
	}
	return candidate{}, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
