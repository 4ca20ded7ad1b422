package llmfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bialign/internal/align"
	"bialign/internal/segment"
)

// Options scope one fallback pass. RawZh is the raw target-language markdown
// the original alignment consumed; it is re-parsed here to rebuild the pool
// of still-unused segments.
type Options struct {
	RawZh      string
	MaxMissing int
	Logger     *slog.Logger
}

// Result reports what the pass did. Attempted > 0 with LLMMatched == 0 is the
// only visible trace of an absorbed resolver failure.
type Result struct {
	Attempted  int
	LLMMatched int
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// ApplyFullText asks the resolver to fill missing full-text pairs from the
// unused Chinese lines. The input payload is never mutated; on success a
// clone with accepted matches and rebuilt stats is returned, on any failure
// the input comes back untouched.
func ApplyFullText(ctx context.Context, resolver Resolver, payload *align.FullTextPayload, opts Options) (*align.FullTextPayload, Result) {
	candidates := fullTextCandidates(payload.Pairs, opts.RawZh)
	batch := missingBatch(payload.Pairs, batchLimit(opts.MaxMissing))
	if len(batch) == 0 || len(candidates) == 0 {
		return payload, Result{}
	}

	matches, ok := resolve(ctx, resolver, batch, candidates, opts.logger())
	if !ok {
		return payload, Result{Attempted: len(batch)}
	}

	out := payload.Clone()
	byOrder := make(map[int]*align.Pair, len(out.Pairs))
	for i := range out.Pairs {
		byOrder[out.Pairs[i].Order] = &out.Pairs[i]
	}

	accepted := applyMatches(matches, byOrder, candidates, requestedOrders(batch))
	out.Stats = align.BuildStats(out.Pairs)
	out.GeneratedAt = time.Now().UTC()
	return out, Result{Attempted: len(batch), LLMMatched: accepted}
}

// ApplySummary is the summary-scoped variant: candidates come from the raw
// Chinese summary and carry their section key, acceptance is keyed by the
// global pair order.
func ApplySummary(ctx context.Context, resolver Resolver, payload *align.SummaryPayload, opts Options) (*align.SummaryPayload, Result) {
	pairs := align.SummaryPairs(payload.Sections)
	candidates := summaryCandidates(pairs, opts.RawZh)
	batch := missingBatch(pairs, batchLimit(opts.MaxMissing))
	if len(batch) == 0 || len(candidates) == 0 {
		return payload, Result{}
	}

	matches, ok := resolve(ctx, resolver, batch, candidates, opts.logger())
	if !ok {
		return payload, Result{Attempted: len(batch)}
	}

	out := payload.Clone()
	byOrder := make(map[int]*align.Pair, len(pairs))
	for s := range out.Sections {
		for i := range out.Sections[s].Pairs {
			pair := &out.Sections[s].Pairs[i]
			byOrder[pair.Order] = pair
		}
	}

	accepted := applyMatches(matches, byOrder, candidates, requestedOrders(batch))
	out.Stats = align.BuildStats(align.SummaryPairs(out.Sections))
	out.GeneratedAt = time.Now().UTC()
	return out, Result{Attempted: len(batch), LLMMatched: accepted}
}

func resolve(ctx context.Context, resolver Resolver, batch []MissingLine, candidates []Candidate, logger *slog.Logger) ([]Match, bool) {
	requestID := uuid.NewString()
	logger.Debug("llm fallback request",
		"request_id", requestID,
		"missing", len(batch),
		"candidates", len(candidates))

	matches, err := resolver.Resolve(ctx, batch, candidates)
	if err != nil {
		logger.Warn("llm fallback absorbed failure",
			"request_id", requestID,
			"error", err)
		return nil, false
	}
	return matches, true
}

// fullTextCandidates rebuilds the unused pool. The deterministic aligner does
// not expose zh parse indices, so consumption is tracked by a (text,
// timestamp) signature counter over the already-matched pairs.
func fullTextCandidates(pairs []align.Pair, rawZh string) []Candidate {
	consumed := consumedSignatures(pairs)

	var candidates []Candidate
	for _, line := range segment.ParseTimestampedLines(rawZh) {
		sig := signature(line.Text, line.Timestamp)
		if consumed[sig] > 0 {
			consumed[sig]--
			continue
		}
		candidates = append(candidates, Candidate{
			ID:        fmt.Sprintf("c%d", line.SourceIndex+1),
			Text:      line.Text,
			Timestamp: line.Timestamp,
		})
	}
	return candidates
}

func summaryCandidates(pairs []align.Pair, rawZh string) []Candidate {
	consumed := consumedSignatures(pairs)

	var candidates []Candidate
	n := 0
	for _, section := range segment.ParseSummarySections(rawZh) {
		for _, item := range section.Items {
			n++
			sig := signature(item, "")
			if consumed[sig] > 0 {
				consumed[sig]--
				continue
			}
			candidates = append(candidates, Candidate{
				ID:      fmt.Sprintf("c%d", n),
				Text:    item,
				Section: section.Key,
			})
		}
	}
	return candidates
}

func consumedSignatures(pairs []align.Pair) map[string]int {
	consumed := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		if pair.Zh == align.Placeholder {
			continue
		}
		consumed[signature(pair.Zh, pair.ZhTimestamp)]++
	}
	return consumed
}

func signature(text, timestamp string) string {
	return text + "\x00" + timestamp
}

func missingBatch(pairs []align.Pair, limit int) []MissingLine {
	var batch []MissingLine
	for _, pair := range pairs {
		if pair.MatchMethod != align.MethodMissing || pair.Zh != align.Placeholder {
			continue
		}
		batch = append(batch, MissingLine{
			Order:       pair.Order,
			En:          pair.En,
			EnTimestamp: pair.EnTimestamp,
		})
		if len(batch) == limit {
			break
		}
	}
	return batch
}

func requestedOrders(batch []MissingLine) map[int]bool {
	orders := make(map[int]bool, len(batch))
	for _, line := range batch {
		orders[line.Order] = true
	}
	return orders
}

// applyMatches merges accepted matches into the cloned pairs. Only orders
// that were actually in the request batch may be filled; other pairs can be
// "missing" too (a surplus Chinese bullet keeps real text on the zh side) and
// must never be overwritten by a stray order in the reply.
func applyMatches(matches []Match, byOrder map[int]*align.Pair, candidates []Candidate, requested map[int]bool) int {
	byID := make(map[string]Candidate, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate
	}

	usedCandidates := make(map[string]bool, len(matches))
	accepted := 0
	for _, match := range matches {
		if !requested[match.Order] {
			continue
		}
		pair, ok := byOrder[match.Order]
		if !ok || pair.MatchMethod != align.MethodMissing {
			continue
		}
		candidate, ok := byID[match.CandidateID]
		if !ok || usedCandidates[match.CandidateID] {
			continue
		}

		usedCandidates[match.CandidateID] = true
		pair.Zh = candidate.Text
		pair.ZhTimestamp = candidate.Timestamp
		pair.MatchMethod = align.MethodLLM
		pair.Confidence = acceptedConfidence(match.Confidence)
		accepted++
	}
	return accepted
}
