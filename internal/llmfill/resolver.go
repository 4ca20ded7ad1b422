// Package llmfill fills "missing" alignment pairs through a narrow,
// validated request to an external language model. Everything that can go
// wrong on that path is absorbed: callers always get a usable payload back.
package llmfill

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"
)

// MaxBatch is the hard cap on missing pairs sent in one resolution request.
const MaxBatch = 20

const (
	defaultConfidence = 0.75
	minConfidence     = 0.55
	maxConfidence     = 0.98
)

// MissingLine is one unresolved pair as presented to the model.
type MissingLine struct {
	Order       int    `json:"order"`
	En          string `json:"en"`
	EnTimestamp string `json:"enTimestamp,omitempty"`
}

// Candidate is one unused target-language segment the model may pick from.
type Candidate struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
	Section   string `json:"section,omitempty"`
}

// Match is one accepted (order, candidate) pairing from the model reply.
// Confidence is nil when the reply omitted it.
type Match struct {
	Order       int
	CandidateID string
	Confidence  *float64
}

// Resolver is the single seam to the language model: one request, one reply.
// Production binds it to an HTTP client; tests bind canned implementations.
type Resolver interface {
	Resolve(ctx context.Context, missing []MissingLine, candidates []Candidate) ([]Match, error)
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

// ParseMatches decodes a model reply into matches. It tries the raw text as
// JSON first, then the first fenced code block, then the widest {...}
// substring. Entries with a non-positive or non-finite order or an empty
// candidate id are dropped rather than failing the whole reply.
func ParseMatches(reply string) ([]Match, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, errors.New("empty model reply")
	}

	if matches, err := decodeMatches(reply); err == nil {
		return matches, nil
	}

	if m := fencedBlockPattern.FindStringSubmatch(reply); m != nil {
		if matches, err := decodeMatches(strings.TrimSpace(m[1])); err == nil {
			return matches, nil
		}
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		if matches, err := decodeMatches(reply[start : end+1]); err == nil {
			return matches, nil
		}
	}

	return nil, errors.New("model reply is not parseable as a matches object")
}

func decodeMatches(text string) ([]Match, error) {
	var reply struct {
		Matches []struct {
			Order       float64  `json:"order"`
			CandidateID string   `json:"candidateId"`
			Confidence  *float64 `json:"confidence"`
		} `json:"matches"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return nil, err
	}
	if reply.Matches == nil {
		return nil, errors.New("missing matches array")
	}

	matches := make([]Match, 0, len(reply.Matches))
	for _, entry := range reply.Matches {
		if math.IsNaN(entry.Order) || math.IsInf(entry.Order, 0) || entry.Order < 1 {
			continue
		}
		id := strings.TrimSpace(entry.CandidateID)
		if id == "" {
			continue
		}
		confidence := entry.Confidence
		if confidence != nil && (math.IsNaN(*confidence) || math.IsInf(*confidence, 0)) {
			confidence = nil
		}
		matches = append(matches, Match{
			Order:       int(entry.Order),
			CandidateID: id,
			Confidence:  confidence,
		})
	}
	return matches, nil
}

func acceptedConfidence(c *float64) float64 {
	v := defaultConfidence
	if c != nil {
		v = *c
	}
	if v < minConfidence {
		return minConfidence
	}
	if v > maxConfidence {
		return maxConfidence
	}
	return v
}

func batchLimit(maxMissing int) int {
	if maxMissing <= 0 || maxMissing > MaxBatch {
		return MaxBatch
	}
	return maxMissing
}
