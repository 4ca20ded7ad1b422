package align

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var validMethods = map[string]bool{
	MethodTimestampExact: true,
	MethodTimestampNear:  true,
	MethodOrderFallback:  true,
	MethodSectionIndex:   true,
	MethodLLM:            true,
	MethodMissing:        true,
}

// NormalizeFullTextPayload rehydrates a persisted payload that may be
// double-encoded or partially corrupted. Unparseable pairs are dropped,
// order and stats are recomputed from what survives.
func NormalizeFullTextPayload(raw []byte) (*FullTextPayload, error) {
	raw, err := unwrapJSON(raw)
	if err != nil {
		return nil, err
	}

	var stored struct {
		Pairs       []json.RawMessage `json:"pairs"`
		GeneratedAt time.Time         `json:"generatedAt"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.New("payload is not a JSON object")
	}

	pairs := normalizePairs(stored.Pairs)
	return &FullTextPayload{
		Version:     PayloadVersion,
		Pairs:       pairs,
		Stats:       BuildStats(pairs),
		GeneratedAt: storedTime(stored.GeneratedAt),
	}, nil
}

func NormalizeSummaryPayload(raw []byte) (*SummaryPayload, error) {
	raw, err := unwrapJSON(raw)
	if err != nil {
		return nil, err
	}

	var stored struct {
		Sections    []json.RawMessage `json:"sections"`
		GeneratedAt time.Time         `json:"generatedAt"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.New("payload is not a JSON object")
	}

	order := 0
	var sections []SummarySection
	for _, rawSection := range stored.Sections {
		var section struct {
			SectionKey     string            `json:"sectionKey"`
			SectionTitleEn string            `json:"sectionTitleEn"`
			SectionTitleZh string            `json:"sectionTitleZh"`
			Pairs          []json.RawMessage `json:"pairs"`
		}
		if err := json.Unmarshal(rawSection, &section); err != nil {
			continue
		}
		pairs := normalizePairs(section.Pairs)
		if len(pairs) == 0 {
			continue
		}
		for i := range pairs {
			order++
			pairs[i].Order = order
		}
		sections = append(sections, SummarySection{
			SectionKey:     section.SectionKey,
			SectionTitleEn: section.SectionTitleEn,
			SectionTitleZh: section.SectionTitleZh,
			Pairs:          pairs,
		})
	}

	return &SummaryPayload{
		Version:     PayloadVersion,
		Sections:    sections,
		Stats:       BuildStats(SummaryPairs(sections)),
		GeneratedAt: storedTime(stored.GeneratedAt),
	}, nil
}

// unwrapJSON tolerates payloads persisted as JSON strings (double encoding).
func unwrapJSON(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errors.New("empty payload")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, errors.New("payload string is not valid JSON")
		}
		trimmed = strings.TrimSpace(inner)
	}
	return []byte(trimmed), nil
}

func normalizePairs(raw []json.RawMessage) []Pair {
	pairs := make([]Pair, 0, len(raw))
	for _, rawPair := range raw {
		var pair Pair
		if err := json.Unmarshal(rawPair, &pair); err != nil {
			continue
		}
		if !validMethods[pair.MatchMethod] {
			continue
		}
		if pair.En == "" && pair.Zh == "" {
			continue
		}
		pair.Confidence = clamp(pair.Confidence, 0, 1)
		if pair.MatchMethod == MethodMissing {
			pair.Confidence = 0
			if pair.Zh == "" {
				pair.Zh = Placeholder
			}
		}
		pair.Order = len(pairs) + 1
		pairs = append(pairs, pair)
	}
	return pairs
}

func storedTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
