package align

import "time"

// Match methods, in cascade order. "missing" marks an unresolved pair.
const (
	MethodTimestampExact = "ts_exact"
	MethodTimestampNear  = "ts_near"
	MethodOrderFallback  = "order_fallback"
	MethodSectionIndex   = "section_index"
	MethodLLM            = "llm"
	MethodMissing        = "missing"
)

// Placeholder fills the absent side of a missing pair so downstream display
// can flag it for manual review.
const Placeholder = "[missing]"

// PayloadVersion is stored in every payload for storage-side migration checks.
const PayloadVersion = 1

type Pair struct {
	Order       int     `json:"order"`
	En          string  `json:"en"`
	Zh          string  `json:"zh"`
	EnTimestamp string  `json:"enTimestamp,omitempty"`
	ZhTimestamp string  `json:"zhTimestamp,omitempty"`
	MatchMethod string  `json:"matchMethod"`
	Confidence  float64 `json:"confidence"`
}

type Stats struct {
	Total      int            `json:"total"`
	Matched    int            `json:"matched"`
	LLMMatched int            `json:"llmMatched"`
	Unmatched  int            `json:"unmatched"`
	Methods    map[string]int `json:"methods"`
}

type FullTextPayload struct {
	Version     int       `json:"version"`
	Pairs       []Pair    `json:"pairs"`
	Stats       Stats     `json:"stats"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type SummarySection struct {
	SectionKey     string `json:"sectionKey"`
	SectionTitleEn string `json:"sectionTitleEn"`
	SectionTitleZh string `json:"sectionTitleZh"`
	Pairs          []Pair `json:"pairs"`
}

type SummaryPayload struct {
	Version     int              `json:"version"`
	Sections    []SummarySection `json:"sections"`
	Stats       Stats            `json:"stats"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Clone returns a deep copy; the LLM fallback mutates copies only.
func (p *FullTextPayload) Clone() *FullTextPayload {
	if p == nil {
		return nil
	}
	out := *p
	out.Pairs = append([]Pair(nil), p.Pairs...)
	out.Stats = cloneStats(p.Stats)
	return &out
}

func (p *SummaryPayload) Clone() *SummaryPayload {
	if p == nil {
		return nil
	}
	out := *p
	out.Sections = make([]SummarySection, len(p.Sections))
	for i, section := range p.Sections {
		section.Pairs = append([]Pair(nil), section.Pairs...)
		out.Sections[i] = section
	}
	out.Stats = cloneStats(p.Stats)
	return &out
}

func cloneStats(s Stats) Stats {
	out := s
	out.Methods = make(map[string]int, len(s.Methods))
	for method, count := range s.Methods {
		out.Methods[method] = count
	}
	return out
}
