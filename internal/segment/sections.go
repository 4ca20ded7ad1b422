package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// Canonical summary section keys. Everything else normalizes to a custom slug.
const (
	KeyTakeaways        = "key_takeaways"
	KeyDataNumbers      = "data_numbers"
	KeyDecisionsActions = "decisions_actions"
	KeyMain             = "main"
)

type Section struct {
	Key         string
	Title       string
	Items       []string
	SourceIndex int
}

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	itemPattern    = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+(.*)$`)
)

func ParseSummarySections(markdown string) []Section {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")

	var sections []Section
	current := -1

	open := func(title string) {
		key := NormalizeSectionKey(title)
		// Consecutive identical headings merge into one section.
		if current >= 0 && sections[current].Title == title && sections[current].Key == key {
			return
		}
		sections = append(sections, Section{Key: key, Title: title})
		current = len(sections) - 1
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
			open(strings.TrimSpace(m[2]))
			continue
		}

		if m := itemPattern.FindStringSubmatch(trimmed); m != nil {
			item := strings.TrimSpace(m[1])
			if item == "" {
				continue
			}
			if current < 0 {
				open("")
			}
			sections[current].Items = append(sections[current].Items, item)
		}
	}

	kept := sections[:0]
	for _, section := range sections {
		if len(section.Items) == 0 {
			continue
		}
		section.SourceIndex = len(kept)
		kept = append(kept, section)
	}
	return kept
}

var sectionKeywords = []struct {
	key      string
	keywords []string
}{
	{KeyTakeaways, []string{"takeaway", "key point", "key insight", "highlight", "核心观点", "要点", "关键点", "重点"}},
	{KeyDataNumbers, []string{"data", "number", "metric", "figure", "statistic", "数据", "数字", "指标"}},
	{KeyDecisionsActions, []string{"decision", "action", "next step", "todo", "to-do", "决策", "行动", "待办", "决定"}},
	{KeyMain, []string{"summary", "overview", "main", "摘要", "总结", "概要", "概述"}},
}

// NormalizeSectionKey maps a bilingual section title onto a canonical key,
// falling back to custom_<slug> for unrecognized titles.
func NormalizeSectionKey(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return KeyMain
	}

	lower := strings.ToLower(title)
	for _, group := range sectionKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.key
			}
		}
	}

	slug := slugify(lower)
	if slug == "" {
		return KeyMain
	}
	return "custom_" + slug
}

const maxSlugRunes = 40

func slugify(lower string) string {
	var b strings.Builder
	pendingSep := false

	for _, r := range lower {
		keep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || unicode.Is(unicode.Han, r)
		if !keep {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	runes := []rune(b.String())
	if len(runes) > maxSlugRunes {
		runes = runes[:maxSlugRunes]
	}
	return strings.Trim(string(runes), "_")
}
