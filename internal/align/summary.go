package align

import (
	"time"

	"bialign/internal/segment"
)

const confidenceSectionIndex = 0.9

var canonicalKeys = []string{
	segment.KeyTakeaways,
	segment.KeyDataNumbers,
	segment.KeyDecisionsActions,
}

// BuildSummaryPayload pairs summary bullets section by section: the canonical
// categories first (matched by normalized key across languages), then the
// remaining sections zipped positionally. A single order counter runs across
// every emitted pair.
func BuildSummaryPayload(markdownEn, markdownZh string) *SummaryPayload {
	enSections := segment.ParseSummarySections(markdownEn)
	zhSections := segment.ParseSummarySections(markdownZh)

	enUsed := make([]bool, len(enSections))
	zhUsed := make([]bool, len(zhSections))

	order := 0
	var sections []SummarySection

	emit := func(en, zh *segment.Section) {
		section := SummarySection{}
		switch {
		case en != nil:
			section.SectionKey = en.Key
			section.SectionTitleEn = en.Title
		case zh != nil:
			section.SectionKey = zh.Key
		}
		if zh != nil {
			section.SectionTitleZh = zh.Title
		}

		var enItems, zhItems []string
		if en != nil {
			enItems = en.Items
		}
		if zh != nil {
			zhItems = zh.Items
		}

		for i := 0; i < len(enItems) || i < len(zhItems); i++ {
			order++
			pair := Pair{Order: order}
			switch {
			case i < len(enItems) && i < len(zhItems):
				pair.En = enItems[i]
				pair.Zh = zhItems[i]
				pair.MatchMethod = MethodSectionIndex
				pair.Confidence = confidenceSectionIndex
			case i < len(enItems):
				pair.En = enItems[i]
				pair.Zh = Placeholder
				pair.MatchMethod = MethodMissing
			default:
				pair.En = Placeholder
				pair.Zh = zhItems[i]
				pair.MatchMethod = MethodMissing
			}
			section.Pairs = append(section.Pairs, pair)
		}

		if len(section.Pairs) > 0 {
			sections = append(sections, section)
		}
	}

	for _, key := range canonicalKeys {
		en := takeSection(enSections, enUsed, key)
		zh := takeSection(zhSections, zhUsed, key)
		if en == nil && zh == nil {
			continue
		}
		emit(en, zh)
	}

	// Leftover sections from each side pair up by leftover order alone.
	enRest := remaining(enSections, enUsed)
	zhRest := remaining(zhSections, zhUsed)
	for i := 0; i < len(enRest) || i < len(zhRest); i++ {
		var en, zh *segment.Section
		if i < len(enRest) {
			en = enRest[i]
		}
		if i < len(zhRest) {
			zh = zhRest[i]
		}
		emit(en, zh)
	}

	return &SummaryPayload{
		Version:     PayloadVersion,
		Sections:    sections,
		Stats:       BuildStats(SummaryPairs(sections)),
		GeneratedAt: time.Now().UTC(),
	}
}

func takeSection(sections []segment.Section, used []bool, key string) *segment.Section {
	for i := range sections {
		if used[i] || sections[i].Key != key {
			continue
		}
		used[i] = true
		return &sections[i]
	}
	return nil
}

func remaining(sections []segment.Section, used []bool) []*segment.Section {
	var rest []*segment.Section
	for i := range sections {
		if used[i] {
			continue
		}
		used[i] = true
		rest = append(rest, &sections[i])
	}
	return rest
}
