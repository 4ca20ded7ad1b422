package align

import "strings"

// RenderFullTextMarkdown writes a reviewer-facing bilingual document: English
// line, Chinese line, separator, repeated. Display only; nothing promises the
// output re-parses into the same payload.
func RenderFullTextMarkdown(payload *FullTextPayload) string {
	var b strings.Builder
	for i, pair := range payload.Pairs {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		writeLine(&b, pair.EnTimestamp, pair.En)
		writeLine(&b, pair.ZhTimestamp, pair.Zh)
	}
	return b.String()
}

func RenderSummaryMarkdown(payload *SummaryPayload) string {
	var b strings.Builder
	for i, section := range payload.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(sectionHeading(section))
		b.WriteString("\n\n")
		for _, pair := range section.Pairs {
			b.WriteString("- ")
			b.WriteString(pair.En)
			b.WriteString("\n- ")
			b.WriteString(pair.Zh)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func writeLine(b *strings.Builder, timestamp, text string) {
	if timestamp != "" {
		b.WriteString("**[")
		b.WriteString(timestamp)
		b.WriteString("]** ")
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}

func sectionHeading(section SummarySection) string {
	en := strings.TrimSpace(section.SectionTitleEn)
	zh := strings.TrimSpace(section.SectionTitleZh)
	switch {
	case en != "" && zh != "":
		return en + " / " + zh
	case en != "":
		return en
	case zh != "":
		return zh
	default:
		return section.SectionKey
	}
}
