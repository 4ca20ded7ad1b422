package align

import (
	"strings"
	"testing"
)

func TestRenderFullTextMarkdown(t *testing.T) {
	t.Parallel()

	payload := BuildFullTextPayload(
		"**[00:00:02]** A.\n\n**[00:00:09]** B.",
		"**[00:00:02]** 甲。",
		Options{},
	)

	out := RenderFullTextMarkdown(payload)
	if !strings.Contains(out, "**[00:00:02]** A.") {
		t.Fatalf("render missing English line:\n%s", out)
	}
	if !strings.Contains(out, "**[00:00:02]** 甲。") {
		t.Fatalf("render missing Chinese line:\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Fatalf("render missing separator:\n%s", out)
	}
	if !strings.Contains(out, Placeholder) {
		t.Fatalf("render missing placeholder for unmatched pair:\n%s", out)
	}
}

func TestRenderSummaryMarkdown(t *testing.T) {
	t.Parallel()

	payload := BuildSummaryPayload(summaryEn, summaryZh)
	out := RenderSummaryMarkdown(payload)

	if !strings.Contains(out, "## Key Takeaways / 核心观点") {
		t.Fatalf("render missing bilingual heading:\n%s", out)
	}
	if !strings.Contains(out, "- first point\n- 第一点") {
		t.Fatalf("render missing paired bullets:\n%s", out)
	}
}
