package segment

import "testing"

func TestParseTimestampedLinesCanonicalizesBothForms(t *testing.T) {
	t.Parallel()

	lines := ParseTimestampedLines("**[00:00:02]** Hello there.\n\n[00:00:09] Second line.")
	if len(lines) != 2 {
		t.Fatalf("lines len = %d, want 2", len(lines))
	}
	if lines[0].Timestamp != "00:00:02" || lines[0].Text != "Hello there." {
		t.Fatalf("line 0 = %+v", lines[0])
	}
	if lines[1].Timestamp != "00:00:09" || lines[1].Text != "Second line." {
		t.Fatalf("line 1 = %+v", lines[1])
	}
	if lines[0].SourceIndex != 0 || lines[1].SourceIndex != 1 {
		t.Fatalf("source indexes = %d, %d, want 0, 1", lines[0].SourceIndex, lines[1].SourceIndex)
	}
}

func TestParseTimestampedLinesKeepsUntimestampedText(t *testing.T) {
	t.Parallel()

	lines := ParseTimestampedLines("- plain bullet line\n\n# Heading text\n\n**Speaker change**")
	if len(lines) != 3 {
		t.Fatalf("lines len = %d, want 3", len(lines))
	}
	want := []string{"plain bullet line", "Heading text", "Speaker change"}
	for i, text := range want {
		if lines[i].Timestamp != "" {
			t.Fatalf("line %d timestamp = %q, want empty", i, lines[i].Timestamp)
		}
		if lines[i].Text != text {
			t.Fatalf("line %d text = %q, want %q", i, lines[i].Text, text)
		}
	}
}

func TestParseTimestampedLinesJoinsBlockLines(t *testing.T) {
	t.Parallel()

	lines := ParseTimestampedLines("**[00:00:01]** first half\ncontinues here\n\nnext block")
	if len(lines) != 2 {
		t.Fatalf("lines len = %d, want 2", len(lines))
	}
	if lines[0].Text != "first half continues here" {
		t.Fatalf("joined text = %q", lines[0].Text)
	}
	if lines[1].Text != "next block" {
		t.Fatalf("second block = %q", lines[1].Text)
	}
}

func TestParseTimestampedLinesDropsBlankResults(t *testing.T) {
	t.Parallel()

	if lines := ParseTimestampedLines("   \n\n\t\n\n- \n"); len(lines) != 0 {
		t.Fatalf("lines = %+v, want none", lines)
	}
}

func TestTimestampSeconds(t *testing.T) {
	t.Parallel()

	if got, ok := TimestampSeconds("00:01:05"); !ok || got != 65 {
		t.Fatalf("TimestampSeconds(00:01:05) = %d, %v", got, ok)
	}
	if got, ok := TimestampSeconds("01:00:00"); !ok || got != 3600 {
		t.Fatalf("TimestampSeconds(01:00:00) = %d, %v", got, ok)
	}
	for _, bad := range []string{"", "00:01", "aa:bb:cc", "00:-1:00"} {
		if _, ok := TimestampSeconds(bad); ok {
			t.Fatalf("TimestampSeconds(%q) ok = true, want false", bad)
		}
	}
}
