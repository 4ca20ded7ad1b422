package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// Line is one transcript segment in parse order. Timestamp is empty when the
// source line carried no recognizable [HH:MM:SS] marker.
type Line struct {
	Timestamp   string
	Text        string
	SourceIndex int
}

var (
	boldTimestampPattern  = regexp.MustCompile(`^\*\*\[(\d{2}:\d{2}:\d{2})\]\*\*\s*(.*)$`)
	plainTimestampPattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\]\s*(.*)$`)
	bulletPrefixPattern   = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	headingPrefixPattern  = regexp.MustCompile(`^#{1,6}\s+`)
	boldWrapPattern       = regexp.MustCompile(`^\*\*(.+)\*\*$`)
)

func ParseTimestampedLines(markdown string) []Line {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")

	var lines []Line
	for _, block := range splitBlocks(markdown) {
		timestamp, text := extractTimestamp(stripLineMarkers(block))
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Timestamp:   timestamp,
			Text:        text,
			SourceIndex: len(lines),
		})
	}
	return lines
}

// splitBlocks separates markdown on blank lines; a block spanning several
// physical lines collapses into a single space-joined segment.
func splitBlocks(markdown string) []string {
	var blocks []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		blocks = append(blocks, strings.Join(current, " "))
		current = current[:0]
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		current = append(current, trimmed)
	}
	flush()
	return blocks
}

func stripLineMarkers(block string) string {
	trimmed := strings.TrimSpace(block)
	trimmed = headingPrefixPattern.ReplaceAllString(trimmed, "")
	trimmed = bulletPrefixPattern.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(trimmed)
}

func extractTimestamp(block string) (timestamp string, text string) {
	if m := boldTimestampPattern.FindStringSubmatch(block); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	if m := plainTimestampPattern.FindStringSubmatch(block); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	if m := boldWrapPattern.FindStringSubmatch(block); m != nil {
		return "", strings.TrimSpace(m[1])
	}
	return "", block
}

// TimestampSeconds converts an HH:MM:SS timestamp to seconds since zero.
// The second return value is false for empty or malformed input.
func TimestampSeconds(timestamp string) (int, bool) {
	parts := strings.Split(timestamp, ":")
	if len(parts) != 3 {
		return 0, false
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
