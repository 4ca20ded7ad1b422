package htmlmd

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// FromHTML converts an HTML transcript or summary export into the markdown
// form the aligner consumes.
func FromHTML(html string) (string, error) {
	markdownText, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", err
	}

	markdownText = strings.ReplaceAll(markdownText, "\r\n", "\n")
	return strings.TrimSpace(markdownText), nil
}
