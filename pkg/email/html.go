package email

import (
	"html"
	"strings"
)

// textToHTML converts a plain-text message into a minimal HTML document:
// paragraphs on blank lines, <br> on single newlines, everything escaped.
// Used as the fallback when no template provided an HTML body.
func textToHTML(text string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		sb.WriteString("</p>")
	}
	sb.WriteString("</body></html>")
	return sb.String()
}
