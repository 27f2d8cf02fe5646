package email

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	hrefRegex      = regexp.MustCompile(`href="(https?://[^"]+)"`)
	closeBodyRegex = regexp.MustCompile(`(?i)</body>`)
)

// rewriteLinks routes every http(s) link in the HTML body through the
// click-tracking redirect. Links already pointing at the tracking host are
// left alone so a double pass stays idempotent.
func rewriteLinks(htmlBody, baseURL, notificationID string) string {
	return hrefRegex.ReplaceAllStringFunc(htmlBody, func(match string) string {
		target := hrefRegex.FindStringSubmatch(match)[1]
		if strings.HasPrefix(target, baseURL) {
			return match
		}
		return fmt.Sprintf(`href="%s/t/click/%s?url=%s"`, baseURL, notificationID, url.QueryEscape(target))
	})
}

// injectOpenPixel inserts a 1x1 open-tracking pixel immediately before the
// closing body tag. Bodies without </body> get the pixel appended.
func injectOpenPixel(htmlBody, baseURL, notificationID string) string {
	pixel := fmt.Sprintf(`<img src="%s/t/open/%s" width="1" height="1" alt="" style="display:none">`, baseURL, notificationID)
	if loc := closeBodyRegex.FindStringIndex(htmlBody); loc != nil {
		return htmlBody[:loc[0]] + pixel + htmlBody[loc[0]:]
	}
	return htmlBody + pixel
}

// appendUnsubscribeLink adds the unsubscribe footer before the closing body
// tag, or at the end when the body has none.
func appendUnsubscribeLink(htmlBody, baseURL, recipient string) string {
	footer := fmt.Sprintf(`<p><a href="%s/unsubscribe?recipient=%s">Unsubscribe</a></p>`, baseURL, url.QueryEscape(recipient))
	if loc := closeBodyRegex.FindStringIndex(htmlBody); loc != nil {
		return htmlBody[:loc[0]] + footer + htmlBody[loc[0]:]
	}
	return htmlBody + footer
}
