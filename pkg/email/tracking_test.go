package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const trackingBase = "https://track.example.com"

func TestRewriteLinks(t *testing.T) {
	t.Parallel()

	t.Run("rewrites external links", func(t *testing.T) {
		in := `<a href="https://shop.example.com/item?id=1">buy</a>`
		out := rewriteLinks(in, trackingBase, "n1")
		assert.Contains(t, out, trackingBase+"/t/click/n1?url=")
		assert.Contains(t, out, "https%3A%2F%2Fshop.example.com%2Fitem%3Fid%3D1")
		assert.NotContains(t, out, `href="https://shop.example.com`)
	})

	t.Run("rewrites every link", func(t *testing.T) {
		in := `<a href="https://a.example.com">a</a><a href="http://b.example.com">b</a>`
		out := rewriteLinks(in, trackingBase, "n1")
		assert.Equal(t, 2, strings.Count(out, trackingBase+"/t/click/n1"))
	})

	t.Run("tracking links survive a double pass", func(t *testing.T) {
		in := `<a href="https://shop.example.com">buy</a>`
		once := rewriteLinks(in, trackingBase, "n1")
		twice := rewriteLinks(once, trackingBase, "n1")
		assert.Equal(t, once, twice)
	})

	t.Run("non-http hrefs untouched", func(t *testing.T) {
		in := `<a href="mailto:hi@example.com">mail</a>`
		assert.Equal(t, in, rewriteLinks(in, trackingBase, "n1"))
	})
}

func TestInjectOpenPixel(t *testing.T) {
	t.Parallel()

	t.Run("inserts before closing body tag", func(t *testing.T) {
		in := `<html><body><p>hi</p></body></html>`
		out := injectOpenPixel(in, trackingBase, "n1")
		assert.Equal(t, 1, strings.Count(out, "/t/open/n1"))
		pixelAt := strings.Index(out, "<img")
		bodyAt := strings.Index(out, "</body>")
		assert.Less(t, pixelAt, bodyAt, "pixel must precede </body>")
	})

	t.Run("case-insensitive body tag", func(t *testing.T) {
		in := `<HTML><BODY>hi</BODY></HTML>`
		out := injectOpenPixel(in, trackingBase, "n1")
		assert.Contains(t, out, "/t/open/n1")
		assert.Less(t, strings.Index(out, "<img"), strings.Index(out, "</BODY>"))
	})

	t.Run("appends when no body tag", func(t *testing.T) {
		out := injectOpenPixel("<p>hi</p>", trackingBase, "n1")
		assert.True(t, strings.HasSuffix(out, `style="display:none">`))
	})
}

func TestAppendUnsubscribeLink(t *testing.T) {
	t.Parallel()

	out := appendUnsubscribeLink(`<body><p>hi</p></body>`, trackingBase, "user+tag@example.com")
	assert.Equal(t, 1, strings.Count(out, "/unsubscribe?recipient="))
	assert.Contains(t, out, "user%2Btag%40example.com")
	assert.Less(t, strings.Index(out, "Unsubscribe"), strings.Index(out, "</body>"))
}

func TestTextToHTML(t *testing.T) {
	t.Parallel()

	t.Run("paragraphs and line breaks", func(t *testing.T) {
		out := textToHTML("line one\nline two\n\nsecond para")
		assert.Contains(t, out, "<p>line one<br>line two</p>")
		assert.Contains(t, out, "<p>second para</p>")
	})

	t.Run("escapes markup", func(t *testing.T) {
		out := textToHTML("<script>alert(1)</script>")
		assert.NotContains(t, out, "<script>")
		assert.Contains(t, out, "&lt;script&gt;")
	})
}

func TestIsPermanentFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"smtp 550", &ProviderError{StatusCode: 550, Reason: "mailbox gone"}, true},
		{"smtp 554", &ProviderError{StatusCode: 554, Reason: "rejected"}, true},
		{"postmark inactive recipient", &ProviderError{StatusCode: 406, Reason: "inactive"}, true},
		{"reason substring", &ProviderError{StatusCode: 400, Reason: "User Unknown at this host"}, true},
		{"transient 4xx", &ProviderError{StatusCode: 421, Reason: "try again later"}, false},
		{"non-provider error", assert.AnError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPermanentFailure(tt.err))
		})
	}
}
