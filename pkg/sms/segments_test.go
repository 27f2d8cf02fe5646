package sms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantEnc  Encoding
		wantSegs int
	}{
		{"empty body bills one segment", "", EncodingGSM7, 1},
		{"gsm7 at single limit", strings.Repeat("a", 160), EncodingGSM7, 1},
		{"gsm7 one over single limit", strings.Repeat("a", 161), EncodingGSM7, 2},
		{"gsm7 at two-segment boundary", strings.Repeat("a", 306), EncodingGSM7, 2},
		{"gsm7 one over two segments", strings.Repeat("a", 307), EncodingGSM7, 3},
		{"ucs2 at single limit", strings.Repeat("é", 69) + "漢", EncodingUCS2, 1},
		{"ucs2 one over single limit", strings.Repeat("漢", 71), EncodingUCS2, 2},
		{"one non-gsm rune flips the whole message", strings.Repeat("a", 100) + "漢", EncodingUCS2, 2},
		{"accented gsm7 chars stay gsm7", "èéùìòÇØøÅå", EncodingGSM7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, segs := calculateSegments(tt.body)
			assert.Equal(t, tt.wantEnc, enc)
			assert.Equal(t, tt.wantSegs, segs)
		})
	}

	t.Run("extension chars cost two septets", func(t *testing.T) {
		// 80 euro signs encode to 160 septets: still one segment.
		enc, segs := calculateSegments(strings.Repeat("€", 80))
		assert.Equal(t, EncodingGSM7, enc)
		assert.Equal(t, 1, segs)

		// One more tips over into concatenation.
		_, segs = calculateSegments(strings.Repeat("€", 81))
		assert.Equal(t, 2, segs)
	})
}

func TestDetectEncoding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, EncodingGSM7, detectEncoding("Hello, world! 123 @£$¥"))
	assert.Equal(t, EncodingGSM7, detectEncoding("braces {and} pipes | are gsm7 extension"))
	assert.Equal(t, EncodingUCS2, detectEncoding("emoji \U0001F600"))
	assert.Equal(t, EncodingUCS2, detectEncoding("curly quote ’"))
}
