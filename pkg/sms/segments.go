package sms

// Encoding names the over-the-air SMS encoding.
type Encoding string

const (
	EncodingGSM7 Encoding = "gsm7"
	EncodingUCS2 Encoding = "ucs2"
)

// Carrier segment thresholds. Single-segment messages fit the full segment;
// multi-segment messages lose room to the concatenation header.
const (
	gsm7SingleLimit = 160
	gsm7MultiLimit  = 153
	ucs2SingleLimit = 70
	ucs2MultiLimit  = 67
)

// gsm7Basic is the GSM 03.38 basic character set: any character outside it
// (and outside the extension table) forces the whole message to UCS-2.
var gsm7Basic = map[rune]struct{}{}

// gsm7Extension characters are still GSM-7 but cost two septets each.
var gsm7Extension = map[rune]struct{}{}

func init() {
	const basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	for _, r := range basic {
		gsm7Basic[r] = struct{}{}
	}
	for _, r := range "^{}\\[~]|€" {
		gsm7Extension[r] = struct{}{}
	}
}

// detectEncoding scans every character: one rune outside the GSM-7 tables
// switches the entire message to the 2-byte encoding.
func detectEncoding(body string) Encoding {
	for _, r := range body {
		if _, ok := gsm7Basic[r]; ok {
			continue
		}
		if _, ok := gsm7Extension[r]; ok {
			continue
		}
		return EncodingUCS2
	}
	return EncodingGSM7
}

// encodedLength returns the billable length of the message in units of its
// encoding: septets for GSM-7 (extension characters count double), runes
// for UCS-2.
func encodedLength(body string, enc Encoding) int {
	if enc == EncodingUCS2 {
		n := 0
		for range body {
			n++
		}
		return n
	}
	n := 0
	for _, r := range body {
		if _, ok := gsm7Extension[r]; ok {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// calculateSegments returns the encoding and carrier segment count for a body.
func calculateSegments(body string) (Encoding, int) {
	enc := detectEncoding(body)
	length := encodedLength(body, enc)
	if length == 0 {
		return enc, 1
	}

	single, multi := gsm7SingleLimit, gsm7MultiLimit
	if enc == EncodingUCS2 {
		single, multi = ucs2SingleLimit, ucs2MultiLimit
	}
	if length <= single {
		return enc, 1
	}
	return enc, (length + multi - 1) / multi
}
