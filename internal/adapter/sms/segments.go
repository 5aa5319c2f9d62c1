package sms

import (
	"gateway/internal/constants"
)

type Encoding string

const (
	EncodingGSM7    Encoding = "GSM7"
	EncodingUnicode Encoding = "UCS2"
)

// gsm7Basic is the GSM 03.38 basic character set. Anything outside it forces
// the whole message into UCS-2.
var gsm7Basic = func() map[rune]bool {
	set := make(map[rune]bool)
	for _, r := range "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà" {
		set[r] = true
	}
	return set
}()

// gsm7Extension characters are sent as an escape pair and count as two.
var gsm7Extension = map[rune]bool{
	'^': true, '{': true, '}': true, '\\': true,
	'[': true, ']': true, '~': true, '|': true, '€': true,
}

// DetectEncoding returns the wire encoding the provider will use for the
// text.
func DetectEncoding(text string) Encoding {
	for _, r := range text {
		if !gsm7Basic[r] && !gsm7Extension[r] {
			return EncodingUnicode
		}
	}
	return EncodingGSM7
}

// encodedLength is the septet count for GSM-7 (extension chars take two) or
// the UTF-16 code unit count for UCS-2.
func encodedLength(text string, encoding Encoding) int {
	length := 0
	for _, r := range text {
		switch {
		case encoding == EncodingGSM7 && gsm7Extension[r]:
			length += 2
		case encoding == EncodingUnicode && r > 0xFFFF:
			length += 2
		default:
			length++
		}
	}
	return length
}

// CountSegments computes the provider billing unit for a message body. The
// cost estimator and the send path both call this; they must never disagree.
func CountSegments(text string) int {
	encoding := DetectEncoding(text)

	single, multi := constants.GSM7SingleSegment, constants.GSM7MultiSegment
	if encoding == EncodingUnicode {
		single, multi = constants.UnicodeSingleSegment, constants.UnicodeMultiSegment
	}

	length := encodedLength(text, encoding)
	if length == 0 {
		return 1
	}
	if length <= single {
		return 1
	}
	return (length + multi - 1) / multi
}
