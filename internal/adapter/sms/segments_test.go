package sms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Encoding
	}{
		{name: "plain ascii", text: "Your OTP is 482913", want: EncodingGSM7},
		{name: "gsm extended chars", text: "Total: {100} EUR €", want: EncodingGSM7},
		{name: "devanagari", text: "आपका OTP 482913 है", want: EncodingUnicode},
		{name: "emoji", text: "Order shipped 🚚", want: EncodingUnicode},
		{name: "empty", text: "", want: EncodingGSM7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEncoding(tt.text))
		})
	}
}

func TestCountSegments(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty counts as one", text: "", want: 1},
		{name: "short gsm single", text: "Hello", want: 1},
		{name: "gsm exactly 160", text: strings.Repeat("a", 160), want: 1},
		{name: "gsm 161 spills to two", text: strings.Repeat("a", 161), want: 2},
		{name: "gsm 306 fits two parts", text: strings.Repeat("a", 306), want: 2},
		{name: "gsm 320 takes three", text: strings.Repeat("a", 320), want: 3},
		{name: "unicode exactly 70", text: strings.Repeat("क", 70), want: 1},
		{name: "unicode 71 spills to two", text: strings.Repeat("क", 71), want: 2},
		{name: "unicode 140 takes three", text: strings.Repeat("क", 140), want: 3},
		{name: "extension chars count double", text: strings.Repeat("{", 81), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountSegments(tt.text))
		})
	}
}
