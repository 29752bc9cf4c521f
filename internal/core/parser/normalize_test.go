package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf and tabs", "Total:\t$5.00\r\nTax:\t$0.50\r\n", "Total: $5.00\nTax: $0.50"},
		{"squeeze spaces", "Item      Price", "Item Price"},
		{"cap blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"trailing spaces", "line one   \nline two  ", "line one\nline two"},
		{"aggressive collapse", "L o v a b l e  L a b s  I n c", "Lovable Labs Inc"},
		{"aggressive keeps numbers", "T o t a l :  $ 5 . 0 0", "Total: $5.00"},
		{"conservative collapse", "Hi U B E R", "Hi UBER"},
		{"short runs untouched", "Plan A B C", "Plan A B C"},
		{"box lines dropped", "Header\n-----\nBody", "Header\n\nBody"},
		{"forward marker kept", "---------- Forwarded message ---------", "---------- Forwarded message ---------"},
		{"clean text untouched", "Starbucks\nTotal: $16.95", "Starbucks\nTotal: $16.95"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"L o v a b l e  L a b s\n\n\n\nTotal:   $5.00",
		"a  b  c  d",
		"U B E R  E A T S\r\n\tTotal\t$12.00",
		"  indented\n\n\n   text   ",
		"---\n___\n===",
		"\x00\xff binary \xfe junk",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
