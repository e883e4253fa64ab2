package agent

import (
	"fmt"
	"regexp"
)

// base64DataURI matches a data: URI whose payload is at least 200
// contiguous base64 characters. The teacher's tool_result_guard.go redacts
// secrets with pre-compiled regexps in the same style; this applies the
// same idiom to spec.md §4.9's blob-stripping rules instead.
var base64DataURI = regexp.MustCompile(`data:[\w.+-]+/[\w.+-]+;base64,[A-Za-z0-9+/=]{200,}`)

// hexRun matches a contiguous run of at least 200 hex digits.
var hexRun = regexp.MustCompile(`[0-9A-Fa-f]{200,}`)

// Sanitize strips base64 data URIs and long hex runs from text, then
// truncates to maxBytes. It is applied to a tool's result before the result
// is injected into the next iteration's message list (spec.md §4.9) — never
// before the result is emitted to a UI event sink, which sees the raw
// value.
func Sanitize(text string, maxBytes int) string {
	text = base64DataURI.ReplaceAllStringFunc(text, func(match string) string {
		return fmt.Sprintf("[base64 data removed — %d bytes]", len(match))
	})
	text = hexRun.ReplaceAllStringFunc(text, func(match string) string {
		return fmt.Sprintf("[hex data removed — %d chars]", len(match))
	})

	if maxBytes > 0 && len(text) > maxBytes {
		total := len(text)
		cut := maxBytes
		// truncate at a rune boundary
		for cut > 0 && !isRuneBoundary(text, cut) {
			cut--
		}
		text = fmt.Sprintf("%s\n\n[truncated — %d bytes total]", text[:cut], total)
	}

	return text
}

func isRuneBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	// UTF-8 continuation bytes have the top two bits set to 10.
	return s[i]&0xC0 != 0x80
}
