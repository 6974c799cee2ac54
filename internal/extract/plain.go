package extract

import "strings"

// extractPlain returns content as text, replacing invalid UTF-8 with U+FFFD.
func extractPlain(content []byte) string {
	return strings.ToValidUTF8(string(content), "\ufffd")
}
