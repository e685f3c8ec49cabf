package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// illegalFileChars lists characters rejected by Windows, macOS or Linux file
// systems. Control characters are handled separately.
const illegalFileChars = `\/:*?"<>|`

// StripIllegalFileChars removes characters that are not allowed in a file
// name. Nothing is substituted: "My:Show?" becomes "MyShow". The result is
// NFC-normalized and trimmed.
func StripIllegalFileChars(name string) string {
	name = norm.NFC.String(name)
	stripped := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		if strings.ContainsRune(illegalFileChars, r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(stripped)
}

// HasIllegalFileChars reports whether name contains a character that
// StripIllegalFileChars would remove.
func HasIllegalFileChars(name string) bool {
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(illegalFileChars, r) {
			return true
		}
	}
	return false
}
