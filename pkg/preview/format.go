package preview

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCount renders a counter in the compact style used across all reply
// templates: numbers below 1000 stay literal, everything else becomes
// thousands with one decimal place (round half up), e.g. 12345 -> "12.3K".
func FormatCount(n int64) string {
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	tenths := (n + 50) / 100
	return fmt.Sprintf("%d.%dK", tenths/10, tenths%10)
}

// trimDescription flattens newlines and caps the description at maxRunes
// runes. Rune-based so CJK descriptions are not cut mid-character.
func trimDescription(desc string, maxRunes int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(desc, "\n", " "))
	runes := []rune(clean)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes-3]) + "..."
	}
	return clean
}
