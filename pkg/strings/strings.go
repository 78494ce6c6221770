package strings

import (
	"strings"

	"github.com/tidwall/match"
)

var escapeGlob = strings.NewReplacer(`\`, `\\`, `?`, `\?`)

// MatchWildcard reports whether value matches pattern case-insensitively.
// A '*' in the pattern matches any sequence of characters, including none.
// Every other character, '?' included, matches itself.
func MatchWildcard(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.EqualFold(pattern, value)
	}
	return match.Match(strings.ToLower(value), escapeGlob.Replace(strings.ToLower(pattern)))
}
