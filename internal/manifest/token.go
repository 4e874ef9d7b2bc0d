package manifest

import (
	"bytes"
	"strconv"
	"strings"
)

// tokenPrefix namespaces terminator tokens, keeping them visually distinct
// from payload text in the generated bundle.
const tokenPrefix = "KITPACK_EOF_"

// Token derives the base terminator token for a path: every character outside
// [A-Za-z0-9] maps to an underscore and letters are uppercased, so the result
// is a stable single shell-safe word.
func Token(path string) string {
	var b strings.Builder

	b.WriteString(tokenPrefix)

	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}

// TokenFor returns a terminator token for the path that is guaranteed not to
// occur inside content. A payload containing the base token verbatim would
// truncate extraction at that line, so the token is salted with an increasing
// numeric suffix until it no longer collides. The selection is deterministic:
// identical inputs always produce identical tokens.
func TokenFor(path string, content []byte) string {
	token := Token(path)

	for salt := 2; bytes.Contains(content, []byte(token)); salt++ {
		token = Token(path) + "_" + strconv.Itoa(salt)
	}

	return token
}
