package library

import (
	"strings"

	"golang.org/x/text/cases"
)

// Normalize produces the matching key form of a title or author name:
// case-folded, trimmed, inner whitespace collapsed to single spaces.
func Normalize(s string) string {
	folded := cases.Fold().String(s)
	return strings.Join(strings.Fields(folded), " ")
}

func titleAuthorKey(title, author string) string {
	return Normalize(title) + "\x00" + Normalize(author)
}
