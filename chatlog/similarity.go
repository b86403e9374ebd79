package chatlog

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity is a normalized Levenshtein ratio in [0, 1]. Distances are
// counted in runes, so each Hangul syllable is one edit.
func Similarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
