package match

import "strings"

// fuzzyMatches reports whether any token of text lies within the edit-distance
// threshold of any pattern word. The threshold scales with word length
// (len/4, at least 1) so short words stay strict.
func fuzzyMatches(lowerText, lowerPattern string) bool {
	words := strings.Fields(lowerPattern)
	if len(words) == 0 {
		return false
	}
	tokens := tokenize(lowerText)
	for _, w := range words {
		threshold := len(w) / 4
		if threshold < 1 {
			threshold = 1
		}
		for _, tok := range tokens {
			if editDistanceAtMost(w, tok, threshold) {
				return true
			}
		}
	}
	return false
}

// tokenize splits text on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r > 127)
	})
}

// editDistanceAtMost reports whether the Levenshtein distance between a and b
// is <= max. Bails out early when a length difference alone exceeds max.
func editDistanceAtMost(a, b string, max int) bool {
	la, lb := len(a), len(b)
	if la-lb > max || lb-la > max {
		return false
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
			if m < rowMin {
				rowMin = m
			}
		}
		if rowMin > max {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[lb] <= max
}
