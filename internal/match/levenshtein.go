// Package match provides string-similarity scoring for the fallback mapping
// strategy: identifier normalization plus normalized Levenshtein distance.
package match

// Levenshtein computes the edit distance between two strings: the minimum
// number of single-character insertions, deletions, or substitutions needed
// to transform one into the other.
//
// Uses the two-row variant, so space is O(min(len(a), len(b))).
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Keep a the shorter string so the rows stay small.
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			curr[i] = min3(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}

		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// Similarity computes a normalized similarity score in [0,1].
// 1.0 means identical strings, 0.0 means completely different.
// The score is 1 - (distance / max(len(a), len(b))).
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}

// Score computes the similarity between two identifiers after normalizing
// both. This is the primary entry point for field/key matching.
func Score(a, b string) float64 {
	return Similarity(NormalizeIdent(a), NormalizeIdent(b))
}

// TokenScore computes similarity over token sets rather than raw strings:
// each token of a is matched against its best counterpart in b and the
// per-token scores are averaged, weighted by token length. This rewards
// "last name" vs "personal.last_name" style matches where one side carries
// an extra qualifier token.
func TokenScore(a, b string) float64 {
	tokensA := NormalizeTokens(a)
	tokensB := NormalizeTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var weighted, total float64
	for _, ta := range tokensA {
		best := 0.0
		for _, tb := range tokensB {
			if s := Similarity(ta, tb); s > best {
				best = s
			}
		}
		w := float64(len(ta))
		weighted += best * w
		total += w
	}

	return weighted / total
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
