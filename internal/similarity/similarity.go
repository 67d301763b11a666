// Package similarity implements the string metrics used to compare payees.
// All lengths and positions are measured in runes.
package similarity

import (
	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
)

const (
	// winklerPrefixLimit caps the shared prefix that earns the Winkler boost.
	winklerPrefixLimit = 4
	// winklerScaling is the standard Winkler prefix scaling factor.
	winklerScaling = 0.1
)

// Character returns 1 - levenshtein(a, b) / max(len(a), len(b)).
func Character(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// JaroWinkler returns the Jaro similarity of a and b with the Winkler
// prefix boost applied for up to four shared leading runes.
func JaroWinkler(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	jaro := jaroRunes(ra, rb)

	prefix := 0
	for prefix < min(len(ra), len(rb), winklerPrefixLimit) && ra[prefix] == rb[prefix] {
		prefix++
	}

	return jaro + float64(prefix)*winklerScaling*(1-jaro)
}

func jaroRunes(ra, rb []rune) float64 {
	window := max(len(ra), len(rb))/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, len(ra))
	matchedB := make([]bool, len(rb))
	matches := 0

	for i := range ra {
		lo := max(0, i-window)
		hi := min(len(rb), i+window+1)
		for j := lo; j < hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Half the number of matched runes that appear out of order.
	outOfOrder := 0
	j := 0
	for i := range ra {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if ra[i] != rb[j] {
			outOfOrder++
		}
		j++
	}
	transpositions := float64(outOfOrder) / 2

	m := float64(matches)
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-transpositions)/m) / 3
}

// LongestCommonSubstring returns the length of the longest contiguous run
// shared by a and b.
func LongestCommonSubstring(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	longest := 0

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
				longest = max(longest, curr[j])
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return longest
}

// Substring returns LongestCommonSubstring(a, b) / max(len(a), len(b)).
func Substring(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return float64(LongestCommonSubstring(a, b)) / float64(longest)
}

// TokenDistance returns the Damerau-Levenshtein distance of a and b scaled
// to [0,1] by the longer length. 0 means identical.
func TokenDistance(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	switch {
	case la == 0 && lb == 0:
		return 0
	case la == 0 || lb == 0:
		return 1
	}
	d := float64(matchr.DamerauLevenshtein(a, b)) / float64(max(la, lb))
	if d > 1 {
		return 1
	}
	return d
}
