package samples

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	phoneticThreshold = 0.70
	fuzzyThreshold    = 0.85

	// shortInput is the length at or below which Jaro-Winkler stops being
	// useful and plain edit distance is used instead (language codes).
	shortInput = 3
)

// Suggest returns the candidate that most plausibly was meant by input, for
// "did you mean" hints on unknown voice ids and language codes.
//
// Candidates that share a Double Metaphone code with input are ranked by
// Jaro-Winkler similarity and accepted from 0.70; otherwise a candidate needs
// 0.85. Inputs of up to three characters are matched by Levenshtein distance
// of at most one against equally short candidates.
func Suggest(input string, candidates []string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" || len(candidates) == 0 {
		return "", false
	}

	if len([]rune(in)) <= shortInput {
		best, bestDist := "", 2
		for _, c := range candidates {
			cl := strings.ToLower(c)
			if len([]rune(cl)) > shortInput {
				continue
			}
			if d := matchr.Levenshtein(in, cl); d < bestDist {
				best, bestDist = c, d
			}
		}
		return best, best != ""
	}

	inCodes := metaphoneCodes(in)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, c := range candidates {
		cl := strings.ToLower(strings.TrimSpace(c))
		if cl == "" {
			continue
		}
		score := matchr.JaroWinkler(in, cl, false)
		if alt := matchr.JaroWinkler(stripSeparators(in), stripSeparators(cl), false); alt > score {
			score = alt
		}
		phonetic := overlaps(inCodes, metaphoneCodes(cl))

		switch {
		case phonetic && score >= phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = c, score, true
			}
		case !bestPhonetic && score >= fuzzyThreshold && score > bestScore:
			best, bestScore = c, score
		}
	}
	return best, best != ""
}

func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, t := range strings.FieldsFunc(s, isSeparator) {
		p, a := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if a != "" {
			codes[a] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '_' || r == '-'
}

func stripSeparators(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSeparator), "")
}
