package matcher

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

var levParams = levenshtein.NewParams()

// ratio is the plain edit-distance similarity between two strings, 0-100.
func ratio(a, b string) float64 {
	if a == b {
		return MaxScore
	}
	return levenshtein.Similarity(a, b, levParams) * MaxScore
}

// tokenSortRatio compares the two strings with their tokens sorted, which
// makes the score insensitive to word order — the most common OCR artifact.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

// tokenSetRatio is tolerant of one name being a subset of the other
// ("Latte Intero" vs "Latte Intero UHT a Lunga Conservazione"): it compares
// the sorted token intersection against each side's full sorted token list
// and keeps the best of the three pairings.
func tokenSetRatio(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)

	var inter, onlyA, onlyB []string
	for t := range ta {
		if tb[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if !ta[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))

	best := ratio(t0, t1)
	if s := ratio(t0, t2); s > best {
		best = s
	}
	if s := ratio(t1, t2); s > best {
		best = s
	}
	return best
}

// Score returns a 0-100 confidence that two (name, brand) pairs denote the
// same product.
//
// Names are cleaned (brand prefix and quantity patterns stripped, then
// normalized) before comparison. When canonical brands conflict the score is
// capped at BrandConflictCap. When they agree, a subset-tolerant set score is
// admitted but dampened for overly generic short names and penalized for
// variant words ("basilico", "integrale", "bio") present on one side only.
// Without brand information on both sides the word-order-insensitive sort
// score stands alone.
func Score(name1, name2, brand1, brand2 string) float64 {
	n1 := NormalizeText(StripUnits(StripBrand(name1, brand1)))
	n2 := NormalizeText(StripUnits(StripBrand(name2, brand2)))
	if n1 == "" || n2 == "" {
		return 0
	}

	cb1 := NormalizeBrand(brand1)
	cb2 := NormalizeBrand(brand2)
	brandsMatch := cb1 != "" && cb2 != "" && cb1 == cb2
	brandsConflict := cb1 != "" && cb2 != "" && cb1 != cb2

	sortScore := tokenSortRatio(n1, n2)

	if brandsConflict {
		return min(sortScore, BrandConflictCap)
	}

	if brandsMatch {
		setScore := tokenSetRatio(n1, n2)

		shorter, longer := n1, n2
		if len(n2) < len(n1) {
			shorter, longer = n2, n1
		}

		// A short generic name makes the set score untrustworthy on its own.
		significant := 0
		for _, t := range strings.Fields(shorter) {
			if len(t) > 2 {
				significant++
			}
		}
		if significant < 2 {
			setScore = min(setScore, sortScore+ShortNameDamp)
		}

		// If half or fewer of the shorter name's product-identifying tokens
		// occur in the longer name, the names share only generic words
		// ("latte 100% italiano" vs "olio extra vergine oliva 100% italiano").
		longerTokens := tokenSet(longer)
		productTokens := 0
		overlap := 0
		for t := range tokenSet(shorter) {
			if len([]rune(t)) > 3 && isAlpha(t) {
				productTokens++
				if longerTokens[t] {
					overlap++
				}
			}
		}
		if productTokens > 0 && float64(overlap)/float64(productTokens) <= 0.5 {
			setScore = min(setScore, sortScore+GenericOverlapDamp)
		}

		// Variant words present on one side only mark different products.
		// Compare stems so "integrale"/"integrali" count as one variant.
		if n := unmatchedVariantStems(n1, n2); n > 0 {
			penalty := VariantPenalty * float64(n)
			return max(max(sortScore-penalty, setScore-penalty), 0)
		}

		return max(sortScore, setScore)
	}

	return sortScore
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func variantStem(w string) string {
	r := []rune(w)
	if len(r) > VariantStemLen {
		r = r[:VariantStemLen]
	}
	return string(r)
}

// unmatchedVariantStems counts variant stems appearing in exactly one of the
// two names.
func unmatchedVariantStems(n1, n2 string) int {
	t1 := tokenSet(n1)
	t2 := tokenSet(n2)

	stems1 := make(map[string]bool)
	for t := range t1 {
		if !t2[t] && variantWords[t] {
			stems1[variantStem(t)] = true
		}
	}
	stems2 := make(map[string]bool)
	for t := range t2 {
		if !t1[t] && variantWords[t] {
			stems2[variantStem(t)] = true
		}
	}

	unmatched := 0
	for s := range stems1 {
		if !stems2[s] {
			unmatched++
		}
	}
	for s := range stems2 {
		if !stems1[s] {
			unmatched++
		}
	}
	return unmatched
}
