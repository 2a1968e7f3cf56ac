package matcher

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	multiPackRe  = regexp.MustCompile(`(?i)\b\d+\s*x\s*\d+(?:[.,]\d+)?\s*(?:g|kg|ml|cl|l|litro|litri)\b`)
	singleUnitRe = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:g|kg|ml|cl|l|litro|litri|pz|pezzi|conf)\b`)

	titleCaser = cases.Title(language.Italian)
)

// NormalizeText lowercases, collapses whitespace, expands flyer abbreviations,
// canonicalizes standalone unit tokens and drops Italian stopwords.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	var out []string
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if expanded, ok := abbrevMap[token]; ok {
			out = append(out, strings.Fields(expanded)...)
			continue
		}
		if canonical, ok := unitMap[token]; ok {
			out = append(out, canonical)
			continue
		}
		if !stopwords[token] {
			out = append(out, token)
		}
	}
	return strings.Join(out, " ")
}

// StripBrand removes the brand from the beginning of a product name. Some
// sources embed the brand in the name ("Granarolo Latte Intero UHT 1 L")
// while others keep it separate; stripping it before matching greatly
// improves cross-source dedup.
func StripBrand(name, brand string) string {
	if brand == "" || name == "" {
		return name
	}
	nameLower := strings.ToLower(name)
	brandLower := strings.TrimSpace(strings.ToLower(brand))

	variants := []string{
		brandLower,
		strings.ReplaceAll(brandLower, "-", " "),
		strings.ReplaceAll(brandLower, " ", "-"),
	}

	for _, bv := range variants {
		for _, sep := range []string{"", ",", " -", " –"} {
			prefix := bv + sep
			if strings.HasPrefix(nameLower, prefix) {
				cleaned := strings.TrimLeft(name[len(prefix):], " ,.-–")
				if cleaned != "" {
					return cleaned
				}
			}
		}
	}
	return name
}

// StripUnits removes quantity substrings ("500g", "1 L", "1,5 kg",
// "6 x 1,5 l") so packaging never influences name similarity.
func StripUnits(text string) string {
	text = multiPackRe.ReplaceAllString(text, "")
	text = singleUnitRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// ExtractBrandFromName splits "Brand - Product Name" into its parts. The left
// segment is treated as a brand only when it has at most four words and both
// segments are non-empty; otherwise the empty string and the trimmed name are
// returned.
func ExtractBrandFromName(raw string) (brand, name string) {
	if raw == "" {
		return "", raw
	}

	if idx := strings.Index(raw, " - "); idx >= 0 {
		candidate := strings.TrimSpace(raw[:idx])
		product := strings.TrimSpace(raw[idx+3:])
		if candidate != "" && product != "" && len(strings.Fields(candidate)) <= 4 {
			return candidate, product
		}
	}
	return "", strings.TrimSpace(raw)
}

// ScanKnownBrand looks for a known brand anywhere inside a product name and
// returns its canonical form, or "" when none is present. Two-word aliases
// ("mulino bianco") are checked before single tokens.
func ScanKnownBrand(name string) string {
	tokens := strings.Fields(strings.ToLower(name))
	for i := 0; i < len(tokens)-1; i++ {
		if canonical, ok := brandAliases[tokens[i]+" "+tokens[i+1]]; ok {
			return canonical
		}
	}
	for _, tok := range tokens {
		if canonical, ok := brandAliases[strings.Trim(tok, ",.")]; ok {
			return canonical
		}
	}
	return ""
}

// NormalizeBrand maps a raw brand through the alias table. Unknown brands are
// title-cased verbatim; the empty string stays empty.
func NormalizeBrand(brand string) string {
	key := strings.TrimSpace(strings.ToLower(brand))
	if key == "" {
		return ""
	}
	if canonical, ok := brandAliases[key]; ok {
		return canonical
	}
	return titleCaser.String(strings.TrimSpace(brand))
}
