// Package ingest appends flyer batches to the catalog: price parsing,
// idempotent flyer creation and append-only offer persistence.
package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	nonPriceRe = regexp.MustCompile(`[^\d.]`)
	discountRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
	perKgRe    = regexp.MustCompile(`(?i)(?:al\s+kg|/kg|euro/kg|eur/kg)`)
	perLitreRe = regexp.MustCompile(`(?i)(?:al\s+l(?:t|itro)?|/l\b|euro/l|eur/l)`)
	perPieceRe = regexp.MustCompile(`(?i)(?:al\s+pz|/pz|cadauno|cad\.)`)

	nameCaser = cases.Title(language.Italian)
)

// ParsePrice parses a price string as printed on a flyer. Handles both
// Italian ("1.299,50") and English ("1,299.50") separator conventions plus
// stray currency markers; the second return is false when nothing parseable
// remains.
func ParsePrice(raw string) (float64, bool) {
	text := strings.ToLower(strings.TrimSpace(raw))
	for _, marker := range []string{"eur", "euro", "€"} {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	// The last separator decides the convention: a trailing comma means the
	// Italian decimal comma, a trailing dot the English decimal point.
	lastComma := strings.LastIndex(text, ",")
	lastDot := strings.LastIndex(text, ".")
	switch {
	case lastComma > lastDot:
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	case lastDot > lastComma:
		text = strings.ReplaceAll(text, ",", "")
	}

	text = nonPriceRe.ReplaceAllString(text, "")
	if text == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseOptionalPrice parses a nullable price field, returning nil when the
// field is absent or unparseable.
func ParseOptionalPrice(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	v, ok := ParsePrice(*raw)
	if !ok {
		return nil
	}
	return &v
}

// ParseDiscountPct extracts a percentage from strings like "-30%" or
// "sconto 25%". Returns nil when no number is present.
func ParseDiscountPct(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	m := discountRe.FindStringSubmatch(*raw)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ClampConfidence bounds an extraction confidence to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InferUnitReference derives the per-unit price reference ("kg", "l", "pz")
// from the pack quantity or the raw flyer text when the extractor did not
// supply one.
func InferUnitReference(quantity, rawText string) string {
	for _, text := range []string{quantity, rawText} {
		if text == "" {
			continue
		}
		switch {
		case perKgRe.MatchString(text):
			return "kg"
		case perLitreRe.MatchString(text):
			return "l"
		case perPieceRe.MatchString(text):
			return "pz"
		}
	}
	return ""
}

// CleanProductName collapses whitespace and fixes shouting or all-lowercase
// OCR names; mixed-case names are kept as printed.
func CleanProductName(name string) string {
	cleaned := strings.Join(strings.Fields(name), " ")
	if cleaned == strings.ToUpper(cleaned) || cleaned == strings.ToLower(cleaned) {
		return nameCaser.String(strings.ToLower(cleaned))
	}
	return cleaned
}
