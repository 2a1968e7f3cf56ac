package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreIdenticalObservations(t *testing.T) {
	score := Score("Latte Intero 1L", "Latte Intero 1L", "Granarolo", "Granarolo")
	assert.Equal(t, 100.0, score)
}

func TestScoreWordOrderInsensitive(t *testing.T) {
	score := Score("Latte Intero UHT", "UHT Latte Intero", "", "")
	assert.Equal(t, 100.0, score)
}

func TestScoreBrandConflictCapped(t *testing.T) {
	// Identical generic names from two brands must never merge on text alone.
	score := Score("Acqua Naturale", "Acqua Naturale", "San Benedetto", "Levissima")
	assert.Equal(t, BrandConflictCap, score)
}

func TestScoreEmptyAfterNormalization(t *testing.T) {
	assert.Equal(t, 0.0, Score("1 L", "Latte Intero", "", ""))
	assert.Equal(t, 0.0, Score("", "Latte Intero", "", ""))
}

func TestScoreSubsetNameSameBrand(t *testing.T) {
	// One source spells out the long label; subset tolerance keeps them equal.
	score := Score("Latte Intero", "Latte Intero UHT Lunga Conservazione", "Granarolo", "Granarolo")
	assert.Equal(t, 100.0, score)
}

func TestScoreVariantPenalty(t *testing.T) {
	// "Basilico" on one side only marks a different product despite the
	// perfect subset overlap.
	score := Score("Pesto Genovese Basilico", "Pesto Genovese", "Barilla", "Barilla")
	assert.InDelta(t, 75.0, score, 0.5)
	assert.Less(t, score, BrandMatchThreshold)
}

func TestScoreVariantStemMatches(t *testing.T) {
	// "integrale" vs "integrali" is the same variant, not a penalty.
	score := Score("Fusilli Integrali", "Fusilli Integrale", "Barilla", "Barilla")
	assert.GreaterOrEqual(t, score, BrandMatchThreshold)
}

func TestScoreShortGenericNameDampened(t *testing.T) {
	// A one-token generic name cannot ride the subset score to a merge.
	score := Score("Acqua", "Acqua Frizzante Naturale", "San Benedetto", "San Benedetto")
	assert.Less(t, score, BrandMatchThreshold)
}

func TestScoreCrossSourceAbbreviation(t *testing.T) {
	// Embedded brand, OCR shorthand and pack size all normalize away.
	score := Score("Granarolo Latte PS 1L", "Latte Parzialmente Scremato", "Granarolo", "Granarolo")
	assert.Equal(t, 100.0, score)
}

func TestScoreGenericOverlapDampened(t *testing.T) {
	// Shared marketing tokens ("100% italiano") without shared product tokens.
	score := Score("Latte 100% Italiano", "Olio Extra Vergine Oliva 100% Italiano", "Esselunga", "Esselunga")
	assert.Less(t, score, BrandMatchThreshold)
}

func TestUnmatchedVariantStems(t *testing.T) {
	assert.Equal(t, 0, unmatchedVariantStems("pesto basilico", "pesto basilico"))
	assert.Equal(t, 1, unmatchedVariantStems("pesto basilico", "pesto"))
	assert.Equal(t, 2, unmatchedVariantStems("yogurt fragola", "yogurt pesca"))
	assert.Equal(t, 0, unmatchedVariantStems("fusilli integrali", "fusilli integrale"))
}
