package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and collapses", "  Latte   INTERO ", "latte intero"},
		{"drops stopwords", "Passata di Pomodoro", "passata pomodoro"},
		{"canonicalizes units", "Acqua 2 litri", "acqua 2 l"},
		{"expands abbreviations", "Latte PS", "latte parzialmente scremato"},
		{"abbreviated and spelled forms meet", "Latte Parz. Screm.", "latte parzialmente scremato"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestStripBrand(t *testing.T) {
	assert.Equal(t, "Latte Intero", StripBrand("Granarolo Latte Intero", "Granarolo"))
	assert.Equal(t, "Fusilli", StripBrand("Barilla - Fusilli", "Barilla"))

	// Brand not a prefix: name untouched.
	assert.Equal(t, "Latte Granarolo Intero", StripBrand("Latte Granarolo Intero", "Granarolo"))

	// Never strip down to nothing.
	assert.Equal(t, "Granarolo", StripBrand("Granarolo", "Granarolo"))

	assert.Equal(t, "Latte", StripBrand("Latte", ""))
}

func TestStripUnits(t *testing.T) {
	assert.Equal(t, "Latte Intero", StripUnits("Latte Intero 1 L"))
	assert.Equal(t, "Pasta", StripUnits("Pasta 500g"))
	assert.Equal(t, "Acqua Naturale", StripUnits("Acqua Naturale 6 x 1,5 l"))
	assert.Equal(t, "Olio", StripUnits("Olio 0,75 litri"))
	assert.Equal(t, "Senza Quantita", StripUnits("Senza Quantita"))
}

func TestExtractBrandFromName(t *testing.T) {
	brand, name := ExtractBrandFromName("Barilla - Fusilli Integrali")
	assert.Equal(t, "Barilla", brand)
	assert.Equal(t, "Fusilli Integrali", name)

	brand, name = ExtractBrandFromName("Fusilli Integrali")
	assert.Empty(t, brand)
	assert.Equal(t, "Fusilli Integrali", name)

	// A long left segment is a name fragment, not a brand.
	brand, _ = ExtractBrandFromName("Uno Due Tre Quattro Cinque - Prodotto")
	assert.Empty(t, brand)
}

func TestScanKnownBrand(t *testing.T) {
	assert.Equal(t, "Granarolo", ScanKnownBrand("Latte Granarolo Intero 1L"))
	assert.Equal(t, "Mulino Bianco", ScanKnownBrand("Biscotti Mulino Bianco Classici"))
	assert.Equal(t, "Ferrero", ScanKnownBrand("Nutella 400g"))
	assert.Empty(t, ScanKnownBrand("Latte Intero Generico"))
}

func TestNormalizeBrand(t *testing.T) {
	assert.Equal(t, "Granarolo", NormalizeBrand("granarolo"))
	assert.Equal(t, "Ferrero", NormalizeBrand("Nutella"))
	assert.Equal(t, "San Pellegrino", NormalizeBrand("sanpellegrino"))
	assert.Equal(t, "ACE", NormalizeBrand("ace"))

	// Unknown brands are title-cased verbatim.
	assert.Equal(t, "Fattoria Italia", NormalizeBrand("fattoria italia"))

	assert.Empty(t, NormalizeBrand(""))
	assert.Empty(t, NormalizeBrand("   "))
}
