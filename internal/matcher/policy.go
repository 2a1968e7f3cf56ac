// Package matcher resolves noisy product observations against the canonical
// catalog: text normalization, brand aliasing, fuzzy scoring, and the
// create-or-match decision.
package matcher

// Matching policy. Every tuned number the matching and dedup paths depend on
// lives here so the heuristics can be unit-tested apart from the algorithms.
const (
	// MatchThreshold accepts a candidate whose canonical brand differs from
	// (or is unknown to) the observation; BrandMatchThreshold applies when the
	// canonical brands agree.
	MatchThreshold      = 85.0
	BrandMatchThreshold = 80.0

	// BrandConflictCap bounds textual similarity between names carrying
	// different canonical brands; generic names ("Acqua Naturale") from two
	// brands must never merge on text alone.
	BrandConflictCap = 70.0

	// SameBrandBonus is added to a candidate's score when its brand equals
	// the observation's canonical brand, capped at MaxScore.
	SameBrandBonus = 5.0
	MaxScore       = 100.0

	// Dampening offsets applied to the subset-tolerant set score when the
	// shorter name is too generic to trust it: ShortNameDamp when it has
	// fewer than two significant tokens, GenericOverlapDamp when half or
	// fewer of its product-identifying tokens occur in the longer name.
	ShortNameDamp      = 15.0
	GenericOverlapDamp = 10.0

	// VariantPenalty is subtracted per variant stem present on one side only.
	// VariantStemLen compares variant words by prefix so "integrale" and
	// "integrali" count as the same variant.
	VariantPenalty = 25.0
	VariantStemLen = 6

	// Candidate pre-filter: at most CandidateTokens name tokens longer than
	// CandidateTokenMinLen characters narrow the catalog query.
	CandidateTokens      = 3
	CandidateTokenMinLen = 3
)

// Price indicator bounds relative to the historical average price.
const (
	IndicatorLowFactor  = 0.8
	IndicatorHighFactor = 1.1
)

// Richness weights score how complete a product's optional fields are; the
// dedup job keeps the richer side of a merged pair.
const (
	RichnessImage       = 3
	RichnessCategory    = 2
	RichnessSubcategory = 1
	RichnessUnit        = 1
	RichnessBarcode     = 1
)

// GenericCategory is the placeholder category assigned by sources that only
// know "it came from a supermarket"; enrichment may overwrite it.
const GenericCategory = "Supermercato"

// variantWords are Italian flavor/variant terms that distinguish products
// rather than describe them. A word from this set appearing on one side only
// is strong evidence of two different products.
var variantWords = map[string]bool{
	// Flavors / ingredients
	"basilico": true, "limone": true, "arancia": true, "fragola": true,
	"vaniglia": true, "cioccolato": true, "pistacchio": true, "nocciola": true,
	"caffè": true, "caffe": true, "menta": true, "pesca": true,
	"frutti": true, "bosco": true, "miele": true, "zenzero": true,
	"aglio": true, "peperoncino": true, "pomodoro": true, "funghi": true,
	"tartufo": true, "olive": true, "capperi": true, "tonno": true,
	"prosciutto": true, "salmone": true, "formaggio": true, "mozzarella": true,
	// Variants
	"bio": true, "integrale": true, "integrali": true, "classico": true,
	"classica": true, "originale": true, "light": true, "zero": true,
	"senza": true, "glutine": true, "decaffeinato": true, "decaf": true,
	// Sizes that matter
	"mini": true, "maxi": true, "grande": true, "piccolo": true, "famiglia": true,
}

// stopwords are Italian function words dropped during normalization.
var stopwords = map[string]bool{
	"di": true, "del": true, "della": true, "delle": true, "dei": true,
	"degli": true, "da": true, "al": true, "alla": true, "alle": true,
	"il": true, "lo": true, "la": true, "le": true, "gli": true, "i": true,
	"un": true, "una": true, "uno": true, "con": true, "per": true,
	"in": true, "su": true, "tra": true, "fra": true, "e": true, "o": true,
	"ed": true,
}

// unitMap canonicalizes standalone unit tokens.
var unitMap = map[string]string{
	"grammi":     "g",
	"gr":         "g",
	"gr.":        "g",
	"kg":         "kg",
	"kilo":       "kg",
	"kilogrammi": "kg",
	"litri":      "l",
	"litro":      "l",
	"lt":         "l",
	"lt.":        "l",
	"ml":         "ml",
	"millilitri": "ml",
	"cl":         "cl",
	"centilitri": "cl",
	"pezzi":      "pz",
	"pz":         "pz",
	"pz.":        "pz",
	"conf":       "conf",
	"conf.":      "conf",
	"confezione": "conf",
	"confezioni": "conf",
	"rotoli":     "rotoli",
	"rotolo":     "rotoli",
	"capsule":    "caps",
	"caps":       "caps",
}

// abbrevMap expands flyer shorthand so OCR abbreviations and spelled-out
// forms normalize to the same tokens ("Latte PS" vs "Latte Parz. Scremato").
var abbrevMap = map[string]string{
	"ps":     "parzialmente scremato",
	"p.s.":   "parzialmente scremato",
	"parz.":  "parzialmente",
	"parz":   "parzialmente",
	"screm.": "scremato",
	"int.":   "intero",
	"sgass.": "sgassata",
	"friz.":  "frizzante",
	"nat.":   "naturale",
}

// brandAliases maps lowercase brand variants to their canonical display form.
// Unknown brands are title-cased verbatim.
var brandAliases = map[string]string{
	"mulino bianco":  "Mulino Bianco",
	"mulinobianco":   "Mulino Bianco",
	"barilla":        "Barilla",
	"de cecco":       "De Cecco",
	"divella":        "Divella",
	"voiello":        "Voiello",
	"rummo":          "Rummo",
	"garofalo":       "Garofalo",
	"rio mare":       "Rio Mare",
	"rio-mare":       "Rio Mare",
	"star":           "Star",
	"knorr":          "Knorr",
	"findus":         "Findus",
	"buitoni":        "Buitoni",
	"galbani":        "Galbani",
	"parmalat":       "Parmalat",
	"granarolo":      "Granarolo",
	"muller":         "Muller",
	"müller":         "Muller",
	"danone":         "Danone",
	"ferrero":        "Ferrero",
	"nutella":        "Ferrero",
	"lavazza":        "Lavazza",
	"illy":           "Illy",
	"kimbo":          "Kimbo",
	"scottex":        "Scottex",
	"regina":         "Regina",
	"dash":           "Dash",
	"dixan":          "Dixan",
	"ace":            "ACE",
	"cocacola":       "Coca-Cola",
	"coca cola":      "Coca-Cola",
	"coca-cola":      "Coca-Cola",
	"pepsi":          "Pepsi",
	"san benedetto":  "San Benedetto",
	"san pellegrino": "San Pellegrino",
	"sanpellegrino":  "San Pellegrino",
	"levissima":      "Levissima",
	"esselunga":      "Esselunga",
}
