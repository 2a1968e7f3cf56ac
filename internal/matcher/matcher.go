package matcher

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store"
)

// Matcher resolves observations to canonical products: exact barcode lookup
// first, then fuzzy scoring over a token-narrowed candidate set, creating a
// new product when nothing clears the acceptance threshold.
type Matcher struct {
	scoreFn func(name1, name2, brand1, brand2 string) float64
	now     func() time.Time
}

// New returns a Matcher using the package scoring policy and wall-clock time.
func New() *Matcher {
	return &Matcher{scoreFn: Score, now: time.Now}
}

// CreateOrMatch returns the canonical product for an observation, creating
// one when no existing product matches. The store argument is the caller's
// unit-of-work scope, so matching participates in the flyer's transaction.
//
// Two concurrent calls observing the same new product may each create one;
// that race is accepted and resolved by the offline dedup job.
func (m *Matcher) CreateOrMatch(ctx context.Context, st store.Store, obs model.Observation) (*model.Product, error) {
	name := strings.TrimSpace(obs.Name)
	if name == "" {
		return nil, eris.New("matcher: observation name is required")
	}

	brand := deref(obs.Brand)
	if brand == "" {
		// Some sources embed the brand in the name instead of a field.
		if b, rest := ExtractBrandFromName(name); b != "" {
			brand, name = b, rest
		} else if b := ScanKnownBrand(name); b != "" {
			brand = b
		}
	}
	canonicalBrand := NormalizeBrand(brand)
	now := m.now().UTC()

	// Barcode is authoritative: an exact hit wins regardless of the name.
	if bc := deref(obs.Barcode); bc != "" {
		existing, err := st.ProductByBarcode(ctx, bc)
		if err != nil {
			return nil, eris.Wrap(err, "matcher: barcode lookup")
		}
		if existing != nil {
			zap.L().Info("barcode match",
				zap.String("barcode", bc),
				zap.String("product_id", existing.ID),
			)
			m.enrich(existing, obs, now)
			if err := st.UpdateProduct(ctx, existing); err != nil {
				return nil, eris.Wrap(err, "matcher: enrich matched product")
			}
			return existing, nil
		}
	}

	matched, err := m.findMatch(ctx, st, name, brand, canonicalBrand)
	if err != nil {
		return nil, err
	}
	if matched != nil {
		m.enrich(matched, obs, now)
		if err := st.UpdateProduct(ctx, matched); err != nil {
			return nil, eris.Wrap(err, "matcher: enrich matched product")
		}
		return matched, nil
	}

	product := &model.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Brand:       ptrOrNil(canonicalBrand),
		Category:    obs.Category,
		Subcategory: obs.Subcategory,
		Unit:        unitOf(obs),
		Barcode:     obs.Barcode,
		ImageURL:    obs.ImageURL,
		Source:      ptrOrNil(obs.Source),
		LastSeenAt:  &now,
		CreatedAt:   now,
	}
	if err := st.CreateProduct(ctx, product); err != nil {
		return nil, eris.Wrap(err, "matcher: create product")
	}

	zap.L().Info("created product",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("brand", canonicalBrand),
	)
	return product, nil
}

// findMatch scans candidate products and returns the best one clearing the
// acceptance threshold, or nil when none does.
//
// Candidates are narrowed by up to three significant name tokens. A known
// brand restricts the scan first; when that turns up nothing the scan widens
// to token-only so cross-source records with divergent brand data still meet.
func (m *Matcher) findMatch(ctx context.Context, st store.Store, name, brand, canonicalBrand string) (*model.Product, error) {
	cleaned := StripUnits(StripBrand(name, brand))
	tokens := significantTokens(NormalizeText(cleaned))

	var candidates []model.Product
	var err error
	if canonicalBrand != "" {
		candidates, err = st.FindCandidates(ctx, store.CandidateFilter{Brand: canonicalBrand, Tokens: tokens})
		if err != nil {
			return nil, eris.Wrap(err, "matcher: brand candidates")
		}
		if len(candidates) == 0 && len(tokens) > 0 {
			candidates, err = st.FindCandidates(ctx, store.CandidateFilter{Tokens: tokens})
			if err != nil {
				return nil, eris.Wrap(err, "matcher: widened candidates")
			}
		}
	} else {
		candidates, err = st.FindCandidates(ctx, store.CandidateFilter{Tokens: tokens})
		if err != nil {
			return nil, eris.Wrap(err, "matcher: candidates")
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var best *model.Product
	bestScore := 0.0
	for i := range candidates {
		c := &candidates[i]
		score := m.scoreFn(name, c.Name, brand, deref(c.Brand))
		if canonicalBrand != "" && deref(c.Brand) == canonicalBrand {
			score = min(score+SameBrandBonus, MaxScore)
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}

	threshold := MatchThreshold
	if canonicalBrand != "" && deref(best.Brand) == canonicalBrand {
		threshold = BrandMatchThreshold
	}
	if bestScore < threshold {
		zap.L().Debug("no match",
			zap.String("name", name),
			zap.Float64("best_score", bestScore),
		)
		return nil, nil
	}

	zap.L().Info("fuzzy match",
		zap.String("name", name),
		zap.String("matched", best.Name),
		zap.Float64("score", bestScore),
		zap.Float64("threshold", threshold),
	)
	return best, nil
}

// enrich fills missing fields on a matched product from a new observation.
// Existing non-placeholder data is never overwritten; last_seen_at always
// advances.
func (m *Matcher) enrich(p *model.Product, obs model.Observation, now time.Time) {
	p.LastSeenAt = &now

	if v := deref(obs.Category); v != "" && (p.Category == nil || *p.Category == GenericCategory) {
		p.Category = &v
	}
	if v := deref(obs.Subcategory); v != "" && (p.Subcategory == nil || *p.Subcategory == GenericCategory) {
		p.Subcategory = &v
	}
	if obs.ImageURL != nil && p.ImageURL == nil {
		p.ImageURL = obs.ImageURL
	}
	if u := unitOf(obs); u != nil && p.Unit == nil {
		p.Unit = u
	}
}

// significantTokens returns up to CandidateTokens tokens longer than
// CandidateTokenMinLen characters, for the candidate pre-filter.
func significantTokens(normalized string) []string {
	var out []string
	for _, t := range strings.Fields(normalized) {
		if len([]rune(t)) > CandidateTokenMinLen {
			out = append(out, t)
			if len(out) == CandidateTokens {
				break
			}
		}
	}
	return out
}

// unitOf prefers the explicit unit field, falling back to the pack quantity.
func unitOf(obs model.Observation) *string {
	if obs.Unit != nil {
		return obs.Unit
	}
	return obs.Quantity
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
