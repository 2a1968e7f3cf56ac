package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spesasmart/catalog-cli/internal/matcher"
	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store"
)

// ErrUnknownChain is returned when a batch names a chain slug that has not
// been seeded. Chains are reference data; an unseeded slug is an operator
// error, not a reason to invent a chain row.
var ErrUnknownChain = eris.New("ingest: unknown chain")

const dateLayout = "2006-01-02"

// Result summarizes one flyer ingestion.
type Result struct {
	FlyerID      string
	Saved        int
	SkippedItems int
	Duplicate    bool
}

// Ingestor persists flyer batches, resolving every observation to a catalog
// product through the matcher.
type Ingestor struct {
	store   store.Store
	matcher *matcher.Matcher
	now     func() time.Time
}

func New(st store.Store, m *matcher.Matcher) *Ingestor {
	return &Ingestor{store: st, matcher: m, now: time.Now}
}

// IngestFlyer stores one flyer and its offers. Re-submitting a batch with the
// same (source URL, chain, validity window) is a no-op that reports the
// existing flyer, so feeds can be replayed safely. Individual bad
// observations are logged and skipped without failing the batch.
func (ing *Ingestor) IngestFlyer(ctx context.Context, batch model.FlyerBatch) (*Result, error) {
	validFrom, err := time.Parse(dateLayout, batch.ValidFrom)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse valid_from %q", batch.ValidFrom)
	}
	validTo, err := time.Parse(dateLayout, batch.ValidTo)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse valid_to %q", batch.ValidTo)
	}

	chain, err := ing.store.ChainBySlug(ctx, batch.ChainSlug)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: look up chain")
	}
	if chain == nil {
		return nil, eris.Wrapf(ErrUnknownChain, "slug %q", batch.ChainSlug)
	}

	key := model.FlyerKey{
		SourceURL: batch.SourceURL,
		ChainID:   chain.ID,
		ValidFrom: validFrom,
		ValidTo:   validTo,
	}
	existing, err := ing.store.FlyerByKey(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: look up flyer")
	}
	if existing != nil {
		zap.L().Info("flyer already ingested, skipping",
			zap.String("flyer_id", existing.ID),
			zap.String("source_url", batch.SourceURL))
		return &Result{FlyerID: existing.ID, Duplicate: true}, nil
	}

	res := &Result{}
	err = ing.store.InTx(ctx, func(st store.Store) error {
		flyer := &model.Flyer{
			ID:         uuid.New().String(),
			ChainID:    chain.ID,
			StoreID:    batch.StoreID,
			Title:      batch.Title,
			ValidFrom:  validFrom,
			ValidTo:    validTo,
			SourceURL:  batch.SourceURL,
			Status:     model.FlyerStatusProcessing,
			PagesCount: batch.PagesCount,
			CreatedAt:  ing.now(),
		}
		if err := st.CreateFlyer(ctx, flyer); err != nil {
			return eris.Wrap(err, "ingest: create flyer")
		}
		res.FlyerID = flyer.ID

		for i, obs := range batch.Observations {
			if err := ing.saveObservation(ctx, st, obs, flyer); err != nil {
				zap.L().Warn("skipping flyer item",
					zap.Int("index", i),
					zap.String("name", obs.Name),
					zap.Error(err))
				res.SkippedItems++
				continue
			}
			res.Saved++
		}

		if err := st.SetFlyerStatus(ctx, flyer.ID, model.FlyerStatusProcessed, batch.PagesCount); err != nil {
			return eris.Wrap(err, "ingest: mark flyer processed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("flyer ingested",
		zap.String("flyer_id", res.FlyerID),
		zap.String("chain", batch.ChainSlug),
		zap.Int("saved", res.Saved),
		zap.Int("skipped", res.SkippedItems))
	return res, nil
}

func (ing *Ingestor) saveObservation(ctx context.Context, st store.Store, obs model.Observation, flyer *model.Flyer) error {
	obs.Name = CleanProductName(obs.Name)
	if err := obs.Validate(); err != nil {
		return err
	}

	price, ok := ParsePrice(obs.OfferPrice)
	if !ok {
		return eris.Errorf("ingest: unparseable offer price %q", obs.OfferPrice)
	}

	product, err := ing.matcher.CreateOrMatch(ctx, st, obs)
	if err != nil {
		return eris.Wrap(err, "ingest: resolve product")
	}

	unitRef := deref(obs.UnitReference)
	if unitRef == "" {
		unitRef = InferUnitReference(deref(obs.Quantity), obs.RawText)
	}
	confidence := ClampConfidence(obs.Confidence)

	offer := &model.Offer{
		ID:            uuid.New().String(),
		ProductID:     product.ID,
		FlyerID:       flyer.ID,
		ChainID:       flyer.ChainID,
		StoreID:       flyer.StoreID,
		OfferPrice:    price,
		OriginalPrice: ParseOptionalPrice(obs.OriginalPrice),
		DiscountPct:   ParseDiscountPct(obs.DiscountPct),
		DiscountType:  obs.DiscountType,
		PricePerUnit:  ParseOptionalPrice(obs.PricePerUnit),
		UnitReference: ptrOrNil(unitRef),
		Quantity:      obs.Quantity,
		ValidFrom:     &flyer.ValidFrom,
		ValidTo:       &flyer.ValidTo,
		RawText:       obs.RawText,
		Confidence:    &confidence,
		CreatedAt:     ing.now(),
	}
	if err := st.CreateOffer(ctx, offer); err != nil {
		return eris.Wrap(err, "ingest: create offer")
	}
	return nil
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
