package ingest

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spesasmart/catalog-cli/internal/model"
)

// RunReport aggregates the outcome of a multi-flyer run.
type RunReport struct {
	Ingested   int
	Duplicates int
	Failed     int
	Offers     int
}

// Runner ingests many flyer batches concurrently. Concurrency is bounded and
// flyer starts are rate limited so a bulk backfill cannot saturate the
// database. A failed flyer is logged and counted; it never aborts the run,
// since every batch is independently replayable.
type Runner struct {
	ing     *Ingestor
	limit   int
	limiter *rate.Limiter
}

func NewRunner(ing *Ingestor, concurrency int, startsPerSec float64) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		ing:     ing,
		limit:   concurrency,
		limiter: rate.NewLimiter(rate.Limit(startsPerSec), 1),
	}
}

// Run ingests every batch, returning early only when the context is
// cancelled.
func (r *Runner) Run(ctx context.Context, batches []model.FlyerBatch) (*RunReport, error) {
	var ingested, duplicates, failed, offers atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			res, err := r.ing.IngestFlyer(ctx, batch)
			if err != nil {
				zap.L().Error("flyer ingestion failed",
					zap.String("chain", batch.ChainSlug),
					zap.String("source_url", batch.SourceURL),
					zap.Error(err))
				failed.Add(1)
				return nil
			}
			if res.Duplicate {
				duplicates.Add(1)
				return nil
			}
			ingested.Add(1)
			offers.Add(int64(res.Saved))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &RunReport{
		Ingested:   int(ingested.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(failed.Load()),
		Offers:     int(offers.Load()),
	}
	zap.L().Info("ingestion run complete",
		zap.Int("ingested", report.Ingested),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
		zap.Int("offers", report.Offers))
	return report, nil
}
