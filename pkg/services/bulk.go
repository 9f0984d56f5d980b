package services

import (
	"context"
	"log/slog"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/otelhelper"
	"github.com/dukex/herald/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBulkSize is the largest number of triggers accepted in one bulk call.
	MaxBulkSize = 100

	defaultBulkConcurrency = MaxBulkSize
)

// BulkDispatcher dispatches a batch of triggers concurrently, sharing one
// workflow lookup per environment across the batch.
type BulkDispatcher struct {
	dispatcher  *Dispatcher
	workflows   *workflow.Resolver
	concurrency int
	logger      *slog.Logger
}

// NewBulkDispatcher creates a bulk dispatcher running at most concurrency
// triggers at a time. Non-positive values allow the whole batch at once.
func NewBulkDispatcher(dispatcher *Dispatcher, workflows *workflow.Resolver, concurrency int, logger *slog.Logger) *BulkDispatcher {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}

	return &BulkDispatcher{
		dispatcher:  dispatcher,
		workflows:   workflows,
		concurrency: concurrency,
		logger:      logger.With("module", "bulk_dispatcher"),
	}
}

// Dispatch returns one outcome per request, in request order. A failing item
// becomes an error outcome and never affects its siblings.
func (b *BulkDispatcher) Dispatch(ctx context.Context, requests []*models.TriggerRequest) ([]*models.DispatchOutcome, error) {
	if len(requests) == 0 || len(requests) > MaxBulkSize {
		return nil, ErrBulkSize
	}

	ctx, span := otelhelper.StartSpan(ctx, b.dispatcher.tracer, "dispatch_bulk",
		attribute.Int(otelhelper.BulkSizeKey, len(requests)))
	defer span.End()

	prefetched := b.prefetch(ctx, requests)
	outcomes := make([]*models.DispatchOutcome, len(requests))

	var group errgroup.Group

	group.SetLimit(b.concurrency)

	for i, req := range requests {
		group.Go(func() error {
			outcomes[i] = b.dispatchOne(ctx, req, prefetched[req.EnvironmentID])

			return nil
		})
	}

	_ = group.Wait()

	return outcomes, nil
}

func (b *BulkDispatcher) dispatchOne(
	ctx context.Context,
	req *models.TriggerRequest,
	prefetched *workflow.Prefetched,
) *models.DispatchOutcome {
	if req == nil {
		return models.Failed("trigger request is required")
	}

	outcome, err := b.dispatcher.dispatch(ctx, req, prefetched)
	if err != nil {
		return models.Failed(ErrorMessages(err)...)
	}

	return outcome
}

// prefetch loads the persisted workflows of every store-backed request with
// one query per environment. A failed prefetch only costs the optimization:
// affected requests fall back to their own lookup.
func (b *BulkDispatcher) prefetch(ctx context.Context, requests []*models.TriggerRequest) map[string]*workflow.Prefetched {
	identifiers := make(map[string][]string)

	for _, req := range requests {
		if req == nil || req.BridgeURL != "" {
			continue
		}

		identifiers[req.EnvironmentID] = append(identifiers[req.EnvironmentID], req.Identifier)
	}

	prefetched := make(map[string]*workflow.Prefetched, len(identifiers))

	for environmentID, ids := range identifiers {
		batch, err := b.workflows.ResolveMany(ctx, environmentID, ids)
		if err != nil {
			b.logger.WarnContext(ctx, "Failed to prefetch workflows, falling back to single lookups",
				"environment_id", environmentID,
				"error", err)

			continue
		}

		prefetched[environmentID] = batch
	}

	return prefetched
}
