package vectorstore

import (
	"context"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
)

// Retrying wraps a Store and retries transient failures with exponential
// backoff. Every Store operation is idempotent, so all of them are retried.
type Retrying struct {
	next       Store
	maxRetries int
	backoff    time.Duration
}

// NewRetrying wraps next. maxRetries is the number of extra attempts after the
// first failure; backoff is the initial delay and doubles per attempt.
func NewRetrying(next Store, maxRetries int, backoff time.Duration) *Retrying {
	return &Retrying{
		next:       next,
		maxRetries: max(0, maxRetries),
		backoff:    backoff,
	}
}

func (r *Retrying) retry(ctx context.Context, op string, fn func() error) error {
	logger := contextutil.LoggerFromContext(ctx)
	backoff := r.backoff

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !apperr.IsTransient(err) || attempt >= r.maxRetries {
			return err
		}
		logger.WarnContext(ctx, "transient vector store failure, retrying", "op", op, "attempt", attempt+1, "backoff", backoff, "error", err)
		if err := sleepCtx(ctx, backoff); err != nil {
			return apperr.Store(op, err, false)
		}
		backoff *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Upsert retries the wrapped Upsert.
func (r *Retrying) Upsert(ctx context.Context, records []Record) error {
	return r.retry(ctx, "upsert", func() error {
		return r.next.Upsert(ctx, records)
	})
}

// Get retries the wrapped Get.
func (r *Retrying) Get(ctx context.Context, ids []string) ([]Record, error) {
	var out []Record
	err := r.retry(ctx, "get", func() error {
		var err error
		out, err = r.next.Get(ctx, ids)
		return err
	})
	return out, err
}

// QueryByFilter retries the wrapped QueryByFilter.
func (r *Retrying) QueryByFilter(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	var out []Record
	err := r.retry(ctx, "query_by_filter", func() error {
		var err error
		out, err = r.next.QueryByFilter(ctx, filter, limit)
		return err
	})
	return out, err
}

// QueryBySimilarity retries the wrapped QueryBySimilarity.
func (r *Retrying) QueryBySimilarity(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	var out []Result
	err := r.retry(ctx, "query_by_similarity", func() error {
		var err error
		out, err = r.next.QueryBySimilarity(ctx, vector, k, filter)
		return err
	})
	return out, err
}

// Delete retries the wrapped Delete.
func (r *Retrying) Delete(ctx context.Context, ids []string) error {
	return r.retry(ctx, "delete", func() error {
		return r.next.Delete(ctx, ids)
	})
}

// Health is not retried so health checks report the current state.
func (r *Retrying) Health(ctx context.Context) error {
	return r.next.Health(ctx)
}
