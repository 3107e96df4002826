// Package rating keeps a title's derived rating in step with its reviews.
package rating

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Store is the slice of the entity store the aggregator needs. Callers pass an
// implementation bound to the transaction that performed the review write so
// the recompute sees that write.
type Store interface {
	ScoresByTitle(ctx context.Context, titleID int64) ([]int, error)
	UpsertRating(ctx context.Context, titleID int64, value *int) error
}

// Aggregator recomputes and persists title ratings.
type Aggregator struct {
	log *zap.Logger
}

func NewAggregator(log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{log: log}
}

// Recompute reads every score of titleID through st, stores the rounded mean
// and returns it. A title without reviews gets a NULL rating.
func (a *Aggregator) Recompute(ctx context.Context, st Store, titleID int64) (*int, error) {
	const op = "rating.Aggregator.Recompute"

	scores, err := st.ScoresByTitle(ctx, titleID)
	if err != nil {
		return nil, fmt.Errorf("%s: load scores: %w", op, err)
	}
	value := Mean(scores)
	if err := st.UpsertRating(ctx, titleID, value); err != nil {
		return nil, fmt.Errorf("%s: store rating: %w", op, err)
	}

	if ce := a.log.Check(zap.DebugLevel, "rating recomputed"); ce != nil {
		fields := []zap.Field{zap.String("op", op), zap.Int64("title_id", titleID), zap.Int("reviews", len(scores))}
		if value != nil {
			fields = append(fields, zap.Int("rating", *value))
		}
		ce.Write(fields...)
	}
	return value, nil
}

// Mean returns the arithmetic mean of scores rounded half up, or nil for an
// empty slice. Scores are positive so (2*sum + n) / (2*n) is exact integer
// round-half-up.
func Mean(scores []int) *int {
	n := len(scores)
	if n == 0 {
		return nil
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	v := (2*sum + n) / (2 * n)
	return &v
}
