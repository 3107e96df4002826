package repository

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

// RatingsRepository reads review scores and stores the derived title rating.
// It satisfies rating.Store; nothing else should call UpsertRating.
type RatingsRepository struct {
	db DBTX
}

// ScoresByTitle returns every review score of a title.
func (r *RatingsRepository) ScoresByTitle(ctx context.Context, titleID int64) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT score FROM reviews WHERE title_id = $1`, titleID)
	if err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// UpsertRating stores value as the title's rating, creating the row on first use.
func (r *RatingsRepository) UpsertRating(ctx context.Context, titleID int64, value *int) error {
	const query = `
        INSERT INTO title_ratings (title_id, rating)
        VALUES ($1, $2)
        ON CONFLICT (title_id)
        DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()
    `
	if _, err := r.db.Exec(ctx, query, titleID, value); err != nil {
		return fmt.Errorf("upsert rating: %w", translateError(err))
	}
	return nil
}

// Get returns the stored rating. A title that never had a review has no row
// and yields ErrNotFound.
func (r *RatingsRepository) Get(ctx context.Context, titleID int64) (domain.Rating, error) {
	var rating domain.Rating
	err := r.db.QueryRow(ctx,
		`SELECT title_id, rating, updated_at FROM title_ratings WHERE title_id = $1`,
		titleID,
	).Scan(&rating.TitleID, &rating.Value, &rating.UpdatedAt)
	if err != nil {
		return domain.Rating{}, translateError(err)
	}
	return rating, nil
}
