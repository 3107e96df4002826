package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

// ReviewsRepository persists reviews. Writes are expected to run inside the
// transaction that also recomputes the title rating.
type ReviewsRepository struct {
	db DBTX
}

const reviewSelect = `
    SELECT r.id, r.title_id, r.author_id, u.username, r.text, r.score, r.pub_date
    FROM reviews r
    JOIN users u ON u.id = r.author_id
`

// ReviewCreateParams bundles the fields required to create a review.
type ReviewCreateParams struct {
	TitleID  int64
	AuthorID int64
	Text     string
	Score    int
}

// ReviewUpdateParams carries a partial update; nil fields are left unchanged.
type ReviewUpdateParams struct {
	Text  *string
	Score *int
}

// ReviewListResult returns the paginated payload.
type ReviewListResult struct {
	Items []domain.Review
	Total int64
}

// Create inserts a review. A second review by the same author for the same
// title fails with domain.ErrDuplicateReview.
func (r *ReviewsRepository) Create(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	const query = `
        WITH ins AS (
            INSERT INTO reviews (title_id, author_id, text, score)
            VALUES ($1, $2, $3, $4)
            RETURNING id, title_id, author_id, text, score, pub_date
        )
        SELECT ins.id, ins.title_id, ins.author_id, u.username, ins.text, ins.score, ins.pub_date
        FROM ins
        JOIN users u ON u.id = ins.author_id
    `
	review, err := scanReview(r.db.QueryRow(ctx, query, params.TitleID, params.AuthorID, params.Text, params.Score))
	if err != nil {
		return domain.Review{}, translateError(err)
	}
	return review, nil
}

// Get loads a review that belongs to titleID.
func (r *ReviewsRepository) Get(ctx context.Context, titleID, reviewID int64) (domain.Review, error) {
	review, err := scanReview(r.db.QueryRow(ctx, reviewSelect+` WHERE r.id = $1 AND r.title_id = $2`, reviewID, titleID))
	if err != nil {
		return domain.Review{}, translateError(err)
	}
	return review, nil
}

// ExistsByAuthor reports whether authorID already reviewed titleID.
func (r *ReviewsRepository) ExistsByAuthor(ctx context.Context, titleID, authorID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE title_id = $1 AND author_id = $2)`,
		titleID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return exists, nil
}

// TitleIDsByAuthor returns the ids of the titles authorID reviewed, ascending.
func (r *ReviewsRepository) TitleIDsByAuthor(ctx context.Context, authorID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT title_id FROM reviews WHERE author_id = $1 ORDER BY title_id`, authorID)
	if err != nil {
		return nil, fmt.Errorf("titles by author: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("titles by author: %w", err)
	}
	return ids, nil
}

// List returns the reviews of a title, oldest first.
func (r *ReviewsRepository) List(ctx context.Context, titleID int64, page Page) (ReviewListResult, error) {
	page = page.normalize()

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE title_id = $1`, titleID).Scan(&total); err != nil {
		return ReviewListResult{}, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := r.db.Query(ctx, reviewSelect+`
        WHERE r.title_id = $1
        ORDER BY r.pub_date, r.id
        LIMIT $2 OFFSET $3
    `, titleID, page.Limit, page.Offset)
	if err != nil {
		return ReviewListResult{}, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Review, 0, page.Limit)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return ReviewListResult{}, err
		}
		items = append(items, review)
	}
	return ReviewListResult{Items: items, Total: total}, rows.Err()
}

// Update applies a partial update. The title and author of a review never change.
func (r *ReviewsRepository) Update(ctx context.Context, reviewID int64, params ReviewUpdateParams) (domain.Review, error) {
	const query = `
        WITH upd AS (
            UPDATE reviews
            SET text = COALESCE($2, text),
                score = COALESCE($3, score)
            WHERE id = $1
            RETURNING id, title_id, author_id, text, score, pub_date
        )
        SELECT upd.id, upd.title_id, upd.author_id, u.username, upd.text, upd.score, upd.pub_date
        FROM upd
        JOIN users u ON u.id = upd.author_id
    `
	review, err := scanReview(r.db.QueryRow(ctx, query, reviewID, params.Text, params.Score))
	if err != nil {
		return domain.Review{}, translateError(err)
	}
	return review, nil
}

// Delete removes a review and returns the id of the title it belonged to.
func (r *ReviewsRepository) Delete(ctx context.Context, reviewID int64) (int64, error) {
	var titleID int64
	err := r.db.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING title_id`, reviewID).Scan(&titleID)
	if err != nil {
		return 0, translateError(err)
	}
	return titleID, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var review domain.Review
	err := row.Scan(
		&review.ID,
		&review.TitleID,
		&review.AuthorID,
		&review.Author,
		&review.Text,
		&review.Score,
		&review.PubDate,
	)
	return review, err
}
