package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

// CommentsRepository persists comments on reviews.
type CommentsRepository struct {
	db DBTX
}

const commentSelect = `
    SELECT c.id, c.review_id, c.author_id, u.username, c.text, c.pub_date
    FROM comments c
    JOIN users u ON u.id = c.author_id
`

// CommentListResult returns the paginated payload.
type CommentListResult struct {
	Items []domain.Comment
	Total int64
}

func (r *CommentsRepository) Create(ctx context.Context, reviewID, authorID int64, text string) (domain.Comment, error) {
	const query = `
        WITH ins AS (
            INSERT INTO comments (review_id, author_id, text)
            VALUES ($1, $2, $3)
            RETURNING id, review_id, author_id, text, pub_date
        )
        SELECT ins.id, ins.review_id, ins.author_id, u.username, ins.text, ins.pub_date
        FROM ins
        JOIN users u ON u.id = ins.author_id
    `
	comment, err := scanComment(r.db.QueryRow(ctx, query, reviewID, authorID, text))
	if err != nil {
		return domain.Comment{}, translateError(err)
	}
	return comment, nil
}

// Get loads a comment that belongs to reviewID.
func (r *CommentsRepository) Get(ctx context.Context, reviewID, commentID int64) (domain.Comment, error) {
	comment, err := scanComment(r.db.QueryRow(ctx, commentSelect+` WHERE c.id = $1 AND c.review_id = $2`, commentID, reviewID))
	if err != nil {
		return domain.Comment{}, translateError(err)
	}
	return comment, nil
}

func (r *CommentsRepository) List(ctx context.Context, reviewID int64, page Page) (CommentListResult, error) {
	page = page.normalize()

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE review_id = $1`, reviewID).Scan(&total); err != nil {
		return CommentListResult{}, fmt.Errorf("count comments: %w", err)
	}

	rows, err := r.db.Query(ctx, commentSelect+`
        WHERE c.review_id = $1
        ORDER BY c.pub_date, c.id
        LIMIT $2 OFFSET $3
    `, reviewID, page.Limit, page.Offset)
	if err != nil {
		return CommentListResult{}, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Comment, 0, page.Limit)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return CommentListResult{}, err
		}
		items = append(items, comment)
	}
	return CommentListResult{Items: items, Total: total}, rows.Err()
}

func (r *CommentsRepository) UpdateText(ctx context.Context, commentID int64, text string) (domain.Comment, error) {
	const query = `
        WITH upd AS (
            UPDATE comments SET text = $2 WHERE id = $1
            RETURNING id, review_id, author_id, text, pub_date
        )
        SELECT upd.id, upd.review_id, upd.author_id, u.username, upd.text, upd.pub_date
        FROM upd
        JOIN users u ON u.id = upd.author_id
    `
	comment, err := scanComment(r.db.QueryRow(ctx, query, commentID, text))
	if err != nil {
		return domain.Comment{}, translateError(err)
	}
	return comment, nil
}

func (r *CommentsRepository) Delete(ctx context.Context, commentID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Author, &c.Text, &c.PubDate)
	return c, err
}
