package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

// TitlesRepository provides persistence helpers for catalog titles.
type TitlesRepository struct {
	db DBTX
}

const titleSelect = `
    SELECT t.id,
           t.name,
           t.year,
           t.description,
           t.created_at,
           c.id,
           c.name,
           c.slug,
           tr.rating
    FROM titles t
    LEFT JOIN categories c ON c.id = t.category_id
    LEFT JOIN title_ratings tr ON tr.title_id = t.id
`

// TitleCreateParams bundles the fields required to create a title. Category
// and genres are referenced by slug.
type TitleCreateParams struct {
	Name         string
	Year         int
	Description  *string
	CategorySlug *string
	GenreSlugs   []string
}

// TitleUpdateParams carries a partial update; nil fields are left unchanged.
// An empty CategorySlug clears the category.
type TitleUpdateParams struct {
	Name         *string
	Year         *int
	Description  *string
	CategorySlug *string
	GenreSlugs   *[]string
}

// TitleListFilters mirrors the public query parameters of the titles list.
type TitleListFilters struct {
	GenreSlug    *string
	CategorySlug *string
	Name         *string
	Year         *int
	Page         Page
}

// TitleListResult returns the paginated payload.
type TitleListResult struct {
	Items []domain.Title
	Total int64
}

// Create inserts the title and its genre links. Run it inside a transaction so
// a bad genre slug does not leave a half-created title behind.
func (r *TitlesRepository) Create(ctx context.Context, params TitleCreateParams) (domain.Title, error) {
	categoryID, err := r.resolveCategory(ctx, params.CategorySlug)
	if err != nil {
		return domain.Title{}, err
	}

	var id int64
	err = r.db.QueryRow(ctx, `
        INSERT INTO titles (name, year, description, category_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, params.Name, params.Year, params.Description, categoryID).Scan(&id)
	if err != nil {
		return domain.Title{}, translateError(err)
	}

	if err := r.replaceGenres(ctx, id, params.GenreSlugs); err != nil {
		return domain.Title{}, err
	}
	return r.Get(ctx, id)
}

// Get loads a title with its category, genres and derived rating.
func (r *TitlesRepository) Get(ctx context.Context, id int64) (domain.Title, error) {
	title, err := scanTitle(r.db.QueryRow(ctx, titleSelect+` WHERE t.id = $1`, id))
	if err != nil {
		return domain.Title{}, translateError(err)
	}
	titles := []domain.Title{title}
	if err := r.attachGenres(ctx, titles); err != nil {
		return domain.Title{}, err
	}
	return titles[0], nil
}

// LockForReviewWrite takes a row lock on the title that every review writer of
// the same title must acquire first. FOR NO KEY UPDATE conflicts with itself
// but not with the KEY SHARE locks taken by foreign-key checks, so comment
// inserts elsewhere are not blocked.
func (r *TitlesRepository) LockForReviewWrite(ctx context.Context, id int64) error {
	var locked int64
	err := r.db.QueryRow(ctx, `SELECT id FROM titles WHERE id = $1 FOR NO KEY UPDATE`, id).Scan(&locked)
	return translateError(err)
}

// List returns titles matching filters ordered by id.
func (r *TitlesRepository) List(ctx context.Context, filters TitleListFilters) (TitleListResult, error) {
	page := filters.Page.normalize()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.GenreSlug != nil {
		conds = append(conds, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM genre_title gt JOIN genres g ON g.id = gt.genre_id
            WHERE gt.title_id = t.id AND g.slug = %s)`, arg(*filters.GenreSlug)))
	}
	if filters.CategorySlug != nil {
		conds = append(conds, "c.slug = "+arg(*filters.CategorySlug))
	}
	if filters.Name != nil {
		conds = append(conds, "t.name ILIKE "+arg(containsPattern(*filters.Name))+` ESCAPE '\'`)
	}
	if filters.Year != nil {
		conds = append(conds, "t.year = "+arg(*filters.Year))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	countQuery := `SELECT COUNT(*) FROM titles t LEFT JOIN categories c ON c.id = t.category_id` + where
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return TitleListResult{}, fmt.Errorf("count titles: %w", err)
	}

	query := titleSelect + where + fmt.Sprintf(" ORDER BY t.id LIMIT %s OFFSET %s", arg(page.Limit), arg(page.Offset))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return TitleListResult{}, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Title, 0, page.Limit)
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return TitleListResult{}, err
		}
		items = append(items, title)
	}
	if err := rows.Err(); err != nil {
		return TitleListResult{}, err
	}
	if err := r.attachGenres(ctx, items); err != nil {
		return TitleListResult{}, err
	}
	return TitleListResult{Items: items, Total: total}, nil
}

// Update applies a partial update and returns the refreshed title.
func (r *TitlesRepository) Update(ctx context.Context, id int64, params TitleUpdateParams) (domain.Title, error) {
	var (
		sets []string
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Name != nil {
		sets = append(sets, "name = "+arg(*params.Name))
	}
	if params.Year != nil {
		sets = append(sets, "year = "+arg(*params.Year))
	}
	if params.Description != nil {
		sets = append(sets, "description = "+arg(*params.Description))
	}
	if params.CategorySlug != nil {
		var categoryID *int64
		if *params.CategorySlug != "" {
			resolved, err := r.resolveCategory(ctx, params.CategorySlug)
			if err != nil {
				return domain.Title{}, err
			}
			categoryID = resolved
		}
		sets = append(sets, "category_id = "+arg(categoryID))
	}

	if len(sets) > 0 {
		query := fmt.Sprintf(`UPDATE titles SET %s WHERE id = %s`, strings.Join(sets, ", "), arg(id))
		tag, err := r.db.Exec(ctx, query, args...)
		if err != nil {
			return domain.Title{}, translateError(err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Title{}, ErrNotFound
		}
	} else if _, err := r.Get(ctx, id); err != nil {
		return domain.Title{}, err
	}

	if params.GenreSlugs != nil {
		if err := r.replaceGenres(ctx, id, *params.GenreSlugs); err != nil {
			return domain.Title{}, err
		}
	}
	return r.Get(ctx, id)
}

// Delete removes the title; reviews, comments and the rating cascade.
func (r *TitlesRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM titles WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TitlesRepository) resolveCategory(ctx context.Context, slug *string) (*int64, error) {
	if slug == nil || *slug == "" {
		return nil, nil
	}
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM categories WHERE slug = $1`, *slug).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ReferenceError{Kind: "category", Slug: *slug}
		}
		return nil, err
	}
	return &id, nil
}

func (r *TitlesRepository) replaceGenres(ctx context.Context, titleID int64, slugs []string) error {
	ids, err := slugTable{db: r.db, table: "genres", kind: "genre"}.idsBySlugs(ctx, slugs)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM genre_title WHERE title_id = $1`, titleID); err != nil {
		return fmt.Errorf("clear genres: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO genre_title (title_id, genre_id)
        SELECT $1, unnest($2::bigint[])
    `, titleID, ids)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *TitlesRepository) attachGenres(ctx context.Context, titles []domain.Title) error {
	if len(titles) == 0 {
		return nil
	}
	ids := make([]int64, len(titles))
	index := make(map[int64]int, len(titles))
	for i, t := range titles {
		ids[i] = t.ID
		index[t.ID] = i
	}

	rows, err := r.db.Query(ctx, `
        SELECT gt.title_id, g.id, g.name, g.slug
        FROM genre_title gt
        JOIN genres g ON g.id = gt.genre_id
        WHERE gt.title_id = ANY($1)
        ORDER BY g.name, g.id
    `, ids)
	if err != nil {
		return fmt.Errorf("load genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			titleID int64
			g       domain.Genre
		)
		if err := rows.Scan(&titleID, &g.ID, &g.Name, &g.Slug); err != nil {
			return err
		}
		i := index[titleID]
		titles[i].Genres = append(titles[i].Genres, g)
	}
	return rows.Err()
}

func scanTitle(row pgx.Row) (domain.Title, error) {
	var (
		title        domain.Title
		categoryID   *int64
		categoryName *string
		categorySlug *string
	)
	err := row.Scan(
		&title.ID,
		&title.Name,
		&title.Year,
		&title.Description,
		&title.CreatedAt,
		&categoryID,
		&categoryName,
		&categorySlug,
		&title.Rating,
	)
	if err != nil {
		return domain.Title{}, err
	}
	if categoryID != nil {
		title.Category = &domain.Category{ID: *categoryID, Name: *categoryName, Slug: *categorySlug}
	}
	return title, nil
}
