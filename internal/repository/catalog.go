package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

// slugTable implements the queries shared by categories and genres, which have
// identical shapes.
type slugTable struct {
	db    DBTX
	table string
	kind  string
}

type slugRow struct {
	ID   int64
	Name string
	Slug string
}

// SlugListResult is one page of categories or genres plus the unpaged total.
type SlugListResult[T any] struct {
	Items []T
	Total int64
}

func (t slugTable) create(ctx context.Context, name, slug string) (slugRow, error) {
	query := fmt.Sprintf(`INSERT INTO %s (name, slug) VALUES ($1, $2) RETURNING id, name, slug`, t.table)
	var row slugRow
	if err := t.db.QueryRow(ctx, query, name, slug).Scan(&row.ID, &row.Name, &row.Slug); err != nil {
		return slugRow{}, translateError(err)
	}
	return row, nil
}

func (t slugTable) getBySlug(ctx context.Context, slug string) (slugRow, error) {
	query := fmt.Sprintf(`SELECT id, name, slug FROM %s WHERE slug = $1`, t.table)
	var row slugRow
	if err := t.db.QueryRow(ctx, query, slug).Scan(&row.ID, &row.Name, &row.Slug); err != nil {
		return slugRow{}, translateError(err)
	}
	return row, nil
}

func (t slugTable) list(ctx context.Context, search string, page Page) ([]slugRow, int64, error) {
	page = page.normalize()
	args := []any{}
	where := ""
	if s := strings.TrimSpace(search); s != "" {
		args = append(args, containsPattern(s))
		where = `WHERE name ILIKE $1 ESCAPE '\'`
	}
	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
        SELECT id, name, slug, COUNT(*) OVER() AS total
        FROM %s
        %s
        ORDER BY name, id
        LIMIT $%d OFFSET $%d
    `, t.table, where, len(args)-1, len(args))

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.table, err)
	}
	defer rows.Close()

	var (
		items []slugRow
		total int64
	)
	for rows.Next() {
		var row slugRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Slug, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, row)
	}
	return items, total, rows.Err()
}

func (t slugTable) deleteBySlug(ctx context.Context, slug string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE slug = $1`, t.table)
	tag, err := t.db.Exec(ctx, query, slug)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// idsBySlugs resolves slugs to ids; any unknown slug yields ErrUnknownReference.
func (t slugTable) idsBySlugs(ctx context.Context, slugs []string) ([]int64, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, slug FROM %s WHERE slug = ANY($1)`, t.table)
	rows, err := t.db.Query(ctx, query, slugs)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByPos[struct {
		ID   int64
		Slug string
	}])
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]int64, len(found))
	for _, f := range found {
		bySlug[f.Slug] = f.ID
	}
	ids := make([]int64, 0, len(slugs))
	seen := make(map[int64]struct{}, len(slugs))
	for _, s := range slugs {
		id, ok := bySlug[s]
		if !ok {
			return nil, &ReferenceError{Kind: t.kind, Slug: s}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// CategoriesRepository persists title categories.
type CategoriesRepository struct {
	slugTable
}

func (r *CategoriesRepository) Create(ctx context.Context, name, slug string) (domain.Category, error) {
	row, err := r.create(ctx, name, slug)
	return domain.Category(row), err
}

func (r *CategoriesRepository) GetBySlug(ctx context.Context, slug string) (domain.Category, error) {
	row, err := r.getBySlug(ctx, slug)
	return domain.Category(row), err
}

// List returns categories whose name contains search, ordered by name.
func (r *CategoriesRepository) List(ctx context.Context, search string, page Page) (SlugListResult[domain.Category], error) {
	rows, total, err := r.list(ctx, search, page)
	if err != nil {
		return SlugListResult[domain.Category]{}, err
	}
	items := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.Category(row))
	}
	return SlugListResult[domain.Category]{Items: items, Total: total}, nil
}

func (r *CategoriesRepository) DeleteBySlug(ctx context.Context, slug string) error {
	return r.deleteBySlug(ctx, slug)
}

// GenresRepository persists genres.
type GenresRepository struct {
	slugTable
}

func (r *GenresRepository) Create(ctx context.Context, name, slug string) (domain.Genre, error) {
	row, err := r.create(ctx, name, slug)
	return domain.Genre(row), err
}

func (r *GenresRepository) GetBySlug(ctx context.Context, slug string) (domain.Genre, error) {
	row, err := r.getBySlug(ctx, slug)
	return domain.Genre(row), err
}

// List returns genres whose name contains search, ordered by name.
func (r *GenresRepository) List(ctx context.Context, search string, page Page) (SlugListResult[domain.Genre], error) {
	rows, total, err := r.list(ctx, search, page)
	if err != nil {
		return SlugListResult[domain.Genre]{}, err
	}
	items := make([]domain.Genre, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.Genre(row))
	}
	return SlugListResult[domain.Genre]{Items: items, Total: total}, nil
}

func (r *GenresRepository) DeleteBySlug(ctx context.Context, slug string) error {
	return r.deleteBySlug(ctx, slug)
}
