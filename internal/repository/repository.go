package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = fmt.Errorf("repository: %w", domain.ErrConflict)
	// ErrUnknownReference indicates a slug or id referenced by a write does not exist.
	ErrUnknownReference = errors.New("repository: unknown reference")
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgFKViolation     = "23503"

	reviewAuthorTitleKey = "reviews_author_title_key"
	reviewScoreRange     = "reviews_score_range"
)

// ReferenceError reports a category or genre slug that does not exist. It
// matches ErrUnknownReference.
type ReferenceError struct {
	Kind string
	Slug string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Slug)
}

func (e *ReferenceError) Unwrap() error {
	return ErrUnknownReference
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository can
// run standalone or inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Titles     *TitlesRepository
	Categories *CategoriesRepository
	Genres     *GenresRepository
	Reviews    *ReviewsRepository
	Comments   *CommentsRepository
	Ratings    *RatingsRepository
	Users      *UsersRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithDB(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return NewWithDB(pool)
}

// NewWithDB binds every repository to db. Pass a pgx.Tx to make all reads and
// writes part of that transaction.
func NewWithDB(db DBTX) *Repository {
	return &Repository{
		Titles:     &TitlesRepository{db: db},
		Categories: &CategoriesRepository{slugTable{db: db, table: "categories", kind: "category"}},
		Genres:     &GenresRepository{slugTable{db: db, table: "genres", kind: "genre"}},
		Reviews:    &ReviewsRepository{db: db},
		Comments:   &CommentsRepository{db: db},
		Ratings:    &RatingsRepository{db: db},
		Users:      &UsersRepository{db: db},
	}
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// translateError maps driver errors onto repository and domain sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == reviewAuthorTitleKey {
			return domain.ErrDuplicateReview
		}
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case pgCheckViolation:
		if pgErr.ConstraintName == reviewScoreRange {
			return domain.ErrScoreRange
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.ConstraintName)
	case pgFKViolation:
		return fmt.Errorf("%w: %s", ErrUnknownReference, pgErr.ConstraintName)
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern that matches s literally anywhere in
// the column. Use it with ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
