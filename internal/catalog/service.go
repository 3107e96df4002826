// Package catalog manages categories, genres and titles. Every mutation is
// admin-only; reads are public.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/access"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/repository"
	"github.com/Clark-Hu/yamdb/internal/validation"
)

// TxRunner runs fn inside a database transaction. *store.Store implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type Service struct {
	tx       TxRunner
	repo     *repository.Repository
	validate *govalidator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewService(tx TxRunner, repo *repository.Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{tx: tx, repo: repo, validate: validation.New(), log: log, now: time.Now}
}

// SlugInput is the payload for creating a category or genre.
type SlugInput struct {
	Name string `json:"name" validate:"required,max=256"`
	Slug string `json:"slug" validate:"required,max=50,slug"`
}

// TitleInput is the payload for creating a title.
type TitleInput struct {
	Name        string   `json:"name" validate:"required,max=256"`
	Year        int      `json:"year" validate:"gte=0"`
	Description *string  `json:"description"`
	Category    *string  `json:"category" validate:"omitempty,max=50"`
	Genres      []string `json:"genre" validate:"dive,max=50"`
}

// TitlePatch is a partial title update; nil fields are left unchanged.
type TitlePatch struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=256"`
	Year        *int      `json:"year" validate:"omitempty,gte=0"`
	Description *string   `json:"description"`
	Category    *string   `json:"category" validate:"omitempty,max=50"`
	Genres      *[]string `json:"genre"`
}

func (s *Service) authorize(actor *domain.User, kind access.Kind, action access.Action) error {
	if !access.CanMutate(actor, action, access.Resource{Kind: kind}) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) checkYear(year int) error {
	if current := s.now().Year(); year > current {
		return &domain.ValidationError{Fields: map[string]string{
			"year": fmt.Sprintf("Year cannot be greater than %d", current),
		}}
	}
	return nil
}

// unknownReference turns a bad category or genre slug into a validation error.
func unknownReference(err error) error {
	var ref *repository.ReferenceError
	if errors.As(err, &ref) {
		return &domain.ValidationError{Fields: map[string]string{ref.Kind: ref.Error()}}
	}
	return err
}

func (s *Service) CreateCategory(ctx context.Context, actor *domain.User, in SlugInput) (domain.Category, error) {
	if err := s.authorize(actor, access.KindCategory, access.ActionCreate); err != nil {
		return domain.Category{}, err
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.Category{}, err
	}
	return s.repo.Categories.Create(ctx, strings.TrimSpace(in.Name), in.Slug)
}

func (s *Service) DeleteCategory(ctx context.Context, actor *domain.User, slug string) error {
	if err := s.authorize(actor, access.KindCategory, access.ActionDelete); err != nil {
		return err
	}
	return s.repo.Categories.DeleteBySlug(ctx, slug)
}

func (s *Service) ListCategories(ctx context.Context, search string, page repository.Page) (repository.SlugListResult[domain.Category], error) {
	return s.repo.Categories.List(ctx, search, page)
}

func (s *Service) CreateGenre(ctx context.Context, actor *domain.User, in SlugInput) (domain.Genre, error) {
	if err := s.authorize(actor, access.KindGenre, access.ActionCreate); err != nil {
		return domain.Genre{}, err
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.Genre{}, err
	}
	return s.repo.Genres.Create(ctx, strings.TrimSpace(in.Name), in.Slug)
}

func (s *Service) DeleteGenre(ctx context.Context, actor *domain.User, slug string) error {
	if err := s.authorize(actor, access.KindGenre, access.ActionDelete); err != nil {
		return err
	}
	return s.repo.Genres.DeleteBySlug(ctx, slug)
}

func (s *Service) ListGenres(ctx context.Context, search string, page repository.Page) (repository.SlugListResult[domain.Genre], error) {
	return s.repo.Genres.List(ctx, search, page)
}

// CreateTitle inserts a title with its genre links in one transaction.
func (s *Service) CreateTitle(ctx context.Context, actor *domain.User, in TitleInput) (domain.Title, error) {
	const op = "catalog.Service.CreateTitle"

	if err := s.authorize(actor, access.KindTitle, access.ActionCreate); err != nil {
		return domain.Title{}, err
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.Title{}, err
	}
	if err := s.checkYear(in.Year); err != nil {
		return domain.Title{}, err
	}

	var title domain.Title
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		title, err = repository.NewWithDB(tx).Titles.Create(ctx, repository.TitleCreateParams{
			Name:         strings.TrimSpace(in.Name),
			Year:         in.Year,
			Description:  in.Description,
			CategorySlug: in.Category,
			GenreSlugs:   in.Genres,
		})
		return err
	})
	if err != nil {
		return domain.Title{}, unknownReference(err)
	}
	s.log.Info("title created", zap.String("op", op), zap.Int64("title_id", title.ID), zap.Int64("actor_id", actor.ID))
	return title, nil
}

// UpdateTitle applies a partial update. The derived rating is not writable here.
func (s *Service) UpdateTitle(ctx context.Context, actor *domain.User, id int64, in TitlePatch) (domain.Title, error) {
	if err := s.authorize(actor, access.KindTitle, access.ActionUpdate); err != nil {
		return domain.Title{}, err
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.Title{}, err
	}
	if in.Year != nil {
		if err := s.checkYear(*in.Year); err != nil {
			return domain.Title{}, err
		}
	}

	var title domain.Title
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		title, err = repository.NewWithDB(tx).Titles.Update(ctx, id, repository.TitleUpdateParams{
			Name:         in.Name,
			Year:         in.Year,
			Description:  in.Description,
			CategorySlug: in.Category,
			GenreSlugs:   in.Genres,
		})
		return err
	})
	if err != nil {
		return domain.Title{}, unknownReference(err)
	}
	return title, nil
}

func (s *Service) DeleteTitle(ctx context.Context, actor *domain.User, id int64) error {
	if err := s.authorize(actor, access.KindTitle, access.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Titles.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("title deleted", zap.Int64("title_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

func (s *Service) GetTitle(ctx context.Context, id int64) (domain.Title, error) {
	return s.repo.Titles.Get(ctx, id)
}

func (s *Service) ListTitles(ctx context.Context, filters repository.TitleListFilters) (repository.TitleListResult, error) {
	return s.repo.Titles.List(ctx, filters)
}
