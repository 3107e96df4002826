// Package users manages accounts, profile edits and the signup flow.
package users

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
	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/events"
	"github.com/Clark-Hu/yamdb/internal/rating"
	"github.com/Clark-Hu/yamdb/internal/repository"
	"github.com/Clark-Hu/yamdb/internal/validation"
)

const defaultTokenTTL = 24 * time.Hour

// TxRunner runs fn inside a database transaction. *store.Store implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Publisher receives post-commit notifications. *events.Publisher implements it.
type Publisher interface {
	Publish(subject string, actorID int64, props map[string]any)
}

// Options carries the optional collaborators of the service.
type Options struct {
	Tokens   auth.Verifier
	TokenTTL time.Duration
	Events   Publisher
	Log      *zap.Logger
}

type Service struct {
	tx         TxRunner
	repo       *repository.Repository
	aggregator *rating.Aggregator
	tokens     auth.Verifier
	tokenTTL   time.Duration
	events     Publisher
	validate   *govalidator.Validate
	log        *zap.Logger
}

// NewService wires the user service. Account deletion runs through tx because
// it recomputes the ratings of every title the account reviewed.
func NewService(tx TxRunner, repo *repository.Repository, agg *rating.Aggregator, opts Options) *Service {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if agg == nil {
		agg = rating.NewAggregator(log)
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{
		tx:         tx,
		repo:       repo,
		aggregator: agg,
		tokens:     opts.Tokens,
		tokenTTL:   ttl,
		events:     opts.Events,
		validate:   validation.New(),
		log:        log,
	}
}

// CreateInput is the admin payload for a new account.
type CreateInput struct {
	Username  string `json:"username" validate:"required,max=150,username"`
	Email     string `json:"email" validate:"required,max=254,email"`
	Role      string `json:"role" validate:"omitempty,oneof=user moderator admin"`
	Bio       string `json:"bio"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// Patch is a partial profile update; nil fields are left unchanged.
type Patch struct {
	Username  *string `json:"username" validate:"omitempty,max=150,username"`
	Email     *string `json:"email" validate:"omitempty,max=254,email"`
	Role      *string `json:"role" validate:"omitempty,oneof=user moderator admin"`
	Bio       *string `json:"bio"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

func (s *Service) Create(ctx context.Context, actor *domain.User, in CreateInput) (domain.User, error) {
	const op = "users.Service.Create"

	if !access.CanMutate(actor, access.ActionCreate, access.Resource{Kind: access.KindUser}) {
		return domain.User{}, domain.ErrForbidden
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.Users.Create(ctx, repository.UserCreateParams{
		Username:  in.Username,
		Email:     in.Email,
		Role:      domain.Role(in.Role),
		Bio:       in.Bio,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user created", zap.String("op", op), zap.Int64("user_id", user.ID), zap.Int64("actor_id", actor.ID))
	return user, nil
}

// List returns accounts, optionally only the one whose username equals\n// search ignoring case. Admin only.
func (s *Service) List(ctx context.Context, actor *domain.User, search string, page repository.Page) (repository.UserListResult, error) {
	if !access.CanMutate(actor, access.ActionList, access.Resource{Kind: access.KindUser}) {
		return repository.UserListResult{}, domain.ErrForbidden
	}
	return s.repo.Users.List(ctx, search, page)
}

// Get returns another user's account. Admin only.
func (s *Service) Get(ctx context.Context, actor *domain.User, username string) (domain.User, error) {
	if !access.CanMutate(actor, access.ActionList, access.Resource{Kind: access.KindUser}) {
		return domain.User{}, domain.ErrForbidden
	}
	return s.repo.Users.GetByUsername(ctx, username)
}

// Update edits the account named username. Profile fields follow the owner
// rule; a role change additionally requires admin.
func (s *Service) Update(ctx context.Context, actor *domain.User, username string, in Patch) (domain.User, error) {
	if !access.CanMutate(actor, access.ActionList, access.Resource{Kind: access.KindUser}) {
		return domain.User{}, domain.ErrForbidden
	}
	target, err := s.repo.Users.GetByUsername(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	return s.apply(ctx, actor, target, in)
}

// UpdateMe edits the actor's own account. Sending a role different from the
// current one is rejected unless the actor is an admin.
func (s *Service) UpdateMe(ctx context.Context, actor *domain.User, in Patch) (domain.User, error) {
	if actor == nil {
		return domain.User{}, domain.ErrForbidden
	}
	return s.apply(ctx, actor, *actor, in)
}

// Delete removes the account named username together with its reviews and
// comments, and recomputes the rating of every title it had reviewed. Admin
// only.
func (s *Service) Delete(ctx context.Context, actor *domain.User, username string) error {
	const op = "users.Service.Delete"

	if !access.CanMutate(actor, access.ActionDelete, access.Resource{Kind: access.KindUser}) {
		return domain.ErrForbidden
	}
	var (
		target  domain.User
		touched []int64
		ratings map[int64]*int
	)
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewWithDB(tx)
		var err error
		target, err = repo.Users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		touched, err = lockReviewedTitles(ctx, repo, target.ID)
		if err != nil {
			return err
		}
		if err := repo.Users.Delete(ctx, target.ID); err != nil {
			return err
		}
		ratings = make(map[int64]*int, len(touched))
		for _, titleID := range touched {
			value, err := s.aggregator.Recompute(ctx, repo.Ratings, titleID)
			if err != nil {
				return err
			}
			ratings[titleID] = value
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		s.log.Error("user delete failed", zap.String("op", op), zap.String("username", username), zap.Error(err))
		return fmt.Errorf("delete user: %w", err)
	}

	s.log.Info("user deleted", zap.String("op", op),
		zap.Int64("user_id", target.ID), zap.Int("titles_recomputed", len(touched)), zap.Int64("actor_id", actor.ID))
	for _, titleID := range touched {
		s.publish(events.SubjectRatingUpdated, actor.ID, map[string]any{
			"title_id": titleID,
			"rating":   ratings[titleID],
		})
	}
	return nil
}

// lockReviewedTitles locks every title the user reviewed, then the user row,
// and returns the titles that still exist. Titles are locked before the user
// and in id order, the same order review writers take. Once the user row is
// held no new review by the user can commit, so a second read picks up any
// title reviewed in between.
func lockReviewedTitles(ctx context.Context, repo *repository.Repository, userID int64) ([]int64, error) {
	seen := make(map[int64]bool)
	var locked []int64
	lock := func(ids []int64) error {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			err := repo.Titles.LockForReviewWrite(ctx, id)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				// Deleted concurrently; its reviews and rating went with it.
			case err != nil:
				return err
			default:
				locked = append(locked, id)
			}
		}
		return nil
	}

	ids, err := repo.Reviews.TitleIDsByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := lock(ids); err != nil {
		return nil, err
	}
	if err := repo.Users.LockForDelete(ctx, userID); err != nil {
		return nil, err
	}
	if ids, err = repo.Reviews.TitleIDsByAuthor(ctx, userID); err != nil {
		return nil, err
	}
	if err := lock(ids); err != nil {
		return nil, err
	}
	return locked, nil
}

func (s *Service) apply(ctx context.Context, actor *domain.User, target domain.User, in Patch) (domain.User, error) {
	const op = "users.Service.apply"

	res := access.Resource{Kind: access.KindUser, OwnerID: target.ID}
	if !access.CanMutate(actor, access.ActionUpdate, res) {
		return domain.User{}, domain.ErrForbidden
	}
	if in.Username != nil {
		trimmed := strings.TrimSpace(*in.Username)
		in.Username = &trimmed
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.User{}, err
	}

	params := repository.UserUpdateParams{
		Username:  in.Username,
		Email:     in.Email,
		Bio:       in.Bio,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if in.Role != nil && domain.Role(*in.Role) != target.Role {
		if !access.CanMutate(actor, access.ActionChangeRole, res) {
			return domain.User{}, domain.ErrForbidden
		}
		role := domain.Role(*in.Role)
		params.Role = &role
	}
	updated, err := s.repo.Users.Update(ctx, target.ID, params)
	if err != nil {
		return domain.User{}, err
	}
	if params.Role != nil {
		s.log.Info("role changed", zap.String("op", op),
			zap.Int64("user_id", target.ID), zap.String("role", string(*params.Role)), zap.Int64("actor_id", actor.ID))
	}
	return updated, nil
}

func (s *Service) publish(subject string, actorID int64, props map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(subject, actorID, props)
}
