package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/access"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/events"
	"github.com/Clark-Hu/yamdb/internal/rating"
	"github.com/Clark-Hu/yamdb/internal/repository"
)

// TxRunner runs fn inside a database transaction. *store.Store implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Publisher receives post-commit notifications. *events.Publisher implements it.
type Publisher interface {
	Publish(subject string, actorID int64, props map[string]any)
}

// Service is the only code path that mutates reviews, and through the
// aggregator, title ratings.
type Service struct {
	tx         TxRunner
	repo       *repository.Repository
	guard      Guard
	aggregator *rating.Aggregator
	events     Publisher
	log        *zap.Logger
}

// NewService wires the review service. repo serves public reads; writes use
// repositories bound to the transaction opened through tx.
func NewService(tx TxRunner, repo *repository.Repository, agg *rating.Aggregator, pub Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if agg == nil {
		agg = rating.NewAggregator(log)
	}
	return &Service{tx: tx, repo: repo, aggregator: agg, events: pub, log: log}
}

// UpdateInput carries a partial review update.
type UpdateInput struct {
	Text  *string
	Score *int
}

// txLookup adapts transaction-bound repositories to the guard's Lookup.
type txLookup struct {
	repo *repository.Repository
}

func (l txLookup) LockTitle(ctx context.Context, titleID int64) error {
	return l.repo.Titles.LockForReviewWrite(ctx, titleID)
}

func (l txLookup) ReviewExists(ctx context.Context, titleID, authorID int64) (bool, error) {
	return l.repo.Reviews.ExistsByAuthor(ctx, titleID, authorID)
}

// Create posts a review by actor and recomputes the title rating in the same
// transaction.
func (s *Service) Create(ctx context.Context, actor *domain.User, titleID int64, text string, score int) (domain.Review, error) {
	const op = "reviews.Service.Create"
	log := s.log.With(zap.String("op", op), zap.Int64("title_id", titleID))

	var (
		review    domain.Review
		newRating *int
	)
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewWithDB(tx)
		if err := s.guard.AuthorizeCreate(ctx, txLookup{repo}, actor, titleID, score); err != nil {
			return err
		}
		body, err := requireText(text)
		if err != nil {
			return err
		}
		review, err = repo.Reviews.Create(ctx, repository.ReviewCreateParams{
			TitleID:  titleID,
			AuthorID: actor.ID,
			Text:     body,
			Score:    score,
		})
		if err != nil {
			return err
		}
		newRating, err = s.aggregator.Recompute(ctx, repo.Ratings, titleID)
		return err
	})
	if err != nil {
		return domain.Review{}, s.fail(log, err)
	}

	log.Info("review created", zap.Int64("review_id", review.ID), zap.Int64("author_id", review.AuthorID))
	s.publish(events.SubjectReviewCreated, actor, review, newRating)
	return review, nil
}

// Update edits a review. The rating is recomputed when the score changes.
func (s *Service) Update(ctx context.Context, actor *domain.User, titleID, reviewID int64, in UpdateInput) (domain.Review, error) {
	const op = "reviews.Service.Update"
	log := s.log.With(zap.String("op", op), zap.Int64("title_id", titleID), zap.Int64("review_id", reviewID))

	var (
		review    domain.Review
		newRating *int
	)
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewWithDB(tx)
		if err := repo.Titles.LockForReviewWrite(ctx, titleID); err != nil {
			return err
		}
		current, err := repo.Reviews.Get(ctx, titleID, reviewID)
		if err != nil {
			return err
		}
		if err := s.guard.AuthorizeChange(actor, access.ActionUpdate, current, in.Score); err != nil {
			return err
		}
		if in.Text != nil {
			trimmed := strings.TrimSpace(*in.Text)
			if trimmed == "" {
				return &domain.ValidationError{Fields: map[string]string{"text": "This field may not be blank"}}
			}
			in.Text = &trimmed
		}
		review, err = repo.Reviews.Update(ctx, reviewID, repository.ReviewUpdateParams{Text: in.Text, Score: in.Score})
		if err != nil {
			return err
		}
		if in.Score == nil {
			return nil
		}
		newRating, err = s.aggregator.Recompute(ctx, repo.Ratings, titleID)
		return err
	})
	if err != nil {
		return domain.Review{}, s.fail(log, err)
	}

	log.Info("review updated", zap.Int64("actor_id", actor.ID))
	if in.Score != nil {
		s.publish(events.SubjectReviewUpdated, actor, review, newRating)
	}
	return review, nil
}

// Delete removes a review and recomputes the rating of the title it belonged
// to, which may become NULL.
func (s *Service) Delete(ctx context.Context, actor *domain.User, titleID, reviewID int64) error {
	const op = "reviews.Service.Delete"
	log := s.log.With(zap.String("op", op), zap.Int64("title_id", titleID), zap.Int64("review_id", reviewID))

	var (
		removed   domain.Review
		newRating *int
	)
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewWithDB(tx)
		if err := repo.Titles.LockForReviewWrite(ctx, titleID); err != nil {
			return err
		}
		current, err := repo.Reviews.Get(ctx, titleID, reviewID)
		if err != nil {
			return err
		}
		if err := s.guard.AuthorizeChange(actor, access.ActionDelete, current, nil); err != nil {
			return err
		}
		owner, err := repo.Reviews.Delete(ctx, reviewID)
		if err != nil {
			return err
		}
		removed = current
		newRating, err = s.aggregator.Recompute(ctx, repo.Ratings, owner)
		return err
	})
	if err != nil {
		return s.fail(log, err)
	}

	log.Info("review deleted", zap.Int64("actor_id", actor.ID))
	s.publish(events.SubjectReviewDeleted, actor, removed, newRating)
	return nil
}

// Get returns a review of titleID. Reads are public.
func (s *Service) Get(ctx context.Context, titleID, reviewID int64) (domain.Review, error) {
	return s.repo.Reviews.Get(ctx, titleID, reviewID)
}

// List returns the reviews of an existing title.
func (s *Service) List(ctx context.Context, titleID int64, page repository.Page) (repository.ReviewListResult, error) {
	if _, err := s.repo.Titles.Get(ctx, titleID); err != nil {
		return repository.ReviewListResult{}, err
	}
	return s.repo.Reviews.List(ctx, titleID, page)
}

func (s *Service) publish(subject string, actor *domain.User, review domain.Review, newRating *int) {
	if s.events == nil {
		return
	}
	s.events.Publish(subject, actor.ID, map[string]any{
		"title_id":  review.TitleID,
		"review_id": review.ID,
		"score":     review.Score,
	})
	s.events.Publish(events.SubjectRatingUpdated, actor.ID, map[string]any{
		"title_id": review.TitleID,
		"rating":   newRating,
	})
}

// fail logs unexpected errors; caller errors are returned quietly.
func (s *Service) fail(log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrDuplicateReview),
		errors.Is(err, domain.ErrScoreRange),
		errors.Is(err, domain.ErrValidation):
		log.Debug("review mutation rejected", zap.Error(err))
		return err
	}
	log.Error("review mutation failed", zap.Error(err))
	return fmt.Errorf("review mutation: %w", err)
}
