package reviews

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/access"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/repository"
)

// CommentService handles comments under a review. Comments never touch the
// title rating, so no transaction or title lock is needed.
type CommentService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewCommentService(repo *repository.Repository, log *zap.Logger) *CommentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommentService{repo: repo, log: log}
}

func (s *CommentService) Create(ctx context.Context, actor *domain.User, titleID, reviewID int64, text string) (domain.Comment, error) {
	const op = "reviews.CommentService.Create"

	if !access.CanMutate(actor, access.ActionCreate, access.Resource{Kind: access.KindComment}) {
		return domain.Comment{}, domain.ErrForbidden
	}
	text, err := requireText(text)
	if err != nil {
		return domain.Comment{}, err
	}
	if _, err := s.repo.Reviews.Get(ctx, titleID, reviewID); err != nil {
		return domain.Comment{}, err
	}
	comment, err := s.repo.Comments.Create(ctx, reviewID, actor.ID, text)
	if err != nil {
		// The review vanished between the lookup and the insert.
		if errors.Is(err, repository.ErrUnknownReference) {
			return domain.Comment{}, repository.ErrNotFound
		}
		s.log.Error("create comment failed", zap.String("op", op), zap.Error(err))
		return domain.Comment{}, err
	}
	return comment, nil
}

func (s *CommentService) Update(ctx context.Context, actor *domain.User, titleID, reviewID, commentID int64, text string) (domain.Comment, error) {
	current, err := s.load(ctx, titleID, reviewID, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	if !access.CanMutate(actor, access.ActionUpdate, access.Resource{Kind: access.KindComment, OwnerID: current.AuthorID}) {
		return domain.Comment{}, domain.ErrForbidden
	}
	text, err = requireText(text)
	if err != nil {
		return domain.Comment{}, err
	}
	return s.repo.Comments.UpdateText(ctx, commentID, text)
}

func (s *CommentService) Delete(ctx context.Context, actor *domain.User, titleID, reviewID, commentID int64) error {
	current, err := s.load(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	if !access.CanMutate(actor, access.ActionDelete, access.Resource{Kind: access.KindComment, OwnerID: current.AuthorID}) {
		return domain.ErrForbidden
	}
	return s.repo.Comments.Delete(ctx, commentID)
}

func (s *CommentService) Get(ctx context.Context, titleID, reviewID, commentID int64) (domain.Comment, error) {
	return s.load(ctx, titleID, reviewID, commentID)
}

func (s *CommentService) List(ctx context.Context, titleID, reviewID int64, page repository.Page) (repository.CommentListResult, error) {
	if _, err := s.repo.Reviews.Get(ctx, titleID, reviewID); err != nil {
		return repository.CommentListResult{}, err
	}
	return s.repo.Comments.List(ctx, reviewID, page)
}

// load resolves the full title/review/comment path so a comment cannot be
// reached through a review it does not belong to.
func (s *CommentService) load(ctx context.Context, titleID, reviewID, commentID int64) (domain.Comment, error) {
	if _, err := s.repo.Reviews.Get(ctx, titleID, reviewID); err != nil {
		return domain.Comment{}, err
	}
	return s.repo.Comments.Get(ctx, reviewID, commentID)
}

func requireText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.ValidationError{Fields: map[string]string{"text": "This field is required"}}
	}
	return text, nil
}
