// Package reviews implements review and comment mutations. Every review write
// runs in one transaction that locks the title, validates, writes and
// recomputes the title rating before committing.
package reviews

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/yamdb/internal/access"
	"github.com/Clark-Hu/yamdb/internal/domain"
)

// Lookup is the transactional read side the guard needs.
type Lookup interface {
	// LockTitle blocks until the caller holds the title's review-write lock.
	// It fails with an error matching domain.ErrNotFound for unknown titles.
	LockTitle(ctx context.Context, titleID int64) error
	ReviewExists(ctx context.Context, titleID, authorID int64) (bool, error)
}

// Guard enforces authorship, role and uniqueness rules before a review write.
type Guard struct{}

// AuthorizeCreate checks that actor may post score on titleID. On success the
// caller holds the title lock, so the duplicate check stays valid until commit.
func (Guard) AuthorizeCreate(ctx context.Context, lk Lookup, actor *domain.User, titleID int64, score int) error {
	if !access.CanMutate(actor, access.ActionCreate, access.Resource{Kind: access.KindReview}) {
		return domain.ErrForbidden
	}
	if !domain.ValidScore(score) {
		return fmt.Errorf("%w: got %d", domain.ErrScoreRange, score)
	}
	if err := lk.LockTitle(ctx, titleID); err != nil {
		return err
	}
	exists, err := lk.ReviewExists(ctx, titleID, actor.ID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrDuplicateReview
	}
	return nil
}

// AuthorizeChange checks that actor may update or delete review. newScore is
// validated when present.
func (Guard) AuthorizeChange(actor *domain.User, action access.Action, review domain.Review, newScore *int) error {
	res := access.Resource{Kind: access.KindReview, OwnerID: review.AuthorID}
	if !access.CanMutate(actor, action, res) {
		return domain.ErrForbidden
	}
	if newScore != nil && !domain.ValidScore(*newScore) {
		return fmt.Errorf("%w: got %d", domain.ErrScoreRange, *newScore)
	}
	return nil
}
