package users

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/events"
	"github.com/Clark-Hu/yamdb/internal/repository"
	"github.com/Clark-Hu/yamdb/internal/validation"
)

// SignupInput is the self-registration payload.
type SignupInput struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
}

// TokenInput exchanges a confirmation code for a bearer token.
type TokenInput struct {
	Username         string `json:"username" validate:"required,max=150"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

// Signup registers a user account, or finds the existing one when both the
// username and the email match it, and sends out a confirmation code.
// A username or email held by another account is a validation error.
func (s *Service) Signup(ctx context.Context, in SignupInput) (domain.User, error) {
	const op = "users.Service.Signup"

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(s.validate, in); err != nil {
		return domain.User{}, err
	}

	user, err := s.repo.Users.GetByUsername(ctx, in.Username)
	switch {
	case err == nil:
		if !strings.EqualFold(user.Email, in.Email) {
			return domain.User{}, fieldError("username", "A user with that username already exists")
		}
	case errors.Is(err, domain.ErrNotFound):
		user, err = s.repo.Users.Create(ctx, repository.UserCreateParams{
			Username: in.Username,
			Email:    in.Email,
			Role:     domain.RoleUser,
		})
		if errors.Is(err, domain.ErrConflict) {
			if strings.Contains(err.Error(), "email") {
				return domain.User{}, fieldError("email", "A user with that email already exists")
			}
			return domain.User{}, fieldError("username", "A user with that username already exists")
		}
		if err != nil {
			return domain.User{}, err
		}
		s.log.Info("user signed up", zap.String("op", op), zap.Int64("user_id", user.ID))
	default:
		return domain.User{}, err
	}

	code := s.tokens.ConfirmationCode(user)
	s.log.Debug("confirmation code issued", zap.String("op", op),
		zap.Int64("user_id", user.ID), zap.String("email", user.Email), zap.String("confirmation_code", code))
	s.publish(events.SubjectUserSignup, user.ID, map[string]any{
		"username":          user.Username,
		"email":             user.Email,
		"confirmation_code": code,
	})
	return user, nil
}

// IssueToken returns a bearer token for username when code matches the one
// Signup sent.
func (s *Service) IssueToken(ctx context.Context, in TokenInput) (string, error) {
	const op = "users.Service.IssueToken"

	in.Username = strings.TrimSpace(in.Username)
	in.ConfirmationCode = strings.TrimSpace(in.ConfirmationCode)
	if err := validation.Struct(s.validate, in); err != nil {
		return "", err
	}
	user, err := s.repo.Users.GetByUsername(ctx, in.Username)
	if err != nil {
		return "", err
	}
	if !s.tokens.CheckConfirmationCode(user, in.ConfirmationCode) {
		s.log.Debug("confirmation code rejected", zap.String("op", op), zap.Int64("user_id", user.ID))
		return "", fieldError("confirmation_code", "Invalid confirmation code")
	}
	token, err := s.tokens.Sign(user.ID, s.tokenTTL)
	if err != nil {
		s.log.Error("sign token failed", zap.String("op", op), zap.Int64("user_id", user.ID), zap.Error(err))
		return "", err
	}
	return token, nil
}

func fieldError(field, msg string) error {
	return &domain.ValidationError{Fields: map[string]string{field: msg}}
}
