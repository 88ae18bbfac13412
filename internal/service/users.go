package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

// UserService - profile reads and updates for the signed-in user
type UserService struct {
	users       userRepo
	credentials *CredentialVerifier
	refresh     *RefreshTokens
	log         zerolog.Logger
}

func NewUserService(users userRepo, credentials *CredentialVerifier, refresh *RefreshTokens, log zerolog.Logger) *UserService {
	return &UserService{
		users:       users,
		credentials: credentials,
		refresh:     refresh,
		log:         log,
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := validateProfile(name, email); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateUserProfile(ctx, userID, name, email)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate):
			return nil, fmt.Errorf("%w: email already in use", ErrConflict)
		case errors.Is(err, db.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password and signs the user out everywhere.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.credentials.Compare(user, currentPassword); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.credentials.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.refresh.RevokeAll(ctx, userID, model.RevokeReasonPasswordChanged)
	if err != nil {
		return err
	}
	s.log.Info().Str("user_id", userID).Int64("revoked", revoked).Msg("password changed")
	return nil
}
