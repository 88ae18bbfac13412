package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/yavishsahrawat40/My-Notes/internal/auth"
	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

const (
	minNameLength     = 2
	maxNameLength     = 50
	minPasswordLength = 6
	maxPasswordLength = 128
)

var validate = validator.New()

// AuthService ties credential checks, access tokens and refresh sessions
// into the login lifecycle.
type AuthService struct {
	users       userRepo
	credentials *CredentialVerifier
	codec       *auth.TokenCodec
	refresh     *RefreshTokens
	allowSignup bool
	log         zerolog.Logger
}

func NewAuthService(
	users userRepo,
	credentials *CredentialVerifier,
	codec *auth.TokenCodec,
	refresh *RefreshTokens,
	allowSignup bool,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		credentials: credentials,
		codec:       codec,
		refresh:     refresh,
		allowSignup: allowSignup,
		log:         log,
	}
}

func (s *AuthService) AllowSignup() bool {
	return s.allowSignup
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, model.SessionPair, error) {
	if !s.allowSignup {
		return nil, model.SessionPair{}, ErrForbidden
	}

	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := validateProfile(name, email); err != nil {
		return nil, model.SessionPair{}, err
	}
	if err := validatePassword(password); err != nil {
		return nil, model.SessionPair{}, err
	}

	hash, err := s.credentials.Hash(password)
	if err != nil {
		return nil, model.SessionPair{}, err
	}

	user, err := s.users.CreateUser(ctx, name, email, hash)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, model.SessionPair{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, model.SessionPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, model.SessionPair{}, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, model.SessionPair, error) {
	user, err := s.credentials.Verify(ctx, email, password)
	if err != nil {
		return nil, model.SessionPair{}, err
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, model.SessionPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new session pair. Every rejection
// of the token itself surfaces as ErrSessionInvalid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.SessionPair, error) {
	raw, session, err := s.refresh.ValidateAndRotate(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrSessionNotFound),
			errors.Is(err, db.ErrSessionRevoked),
			errors.Is(err, db.ErrSessionExpired):
			return model.SessionPair{}, ErrSessionInvalid
		default:
			return model.SessionPair{}, err
		}
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		s.discardSuccessor(ctx, raw, session)
		if errors.Is(err, db.ErrNotFound) {
			return model.SessionPair{}, ErrSessionInvalid
		}
		return model.SessionPair{}, fmt.Errorf("load session user: %w", err)
	}

	accessToken, err := s.codec.IssueAccess(model.AuthUser{ID: user.ID, Email: user.Email})
	if err != nil {
		s.discardSuccessor(ctx, raw, session)
		return model.SessionPair{}, fmt.Errorf("issue access token: %w", err)
	}

	return model.SessionPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresIn:    int64(s.codec.TTL().Seconds()),
	}, nil
}

// Logout revokes the presented refresh token. It never fails from the
// caller's point of view; store errors are logged.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		s.log.Error().Err(err).Msg("logout: failed to revoke refresh session")
	}
}

func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.refresh.RevokeAll(ctx, userID, model.RevokeReasonLogoutAll)
}

func (s *AuthService) ParseAccessToken(token string) (*model.AuthUser, error) {
	return s.codec.VerifyAccess(token)
}

// discardSuccessor revokes a freshly rotated record whose secret will not be
// handed out, so no active record is left that nobody can present.
func (s *AuthService) discardSuccessor(ctx context.Context, raw string, session *model.RefreshSession) {
	if err := s.refresh.revoke(ctx, raw, model.RevokeReasonUndelivered); err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID).Msg("failed to revoke undelivered session")
	}
}

func (s *AuthService) issueSession(ctx context.Context, user *model.User) (model.SessionPair, error) {
	accessToken, err := s.codec.IssueAccess(model.AuthUser{ID: user.ID, Email: user.Email})
	if err != nil {
		return model.SessionPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, _, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return model.SessionPair{}, err
	}

	return model.SessionPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.codec.TTL().Seconds()),
	}, nil
}

func validateProfile(name, email string) error {
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return fmt.Errorf("%w: name must be between %d and %d characters", ErrInvalidInput, minNameLength, maxNameLength)
	}
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	return nil
}

func validatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf("%w: password must be between %d and %d characters", ErrInvalidInput, minPasswordLength, maxPasswordLength)
	}
	return nil
}
