package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword is hashed once per verifier so unknown emails still pay for a
// bcrypt comparison.
const dummyPassword = "my-notes-timing-equalizer"

// CredentialVerifier checks email/password pairs against stored bcrypt hashes.
type CredentialVerifier struct {
	users     userRepo
	cost      int
	dummyHash []byte
}

func NewCredentialVerifier(users userRepo, cost int) (*CredentialVerifier, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("%w: bcrypt cost %d: %v", ErrMisconfigured, cost, err)
	}
	return &CredentialVerifier{users: users, cost: cost, dummyHash: dummy}, nil
}

// Verify returns the user owning email when password matches. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := v.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := v.Compare(user, password); err != nil {
		return nil, err
	}
	return user, nil
}

// Compare checks password against the stored hash of user.
func (v *CredentialVerifier) Compare(user *model.User, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (v *CredentialVerifier) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password must be at most 72 bytes", ErrInvalidInput)
		}
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
