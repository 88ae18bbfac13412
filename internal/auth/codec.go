package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

const accessTokenType = "access"

type accessClaims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 access tokens. Verification is pure and
// never touches a store.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

type Option func(*TokenCodec)

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(secret []byte, ttl time.Duration, issuer string, opts ...Option) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret is required", ErrMisconfigured)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: access token ttl must be positive", ErrMisconfigured)
	}

	c := &TokenCodec{
		secret: secret,
		ttl:    ttl,
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)

	return c, nil
}

// TTL is the lifetime of issued access tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *TokenCodec) IssueAccess(user model.AuthUser) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", fmt.Errorf("%w: subject is required", ErrTokenMalformed)
	}

	now := c.now()
	claims := accessClaims{
		Email: user.Email,
		Type:  accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

func (c *TokenCodec) VerifyAccess(tokenStr string) (*model.AuthUser, error) {
	claims := &accessClaims{}
	_, err := c.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Type != accessTokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenMalformed, claims.Type)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	return &model.AuthUser{
		ID:    claims.Subject,
		Email: claims.Email,
	}, nil
}

// classify folds jwt parser errors into the three verification outcomes.
// The parser checks the signature before any claim, so a forged token never
// reports as expired.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
