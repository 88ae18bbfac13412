package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yavishsahrawat40/My-Notes/internal/auth"
	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/metrics"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

// RefreshTokens issues, rotates and revokes opaque refresh tokens. The raw
// secret leaves this type exactly once; only its hash reaches the store.
type RefreshTokens struct {
	repo    sessionRepo
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Sessions
	log     zerolog.Logger
}

type RefreshOption func(*RefreshTokens)

func WithRefreshClock(now func() time.Time) RefreshOption {
	return func(r *RefreshTokens) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRefreshMetrics(m *metrics.Sessions) RefreshOption {
	return func(r *RefreshTokens) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithRefreshLogger(log zerolog.Logger) RefreshOption {
	return func(r *RefreshTokens) {
		r.log = log
	}
}

func NewRefreshTokens(repo sessionRepo, ttl, timeout time.Duration, opts ...RefreshOption) (*RefreshTokens, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: refresh token ttl must be positive", ErrMisconfigured)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: session store timeout must be positive", ErrMisconfigured)
	}

	r := &RefreshTokens{
		repo:    repo,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
		metrics: metrics.NewSessions(nil),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Issue starts a new session lineage for userID.
func (r *RefreshTokens) Issue(ctx context.Context, userID string) (string, *model.RefreshSession, error) {
	raw, session, err := r.newSession(userID)
	if err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.repo.InsertSession(ctx, *session); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.metrics.Issued.Inc()
	return raw, session, nil
}

// ValidateAndRotate consumes raw and returns its successor. It fails with
// db.ErrSessionNotFound, db.ErrSessionRevoked or db.ErrSessionExpired. A
// revoked presentation is treated as token theft: every active session of
// the owner is revoked before the error is returned. Only records retired
// individually (rotated or logged out) count as a reuse detection.
func (r *RefreshTokens) ValidateAndRotate(ctx context.Context, raw string) (string, *model.RefreshSession, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		r.metrics.RefreshFailures.WithLabelValues(metrics.ReasonNotFound).Inc()
		return "", nil, db.ErrSessionNotFound
	}

	nextRaw, next, err := r.newSession("")
	if err != nil {
		return "", nil, err
	}

	rotateCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	old, err := r.repo.RotateSession(rotateCtx, auth.HashRefreshSecret(raw), *next, next.IssuedAt)
	switch {
	case err == nil:
		next.UserID = old.UserID
		r.metrics.Rotated.Inc()
		return nextRaw, next, nil
	case errors.Is(err, db.ErrSessionRevoked):
		r.metrics.RefreshFailures.WithLabelValues(metrics.ReasonRevoked).Inc()
		r.handleReuse(ctx, old)
		return "", nil, db.ErrSessionRevoked
	case errors.Is(err, db.ErrSessionExpired):
		r.metrics.RefreshFailures.WithLabelValues(metrics.ReasonExpired).Inc()
		return "", nil, db.ErrSessionExpired
	case errors.Is(err, db.ErrSessionNotFound):
		r.metrics.RefreshFailures.WithLabelValues(metrics.ReasonNotFound).Inc()
		return "", nil, db.ErrSessionNotFound
	default:
		r.metrics.RefreshFailures.WithLabelValues(metrics.ReasonUnavailable).Inc()
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// Revoke retires the session behind raw. Unknown or already revoked tokens
// are not an error.
func (r *RefreshTokens) Revoke(ctx context.Context, raw string) error {
	return r.revoke(ctx, raw, model.RevokeReasonLogout)
}

func (r *RefreshTokens) revoke(ctx context.Context, raw, reason string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.repo.RevokeSessionByHash(ctx, auth.HashRefreshSecret(raw), reason, r.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.metrics.Revoked.WithLabelValues(reason).Add(float64(count))
	return nil
}

// RevokeAll retires every active session of userID and reports how many
// were still active.
func (r *RefreshTokens) RevokeAll(ctx context.Context, userID, reason string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.repo.RevokeUserSessions(ctx, userID, reason, r.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.metrics.Revoked.WithLabelValues(reason).Add(float64(count))
	return count, nil
}

// Sweep hard-deletes expired records. Validity never depends on it.
func (r *RefreshTokens) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.repo.DeleteExpiredSessions(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	r.metrics.Swept.Add(float64(count))
	return count, nil
}

func (r *RefreshTokens) TTL() time.Duration {
	return r.ttl
}

func (r *RefreshTokens) handleReuse(ctx context.Context, presented *model.RefreshSession) {
	if presented == nil || presented.UserID == "" {
		return
	}

	count, err := r.RevokeAll(ctx, presented.UserID, model.RevokeReasonReuseDetected)

	// A record retired together with its siblings carries no new evidence:
	// it was never consumed by a rotation or a logout.
	if retiredInBulk(presented) {
		event := r.log.Debug().
			Str("user_id", presented.UserID).
			Str("session_id", presented.ID).
			Str("prior_reason", *presented.RevokedReason).
			Int64("revoked", count)
		if err != nil {
			event = event.AnErr("revoke_error", err)
		}
		event.Msg("bulk-revoked refresh token presented")
		return
	}

	r.metrics.ReuseDetected.Inc()
	event := r.log.Warn().
		Str("user_id", presented.UserID).
		Str("session_id", presented.ID).
		Int64("revoked", count)
	if presented.RevokedReason != nil {
		event = event.Str("prior_reason", *presented.RevokedReason)
	}
	if err != nil {
		event = event.AnErr("revoke_error", err)
	}
	event.Msg("refresh token reuse detected, revoked all sessions")
}

func retiredInBulk(s *model.RefreshSession) bool {
	if s.RevokedReason == nil {
		return false
	}
	switch *s.RevokedReason {
	case model.RevokeReasonReuseDetected, model.RevokeReasonLogoutAll, model.RevokeReasonPasswordChanged:
		return true
	}
	return false
}

func (r *RefreshTokens) newSession(userID string) (string, *model.RefreshSession, error) {
	raw, hash, err := auth.NewRefreshSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}
	now := r.now()
	return raw, &model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}, nil
}
