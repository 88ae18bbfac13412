package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/yavishsahrawat40/My-Notes/internal/auth"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

func TestLoginThenTamperedAccessToken(t *testing.T) {
	env := newTestEnv(t, true)
	seeded := env.seedUser(t, "a@x.com", "correct")

	user, pair, err := env.auth.Login(context.Background(), "A@x.com ", "correct")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, user.ID)
	require.NotEmpty(t, pair.RefreshToken)
	require.EqualValues(t, 900, pair.ExpiresIn)

	identity, err := env.auth.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, identity.ID)
	require.Equal(t, "a@x.com", identity.Email)

	sigStart := strings.LastIndex(pair.AccessToken, ".") + 1
	replacement := "A"
	if pair.AccessToken[sigStart] == 'A' {
		replacement = "B"
	}
	tampered := pair.AccessToken[:sigStart] + replacement + pair.AccessToken[sigStart+1:]

	_, err = env.auth.ParseAccessToken(tampered)
	require.ErrorIs(t, err, auth.ErrTokenBadSignature)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, true)
	env.seedUser(t, "a@x.com", "correct")

	_, _, err := env.auth.Login(context.Background(), "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.auth.Login(context.Background(), "nobody@x.com", "correct")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.auth.Login(context.Background(), " ", "correct")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAccessTokenExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t, true)
	env.seedUser(t, "a@x.com", "correct")

	_, pair, err := env.auth.Login(context.Background(), "a@x.com", "correct")
	require.NoError(t, err)

	_, err = env.auth.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)

	env.clock.Advance(15*time.Minute + time.Second)
	_, err = env.auth.ParseAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRefreshIsSingleUse(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, first, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	second, err := env.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	identity, err := env.auth.ParseAccessToken(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.ID)

	old := env.sessions.get(first.RefreshToken)
	require.True(t, old.Revoked())
	require.Equal(t, model.RevokeReasonRotated, *old.RevokedReason)
	require.Equal(t, env.sessions.get(second.RefreshToken).ID, *old.ReplacedBy)

	third, err := env.auth.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)

	// Only the latest secret in a lineage is usable.
	_, err = env.auth.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)
	_, err = env.auth.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)

	// The replay revoked the whole family, including the newest secret.
	_, err = env.auth.Refresh(ctx, third.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)
	require.Zero(t, env.sessions.activeFor(user.ID))
	require.Equal(t, model.RevokeReasonReuseDetected, *env.sessions.get(third.RefreshToken).RevokedReason)
}

func TestReuseCascadeRevokesEverySession(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, laptop, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)
	_, phone, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)
	require.Equal(t, 2, env.sessions.activeFor(user.ID))

	_, err = env.auth.Refresh(ctx, laptop.RefreshToken)
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, laptop.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)

	require.Zero(t, env.sessions.activeFor(user.ID))
	require.Equal(t, model.RevokeReasonReuseDetected, *env.sessions.get(phone.RefreshToken).RevokedReason)

	// The phone was retired by the cascade; presenting it is not a second theft.
	_, err = env.auth.Refresh(ctx, phone.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)

	require.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ReuseDetected))
}

func TestBulkRevokedTokenIsNotCountedAsReuse(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, stale, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)
	_, err = env.auth.LogoutAll(ctx, user.ID)
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, stale.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)
	require.Zero(t, testutil.ToFloat64(env.metrics.ReuseDetected))

	_, rotated, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)
	_, err = env.auth.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	_, err = env.auth.Refresh(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)
	require.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ReuseDetected))
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	env := newTestEnv(t, true)
	env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, pair, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	const workers = 2
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := env.auth.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrSessionInvalid):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	require.Equal(t, 1, success)

	// Access tokens are stateless and outlive the cascade until expiry.
	_, err = env.auth.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
}

func TestRefreshExpiredToken(t *testing.T) {
	env := newTestEnv(t, true)
	env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, pair, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	env.clock.Advance(7 * 24 * time.Hour)
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)

	// An expired presentation is not a reuse signal.
	require.Zero(t, testutil.ToFloat64(env.metrics.ReuseDetected))
}

func TestRefreshRejectsUnknownAndEmpty(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.auth.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrSessionInvalid)

	_, err = env.auth.Refresh(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRefreshForDeletedUser(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, pair, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	env.users.delete(user.ID)
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)
	require.Zero(t, env.sessions.activeFor(user.ID))
}

func TestRefreshUserLookupFailureLeavesNoActiveSession(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, pair, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	env.users.failLookups(errors.New("users db timeout"))
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrSessionInvalid))

	require.Zero(t, env.sessions.activeFor(user.ID))
	require.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Revoked.WithLabelValues(model.RevokeReasonUndelivered)))
	require.Zero(t, testutil.ToFloat64(env.metrics.ReuseDetected))
}

func TestRefreshStoreUnavailable(t *testing.T) {
	env := newTestEnv(t, true)
	env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, pair, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	env.sessions.setDown(true)
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.False(t, errors.Is(err, ErrSessionInvalid))

	_, _, err = env.auth.Login(ctx, "a@x.com", "correct")
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// Logout swallows store failures.
	env.auth.Logout(ctx, pair.RefreshToken)

	env.sessions.setDown(false)
	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, true)
	env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	_, pair, err := env.auth.Login(ctx, "a@x.com", "correct")
	require.NoError(t, err)

	env.auth.Logout(ctx, "never-issued")
	env.auth.Logout(ctx, "never-issued")
	require.Zero(t, testutil.ToFloat64(env.metrics.Revoked.WithLabelValues(model.RevokeReasonLogout)))

	env.auth.Logout(ctx, pair.RefreshToken)
	env.auth.Logout(ctx, pair.RefreshToken)
	env.auth.Logout(ctx, "")
	require.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Revoked.WithLabelValues(model.RevokeReasonLogout)))

	session := env.sessions.get(pair.RefreshToken)
	require.True(t, session.Revoked())
	require.Equal(t, model.RevokeReasonLogout, *session.RevokedReason)

	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.seedUser(t, "a@x.com", "correct")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := env.auth.Login(ctx, "a@x.com", "correct")
		require.NoError(t, err)
	}

	count, err := env.auth.LogoutAll(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
	require.Zero(t, env.sessions.activeFor(user.ID))

	count, err = env.auth.LogoutAll(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	user, pair, err := env.auth.Register(ctx, " Jane ", "Jane@Example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "Jane", user.Name)
	require.Equal(t, "jane@example.com", user.Email)
	require.NotEqual(t, "secret1", user.PasswordHash)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	_, _, err = env.auth.Register(ctx, "Jane Again", "jane@example.com", "secret2")
	require.ErrorIs(t, err, ErrConflict)

	tests := []struct {
		name, userName, email, password string
	}{
		{"short name", "J", "j@example.com", "secret1"},
		{"bad email", "Jane", "not-an-email", "secret1"},
		{"short password", "Jane", "j@example.com", "12345"},
		{"long password", "Jane", "j@example.com", strings.Repeat("x", 129)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.auth.Register(ctx, tt.userName, tt.email, tt.password)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRegisterDisabled(t *testing.T) {
	env := newTestEnv(t, false)

	_, _, err := env.auth.Register(context.Background(), "Jane", "jane@example.com", "secret1")
	require.ErrorIs(t, err, ErrForbidden)
	require.False(t, env.auth.AllowSignup())
}
