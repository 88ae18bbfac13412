package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/yavishsahrawat40/My-Notes/internal/auth"
	"github.com/yavishsahrawat40/My-Notes/internal/db"
	"github.com/yavishsahrawat40/My-Notes/internal/metrics"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var errFakeStoreDown = errors.New("connection refused")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*model.User
	getErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, name, email, passwordHash string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return nil, db.ErrDuplicate
		}
	}
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	r.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) UpdateUserProfile(_ context.Context, userID, name, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	for id, other := range r.users {
		if id != userID && other.Email == email {
			return nil, db.ErrDuplicate
		}
	}
	u.Name = name
	u.Email = email
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) failLookups(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getErr = err
}

func (r *fakeUserRepo) delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, userID)
}

// fakeSessionRepo mirrors the store contract: rotation is atomic under the
// mutex and revocations are idempotent.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.RefreshSession
	down     bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.RefreshSession)}
}

func (r *fakeSessionRepo) setDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

func (r *fakeSessionRepo) InsertSession(_ context.Context, session model.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return errFakeStoreDown
	}
	if _, ok := r.sessions[session.TokenHash]; ok {
		return db.ErrDuplicate
	}
	r.sessions[session.TokenHash] = &session
	return nil
}

func (r *fakeSessionRepo) RotateSession(_ context.Context, tokenHash string, next model.RefreshSession, now time.Time) (*model.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errFakeStoreDown
	}
	old, ok := r.sessions[tokenHash]
	if !ok {
		return nil, db.ErrSessionNotFound
	}
	snapshot := *old
	if old.Revoked() {
		return &snapshot, db.ErrSessionRevoked
	}
	if old.Expired(now) {
		return &snapshot, db.ErrSessionExpired
	}

	next.UserID = old.UserID
	r.sessions[next.TokenHash] = &next

	reason := model.RevokeReasonRotated
	replacedBy := next.ID
	old.RevokedAt = &now
	old.RevokedReason = &reason
	old.ReplacedBy = &replacedBy

	snapshot = *old
	return &snapshot, nil
}

func (r *fakeSessionRepo) RevokeSessionByHash(_ context.Context, tokenHash, reason string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, errFakeStoreDown
	}
	s, ok := r.sessions[tokenHash]
	if !ok || s.Revoked() {
		return 0, nil
	}
	s.RevokedAt = &now
	s.RevokedReason = &reason
	return 1, nil
}

func (r *fakeSessionRepo) RevokeUserSessions(_ context.Context, userID, reason string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, errFakeStoreDown
	}
	var count int64
	for _, s := range r.sessions {
		if s.UserID == userID && !s.Revoked() {
			s.RevokedAt = &now
			s.RevokedReason = &reason
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) DeleteExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, errFakeStoreDown
	}
	var count int64
	for hash, s := range r.sessions {
		if !before.Before(s.ExpiresAt) {
			delete(r.sessions, hash)
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) get(raw string) *model.RefreshSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[auth.HashRefreshSecret(raw)]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}

func (r *fakeSessionRepo) activeFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, s := range r.sessions {
		if s.UserID == userID && !s.Revoked() {
			active++
		}
	}
	return active
}

type fakeNoteRepo struct {
	mu    sync.RWMutex
	notes map[string]*model.Note
	seq   int
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*model.Note)}
}

func (r *fakeNoteRepo) ListNotes(_ context.Context, filter model.NoteFilter) ([]model.Note, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]model.Note, 0)
	for _, n := range r.notes {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.Category != "" && n.Category != filter.Category {
			continue
		}
		if filter.Priority != "" && n.Priority != filter.Priority {
			continue
		}
		if filter.Completed != nil && n.IsCompleted != *filter.Completed {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(n.Title+" "+n.Content+" "+strings.Join(n.Tags, " ")), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, *n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *fakeNoteRepo) GetNote(_ context.Context, userID, noteID string) (*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID {
		return nil, db.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (r *fakeNoteRepo) CreateNote(_ context.Context, note model.Note) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	note.ID = uuid.NewString()
	note.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	note.UpdatedAt = note.CreatedAt
	r.notes[note.ID] = &note
	copied := note
	return &copied, nil
}

func (r *fakeNoteRepo) UpdateNote(_ context.Context, note model.Note) (*model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.notes[note.ID]
	if !ok || existing.UserID != note.UserID {
		return nil, db.ErrNotFound
	}
	r.notes[note.ID] = &note
	copied := note
	return &copied, nil
}

func (r *fakeNoteRepo) DeleteNote(_ context.Context, userID, noteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID {
		return db.ErrNotFound
	}
	delete(r.notes, noteID)
	return nil
}

type testEnv struct {
	clock    *fakeClock
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	metrics  *metrics.Sessions
	creds    *CredentialVerifier
	codec    *auth.TokenCodec
	refresh  *RefreshTokens
	auth     *AuthService
	profile  *UserService
}

func newTestEnv(t *testing.T, allowSignup bool) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    newFakeClock(),
		users:    newFakeUserRepo(),
		sessions: newFakeSessionRepo(),
		metrics:  metrics.NewSessions(nil),
	}

	var err error
	env.creds, err = NewCredentialVerifier(env.users, bcrypt.MinCost)
	require.NoError(t, err)

	env.codec, err = auth.NewTokenCodec([]byte("test-secret"), 15*time.Minute, "my-notes", auth.WithClock(env.clock.Now))
	require.NoError(t, err)

	env.refresh, err = NewRefreshTokens(env.sessions, 7*24*time.Hour, time.Second,
		WithRefreshClock(env.clock.Now),
		WithRefreshMetrics(env.metrics),
	)
	require.NoError(t, err)

	env.auth = NewAuthService(env.users, env.creds, env.codec, env.refresh, allowSignup, zerolog.Nop())
	env.profile = NewUserService(env.users, env.creds, env.refresh, zerolog.Nop())
	return env
}

func (e *testEnv) seedUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	hash, err := e.creds.Hash(password)
	require.NoError(t, err)
	user, err := e.users.CreateUser(context.Background(), "Test User", email, hash)
	require.NoError(t, err)
	return user
}
