package service

import (
	"context"
	"time"

	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

// userRepo - user persistence
type userRepo interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, userID, name, email string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
}

// sessionRepo - refresh session persistence, implemented by db.Postgres and
// db.RedisSessionStore.
//
// RotateSession must retire the presented record and insert next in one
// atomic step. It returns the presented record together with
// db.ErrSessionRevoked or db.ErrSessionExpired when rotation is refused, and
// db.ErrSessionNotFound when no record matches. Revocations are idempotent
// and report how many records moved from active to revoked.
type sessionRepo interface {
	InsertSession(ctx context.Context, session model.RefreshSession) error
	RotateSession(ctx context.Context, tokenHash string, next model.RefreshSession, now time.Time) (*model.RefreshSession, error)
	RevokeSessionByHash(ctx context.Context, tokenHash, reason string, now time.Time) (int64, error)
	RevokeUserSessions(ctx context.Context, userID, reason string, now time.Time) (int64, error)
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// noteRepo - note persistence, always scoped to the owning user
type noteRepo interface {
	ListNotes(ctx context.Context, filter model.NoteFilter) ([]model.Note, int64, error)
	GetNote(ctx context.Context, userID, noteID string) (*model.Note, error)
	CreateNote(ctx context.Context, note model.Note) (*model.Note, error)
	UpdateNote(ctx context.Context, note model.Note) (*model.Note, error)
	DeleteNote(ctx context.Context, userID, noteID string) error
}
