package db

import (
	"context"
	"time"

	"github.com/yavishsahrawat40/My-Notes/internal/model"
)

const sessionColumns = `id::text, user_id::text, token_hash, issued_at, expires_at, revoked_at, revoked_reason, replaced_by::text`

func (db *Postgres) InsertSession(ctx context.Context, session model.RefreshSession) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.UserID, session.TokenHash, session.IssuedAt, session.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (db *Postgres) getSessionByHash(ctx context.Context, tokenHash string) (*model.RefreshSession, error) {
	session, err := scanSession(db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = $1`, tokenHash))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// RotateSession atomically retires the session identified by tokenHash and
// stores next in its place. next.UserID is taken from the retired record.
// The retired record is returned, including when it was already revoked so
// the caller can act on the reuse.
func (db *Postgres) RotateSession(ctx context.Context, tokenHash string, next model.RefreshSession, now time.Time) (*model.RefreshSession, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	old, err := scanSession(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM refresh_sessions WHERE token_hash = $1 FOR UPDATE`, tokenHash))
	if err != nil {
		if IsNoRows(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if old.Revoked() {
		return old, ErrSessionRevoked
	}
	if old.Expired(now) {
		return old, ErrSessionExpired
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, next.ID, old.UserID, next.TokenHash, next.IssuedAt, next.ExpiresAt); err != nil {
		return nil, err
	}

	reason := model.RevokeReasonRotated
	if _, err = tx.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = $2, revoked_reason = $3, replaced_by = $4
		WHERE id = $1
	`, old.ID, now, reason, next.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	old.RevokedAt = &now
	old.RevokedReason = &reason
	old.ReplacedBy = &next.ID
	return old, nil
}

// RevokeSessionByHash reports 0 for unknown or already revoked hashes.
func (db *Postgres) RevokeSessionByHash(ctx context.Context, tokenHash, reason string, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = $2, revoked_reason = $3
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash, now, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *Postgres) RevokeUserSessions(ctx context.Context, userID, reason string, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID, now, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *Postgres) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row rowScanner) (*model.RefreshSession, error) {
	var session model.RefreshSession
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.IssuedAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RevokedReason,
		&session.ReplacedBy,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
