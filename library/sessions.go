package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
)

// CreateSession issues a new opaque token for memberID valid for ttl.
func (d *Database) CreateSession(ctx context.Context, memberID int64, ttl time.Duration) (*Session, error) {
	now := d.Now()
	s := &Session{
		Token:     uuid.NewString(),
		MemberID:  memberID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := d.execx(ctx, d.db, d.insert("sessions").Rows(goqu.Record{
		"token":      s.Token,
		"member_id":  s.MemberID,
		"created_at": s.CreatedAt,
		"expires_at": s.ExpiresAt,
	}))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// GetSession returns the unexpired session for token.
func (d *Database) GetSession(ctx context.Context, token string) (*Session, error) {
	var s Session
	err := d.getx(ctx, d.db, &s, d.from("sessions").
		Select("token", "member_id", "created_at", "expires_at").
		Where(goqu.C("token").Eq(token), goqu.C("expires_at").Gt(d.Now())))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("session not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (d *Database) DeleteSession(ctx context.Context, token string) error {
	if _, err := d.execx(ctx, d.db, d.delete("sessions").Where(goqu.C("token").Eq(token))); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteMemberSessions signs a member out everywhere.
func (d *Database) DeleteMemberSessions(ctx context.Context, memberID int64) error {
	if _, err := d.execx(ctx, d.db, d.delete("sessions").Where(goqu.C("member_id").Eq(memberID))); err != nil {
		return fmt.Errorf("delete member sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions past their expiry and returns how
// many were removed.
func (d *Database) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	n, err := d.execAffected(ctx, d.db, d.delete("sessions").Where(goqu.C("expires_at").Lte(d.Now())))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}
