package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// MemberInput carries the editable profile fields of a Member.
type MemberInput struct {
	FullName     string
	Email        string
	Phone        string
	Address      string
	DateOfBirth  *time.Time
	Role         Role
	// MaxLoanLimit is optional. Nil means the default on create and the
	// current value on update; zero suspends borrowing.
	MaxLoanLimit *int
}

// NewMember is everything needed to create an account.
type NewMember struct {
	MemberInput
	PasswordHash string
}

var memberColumns = []interface{}{
	"m.id", "m.full_name", "m.email", "m.phone", "m.address", "m.date_of_birth",
	"m.joined_at", "m.status", "m.role", "m.password_hash", "m.max_loan_limit",
	"m.created_at", "m.updated_at",
}

// memberSelect selects members together with their current open-loan count.
func (d *Database) memberSelect() *goqu.SelectDataset {
	openLoans := d.gq.From(goqu.T("loans").As("ol")).
		Select(goqu.COUNT("*")).
		Where(goqu.I("ol.member_id").Eq(goqu.I("m.id")), goqu.I("ol.returned_at").IsNull())
	cols := append(append([]interface{}{}, memberColumns...), openLoans.As("open_loans"))
	return d.from(goqu.T("members").As("m")).Select(cols...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddMember creates an active account and returns its id.
func (d *Database) AddMember(ctx context.Context, in NewMember) (int64, error) {
	role := in.Role
	if role == "" {
		role = RoleMember
	}
	limit := DefaultMaxLoanLimit
	if in.MaxLoanLimit != nil {
		limit = *in.MaxLoanLimit
	}
	now := d.Now()
	id, err := d.insertID(ctx, d.db, d.insert("members").Rows(goqu.Record{
		"full_name":      strings.TrimSpace(in.FullName),
		"email":          normalizeEmail(in.Email),
		"phone":          nullable(in.Phone),
		"address":        nullable(in.Address),
		"date_of_birth":  in.DateOfBirth,
		"joined_at":      now,
		"status":         MemberActive,
		"role":           role,
		"password_hash":  in.PasswordHash,
		"max_loan_limit": limit,
		"created_at":     now,
		"updated_at":     now,
	}))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, conflict("a member with e-mail %s already exists", normalizeEmail(in.Email))
		}
		return 0, fmt.Errorf("insert member: %w", err)
	}
	return id, nil
}

// UpdateMember replaces a member's profile, role and loan limit.
func (d *Database) UpdateMember(ctx context.Context, id int64, in MemberInput) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		m, err := d.lockMember(ctx, tx, id)
		if err != nil {
			return err
		}
		role := in.Role
		if role == "" {
			role = m.Role
		}
		if err := checkMemberChange(m, role, m.Status, 0); err != nil {
			return err
		}
		limit := m.MaxLoanLimit
		if in.MaxLoanLimit != nil {
			limit = *in.MaxLoanLimit
		}
		_, err = d.execx(ctx, tx, d.update("members").Set(goqu.Record{
			"full_name":      strings.TrimSpace(in.FullName),
			"email":          normalizeEmail(in.Email),
			"phone":          nullable(in.Phone),
			"address":        nullable(in.Address),
			"date_of_birth":  in.DateOfBirth,
			"role":           role,
			"max_loan_limit": limit,
			"updated_at":     d.Now(),
		}).Where(goqu.C("id").Eq(id)))
		if err != nil {
			if isUniqueViolation(err) {
				return conflict("a member with e-mail %s already exists", normalizeEmail(in.Email))
			}
			return fmt.Errorf("update member: %w", err)
		}
		return nil
	})
}

// SetMemberStatus activates or deactivates a member. Deactivation is refused
// while the member still holds books.
func (d *Database) SetMemberStatus(ctx context.Context, id int64, status MemberStatus) error {
	if !status.Valid() {
		return validation("unknown member status %q", status)
	}
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		m, err := d.lockMember(ctx, tx, id)
		if err != nil {
			return err
		}
		open, err := d.countOpenLoans(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkMemberChange(m, m.Role, status, open); err != nil {
			return err
		}
		_, err = d.execx(ctx, tx, d.update("members").
			Set(goqu.Record{"status": status, "updated_at": d.Now()}).
			Where(goqu.C("id").Eq(id)))
		if err != nil {
			return fmt.Errorf("update member status: %w", err)
		}
		return nil
	})
}

// SetPassword stores a new password hash for the member.
func (d *Database) SetPassword(ctx context.Context, id int64, hash string) error {
	n, err := d.execAffected(ctx, d.db, d.update("members").
		Set(goqu.Record{"password_hash": hash, "updated_at": d.Now()}).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if n == 0 {
		return notFound("member %d not found", id)
	}
	return nil
}

// lockMember reads the member row for the rest of the transaction, locking
// it where the backend supports row locks.
func (d *Database) lockMember(ctx context.Context, tx *sqlx.Tx, id int64) (*Member, error) {
	var m Member
	err := d.getx(ctx, tx, &m, d.forUpdate(d.from(goqu.T("members").As("m")).
		Select(memberColumns...).Where(goqu.I("m.id").Eq(id))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("member %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock member: %w", err)
	}
	return &m, nil
}

func (d *Database) countOpenLoans(ctx context.Context, q sqlx.QueryerContext, memberID int64) (int, error) {
	n, err := d.count(ctx, q, d.from("loans").
		Where(goqu.C("member_id").Eq(memberID), goqu.C("returned_at").IsNull()))
	if err != nil {
		return 0, fmt.Errorf("count open loans: %w", err)
	}
	return n, nil
}

func (d *Database) getMember(ctx context.Context, ds *goqu.SelectDataset, notFoundErr error) (*Member, error) {
	var m Member
	err := d.getx(ctx, d.db, &m, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// GetMember returns a member with their open-loan count.
func (d *Database) GetMember(ctx context.Context, id int64) (*Member, error) {
	return d.getMember(ctx, d.memberSelect().Where(goqu.I("m.id").Eq(id)),
		notFound("member %d not found", id))
}

// GetMemberByEmail looks a member up by e-mail, ignoring case.
func (d *Database) GetMemberByEmail(ctx context.Context, email string) (*Member, error) {
	return d.getMember(ctx, d.memberSelect().Where(goqu.I("m.email").Eq(normalizeEmail(email))),
		notFound("no member with e-mail %s", normalizeEmail(email)))
}

// ListMembers returns every member ordered by name.
func (d *Database) ListMembers(ctx context.Context) ([]*Member, error) {
	return d.listMembers(ctx, d.memberSelect())
}

// ListActiveMembers returns the members who may currently sign in and borrow.
func (d *Database) ListActiveMembers(ctx context.Context) ([]*Member, error) {
	return d.listMembers(ctx, d.memberSelect().Where(goqu.I("m.status").Eq(MemberActive)))
}

func (d *Database) listMembers(ctx context.Context, ds *goqu.SelectDataset) ([]*Member, error) {
	members := []*Member{}
	if err := d.selectx(ctx, d.db, &members, ds.Order(goqu.I("m.full_name").Asc(), goqu.I("m.id").Asc())); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// CountActiveMembers returns the number of active accounts.
func (d *Database) CountActiveMembers(ctx context.Context) (int, error) {
	return d.count(ctx, d.db, d.from("members").Where(goqu.C("status").Eq(MemberActive)))
}

// Eligibility reports whether a member could borrow right now. An unknown
// member is reported as ineligible rather than as an error.
func (d *Database) Eligibility(ctx context.Context, memberID int64) (Eligibility, error) {
	m, err := d.GetMember(ctx, memberID)
	if errors.Is(err, ErrNotFound) {
		return evaluateEligibility(memberID, nil, 0), nil
	}
	if err != nil {
		return Eligibility{}, err
	}
	return evaluateEligibility(memberID, m, m.OpenLoans), nil
}
