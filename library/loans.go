package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// LoanParams describes a loan to create.
type LoanParams struct {
	CopyID    int64
	MemberID  int64
	CreatedBy int64 // staff member at the desk, 0 if unknown
	LoanDays  int
	Notes     string
}

// ReturnParams describes a loan to close.
type ReturnParams struct {
	LoanID     int64
	ReturnedBy int64
	FineCents  int64
	Notes      string
}

func (d *Database) loanSelect() *goqu.SelectDataset {
	return d.from(goqu.T("loans").As("l")).
		Join(goqu.T("copies").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("l.copy_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("c.book_id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("l.member_id")))).
		Select(
			"l.id", "l.copy_id", "l.member_id", "l.loaned_at", "l.due_at", "l.returned_at",
			"l.fine_cents", "l.notes", "l.created_by", "l.returned_by",
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As("book_title"),
			goqu.I("b.author").As("book_author"),
			goqu.I("b.isbn").As("isbn"),
			goqu.I("c.shelf_location").As("shelf_location"),
			goqu.I("m.full_name").As("member_name"),
			goqu.I("m.email").As("member_email"),
		)
}

// LoanBook lends a copy to a member. Eligibility and availability are
// re-checked inside the transaction that writes the loan, so two desks
// lending the same copy get one loan and one ErrConflict.
func (d *Database) LoanBook(ctx context.Context, p LoanParams) (int64, error) {
	if p.LoanDays < 1 {
		return 0, validation("loan period must be at least one day, got %d", p.LoanDays)
	}

	var loanID int64
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		m, err := d.lockMember(ctx, tx, p.MemberID)
		if errors.Is(err, ErrNotFound) {
			return newError([]error{ErrNotFound, ErrIneligible}, "member %d not found", p.MemberID)
		}
		if err != nil {
			return err
		}
		open, err := d.countOpenLoans(ctx, tx, p.MemberID)
		if err != nil {
			return err
		}
		if e := evaluateEligibility(p.MemberID, m, open); !e.CanBorrow {
			return ineligible("%s (%d of %d loans open)", e.Reason, open, m.MaxLoanLimit)
		}

		c, err := d.getCopy(ctx, tx, p.CopyID, true)
		if err != nil {
			return err
		}

		now := d.Now()
		flipped, err := d.execAffected(ctx, tx, d.update("copies").
			Set(goqu.Record{"status": CopyLoaned, "updated_at": now}).
			Where(goqu.C("id").Eq(p.CopyID), goqu.C("status").Eq(CopyAvailable)))
		if err != nil {
			return fmt.Errorf("mark copy loaned: %w", err)
		}
		if flipped == 0 {
			return conflict("copy %d is not available (status %s)", p.CopyID, c.Status)
		}

		loanID, err = d.insertID(ctx, tx, d.insert("loans").Rows(goqu.Record{
			"copy_id":    p.CopyID,
			"member_id":  p.MemberID,
			"loaned_at":  now,
			"due_at":     now.Add(time.Duration(p.LoanDays) * 24 * time.Hour),
			"fine_cents": 0,
			"notes":      nullable(p.Notes),
			"created_by": optionalID(p.CreatedBy),
		}))
		if err != nil {
			if isUniqueViolation(err) {
				return conflict("copy %d already has an open loan", p.CopyID)
			}
			return fmt.Errorf("insert loan: %w", err)
		}

		return d.appendHistory(ctx, tx, LoanHistory{
			LoanID:      loanID,
			Action:      ActionLoaned,
			ActionAt:    now,
			PerformedBy: optionalID(p.CreatedBy),
			OldStatus:   ptr(string(CopyAvailable)),
			NewStatus:   ptr(string(CopyLoaned)),
			Notes:       nullable(p.Notes),
		})
	})
	if err != nil {
		return 0, err
	}
	return loanID, nil
}

// ReturnBook closes an open loan and puts the copy back on the shelf. A copy
// flagged lost, damaged or under maintenance while out keeps that status.
func (d *Database) ReturnBook(ctx context.Context, p ReturnParams) error {
	if p.FineCents < 0 {
		return validation("fine cannot be negative")
	}
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		l, err := d.getLoan(ctx, tx, p.LoanID, true)
		if err != nil {
			return err
		}
		if !l.IsOpen() {
			return conflict("loan %d is already returned", p.LoanID)
		}

		now := d.Now()
		closed, err := d.execAffected(ctx, tx, d.update("loans").Set(goqu.Record{
			"returned_at": now,
			"fine_cents":  p.FineCents,
			"returned_by": optionalID(p.ReturnedBy),
		}).Where(goqu.C("id").Eq(p.LoanID), goqu.C("returned_at").IsNull()))
		if err != nil {
			return fmt.Errorf("close loan: %w", err)
		}
		if closed == 0 {
			return conflict("loan %d is already returned", p.LoanID)
		}

		c, err := d.getCopy(ctx, tx, l.CopyID, true)
		if err != nil {
			return err
		}
		newStatus := c.Status
		if c.Status == CopyLoaned {
			newStatus = CopyAvailable
			_, err := d.execx(ctx, tx, d.update("copies").
				Set(goqu.Record{"status": CopyAvailable, "updated_at": now}).
				Where(goqu.C("id").Eq(l.CopyID), goqu.C("status").Eq(CopyLoaned)))
			if err != nil {
				return fmt.Errorf("mark copy available: %w", err)
			}
		}

		return d.appendHistory(ctx, tx, LoanHistory{
			LoanID:      p.LoanID,
			Action:      ActionReturned,
			ActionAt:    now,
			PerformedBy: optionalID(p.ReturnedBy),
			OldStatus:   ptr(string(c.Status)),
			NewStatus:   ptr(string(newStatus)),
			Notes:       nullable(p.Notes),
		})
	})
}

func (d *Database) getLoan(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*Loan, error) {
	var l Loan
	var ds *goqu.SelectDataset
	if lock {
		// Lock the loan row only, not the joined book and member rows.
		ds = d.forUpdate(d.from(goqu.T("loans").As("l")).Select(
			"l.id", "l.copy_id", "l.member_id", "l.loaned_at", "l.due_at", "l.returned_at",
			"l.fine_cents", "l.notes", "l.created_by", "l.returned_by",
		).Where(goqu.I("l.id").Eq(id)))
	} else {
		ds = d.loanSelect().Where(goqu.I("l.id").Eq(id))
	}
	err := d.getx(ctx, q, &l, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("loan %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return &l, nil
}

// GetLoan returns a loan with its copy, book and member details.
func (d *Database) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	return d.getLoan(ctx, d.db, id, false)
}

// ListLoans returns loans matching f. Open loans are ordered by due date,
// everything else by loan date, newest first.
func (d *Database) ListLoans(ctx context.Context, f LoanFilter) ([]*Loan, error) {
	now := d.Now()
	ds := d.loanSelect()
	switch f.Status {
	case LoansActive:
		ds = ds.Where(goqu.I("l.returned_at").IsNull()).Order(goqu.I("l.due_at").Asc(), goqu.I("l.id").Asc())
	case LoansOverdue:
		ds = ds.Where(goqu.I("l.returned_at").IsNull(), goqu.I("l.due_at").Lt(now)).
			Order(goqu.I("l.due_at").Asc(), goqu.I("l.id").Asc())
	case LoansReturned:
		ds = ds.Where(goqu.I("l.returned_at").IsNotNull()).Order(goqu.I("l.returned_at").Desc(), goqu.I("l.id").Desc())
	case LoansAll:
		ds = ds.Order(goqu.I("l.loaned_at").Desc(), goqu.I("l.id").Desc())
	default:
		return nil, validation("unknown loan status filter %q", f.Status)
	}
	if f.MemberID != 0 {
		ds = ds.Where(goqu.I("l.member_id").Eq(f.MemberID))
	}
	if f.From != nil {
		ds = ds.Where(goqu.I("l.loaned_at").Gte(f.From.UTC()))
	}
	if f.To != nil {
		ds = ds.Where(goqu.I("l.loaned_at").Lt(f.To.UTC()))
	}
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}

	loans := []*Loan{}
	if err := d.selectx(ctx, d.db, &loans, ds); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// CountActiveLoans returns the number of open loans.
func (d *Database) CountActiveLoans(ctx context.Context) (int, error) {
	return d.count(ctx, d.db, d.from("loans").Where(goqu.C("returned_at").IsNull()))
}

// CountOverdueLoans returns the number of open loans past their due time.
func (d *Database) CountOverdueLoans(ctx context.Context) (int, error) {
	return d.count(ctx, d.db, d.from("loans").
		Where(goqu.C("returned_at").IsNull(), goqu.C("due_at").Lt(d.Now())))
}
