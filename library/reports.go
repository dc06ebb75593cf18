package library

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// TopBook is one row of the popularity report.
type TopBook struct {
	BookID    int64  `db:"book_id" json:"book_id"`
	Title     string `db:"title" json:"title"`
	Author    string `db:"author" json:"author"`
	LoanCount int    `db:"loan_count" json:"loan_count"`
}

// MemberLoanStats summarises one member's borrowing.
type MemberLoanStats struct {
	MemberID      int64  `db:"member_id" json:"member_id"`
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	TotalLoans    int    `db:"total_loans" json:"total_loans"`
	ActiveLoans   int    `db:"active_loans" json:"active_loans"`
	ReturnedLoans int    `db:"returned_loans" json:"returned_loans"`
	OverdueLoans  int    `db:"overdue_loans" json:"overdue_loans"`
}

// Dashboard is the staff overview.
type Dashboard struct {
	TotalBooks    int        `json:"total_books"`
	ActiveMembers int        `json:"active_members"`
	ActiveLoans   int        `json:"active_loans"`
	OverdueLoans  int        `json:"overdue_loans"`
	RecentLoans   []*Loan    `json:"recent_loans"`
	PopularBooks  []*TopBook `json:"popular_books"`
}

// MemberDashboard is what a member sees about their own account.
type MemberDashboard struct {
	Member      *Member     `json:"member"`
	Eligibility Eligibility `json:"eligibility"`
	ActiveLoans []*Loan     `json:"active_loans"`
	History     []*Loan     `json:"history"`
}

const dashboardListSize = 5

// TopBooks ranks books by the number of loans started within window of now.
// A window of zero or less covers all time.
func (d *Database) TopBooks(ctx context.Context, window time.Duration, limit int) ([]*TopBook, error) {
	ds := d.from(goqu.T("loans").As("l")).
		Join(goqu.T("copies").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("l.copy_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("c.book_id")))).
		Select(
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.COUNT(goqu.I("l.id")).As("loan_count"),
		).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.C("loan_count").Desc(), goqu.I("b.title").Asc())
	if window > 0 {
		ds = ds.Where(goqu.I("l.loaned_at").Gte(d.Now().Add(-window)))
	}
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	rows := []*TopBook{}
	if err := d.selectx(ctx, d.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("top books: %w", err)
	}
	return rows, nil
}

// MemberLoanStats returns per-member totals for every member with at least
// one loan, busiest first.
func (d *Database) MemberLoanStats(ctx context.Context) ([]*MemberLoanStats, error) {
	ds := d.from(goqu.T("members").As("m")).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.member_id").Eq(goqu.I("m.id")))).
		Select(
			goqu.I("m.id").As("member_id"),
			goqu.I("m.full_name").As("full_name"),
			goqu.I("m.email").As("email"),
			goqu.COUNT(goqu.I("l.id")).As("total_loans"),
			goqu.L("SUM(CASE WHEN l.returned_at IS NULL THEN 1 ELSE 0 END)").As("active_loans"),
			goqu.L("SUM(CASE WHEN l.returned_at IS NOT NULL THEN 1 ELSE 0 END)").As("returned_loans"),
			goqu.L("SUM(CASE WHEN l.returned_at IS NULL AND l.due_at < ? THEN 1 ELSE 0 END)", d.Now()).As("overdue_loans"),
		).
		GroupBy(goqu.I("m.id"), goqu.I("m.full_name"), goqu.I("m.email")).
		Order(goqu.C("total_loans").Desc(), goqu.I("m.full_name").Asc())

	rows := []*MemberLoanStats{}
	if err := d.selectx(ctx, d.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("member loan stats: %w", err)
	}
	return rows, nil
}

// Dashboard gathers the staff overview counters and lists.
func (d *Database) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		dash Dashboard
		err  error
	)
	if dash.TotalBooks, err = d.CountBooks(ctx); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	if dash.ActiveMembers, err = d.CountActiveMembers(ctx); err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if dash.ActiveLoans, err = d.CountActiveLoans(ctx); err != nil {
		return nil, fmt.Errorf("count active loans: %w", err)
	}
	if dash.OverdueLoans, err = d.CountOverdueLoans(ctx); err != nil {
		return nil, fmt.Errorf("count overdue loans: %w", err)
	}
	if dash.RecentLoans, err = d.ListLoans(ctx, LoanFilter{Limit: dashboardListSize}); err != nil {
		return nil, err
	}
	if dash.PopularBooks, err = d.TopBooks(ctx, 0, dashboardListSize); err != nil {
		return nil, err
	}
	return &dash, nil
}

// MemberDashboard gathers a member's open loans, past loans and eligibility.
func (d *Database) MemberDashboard(ctx context.Context, memberID int64) (*MemberDashboard, error) {
	m, err := d.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	dash := &MemberDashboard{
		Member:      m,
		Eligibility: evaluateEligibility(memberID, m, m.OpenLoans),
	}
	if dash.ActiveLoans, err = d.ListLoans(ctx, LoanFilter{Status: LoansActive, MemberID: memberID}); err != nil {
		return nil, err
	}
	if dash.History, err = d.ListLoans(ctx, LoanFilter{Status: LoansReturned, MemberID: memberID}); err != nil {
		return nil, err
	}
	return dash, nil
}
