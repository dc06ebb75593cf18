package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoanDerivations(t *testing.T) {
	loanedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	due := loanedAt.Add(14 * 24 * time.Hour)
	returned := due.Add(72 * time.Hour)

	tests := []struct {
		name     string
		returned *time.Time
		now      time.Time
		overdue  bool
		days     int
		label    string
	}{
		{"before due", nil, due.Add(-time.Nanosecond), false, 0, "active"},
		{"at due", nil, due, false, 0, "active"},
		{"just past due", nil, due.Add(time.Nanosecond), true, 0, "overdue"},
		{"23h past due", nil, due.Add(23 * time.Hour), true, 0, "overdue"},
		{"one day past due", nil, due.Add(24 * time.Hour), true, 1, "overdue"},
		{"ten and a half days", nil, due.Add(252 * time.Hour), true, 10, "overdue"},
		{"returned late", &returned, due.Add(30 * 24 * time.Hour), false, 0, "returned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Loan{LoanedAt: loanedAt, DueAt: due, ReturnedAt: tt.returned}
			assert.Equal(t, tt.overdue, l.IsOverdue(tt.now))
			assert.Equal(t, tt.days, l.DaysOverdue(tt.now))
			assert.Equal(t, tt.label, l.Label(tt.now))
		})
	}
}

func TestEvaluateEligibility(t *testing.T) {
	active := &Member{Status: MemberActive, MaxLoanLimit: 3}
	inactive := &Member{Status: MemberInactive, MaxLoanLimit: 3}

	tests := []struct {
		name   string
		member *Member
		open   int
		want   bool
	}{
		{"missing", nil, 0, false},
		{"inactive", inactive, 0, false},
		{"below limit", active, 2, true},
		{"at limit", active, 3, false},
		{"above limit", active, 4, false},
		{"zero limit", &Member{Status: MemberActive}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := evaluateEligibility(1, tt.member, tt.open)
			assert.Equal(t, tt.want, e.CanBorrow)
			if !tt.want {
				assert.NotEmpty(t, e.Reason)
			}
		})
	}
}

func TestCheckCopyStatusChange(t *testing.T) {
	assert.ErrorIs(t, checkCopyStatusChange(CopyLoaned, false), ErrValidation)
	assert.ErrorIs(t, checkCopyStatusChange("shredded", false), ErrValidation)
	assert.ErrorIs(t, checkCopyStatusChange(CopyAvailable, true), ErrConflict)
	assert.NoError(t, checkCopyStatusChange(CopyAvailable, false))
	assert.NoError(t, checkCopyStatusChange(CopyLost, true))
}

func TestParseLoanFilterStatus(t *testing.T) {
	for in, want := range map[string]LoanFilterStatus{
		"": LoansAll, "all": LoansAll, "active": LoansActive, "overdue": LoansOverdue, "returned": LoansReturned,
	} {
		got, err := ParseLoanFilterStatus(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLoanFilterStatus("late")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestErrorKinds(t *testing.T) {
	err := newError([]error{ErrNotFound, ErrIneligible}, "member %d not found", 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrIneligible)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "member 7 not found", err.Error())
	assert.Equal(t, "member 7 not found", Reason(err))
	assert.Empty(t, Reason(assert.AnError))
}
