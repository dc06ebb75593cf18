package library

// Circulation rules. They are pure so the store can evaluate them inside the
// same transaction that performs the write.

const (
	DefaultLoanDays     = 14
	DefaultMaxLoanLimit = 3
	minPasswordLength   = 6
)

// evaluateEligibility decides whether m, currently holding openLoans, may
// borrow one more copy. A nil member is never eligible.
func evaluateEligibility(memberID int64, m *Member, openLoans int) Eligibility {
	e := Eligibility{MemberID: memberID, OpenLoans: openLoans}
	switch {
	case m == nil:
		e.Reason = "member does not exist"
	case m.Status != MemberActive:
		e.Limit = m.MaxLoanLimit
		e.Reason = "member account is inactive"
	case openLoans >= m.MaxLoanLimit:
		e.Limit = m.MaxLoanLimit
		e.Reason = "member has reached the loan limit"
	default:
		e.Limit = m.MaxLoanLimit
		e.CanBorrow = true
	}
	return e
}

// checkMemberChange enforces the administration rules for role and status
// edits: admins keep their role and stay active, and nobody is deactivated
// while holding books.
func checkMemberChange(m *Member, role Role, status MemberStatus, openLoans int) error {
	if m.Role == RoleAdmin && (role != RoleAdmin || status != MemberActive) {
		return conflict("admin accounts cannot change role or be deactivated")
	}
	if status == MemberInactive && m.Status != MemberInactive && openLoans > 0 {
		return conflict("member still has %d open loan(s); all books must be returned first", openLoans)
	}
	return nil
}

// checkCopyStatusChange guards manual status edits. Lending owns the
// "loaned" status; "available" is refused while a loan is open.
func checkCopyStatusChange(status CopyStatus, hasOpenLoan bool) error {
	if !status.Valid() {
		return validation("unknown copy status %q", status)
	}
	if status == CopyLoaned {
		return validation("copies are marked loaned only by lending them")
	}
	if status == CopyAvailable && hasOpenLoan {
		return conflict("copy has an open loan; return it first")
	}
	return nil
}
