package library

// CopyStatus is the shelf state of a physical copy.
type CopyStatus string

const (
	CopyAvailable   CopyStatus = "available"
	CopyLoaned      CopyStatus = "loaned"
	CopyLost        CopyStatus = "lost"
	CopyDamaged     CopyStatus = "damaged"
	CopyMaintenance CopyStatus = "maintenance"
)

var copyStatuses = []CopyStatus{CopyAvailable, CopyLoaned, CopyLost, CopyDamaged, CopyMaintenance}

// Valid reports whether s is one of the known copy statuses.
func (s CopyStatus) Valid() bool {
	for _, known := range copyStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseCopyStatus converts user input into a CopyStatus.
func ParseCopyStatus(s string) (CopyStatus, error) {
	status := CopyStatus(s)
	if !status.Valid() {
		return "", validation("unknown copy status %q", s)
	}
	return status, nil
}

// MemberStatus tells whether a member account may be used.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

func (s MemberStatus) Valid() bool { return s == MemberActive || s == MemberInactive }

// ParseMemberStatus converts user input into a MemberStatus.
func ParseMemberStatus(s string) (MemberStatus, error) {
	status := MemberStatus(s)
	if !status.Valid() {
		return "", validation("unknown member status %q", s)
	}
	return status, nil
}

// Role decides what a member is allowed to do.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "librarian"
	RoleMember    Role = "member"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleLibrarian || r == RoleMember }

// IsStaff is true for roles that may run the circulation desk.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleLibrarian }

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", validation("unknown role %q", s)
	}
	return role, nil
}

// HistoryAction names an entry in a loan's audit trail.
type HistoryAction string

const (
	ActionLoaned      HistoryAction = "loaned"
	ActionReturned    HistoryAction = "returned"
	ActionCopyFlagged HistoryAction = "copy_status_changed"
)

// LoanState is the position of a loan in its lifecycle.
type LoanState string

const (
	LoanOpen     LoanState = "open"
	LoanReturned LoanState = "returned"
)

// LoanFilterStatus narrows loan listings.
type LoanFilterStatus string

const (
	LoansAll      LoanFilterStatus = ""
	LoansActive   LoanFilterStatus = "active"
	LoansOverdue  LoanFilterStatus = "overdue"
	LoansReturned LoanFilterStatus = "returned"
)

// ParseLoanFilterStatus accepts "", "all", "active", "overdue" and "returned".
func ParseLoanFilterStatus(s string) (LoanFilterStatus, error) {
	switch LoanFilterStatus(s) {
	case LoansAll, "all":
		return LoansAll, nil
	case LoansActive, LoansOverdue, LoansReturned:
		return LoanFilterStatus(s), nil
	}
	return "", validation("unknown loan status filter %q", s)
}

func (s CopyStatus) String() string   { return string(s) }
func (s MemberStatus) String() string { return string(s) }
func (r Role) String() string         { return string(r) }
