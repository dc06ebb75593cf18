package library

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// appendHistory writes one audit row. Rows are never updated afterwards.
func (d *Database) appendHistory(ctx context.Context, e sqlx.ExecerContext, h LoanHistory) error {
	if h.ActionAt.IsZero() {
		h.ActionAt = d.Now()
	}
	_, err := d.execx(ctx, e, d.insert("loan_history").Rows(goqu.Record{
		"loan_id":      h.LoanID,
		"action":       h.Action,
		"action_at":    h.ActionAt,
		"performed_by": h.PerformedBy,
		"old_status":   h.OldStatus,
		"new_status":   h.NewStatus,
		"notes":        h.Notes,
	}))
	if err != nil {
		return fmt.Errorf("append loan history: %w", err)
	}
	return nil
}

// LoanHistory returns the audit trail of a loan, oldest first.
func (d *Database) LoanHistory(ctx context.Context, loanID int64) ([]*LoanHistory, error) {
	rows := []*LoanHistory{}
	err := d.selectx(ctx, d.db, &rows, d.from("loan_history").
		Select("id", "loan_id", "action", "action_at", "performed_by", "old_status", "new_status", "notes").
		Where(goqu.C("loan_id").Eq(loanID)).
		Order(goqu.C("action_at").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list loan history: %w", err)
	}
	return rows, nil
}
