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

// CopyInput carries the editable fields of a Copy.
type CopyInput struct {
	ShelfLocation string
	ConditionNote string
	AcquiredAt    *time.Time
	PriceCents    *int64
}

// CopyFilter narrows ListCopies.
type CopyFilter struct {
	BookID int64
	Status CopyStatus
}

func (d *Database) copySelect() *goqu.SelectDataset {
	return d.from(goqu.T("copies").As("c")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("c.book_id")))).
		Select(
			"c.id", "c.book_id", "c.shelf_location", "c.status", "c.condition_note",
			"c.acquired_at", "c.price_cents", "c.created_at", "c.updated_at",
			goqu.I("b.title").As("book_title"), goqu.I("b.author").As("book_author"),
		)
}

// AddCopy puts a new physical copy of bookID into circulation. New copies
// start out available unless status says otherwise; they can never start out
// loaned.
func (d *Database) AddCopy(ctx context.Context, bookID int64, in CopyInput, status CopyStatus) (int64, error) {
	if status == "" {
		status = CopyAvailable
	}
	if status == CopyLoaned || !status.Valid() {
		return 0, validation("a new copy cannot have status %q", status)
	}

	var id int64
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := d.getBook(ctx, tx, bookID); err != nil {
			return err
		}
		now := d.Now()
		var err error
		id, err = d.insertID(ctx, tx, d.insert("copies").Rows(goqu.Record{
			"book_id":        bookID,
			"shelf_location": strings.TrimSpace(in.ShelfLocation),
			"status":         status,
			"condition_note": nullable(in.ConditionNote),
			"acquired_at":    in.AcquiredAt,
			"price_cents":    in.PriceCents,
			"created_at":     now,
			"updated_at":     now,
		}))
		if err != nil {
			return fmt.Errorf("insert copy: %w", err)
		}
		return nil
	})
	return id, err
}

// UpdateCopy edits shelf location, condition note, acquisition date and
// price. Status changes go through UpdateCopyStatus.
func (d *Database) UpdateCopy(ctx context.Context, id int64, in CopyInput) error {
	n, err := d.execAffected(ctx, d.db, d.update("copies").Set(goqu.Record{
		"shelf_location": strings.TrimSpace(in.ShelfLocation),
		"condition_note": nullable(in.ConditionNote),
		"acquired_at":    in.AcquiredAt,
		"price_cents":    in.PriceCents,
		"updated_at":     d.Now(),
	}).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("update copy: %w", err)
	}
	if n == 0 {
		return notFound("copy %d not found", id)
	}
	return nil
}

// UpdateCopyStatus flags a copy as available, lost, damaged or under
// maintenance. When the copy is out on loan the change is recorded in that
// loan's history; the loan itself stays open.
func (d *Database) UpdateCopyStatus(ctx context.Context, id int64, status CopyStatus, note string, performedBy int64) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := d.getCopy(ctx, tx, id, true)
		if err != nil {
			return err
		}
		openLoanID, err := d.openLoanForCopy(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkCopyStatusChange(status, openLoanID != 0); err != nil {
			return err
		}

		rec := goqu.Record{"status": status, "updated_at": d.Now()}
		if n := nullable(note); n != nil {
			rec["condition_note"] = n
		}
		if _, err := d.execx(ctx, tx, d.update("copies").Set(rec).Where(goqu.C("id").Eq(id))); err != nil {
			return fmt.Errorf("update copy status: %w", err)
		}

		if openLoanID != 0 && current.Status != status {
			return d.appendHistory(ctx, tx, LoanHistory{
				LoanID:      openLoanID,
				Action:      ActionCopyFlagged,
				PerformedBy: optionalID(performedBy),
				OldStatus:   ptr(string(current.Status)),
				NewStatus:   ptr(string(status)),
				Notes:       nullable(note),
			})
		}
		return nil
	})
}

// DeleteCopy removes a copy that is not on loan, together with its closed
// loans.
func (d *Database) DeleteCopy(ctx context.Context, id int64) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := d.getCopy(ctx, tx, id, true); err != nil {
			return err
		}
		openLoanID, err := d.openLoanForCopy(ctx, tx, id)
		if err != nil {
			return err
		}
		if openLoanID != 0 {
			return conflict("copy %d is on loan (loan %d)", id, openLoanID)
		}
		if _, err := d.execx(ctx, tx, d.delete("copies").Where(goqu.C("id").Eq(id))); err != nil {
			return fmt.Errorf("delete copy: %w", err)
		}
		return nil
	})
}

func (d *Database) getCopy(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*Copy, error) {
	var c Copy
	ds := d.copySelect().Where(goqu.I("c.id").Eq(id))
	if lock {
		ds = d.forUpdate(ds)
	}
	err := d.getx(ctx, q, &c, ds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("copy %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get copy: %w", err)
	}
	return &c, nil
}

// GetCopy returns a copy with its book title and author.
func (d *Database) GetCopy(ctx context.Context, id int64) (*Copy, error) {
	return d.getCopy(ctx, d.db, id, false)
}

// ListCopies returns copies ordered by book title then shelf location.
func (d *Database) ListCopies(ctx context.Context, f CopyFilter) ([]*Copy, error) {
	ds := d.copySelect()
	if f.BookID != 0 {
		ds = ds.Where(goqu.I("c.book_id").Eq(f.BookID))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.I("c.status").Eq(f.Status))
	}
	copies := []*Copy{}
	err := d.selectx(ctx, d.db, &copies, ds.Order(goqu.I("b.title").Asc(), goqu.I("c.shelf_location").Asc(), goqu.I("c.id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("list copies: %w", err)
	}
	return copies, nil
}

// openLoanForCopy returns the id of the copy's open loan, or 0.
func (d *Database) openLoanForCopy(ctx context.Context, q sqlx.QueryerContext, copyID int64) (int64, error) {
	var id int64
	err := d.getx(ctx, q, &id, d.from("loans").Select("id").
		Where(goqu.C("copy_id").Eq(copyID), goqu.C("returned_at").IsNull()))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find open loan: %w", err)
	}
	return id, nil
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
