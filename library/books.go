package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// BookInput carries the editable fields of a Book.
type BookInput struct {
	ISBN        string
	Title       string
	Author      string
	PublishYear *int
	Category    string
	Publisher   string
	PageCount   *int
	Language    string
	Description string
}

func (in BookInput) record() goqu.Record {
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = "Turkish"
	}
	return goqu.Record{
		"title":        strings.TrimSpace(in.Title),
		"author":       strings.TrimSpace(in.Author),
		"publish_year": in.PublishYear,
		"category":     nullable(in.Category),
		"publisher":    nullable(in.Publisher),
		"page_count":   in.PageCount,
		"language":     language,
		"description":  nullable(in.Description),
	}
}

var bookColumns = []interface{}{
	"id", "isbn", "title", "author", "publish_year", "category", "publisher",
	"page_count", "language", "description", "created_at", "updated_at",
}

// AddBook inserts a catalog entry and returns its id.
func (d *Database) AddBook(ctx context.Context, in BookInput) (int64, error) {
	now := d.Now()
	rec := in.record()
	rec["isbn"] = strings.TrimSpace(in.ISBN)
	rec["created_at"] = now
	rec["updated_at"] = now

	id, err := d.insertID(ctx, d.db, d.insert("books").Rows(rec))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, conflict("a book with ISBN %s already exists", in.ISBN)
		}
		return 0, fmt.Errorf("insert book: %w", err)
	}
	return id, nil
}

// UpdateBook replaces the descriptive fields of a book. The ISBN is fixed
// once the book exists.
func (d *Database) UpdateBook(ctx context.Context, id int64, in BookInput) error {
	rec := in.record()
	rec["updated_at"] = d.Now()
	n, err := d.execAffected(ctx, d.db, d.update("books").Set(rec).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if n == 0 {
		return notFound("book %d not found", id)
	}
	return nil
}

// DeleteBook removes a book together with its copies and their closed loans.
// It refuses while any copy is out on loan.
func (d *Database) DeleteBook(ctx context.Context, id int64) error {
	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := d.getBook(ctx, tx, id); err != nil {
			return err
		}
		open, err := d.count(ctx, tx, d.from(goqu.T("loans").As("l")).
			Join(goqu.T("copies").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("l.copy_id")))).
			Where(goqu.I("c.book_id").Eq(id), goqu.I("l.returned_at").IsNull()))
		if err != nil {
			return fmt.Errorf("count open loans: %w", err)
		}
		if open > 0 {
			return conflict("book %d has %d copy(ies) on loan", id, open)
		}
		if _, err := d.execx(ctx, tx, d.delete("books").Where(goqu.C("id").Eq(id))); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
}

func (d *Database) getBook(ctx context.Context, q sqlx.QueryerContext, id int64) (*Book, error) {
	var b Book
	err := d.getx(ctx, q, &b, d.from("books").Select(bookColumns...).Where(goqu.C("id").Eq(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("book %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

// GetBook returns a book with all of its copies.
func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	b, err := d.getBook(ctx, d.db, id)
	if err != nil {
		return nil, err
	}
	copies, err := d.ListCopies(ctx, CopyFilter{BookID: id})
	if err != nil {
		return nil, err
	}
	b.Copies = copies
	return b, nil
}

// GetBookByISBN looks a book up by its ISBN.
func (d *Database) GetBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	var b Book
	err := d.getx(ctx, d.db, &b, d.from("books").Select(bookColumns...).Where(goqu.C("isbn").Eq(strings.TrimSpace(isbn))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("no book with ISBN %s", isbn)
	}
	if err != nil {
		return nil, fmt.Errorf("get book by isbn: %w", err)
	}
	return &b, nil
}

// ListBooks returns catalog metadata, newest first. Copies are not loaded.
func (d *Database) ListBooks(ctx context.Context) ([]*Book, error) {
	books := []*Book{}
	err := d.selectx(ctx, d.db, &books, d.from("books").Select(bookColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// SearchBooks matches q case-insensitively against title, author, category
// and ISBN.
func (d *Database) SearchBooks(ctx context.Context, q string) ([]*Book, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return d.ListBooks(ctx)
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	lower := func(col string) exp.SQLFunctionExpression { return goqu.Func("LOWER", goqu.C(col)) }

	books := []*Book{}
	err := d.selectx(ctx, d.db, &books, d.from("books").Select(bookColumns...).
		Where(goqu.Or(
			goqu.L("? LIKE ? ESCAPE '\\'", lower("title"), pattern),
			goqu.L("? LIKE ? ESCAPE '\\'", lower("author"), pattern),
			goqu.L("? LIKE ? ESCAPE '\\'", lower("category"), pattern),
			goqu.L("? LIKE ? ESCAPE '\\'", lower("isbn"), pattern),
		)).
		Order(goqu.C("title").Asc(), goqu.C("id").Asc()))
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CountBooks returns the number of catalog entries.
func (d *Database) CountBooks(ctx context.Context) (int, error) {
	return d.count(ctx, d.db, d.from("books"))
}
