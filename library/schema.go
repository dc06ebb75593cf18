package library

// The two schemas are kept column-for-column identical; only types and
// identity columns differ. The partial unique index on open loans is what
// finally guarantees one open loan per copy.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		address TEXT,
		date_of_birth TIMESTAMP,
		joined_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','inactive')),
		role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin','librarian','member')),
		password_hash TEXT NOT NULL DEFAULT '',
		max_loan_limit INTEGER NOT NULL DEFAULT 3 CHECK (max_loan_limit >= 0),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		isbn TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		publish_year INTEGER,
		category TEXT,
		publisher TEXT,
		page_count INTEGER,
		language TEXT NOT NULL DEFAULT 'Turkish',
		description TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS copies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		shelf_location TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available','loaned','lost','damaged','maintenance')),
		condition_note TEXT,
		acquired_at TIMESTAMP,
		price_cents INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		copy_id INTEGER NOT NULL REFERENCES copies(id) ON DELETE CASCADE,
		member_id INTEGER NOT NULL REFERENCES members(id),
		loaned_at TIMESTAMP NOT NULL,
		due_at TIMESTAMP NOT NULL,
		returned_at TIMESTAMP,
		fine_cents INTEGER NOT NULL DEFAULT 0 CHECK (fine_cents >= 0),
		notes TEXT,
		created_by INTEGER REFERENCES members(id),
		returned_by INTEGER REFERENCES members(id),
		CHECK (due_at > loaned_at)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_loans_open_copy ON loans(copy_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS ix_loans_member ON loans(member_id)`,
	`CREATE INDEX IF NOT EXISTS ix_loans_loaned_at ON loans(loaned_at)`,
	`CREATE INDEX IF NOT EXISTS ix_copies_book ON copies(book_id)`,
	`CREATE TABLE IF NOT EXISTS loan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id INTEGER NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		action_at TIMESTAMP NOT NULL,
		performed_by INTEGER REFERENCES members(id),
		old_status TEXT,
		new_status TEXT,
		notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS ix_loan_history_loan ON loan_history(loan_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_expires ON sessions(expires_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		address TEXT,
		date_of_birth TIMESTAMPTZ,
		joined_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','inactive')),
		role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin','librarian','member')),
		password_hash TEXT NOT NULL DEFAULT '',
		max_loan_limit INTEGER NOT NULL DEFAULT 3 CHECK (max_loan_limit >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		isbn TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		publish_year INTEGER,
		category TEXT,
		publisher TEXT,
		page_count INTEGER,
		language TEXT NOT NULL DEFAULT 'Turkish',
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS copies (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		shelf_location TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available','loaned','lost','damaged','maintenance')),
		condition_note TEXT,
		acquired_at TIMESTAMPTZ,
		price_cents BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		copy_id BIGINT NOT NULL REFERENCES copies(id) ON DELETE CASCADE,
		member_id BIGINT NOT NULL REFERENCES members(id),
		loaned_at TIMESTAMPTZ NOT NULL,
		due_at TIMESTAMPTZ NOT NULL,
		returned_at TIMESTAMPTZ,
		fine_cents BIGINT NOT NULL DEFAULT 0 CHECK (fine_cents >= 0),
		notes TEXT,
		created_by BIGINT REFERENCES members(id),
		returned_by BIGINT REFERENCES members(id),
		CHECK (due_at > loaned_at)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_loans_open_copy ON loans(copy_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS ix_loans_member ON loans(member_id)`,
	`CREATE INDEX IF NOT EXISTS ix_loans_loaned_at ON loans(loaned_at)`,
	`CREATE INDEX IF NOT EXISTS ix_copies_book ON copies(book_id)`,
	`CREATE TABLE IF NOT EXISTS loan_history (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		loan_id BIGINT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		action_at TIMESTAMPTZ NOT NULL,
		performed_by BIGINT REFERENCES members(id),
		old_status TEXT,
		new_status TEXT,
		notes TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS ix_loan_history_loan ON loan_history(loan_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_expires ON sessions(expires_at)`,
}
