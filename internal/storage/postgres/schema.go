package postgres

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	author         TEXT NOT NULL,
	isbn           TEXT NOT NULL,
	published_year INTEGER NOT NULL,
	description    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reviews (
	id            TEXT PRIMARY KEY,
	book_id       TEXT NOT NULL REFERENCES books (id),
	reviewer_name TEXT NOT NULL,
	rating        INTEGER NOT NULL,
	comment       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_reviews_book_id ON reviews (book_id, created_at);

CREATE TABLE IF NOT EXISTS jobs (
	seq          BIGSERIAL,
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	payload      JSONB,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at TIMESTAMPTZ,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_seq ON jobs (status, seq);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC, id DESC);
`

const seedBook = `
INSERT INTO books (id, title, author, isbn, published_year, description)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING
`

const seedReview = `
INSERT INTO reviews (id, book_id, reviewer_name, rating, comment, created_at, processed)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING
`
