package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// SQLite is a single-file repository backend. All statements go through
// one connection and every read-modify-write runs in a transaction, which
// serializes writers.
type SQLite struct {
	db *sql.DB

	item      *itemRepository
	embedding *embeddingRepository
	category  *categoryRepository
}

var _ interfaces.Repository = &SQLite{}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	store_key  TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	owner_id   TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	source     TEXT    NOT NULL,
	metadata   TEXT    NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	UNIQUE (store_key, id)
);
CREATE TABLE IF NOT EXISTS embeddings (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	store_key  TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	item_id    TEXT    NOT NULL,
	dimension  INTEGER NOT NULL,
	vector     BLOB    NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (store_key, id)
);
CREATE TABLE IF NOT EXISTS categories (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	store_key   TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	name_key    TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	icon        TEXT    NOT NULL DEFAULT '',
	color       TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	UNIQUE (store_key, id),
	UNIQUE (store_key, name_key)
);
CREATE TABLE IF NOT EXISTS item_categories (
	store_key   TEXT    NOT NULL,
	item_id     TEXT    NOT NULL,
	category_id TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	PRIMARY KEY (store_key, item_id, category_id)
);
CREATE INDEX IF NOT EXISTS item_categories_by_category ON item_categories (store_key, category_id);
`

// New opens (and creates if needed) the database at dsn, e.g. "brain.db"
// or "file:brain.db?_pragma=journal_mode(WAL)". ":memory:" is fine for
// tests.
func New(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("dsn", dsn))
	}
	// a single connection keeps ":memory:" databases shared and makes
	// transactions the unit of serialization
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to connect sqlite database", goerr.V("dsn", dsn))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to create sqlite schema")
	}

	return &SQLite{
		db:        db,
		item:      &itemRepository{db: db},
		embedding: &embeddingRepository{db: db},
		category:  &categoryRepository{db: db},
	}, nil
}

func (s *SQLite) Item() interfaces.ItemRepository {
	return s.item
}

func (s *SQLite) Embedding() interfaces.EmbeddingRepository {
	return s.embedding
}

func (s *SQLite) Category() interfaces.CategoryRepository {
	return s.category
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing when it returns nil
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.From(ctx).Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// quarantine logs a row that failed to decode or validate. Such rows are
// skipped instead of failing the whole read.
func quarantine(ctx context.Context, table, id string, err error) {
	logging.From(ctx).Warn("skipping malformed record",
		"table", table,
		"id", id,
		"error", err,
	)
}
