package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/juju/clock"
	_ "github.com/lib/pq"

	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
)

const newsTable = "news"

const schema = `
CREATE TABLE IF NOT EXISTS news (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    link TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE (title, link)
);
CREATE INDEX IF NOT EXISTS news_created_at_idx ON news (created_at DESC);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists ingested records into Postgres.
type PostgresRepository struct {
	db    *sql.DB
	clock clock.Clock
}

var _ ports.RecordStore = (*PostgresRepository)(nil)

// OpenPostgres opens a pooled connection and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", domain.ErrStorage, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", domain.ErrStorage, err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation. A nil clock means wall time.
func NewPostgresRepository(db *sql.DB, clk clock.Clock) *PostgresRepository {
	if clk == nil {
		clk = clock.WallClock
	}
	return &PostgresRepository{db: db, clock: clk}
}

// Ensure checks connectivity and creates the news table when missing.
func (r *PostgresRepository) Ensure(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("%w: postgres is not configured", domain.ErrStorage)
	}
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrStorage, err)
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: initialize schema: %w", domain.ErrStorage, err)
	}
	return nil
}

// LoadKnownIdentities reads every stored (title, link) pair.
func (r *PostgresRepository) LoadKnownIdentities(ctx context.Context) (domain.IdentitySet, error) {
	query, args, err := identitiesQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build identities query: %w", domain.ErrStorage, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query identities: %w", domain.ErrStorage, err)
	}

	result := domain.IdentitySet{}
	for rows.Next() {
		var id domain.Identity
		if err := rows.Scan(&id.Title, &id.Link); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: scan identity: %w", domain.ErrStorage, err)
		}
		result.Add(id)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%w: rows iteration: %w", domain.ErrStorage, rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("%w: close rows: %w", domain.ErrStorage, closeErr)
	}

	return result, nil
}

// InsertNew writes the batch in one transaction; the UNIQUE (title, link)
// constraint rejects the whole batch on a duplicate.
func (r *PostgresRepository) InsertNew(ctx context.Context, records []domain.Record) ([]domain.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	query, args, err := insertQuery(records).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build insert: %w", domain.ErrStorage, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: insert records: %w", domain.ErrStorage, err)
	}

	ids := make(map[domain.Identity]int64, len(records))
	for rows.Next() {
		var (
			id    int64
			ident domain.Identity
		)
		if err := rows.Scan(&id, &ident.Title, &ident.Link); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("%w: scan inserted id: %w", domain.ErrStorage, err)
		}
		ids[ident] = id
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("%w: insert iteration: %w", domain.ErrStorage, rowsErr)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("%w: close insert rows: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}

	inserted := make([]domain.Record, len(records))
	for i, rec := range records {
		rec.ID = ids[rec.Identity()]
		inserted[i] = rec
	}
	return inserted, nil
}

// QueryRecent counts rows created after now-window; now comes from the repository clock.
func (r *PostgresRepository) QueryRecent(ctx context.Context, window time.Duration) (int, error) {
	query, args, err := recentQuery(r.clock.Now().Add(-window)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: build recent query: %w", domain.ErrStorage, err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count recent: %w", domain.ErrStorage, err)
	}
	return count, nil
}

// ListRecent returns every record, most recent first.
func (r *PostgresRepository) ListRecent(ctx context.Context) ([]domain.Record, error) {
	query, args, err := listQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build list query: %w", domain.ErrStorage, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Link, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan record: %w", domain.ErrStorage, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list iteration: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func identitiesQuery() sq.SelectBuilder {
	return psql.Select("title", "link").From(newsTable)
}

func insertQuery(records []domain.Record) sq.InsertBuilder {
	q := psql.Insert(newsTable).Columns("title", "link", "created_at")
	for _, rec := range records {
		q = q.Values(rec.Title, rec.Link, rec.CreatedAt.UTC())
	}
	return q.Suffix("RETURNING id, title, link")
}

func recentQuery(cutoff time.Time) sq.SelectBuilder {
	return psql.Select("COUNT(*)").From(newsTable).Where(sq.Gt{"created_at": cutoff.UTC()})
}

func listQuery() sq.SelectBuilder {
	return psql.Select("id", "title", "link", "created_at").From(newsTable).OrderBy("created_at DESC", "id DESC")
}
