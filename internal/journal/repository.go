package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 100

// Repository persists journal entries.
type Repository interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	UpdateState(ctx context.Context, hash string, state State, reason string) error
	List(ctx context.Context, fundsAddress string, limit int) ([]Entry, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS ledger_journal (
    id            UUID PRIMARY KEY,
    tx_hash       TEXT NOT NULL UNIQUE,
    kind          TEXT NOT NULL,
    funds_address TEXT NOT NULL,
    sender        TEXT NOT NULL,
    amount        TEXT NOT NULL DEFAULT '',
    state         TEXT NOT NULL,
    error         TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_journal_funds_idx ON ledger_journal (funds_address, created_at DESC);`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed journal.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the journal table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// Append inserts a new entry, assigning its ID and timestamps.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) (Entry, error) {
	entry = stamp(entry, time.Now())
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return Entry{}, err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO ledger_journal
        (id, tx_hash, kind, funds_address, sender, amount, state, error, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, entry.Hash, entry.Kind, entry.FundsAddress, entry.Sender, entry.Amount,
		string(entry.State), entry.Error, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// UpdateState moves the entry for hash to state.
func (r *PostgresRepository) UpdateState(ctx context.Context, hash string, state State, reason string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE ledger_journal SET state = $1, error = $2, updated_at = $3 WHERE tx_hash = $4`,
		string(state), reason, time.Now().UTC(), hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// List returns the newest entries first, optionally restricted to one fund.
func (r *PostgresRepository) List(ctx context.Context, fundsAddress string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const query = `
        SELECT id, tx_hash, kind, funds_address, sender, amount, state, error, created_at, updated_at
        FROM ledger_journal
        WHERE $1::text = '' OR funds_address = $1::text
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, fundsAddress, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		id    uuid.UUID
		state string
		entry Entry
	)
	if err := row.Scan(&id, &entry.Hash, &entry.Kind, &entry.FundsAddress, &entry.Sender, &entry.Amount,
		&state, &entry.Error, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	entry.ID = id.String()
	entry.State = State(state)
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

func stamp(entry Entry, now time.Time) Entry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.State == "" {
		entry.State = StateSubmitted
	}
	now = now.UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	return entry
}
