package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"consentlake/internal/consent/models"
	"consentlake/pkg/platform/sentinel"
)

// PostgresStore appends snapshots to the consent_snapshots table.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed consent store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

// InUserTx runs fn against a store bound to one transaction holding a
// per-user advisory lock, so replicas updating the same user take turns.
// A store already bound to a transaction runs fn on itself.
func (s *PostgresStore) InUserTx(ctx context.Context, userID string, fn func(ctx context.Context, tx *PostgresStore) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consent tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("lock consent user: %w", err)
	}
	if err := fn(ctx, NewPostgresTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consent tx: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const snapshotColumns = `user_id, consent_ai_training, consent_data_sale, consent_analytics,
	consent_personalization, consent_research, consent_timestamp, consent_version,
	ip_address, user_agent`

func (s *PostgresStore) Append(ctx context.Context, consent *models.UserConsent) error {
	if consent == nil || consent.UserID == "" {
		return fmt.Errorf("append consent: %w", sentinel.ErrInvalidInput)
	}
	query := `INSERT INTO consent_snapshots (` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.execer().ExecContext(ctx, query,
		consent.UserID,
		consent.AITraining,
		consent.DataSale,
		consent.Analytics,
		consent.Personalization,
		consent.Research,
		consent.Timestamp.UTC(),
		consent.Version,
		nullString(consent.IPAddress),
		nullString(consent.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("append consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, userID string) (*models.UserConsent, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM consent_snapshots
		WHERE user_id = $1
		ORDER BY consent_timestamp DESC, id DESC
		LIMIT 1`
	c, err := scanSnapshot(s.execer().QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest consent: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) History(ctx context.Context, userID string) ([]*models.UserConsent, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM consent_snapshots
		WHERE user_id = $1
		ORDER BY consent_timestamp DESC, id DESC`
	return s.query(ctx, "list consent history", query, userID)
}

func (s *PostgresStore) ListLatest(ctx context.Context) ([]*models.UserConsent, error) {
	query := `SELECT DISTINCT ON (user_id) ` + snapshotColumns + `
		FROM consent_snapshots
		ORDER BY user_id, consent_timestamp DESC, id DESC`
	return s.query(ctx, "list latest consents", query)
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]*models.UserConsent, error) {
	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []*models.UserConsent{}
	for rows.Next() {
		c, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

type snapshotRow interface {
	Scan(dest ...any) error
}

func scanSnapshot(row snapshotRow) (*models.UserConsent, error) {
	var c models.UserConsent
	var ip, ua sql.NullString
	if err := row.Scan(
		&c.UserID,
		&c.AITraining,
		&c.DataSale,
		&c.Analytics,
		&c.Personalization,
		&c.Research,
		&c.Timestamp,
		&c.Version,
		&ip,
		&ua,
	); err != nil {
		return nil, err
	}
	c.Timestamp = c.Timestamp.UTC()
	c.IPAddress = ip.String
	c.UserAgent = ua.String
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
