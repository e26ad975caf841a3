package storage

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/postpilotapp/postpilot/internal/apperr"
)

// Postgres persists entries in a single kv_entries table. The byte budget is
// enforced here rather than relying on server-side limits so quota behavior
// is identical across backends.
type Postgres struct {
	db    *sql.DB
	quota int64
}

func NewPostgres(db *sql.DB, quota int64) *Postgres {
	return &Postgres{db: db, quota: quota}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	_, err := p.db.ExecContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	query := `SELECT key, value FROM kv_entries WHERE key = ANY($1)`
	rows, err := p.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]byte, len(keys))
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

func (p *Postgres) Set(ctx context.Context, entries map[string][]byte) error {
	if p.quota > 0 {
		projected, err := p.projectedSize(ctx, entries)
		if err != nil {
			return err
		}
		if projected > p.quota {
			return apperr.New(apperr.Quota, "storage quota exceeded")
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	for key, value := range entries {
		if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) projectedSize(ctx context.Context, entries map[string][]byte) (int64, error) {
	keys := make([]string, 0, len(entries))
	var incoming int64
	for key, value := range entries {
		keys = append(keys, key)
		incoming += int64(len(value))
	}

	query := `SELECT COALESCE(SUM(length(value)), 0) FROM kv_entries WHERE NOT (key = ANY($1))`
	var retained int64
	if err := p.db.QueryRowContext(ctx, query, pq.Array(keys)).Scan(&retained); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return retained + incoming, nil
}

func (p *Postgres) Remove(ctx context.Context, keys ...string) error {
	query := `DELETE FROM kv_entries WHERE key = ANY($1)`
	_, err := p.db.ExecContext(ctx, query, pq.Array(keys))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (p *Postgres) BytesInUse(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(length(value)), 0) FROM kv_entries`
	var total int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return total, nil
}
