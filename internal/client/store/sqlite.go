// Package store persists the client's record collections in SQLite.
//
// The ledger treats it as synchronous key-value storage: the full dataset is
// loaded once at startup and written back on every state change. Records are
// stored as JSON payloads keyed by (entity type, logical key), tombstones
// included.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/tallybook/tallybook/internal/client/store/migrations"
	"github.com/tallybook/tallybook/internal/dbx"
	"github.com/tallybook/tallybook/internal/models"
)

// SQLite implements the ledger's persistence port on a local database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *SQLite) Close() error { return s.db.Close() }

// LoadAll reads every stored collection, live and deleted records alike.
func (s *SQLite) LoadAll(ctx context.Context) (models.Dataset, error) {
	var ds models.Dataset
	var err error

	if ds.Transactions, err = loadKind[models.Transaction](ctx, s.db, models.EntityTransactions); err != nil {
		return models.Dataset{}, err
	}
	if ds.RecurringTransactions, err = loadKind[models.RecurringTransaction](ctx, s.db, models.EntityRecurring); err != nil {
		return models.Dataset{}, err
	}
	if ds.TransactionGroups, err = loadKind[models.TransactionGroup](ctx, s.db, models.EntityTransactionGroups); err != nil {
		return models.Dataset{}, err
	}
	if ds.Tags, err = loadKind[models.Tag](ctx, s.db, models.EntityTags); err != nil {
		return models.Dataset{}, err
	}
	if ds.Categories, err = loadKind[models.Category](ctx, s.db, models.EntityCategories); err != nil {
		return models.Dataset{}, err
	}
	if ds.CategoryGroups, err = loadKind[models.CategoryGroup](ctx, s.db, models.EntityCategoryGroups); err != nil {
		return models.Dataset{}, err
	}
	if ds.Users, err = loadKind[models.User](ctx, s.db, models.EntityUsers); err != nil {
		return models.Dataset{}, err
	}
	if ds.UserSettings, err = loadKind[models.UserSetting](ctx, s.db, models.EntityUserSettings); err != nil {
		return models.Dataset{}, err
	}
	return ds, nil
}

// SaveAll replaces the stored dataset with ds in one transaction.
func (s *SQLite) SaveAll(ctx context.Context, ds models.Dataset) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
			return fmt.Errorf("clear records: %w", err)
		}
		if err := saveKind(ctx, tx, models.EntityTransactions, ds.Transactions); err != nil {
			return err
		}
		if err := saveKind(ctx, tx, models.EntityRecurring, ds.RecurringTransactions); err != nil {
			return err
		}
		if err := saveKind(ctx, tx, models.EntityTransactionGroups, ds.TransactionGroups); err != nil {
			return err
		}
		if err := saveKind(ctx, tx, models.EntityTags, ds.Tags); err != nil {
			return err
		}
		if err := saveKind(ctx, tx, models.EntityCategories, ds.Categories); err != nil {
			return err
		}
		if err := saveKind(ctx, tx, models.EntityCategoryGroups, ds.CategoryGroups); err != nil {
			return err
		}
		if err := saveKind(ctx, tx, models.EntityUsers, ds.Users); err != nil {
			return err
		}
		return saveKind(ctx, tx, models.EntityUserSettings, ds.UserSettings)
	})
}

type keyed interface {
	Key() (string, error)
	MetaRef() *models.Meta
}

func loadKind[T any](ctx context.Context, db dbx.DBTX, kind models.EntityType) ([]T, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT payload FROM records WHERE entity_type = ? ORDER BY key`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec T
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", kind, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func saveKind[T any, PT interface {
	*T
	keyed
}](ctx context.Context, tx dbx.DBTX, kind models.EntityType, recs []T) error {
	const q = `INSERT INTO records (entity_type, key, version, deleted, payload)
		VALUES (?, ?, ?, ?, ?)`
	for i := range recs {
		p := PT(&recs[i])
		key, err := p.Key()
		if err != nil {
			return fmt.Errorf("save %s record %d: %w", kind, i, err)
		}
		payload, err := json.Marshal(recs[i])
		if err != nil {
			return fmt.Errorf("encode %s %q: %w", kind, key, err)
		}
		meta := p.MetaRef()
		deleted := 0
		if meta.Deleted {
			deleted = 1
		}
		if _, err := tx.ExecContext(ctx, q, string(kind), key, meta.Version, deleted, payload); err != nil {
			return fmt.Errorf("insert %s %q: %w", kind, key, err)
		}
	}
	return nil
}
