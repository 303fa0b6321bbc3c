package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the pgx surface Postgres needs. pgxpool.Pool satisfies it in
// production, pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the durable backend.
type Postgres struct {
	db   DB
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection surface, migrations already run.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects a pool and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(ctx, dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{db: pool, pool: pool}, nil
}

// runMigrations goes through database/sql because goose requires it; the
// pgx stdlib adapter shares the same driver.
func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) error {
	query := `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`
	_, err := p.db.Exec(ctx, query, u.ID, u.Username, u.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) UserByUsername(ctx context.Context, username string) (User, error) {
	query := `SELECT id, username, password_hash, created_at FROM users
	          WHERE LOWER(username) = LOWER($1)`

	var u User
	err := p.db.QueryRow(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.ErrNotFound
		}
		return User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (p *Postgres) Dataset(ctx context.Context, ownerID string) (models.Dataset, error) {
	query := `SELECT payload FROM datasets WHERE owner_id = $1`

	var raw []byte
	err := p.db.QueryRow(ctx, query, ownerID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Dataset{}, nil
		}
		return models.Dataset{}, fmt.Errorf("select dataset: %w", err)
	}

	var ds models.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return models.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

func (p *Postgres) ReplaceDataset(ctx context.Context, ownerID string, ds models.Dataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return err
	}

	query := `INSERT INTO datasets (owner_id, payload, updated_at)
	          VALUES ($1, $2, now())
	          ON CONFLICT (owner_id)
	          DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	if _, err := p.db.Exec(ctx, query, ownerID, raw); err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
