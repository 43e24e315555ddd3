package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mwanga/logger"
	"mwanga/types"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionStorer interface {
	CreateSession(context.Context, *types.Session) error
	GetSession(context.Context, uuid.UUID) (*types.Session, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, name, path string) (*types.Session, error)
	DeleteSession(context.Context, uuid.UUID) error
	Close() error
}

// Expirer is implemented by stores that purge expired sessions on request rather than on their own.
type Expirer interface {
	DeleteExpired(context.Context) (int64, error)
}

// PGConfig holds the Postgres connection settings.
type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (c PGConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// PostgresStore keeps sessions in the sessions table. Rows older than ttl since their last
// update are treated as gone; a zero ttl keeps them until deleted.
type PostgresStore struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, ttl time.Duration, l *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		ttl:    ttl,
		logger: logger.OrNop(l),
	}, nil
}

const sessionColumns = `id, name, company, business_sector, document_name, document_path, created_at, updated_at`

func (p *PostgresStore) CreateSession(ctx context.Context, s *types.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Company,
		s.BusinessSector,
		s.DocumentName,
		s.DocumentPath,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND updated_at > $2`, id, p.cutoff())
	return scanSession(row)
}

func (p *PostgresStore) UpdateDocument(ctx context.Context, id uuid.UUID, name, path string) (*types.Session, error) {
	query := `UPDATE sessions SET document_name = $2, document_path = $3, updated_at = $4
		WHERE id = $1 AND updated_at > $5
		RETURNING ` + sessionColumns
	row := p.pool.QueryRow(ctx, query, id, name, path, time.Now().UTC(), p.cutoff())
	return scanSession(row)
}

// DeleteExpired removes every session past its lifetime.
func (p *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	if p.ttl <= 0 {
		return 0, nil
	}
	tag, err := p.pool.Exec(ctx, "DELETE FROM sessions WHERE updated_at <= $1", p.cutoff())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// cutoff returns the time a live session must have been updated after.
func (p *PostgresStore) cutoff() time.Time {
	if p.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-p.ttl)
}

func (p *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (*types.Session, error) {
	s := &types.Session{}
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Company,
		&s.BusinessSector,
		&s.DocumentName,
		&s.DocumentPath,
		&s.CreatedAt,
		&s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) createSessionTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		company TEXT NOT NULL,
		business_sector TEXT NOT NULL,
		document_name TEXT NOT NULL DEFAULT '',
		document_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createSessionTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
