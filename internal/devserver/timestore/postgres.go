package timestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/medvolt/scanblur/internal/devserver/timestore/migrations"
)

// PostgresStore persists values in the stored_times table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.runMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.UpContext(ctx, s.db, ".")
}

func (s *PostgresStore) Save(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stored_times (value) VALUES ($1)`, value)
	if err != nil {
		return fmt.Errorf("saving stored time: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM stored_times ORDER BY id DESC LIMIT 1`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoStoredTime
	}
	if err != nil {
		return "", fmt.Errorf("reading stored time: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
