package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
)

// Expected schema:
//
//	CREATE TABLE tokens (
//	    id         TEXT PRIMARY KEY,
//	    email      TEXT NOT NULL,
//	    value      TEXT NOT NULL UNIQUE,
//	    kind       TEXT NOT NULL,
//	    subject_id TEXT NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX tokens_email_kind_idx ON tokens (email, kind);

const (
	uniqueViolationCode = "23505"
)

type Storage struct {
	db *sql.DB
}

func New(connURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", connURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Insert(ctx context.Context, token *model.Token) error {
	const op = "storage.postgres.Insert"

	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO tokens (id, email, value, kind, subject_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		token.ID,
		token.Email,
		token.Value,
		string(token.Kind),
		token.SubjectID,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicateToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) FindByValue(ctx context.Context, value string, kind model.Kind) (*model.Token, error) {
	const op = "storage.postgres.FindByValue"

	query := `
		SELECT id, email, value, kind, subject_id, expires_at, created_at
		FROM tokens WHERE value = $1
	`
	args := []any{value}

	if kind != model.KindAny {
		query += ` AND kind = $2`
		args = append(args, string(kind))
	}

	return s.scanOne(ctx, op, query, args...)
}

func (s *Storage) FindByValueAndEmail(ctx context.Context, value, email string, kind model.Kind) (*model.Token, error) {
	const op = "storage.postgres.FindByValueAndEmail"

	return s.scanOne(ctx, op, `
		SELECT id, email, value, kind, subject_id, expires_at, created_at
		FROM tokens WHERE value = $1 AND email = $2 AND kind = $3
	`, value, email, string(kind))
}

func (s *Storage) scanOne(ctx context.Context, op, query string, args ...any) (*model.Token, error) {
	token := &model.Token{}

	var kind string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&token.ID,
		&token.Email,
		&token.Value,
		&kind,
		&token.SubjectID,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotExists
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}
	token.Kind = model.Kind(kind)

	return token, nil
}

func (s *Storage) DeleteByEmailAndKind(ctx context.Context, email string, kind model.Kind) error {
	const op = "storage.postgres.DeleteByEmailAndKind"

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM tokens WHERE email = $1 AND kind = $2
	`, email, string(kind))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) DeleteByID(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteByID"

	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.SweepExpired"

	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return removed, nil
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	const op = "storage.postgres.Count"

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (s *Storage) Close(ctx context.Context) error {
	done := make(chan struct{})

	var closeErr error
	go func() {
		closeErr = s.db.Close()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
