package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
)

const (
	keyPrefix = "aff"

	// Records stay readable past their expiry so that expired tokens can be
	// deleted on discovery; the TTL grace is only a backstop against rows the
	// sweeper never sees.
	ttlGrace = 24 * time.Hour
)

type record struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Value     string    `json:"value"`
	Kind      string    `json:"kind"`
	SubjectID string    `json:"subject_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage keeps one primary key per token plus two pointer keys:
//
//	aff:tok:<value>        JSON record
//	aff:tid:<id>           value (for deletes by surrogate id)
//	aff:eml:<email>:<kind> value (for per-email supersession)
//
// The pointer keys assume the orchestrator's delete-then-insert ordering,
// which guarantees at most one live token per email and kind.
type Storage struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string) (*Storage, error) {
	const op = "storage.redisstore.New"

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(rdb *redis.Client) *Storage {
	return &Storage{rdb: rdb}
}

func tokenKey(value string) string {
	return keyPrefix + ":tok:" + value
}

func idKey(id string) string {
	return keyPrefix + ":tid:" + id
}

func emailKey(email string, kind model.Kind) string {
	return keyPrefix + ":eml:" + email + ":" + string(kind)
}

func (s *Storage) Insert(ctx context.Context, token *model.Token) error {
	const op = "storage.redisstore.Insert"

	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	encoded, err := json.Marshal(record{
		ID:        token.ID,
		Email:     token.Email,
		Value:     token.Value,
		Kind:      string(token.Kind),
		SubjectID: token.SubjectID,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	ttl := time.Until(token.ExpiresAt) + ttlGrace

	ok, err := s.rdb.SetNX(ctx, tokenKey(token.Value), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicateToken)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, idKey(token.ID), token.Value, ttl)
		pipe.Set(ctx, emailKey(token.Email, token.Kind), token.Value, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) FindByValue(ctx context.Context, value string, kind model.Kind) (*model.Token, error) {
	const op = "storage.redisstore.FindByValue"

	token, err := s.getToken(ctx, op, value)
	if err != nil {
		return nil, err
	}

	if kind != model.KindAny && token.Kind != kind {
		return nil, storage.ErrTokenNotExists
	}

	return token, nil
}

func (s *Storage) FindByValueAndEmail(ctx context.Context, value, email string, kind model.Kind) (*model.Token, error) {
	const op = "storage.redisstore.FindByValueAndEmail"

	token, err := s.getToken(ctx, op, value)
	if err != nil {
		return nil, err
	}

	if token.Email != email || token.Kind != kind {
		return nil, storage.ErrTokenNotExists
	}

	return token, nil
}

func (s *Storage) getToken(ctx context.Context, op, value string) (*model.Token, error) {
	data, err := s.rdb.Get(ctx, tokenKey(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrTokenNotExists
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &model.Token{
		ID:        rec.ID,
		Email:     rec.Email,
		Value:     rec.Value,
		Kind:      model.Kind(rec.Kind),
		SubjectID: rec.SubjectID,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *Storage) DeleteByEmailAndKind(ctx context.Context, email string, kind model.Kind) error {
	const op = "storage.redisstore.DeleteByEmailAndKind"

	value, err := s.rdb.Get(ctx, emailKey(email, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.getToken(ctx, op, value)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotExists) {
			return s.del(ctx, op, emailKey(email, kind))
		}

		return err
	}

	return s.del(ctx, op, tokenKey(value), idKey(token.ID), emailKey(email, kind))
}

func (s *Storage) DeleteByID(ctx context.Context, id string) error {
	const op = "storage.redisstore.DeleteByID"

	value, err := s.rdb.Get(ctx, idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.getToken(ctx, op, value)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotExists) {
			return s.del(ctx, op, idKey(id))
		}

		return err
	}

	if err := s.del(ctx, op, tokenKey(value), idKey(id)); err != nil {
		return err
	}

	return s.delEmailPointerIf(ctx, op, token.Email, token.Kind, value)
}

// delEmailPointerIf removes the per-email pointer only while it still refers
// to the given value; a superseding insert may already have repointed it.
func (s *Storage) delEmailPointerIf(ctx context.Context, op, email string, kind model.Kind, value string) error {
	current, err := s.rdb.Get(ctx, emailKey(email, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if current != value {
		return nil
	}

	return s.del(ctx, op, emailKey(email, kind))
}

func (s *Storage) del(ctx context.Context, op string, keys ...string) error {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.redisstore.SweepExpired"

	var removed int64

	iter := s.rdb.Scan(ctx, 0, keyPrefix+":tok:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			return removed, fmt.Errorf("%s: %w", op, err)
		}

		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return removed, fmt.Errorf("%s: %w", op, err)
		}

		if !rec.ExpiresAt.Before(now) {
			continue
		}

		if err := s.del(ctx, op, tokenKey(rec.Value), idKey(rec.ID)); err != nil {
			return removed, err
		}
		if err := s.delEmailPointerIf(ctx, op, rec.Email, model.Kind(rec.Kind), rec.Value); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%s: %w", op, err)
	}

	return removed, nil
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	const op = "storage.redisstore.Count"

	var count int64

	iter := s.rdb.Scan(ctx, 0, keyPrefix+":tok:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (s *Storage) Close(_ context.Context) error {
	return s.rdb.Close()
}
