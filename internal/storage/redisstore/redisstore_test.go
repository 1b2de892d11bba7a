package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewWithClient(rdb)
}

func newToken(email, value string, kind model.Kind, expiresAt time.Time) *model.Token {
	return &model.Token{
		Email:     email,
		Value:     value,
		Kind:      kind,
		SubjectID: "contact-1",
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func TestInsert_DuplicateValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	exp := time.Now().Add(time.Hour)

	if err := s.Insert(ctx, newToken("a@example.com", "v1", model.KindMagicLink, exp)); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := s.Insert(ctx, newToken("b@example.com", "v1", model.KindSession, exp))
	if !errors.Is(err, storage.ErrDuplicateToken) {
		t.Fatalf("got %v, want ErrDuplicateToken", err)
	}
}

func TestFindByValue_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	token := newToken("a@example.com", "v1", model.KindMagicLink, exp)

	if err := s.Insert(ctx, token); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.FindByValue(ctx, "v1", model.KindMagicLink)
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if got.ID != token.ID || got.Email != "a@example.com" || got.Kind != model.KindMagicLink {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got.ExpiresAt, exp)
	}

	if _, err := s.FindByValue(ctx, "v1", model.KindSession); !errors.Is(err, storage.ErrTokenNotExists) {
		t.Errorf("wrong kind: got %v, want ErrTokenNotExists", err)
	}
	if _, err := s.FindByValue(ctx, "v1", model.KindAny); err != nil {
		t.Errorf("no kind filter: %v", err)
	}
	if _, err := s.FindByValue(ctx, "missing", model.KindMagicLink); !errors.Is(err, storage.ErrTokenNotExists) {
		t.Errorf("unknown value: got %v, want ErrTokenNotExists", err)
	}
}

func TestFindByValueAndEmail_BindsIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if err := s.Insert(ctx, newToken("a@example.com", "v1", model.KindSession, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := s.FindByValueAndEmail(ctx, "v1", "a@example.com", model.KindSession); err != nil {
		t.Errorf("matching email: %v", err)
	}

	_, err := s.FindByValueAndEmail(ctx, "v1", "b@example.com", model.KindSession)
	if !errors.Is(err, storage.ErrTokenNotExists) {
		t.Errorf("other email: got %v, want ErrTokenNotExists", err)
	}
}

func TestDeleteByEmailAndKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	exp := time.Now().Add(time.Hour)
	if err := s.Insert(ctx, newToken("a@example.com", "v1", model.KindMagicLink, exp)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, newToken("a@example.com", "v2", model.KindSession, exp)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteByEmailAndKind(ctx, "a@example.com", model.KindMagicLink); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.FindByValue(ctx, "v1", model.KindMagicLink); !errors.Is(err, storage.ErrTokenNotExists) {
		t.Errorf("magic link should be gone: %v", err)
	}
	if _, err := s.FindByValue(ctx, "v2", model.KindSession); err != nil {
		t.Errorf("session should survive: %v", err)
	}

	if err := s.DeleteByEmailAndKind(ctx, "a@example.com", model.KindMagicLink); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	token := newToken("a@example.com", "v1", model.KindMagicLink, time.Now().Add(time.Hour))
	if err := s.Insert(ctx, token); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteByID(ctx, token.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.FindByValue(ctx, "v1", model.KindMagicLink); !errors.Is(err, storage.ErrTokenNotExists) {
		t.Errorf("token should be gone: %v", err)
	}

	if err := s.DeleteByID(ctx, token.ID); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestDeleteByID_KeepsNewerEmailPointer(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	exp := time.Now().Add(time.Hour)

	old := newToken("a@example.com", "old", model.KindMagicLink, exp)
	if err := s.Insert(ctx, old); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A superseding insert repoints the email key at the new value.
	if err := s.Insert(ctx, newToken("a@example.com", "new", model.KindMagicLink, exp)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteByID(ctx, old.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The newer token must still be deletable through the email pointer.
	if err := s.DeleteByEmailAndKind(ctx, "a@example.com", model.KindMagicLink); err != nil {
		t.Fatalf("delete by email: %v", err)
	}
	if _, err := s.FindByValue(ctx, "new", model.KindMagicLink); !errors.Is(err, storage.ErrTokenNotExists) {
		t.Errorf("newer token should be gone: %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	now := time.Now()

	if err := s.Insert(ctx, newToken("a@example.com", "old", model.KindMagicLink, now.Add(-time.Minute))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, newToken("b@example.com", "live", model.KindSession, now.Add(time.Hour))); err != nil {
		t.Fatalf("insert: %v", err)
	}

	removed, err := s.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
