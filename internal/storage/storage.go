package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
)

var (
	// ErrDuplicateToken is returned when an insert collides with an existing
	// token value. Values carry enough entropy that this indicates an issuer
	// fault; callers must not retry with the same value.
	ErrDuplicateToken = errors.New("token value already exists")

	ErrTokenNotExists = errors.New("token does not exist")
)

// TokenStore is the capability set every storage backend provides.
// Implementations must be safe for concurrent callers and must enforce
// token-value uniqueness atomically; it is the only consistency guarantee
// the auth flows rely on.
//
// Lookups return records whether or not they are expired. Expiry is the
// caller's concern, checked against a single clock read per request, so
// that sweep timing never affects correctness.
type TokenStore interface {
	Insert(ctx context.Context, token *model.Token) error
	FindByValue(ctx context.Context, value string, kind model.Kind) (*model.Token, error)
	FindByValueAndEmail(ctx context.Context, value, email string, kind model.Kind) (*model.Token, error)
	DeleteByEmailAndKind(ctx context.Context, email string, kind model.Kind) error
	DeleteByID(ctx context.Context, id string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
