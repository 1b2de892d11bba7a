package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shabbenantes/apex-affiliate-api/internal/crm"
	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
)

var (
	ErrLinkInvalid    = errors.New("magic link is invalid or expired")
	ErrSessionInvalid = errors.New("session is invalid or expired")
)

type TokenStore interface {
	Insert(ctx context.Context, token *model.Token) error
	FindByValue(ctx context.Context, value string, kind model.Kind) (*model.Token, error)
	FindByValueAndEmail(ctx context.Context, value, email string, kind model.Kind) (*model.Token, error)
	DeleteByEmailAndKind(ctx context.Context, email string, kind model.Kind) error
	DeleteByID(ctx context.Context, id string) error
}

type IdentityResolver interface {
	ContactByEmail(ctx context.Context, email string) (*model.Contact, error)
	ContactByID(ctx context.Context, id string) (*model.Contact, error)
}

type LinkSender interface {
	SendMagicLink(ctx context.Context, contact *model.Contact, linkURL string) error
}

type TokenIssuer interface {
	Token() (string, error)
	Expiry(kind model.Kind, now time.Time) time.Time
}

// Session is the result of a successful magic-link verification.
type Session struct {
	Token   string
	Email   string
	Profile model.Profile
}

// Auth drives the token lifecycle: request a link, verify it, validate the
// resulting session. There is no in-process locking; correctness under
// concurrent requests rests on the store's atomic uniqueness enforcement
// and on delete-then-insert ordering within each request.
type Auth struct {
	log      *slog.Logger
	store    TokenStore
	resolver IdentityResolver
	sender   LinkSender
	issuer   TokenIssuer
	siteURL  string
}

func New(
	log *slog.Logger,
	store TokenStore,
	resolver IdentityResolver,
	sender LinkSender,
	issuer TokenIssuer,
	siteURL string,
) *Auth {
	return &Auth{
		log:      log,
		store:    store,
		resolver: resolver,
		sender:   sender,
		issuer:   issuer,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestLink issues a fresh magic-link token for the email and triggers the
// notification. It returns nil for unknown and unauthorized emails alike;
// the caller acknowledges uniformly either way, so nothing here may leak
// whether an account exists.
func (a *Auth) RequestLink(ctx context.Context, email string) error {
	const op = "service.auth.RequestLink"

	log := a.log.With(slog.String("op", op))

	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		log.Info("malformed email, ignoring")

		return nil
	}

	contact, err := a.resolver.ContactByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, crm.ErrContactNotFound) {
			log.Info("no contact for email")

			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !contact.HasTag(crm.AffiliateActiveTag) {
		log.Info("contact is not an active affiliate")

		return nil
	}

	now := time.Now()

	// Last-issued wins: any earlier link for this email stops working now,
	// even if it has not expired yet.
	if err := a.store.DeleteByEmailAndKind(ctx, email, model.KindMagicLink); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	value, err := a.issuer.Token()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	token := &model.Token{
		Email:     email,
		Value:     value,
		Kind:      model.KindMagicLink,
		SubjectID: contact.ID,
		ExpiresAt: a.issuer.Expiry(model.KindMagicLink, now),
		CreatedAt: now,
	}

	// A duplicate value here is an issuer fault; it is never retried.
	if err := a.store.Insert(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	linkURL := fmt.Sprintf("%s/affiliate-portal.html?token=%s", a.siteURL, value)

	if err := a.sender.SendMagicLink(ctx, contact, linkURL); err != nil {
		// The token stands: it expires in 15 minutes and a re-request
		// supersedes it, so there is nothing to roll back.
		log.Warn("failed to send magic link email", sl.Err(err))

		return nil
	}

	log.Info("magic link issued")

	return nil
}

// VerifyLink exchanges a magic-link token for a session token. The link is
// single-use: consumption and session issuance happen in the same operation.
func (a *Auth) VerifyLink(ctx context.Context, value string) (*Session, error) {
	const op = "service.auth.VerifyLink"

	log := a.log.With(slog.String("op", op))

	now := time.Now()

	token, err := a.store.FindByValue(ctx, value, model.KindMagicLink)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotExists) {
			return nil, ErrLinkInvalid
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.Expired(now) {
		if err := a.store.DeleteByID(ctx, token.ID); err != nil {
			log.Error("failed to delete expired magic link", sl.Err(err))
		}

		return nil, ErrLinkInvalid
	}

	// Authorization can change between issuance and verification, so the
	// stored snapshot is never trusted.
	contact, err := a.resolver.ContactByID(ctx, token.SubjectID)
	if err != nil {
		if errors.Is(err, crm.ErrContactNotFound) {
			return nil, ErrLinkInvalid
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// The link is kept: it stays retryable until expiry in case the tag
	// comes back.
	if !contact.HasTag(crm.AffiliateActiveTag) {
		log.Info("contact is no longer an active affiliate")

		return nil, ErrLinkInvalid
	}

	sessionValue, err := a.issuer.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.store.DeleteByEmailAndKind(ctx, token.Email, model.KindSession); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session := &model.Token{
		Email:     token.Email,
		Value:     sessionValue,
		Kind:      model.KindSession,
		SubjectID: contact.ID,
		ExpiresAt: a.issuer.Expiry(model.KindSession, now),
		CreatedAt: now,
	}

	if err := a.store.Insert(ctx, session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.store.DeleteByID(ctx, token.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("magic link verified, session issued")

	return &Session{
		Token:   sessionValue,
		Email:   token.Email,
		Profile: contact.Profile,
	}, nil
}

// ValidateSession checks a session token against the claimed email and
// returns a fresh profile snapshot. The session stays live until expiry or
// supersession.
func (a *Auth) ValidateSession(ctx context.Context, value, email string) (*model.Profile, error) {
	const op = "service.auth.ValidateSession"

	log := a.log.With(slog.String("op", op))

	if value == "" || email == "" {
		return nil, ErrSessionInvalid
	}

	email = normalizeEmail(email)
	now := time.Now()

	token, err := a.store.FindByValueAndEmail(ctx, value, email, model.KindSession)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotExists) {
			return nil, ErrSessionInvalid
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.Expired(now) {
		if err := a.store.DeleteByID(ctx, token.ID); err != nil {
			log.Error("failed to delete expired session", sl.Err(err))
		}

		return nil, ErrSessionInvalid
	}

	contact, err := a.resolver.ContactByID(ctx, token.SubjectID)
	if err != nil {
		if errors.Is(err, crm.ErrContactNotFound) {
			return nil, ErrSessionInvalid
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !contact.HasTag(crm.AffiliateActiveTag) {
		log.Info("contact is no longer an active affiliate")

		return nil, ErrSessionInvalid
	}

	return &contact.Profile, nil
}
