package verify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	resp "github.com/shabbenantes/apex-affiliate-api/internal/lib/api/response"
	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
	authService "github.com/shabbenantes/apex-affiliate-api/internal/service/auth"
)

type Request struct {
	Token string `json:"token" validate:"required"`
}

type Response struct {
	Success      bool          `json:"success"`
	SessionToken string        `json:"sessionToken"`
	Email        string        `json:"email"`
	User         model.Profile `json:"user"`
}

type LinkVerifier interface {
	VerifyLink(ctx context.Context, value string) (*authService.Session, error)
}

// New handles POST /api/magic-link-verify. Every failure collapses to the
// one generic message; missing, unknown, expired and unauthorized tokens
// must not be distinguishable.
func New(
	ctx context.Context,
	log *slog.Logger,
	auth LinkVerifier,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.magiclink.verify.New"

		log := log.With(slog.String("op", op))

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Denied(resp.MsgLinkInvalid))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			log.Info("token field missing", sl.Err(err))

			render.JSON(w, r, resp.Denied(resp.MsgLinkInvalid))
			return
		}

		session, err := auth.VerifyLink(ctx, req.Token)
		if err != nil {
			log.Info("magic link verification failed", sl.Err(err))

			render.JSON(w, r, resp.Denied(resp.MsgLinkInvalid))
			return
		}

		render.JSON(w, r, Response{
			Success:      true,
			SessionToken: session.Token,
			Email:        session.Email,
			User:         session.Profile,
		})
	}
}
