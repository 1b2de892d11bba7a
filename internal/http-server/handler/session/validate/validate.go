package validate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	resp "github.com/shabbenantes/apex-affiliate-api/internal/lib/api/response"
	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
)

type Request struct {
	Token string `json:"token" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type Response struct {
	Success   bool          `json:"success"`
	Affiliate model.Profile `json:"affiliate"`
}

type SessionValidator interface {
	ValidateSession(ctx context.Context, value, email string) (*model.Profile, error)
}

// New handles POST /api/affiliate-validate. Both token and email are
// required; the token is bound to the claimed email, not looked up alone.
func New(
	ctx context.Context,
	log *slog.Logger,
	auth SessionValidator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.session.validate.New"

		log := log.With(slog.String("op", op))

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Denied(resp.MsgSessionExpired))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			log.Info("token or email missing", sl.Err(err))

			render.JSON(w, r, resp.Denied(resp.MsgSessionExpired))
			return
		}

		profile, err := auth.ValidateSession(ctx, req.Token, req.Email)
		if err != nil {
			log.Info("session validation failed", sl.Err(err))

			render.JSON(w, r, resp.Denied(resp.MsgSessionExpired))
			return
		}

		render.JSON(w, r, Response{
			Success:   true,
			Affiliate: *profile,
		})
	}
}
