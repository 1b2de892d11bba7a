package request

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	resp "github.com/shabbenantes/apex-affiliate-api/internal/lib/api/response"
	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
)

type Request struct {
	Email string `json:"email" validate:"required,email"`
}

type LinkRequester interface {
	RequestLink(ctx context.Context, email string) error
}

// New handles POST /api/magic-link-request. The response is the same
// success acknowledgment for every outcome: malformed body, unknown email,
// unauthorized contact, and internal failure are indistinguishable to the
// caller.
func New(
	ctx context.Context,
	log *slog.Logger,
	auth LinkRequester,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.magiclink.request.New"

		log := log.With(slog.String("op", op))

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Ack())
			return
		}

		if err := validator.New().Struct(req); err != nil {
			log.Info("invalid email shape", sl.Err(err))

			render.JSON(w, r, resp.Ack())
			return
		}

		if err := auth.RequestLink(ctx, req.Email); err != nil {
			log.Error("magic link request failed", sl.Err(err))
		}

		render.JSON(w, r, resp.Ack())
	}
}
