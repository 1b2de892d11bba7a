package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/shabbenantes/apex-affiliate-api/internal/lib/logger/sl"
)

type Response struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	ActiveTokens int64  `json:"activeTokens"`
}

type TokenCounter interface {
	Count(ctx context.Context) (int64, error)
}

// New handles GET /health.
func New(
	ctx context.Context,
	log *slog.Logger,
	store TokenCounter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.health.New"

		log := log.With(slog.String("op", op))

		status := "ok"

		count, err := store.Count(ctx)
		if err != nil {
			log.Error("failed to count tokens", sl.Err(err))

			status = "degraded"
		}

		render.JSON(w, r, Response{
			Status:       status,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			ActiveTokens: count,
		})
	}
}
