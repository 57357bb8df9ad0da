// internal/dailyreward/handler.go
package dailyreward

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// Handler exposes the claim surface. Claims are rate limited globally to keep
// a misbehaving presentation layer from hammering the engine.
type Handler struct {
	engine  Engine
	limiter *rate.Limiter
}

func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine:  engine,
		limiter: rate.NewLimiter(rate.Every(time.Second), 50),
	}
}

// Routes mounts the daily reward endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/daily/{userID}", h.handleGetStreak)
	r.Post("/daily/{userID}/claim", h.handleClaim)
}

func (h *Handler) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"streak":    h.engine.Streak(r.Context(), userID),
		"can_claim": h.engine.CanClaim(r.Context(), userID),
	})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	claim, err := h.engine.Claim(r.Context(), userID)
	if err != nil {
		// Already-claimed is an ordinary negative result, not a failure.
		if errors.Is(err, ErrAlreadyClaimed) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "already_claimed"})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(claim)
}
