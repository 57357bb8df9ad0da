// internal/points/handler.go
package points

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Routes mounts the account endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/accounts/{userID}", h.handleGetAccount)
	r.Get("/accounts/{userID}/history", h.handleGetHistory)
	r.Post("/accounts/{userID}/credit", h.handleCredit)
	r.Post("/accounts/{userID}/debit", h.handleDebit)
	r.Post("/accounts/{userID}/multiplier", h.handleSetMultiplier)
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(h.ledger.Account(r.Context(), userID))
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(h.ledger.History(r.Context(), userID))
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount int64  `json:"amount"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	newBalance, err := h.ledger.Credit(r.Context(), userID, req.Amount, req.Source)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(map[string]int64{"new_balance": newBalance})
}

func (h *Handler) handleDebit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	newBalance, err := h.ledger.Debit(r.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		// Insufficient funds is an ordinary negative result at this boundary.
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{"error": "insufficient_funds", "balance": newBalance})
		case errors.Is(err, ErrInvalidAmount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	json.NewEncoder(w).Encode(map[string]int64{"new_balance": newBalance})
}

func (h *Handler) handleSetMultiplier(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Factor          float64 `json:"factor"`
		DurationMinutes int     `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	if err := h.ledger.SetMultiplier(r.Context(), userID, req.Factor, duration); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}
