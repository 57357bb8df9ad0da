// internal/engine/handler.go
package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"questforge/internal/event"
	"questforge/internal/missions"
)

// Handler is the thin HTTP adapter for the presentation-layer and admin
// collaborators: event ingestion, mission queries, aggregated stats.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes mounts the ingestion and query endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/events", h.handlePublish)
	r.Get("/stats", h.handleStats)
	r.Get("/missions/{userID}", h.handleMissions)
	r.Post("/missions/{userID}/assign", h.handleAssign)
	r.Get("/achievements/{userID}", h.handleAchievements)
}

// ingestRequest is the wire form of a consumed collaborator event.
type ingestRequest struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Source string `json:"source"`

	// user.action
	ActionType string            `json:"action_type,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// narrative.decision
	FragmentID string `json:"fragment_id,omitempty"`
	ChoiceID   string `json:"choice_id,omitempty"`

	// purchase
	ItemID string `json:"item_id,omitempty"`
	Cost   int64  `json:"cost,omitempty"`
}

// toEvent maps the wire form onto the closed event set.
func (req *ingestRequest) toEvent(now time.Time) (event.Event, error) {
	meta := event.Meta{EmittedAt: now, Source: req.Source}
	switch event.Kind(req.Type) {
	case event.KindUserAction:
		if req.ActionType == "" {
			return nil, errors.New("user.action requires action_type")
		}
		return event.UserAction{Meta: meta, UserID: req.UserID, ActionType: req.ActionType, Metadata: req.Metadata}, nil
	case event.KindNarrativeDecision:
		if req.FragmentID == "" || req.ChoiceID == "" {
			return nil, errors.New("narrative.decision requires fragment_id and choice_id")
		}
		return event.NarrativeDecision{Meta: meta, UserID: req.UserID, FragmentID: req.FragmentID, ChoiceID: req.ChoiceID}, nil
	case event.KindPurchase:
		if req.ItemID == "" {
			return nil, errors.New("purchase requires item_id")
		}
		return event.Purchase{Meta: meta, UserID: req.UserID, ItemID: req.ItemID, Cost: req.Cost}, nil
	default:
		return nil, errors.New("unsupported event type")
	}
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := req.toEvent(time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.engine.Publish(r.Context(), ev)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.engine.Stats())
}

func (h *Handler) handleMissions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(h.engine.Missions().InstancesFor(r.Context(), userID))
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		MissionID string `json:"mission_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.MissionID == "" {
		assigned, err := h.engine.Missions().AssignAll(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(assigned)
		return
	}

	inst, err := h.engine.Missions().Assign(r.Context(), userID, req.MissionID)
	if err != nil {
		switch {
		case errors.Is(err, missions.ErrUnknownMission):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, missions.ErrAlreadyAssigned):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(inst)
}

func (h *Handler) handleAchievements(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(h.engine.Achievements().UnlockedFor(r.Context(), userID))
}
