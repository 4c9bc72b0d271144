// Package httpapi implements the External HTTP interface (spec.md §6):
// room creation/lookup and persisted aggregate statistics, routed with
// github.com/go-chi/chi/v5 in place of the teacher's bare http.ServeMux.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"pokerroom/internal/registry"
	"pokerroom/internal/room"
	"pokerroom/internal/store"
)

// defaultMaxPlayers is the seat count spec.md §3 gives for a table (2-9
// seated players); POST /api/rooms configures blinds and buy-ins only, not
// seat count.
const defaultMaxPlayers = 9

type errorResponse struct {
	Error string `json:"error"`
}

// settingsDTO is the wire shape of a room's table settings, per spec.md §6:
// `{settings:{small_blind, big_blind, min_buy_in, max_buy_in}}`.
type settingsDTO struct {
	SmallBlind int64 `json:"small_blind"`
	BigBlind   int64 `json:"big_blind"`
	MinBuyIn   int64 `json:"min_buy_in"`
	MaxBuyIn   int64 `json:"max_buy_in"`
}

type createRoomRequest struct {
	Settings settingsDTO `json:"settings"`
}

type createRoomResponse struct {
	RoomID   string      `json:"room_id"`
	Settings settingsDTO `json:"settings"`
}

type seatOccupancy struct {
	Seat uint16 `json:"seat"`
	Name string `json:"name"`
}

type roomSummaryResponse struct {
	RoomID   string          `json:"room_id"`
	Settings settingsDTO     `json:"settings"`
	Seats    []seatOccupancy `json:"seats"`
}

type healthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

// Handler serves spec.md §6's HTTP surface.
type Handler struct {
	registry *registry.Registry
	store    store.Store
	log      *logrus.Entry
}

// NewHandler builds an httpapi.Handler over a Room Registry and its backing
// Store (used directly for the read-only stats/leaderboard endpoints, which
// have no need to go through any particular room).
func NewHandler(reg *registry.Registry, st store.Store) *Handler {
	return &Handler{
		registry: reg,
		store:    st,
		log:      logrus.WithField("component", "httpapi"),
	}
}

// Routes mounts the handler's endpoints onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/api/rooms", h.handleCreateRoom)
	r.Get("/api/rooms/{room_id}", h.handleGetRoom)
	r.Get("/api/stats/{name}", h.handleStats)
	r.Get("/api/leaderboard", h.handleLeaderboard)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Rooms:  len(h.registry.List()),
	})
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := room.Config{
		MaxPlayers: defaultMaxPlayers,
		SmallBlind: req.Settings.SmallBlind,
		BigBlind:   req.Settings.BigBlind,
		MinBuyIn:   req.Settings.MinBuyIn,
		MaxBuyIn:   req.Settings.MaxBuyIn,
	}

	rm, roomID, err := h.registry.Create(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room settings: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:   roomID,
		Settings: settingsFor(rm.Config()),
	})
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	rm := h.registry.Get(roomID)
	if rm == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	names := rm.SeatNames()
	seats := make([]seatOccupancy, 0, len(names))
	for seat, name := range names {
		seats = append(seats, seatOccupancy{Seat: seat, Name: name})
	}

	writeJSON(w, http.StatusOK, roomSummaryResponse{
		RoomID:   roomID,
		Settings: settingsFor(rm.Config()),
		Seats:    seats,
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing player name")
		return
	}

	stats, err := h.store.PlayerStats(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no stats for player")
			return
		}
		h.log.WithError(err).Error("query player stats failed")
		writeError(w, http.StatusInternalServerError, "query player stats failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	entries, err := h.store.Leaderboard(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("query leaderboard failed")
		writeError(w, http.StatusInternalServerError, "query leaderboard failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
	})
}

func settingsFor(cfg room.Config) settingsDTO {
	return settingsDTO{
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
		MinBuyIn:   cfg.MinBuyIn,
		MaxBuyIn:   cfg.MaxBuyIn,
	}
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
