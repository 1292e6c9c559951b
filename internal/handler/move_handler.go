package handler

import (
	"errors"
	"net/http"

	"github.com/freeeve/critical-mass/internal/auth"
	"github.com/freeeve/critical-mass/internal/repository"
	"github.com/freeeve/critical-mass/internal/service"
)

// MoveHandler handles in-match endpoints: move submission, resignation,
// live state, and the move log.
type MoveHandler struct {
	matchSvc *service.MatchService
	moveRepo repository.MoveRepository
}

// NewMoveHandler creates a MoveHandler.
func NewMoveHandler(matchSvc *service.MatchService, moveRepo repository.MoveRepository) *MoveHandler {
	return &MoveHandler{matchSvc: matchSvc, moveRepo: moveRepo}
}

// SubmitMove handles POST /api/v1/games/{id}/moves
func (h *MoveHandler) SubmitMove(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.X < 0 || req.X > 255 || req.Y < 0 || req.Y > 255 {
		writeError(w, http.StatusBadRequest, service.ErrOutOfBounds.Error())
		return
	}

	state, err := h.matchSvc.ApplyMove(r.Context(), gameID, userID, uint8(req.X), uint8(req.Y))
	if err != nil {
		writeError(w, moveErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Resign handles POST /api/v1/games/{id}/resign
func (h *MoveHandler) Resign(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.matchSvc.Resign(r.Context(), gameID, userID); err != nil {
		writeError(w, moveErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resigned"})
}

// GetState handles GET /api/v1/games/{id}/state
func (h *MoveHandler) GetState(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	state, err := h.matchSvc.State(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, service.ErrNoLiveState) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ListMoves handles GET /api/v1/games/{id}/moves
func (h *MoveHandler) ListMoves(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	moves, err := h.moveRepo.ListByGame(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if moves == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, moves)
}

// moveErrStatus maps match errors onto HTTP status codes.
func moveErrStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, service.ErrGameNotActive),
		errors.Is(err, service.ErrNoLiveState),
		errors.Is(err, service.ErrEliminated),
		errors.Is(err, service.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, service.ErrOutOfBounds), errors.Is(err, service.ErrIllegalCell):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
