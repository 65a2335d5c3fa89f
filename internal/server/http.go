// Package server is the thin HTTP/JSON gateway over the game engine. It does
// request decoding, admin credential checks and notification fan-out; all
// game semantics live in the engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tiagofur/rpg-ai-sub004/internal/command"
	"github.com/tiagofur/rpg-ai-sub004/internal/engine"
	"github.com/tiagofur/rpg-ai-sub004/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Server exposes the engine surface over HTTP.
type Server struct {
	engine    *engine.Engine
	hub       *notificationHub
	logger    *zap.Logger
	adminHash []byte
}

// NewServer creates the gateway. An empty adminPassword disables the
// administrative endpoints.
func NewServer(eng *engine.Engine, adminPassword string, logger *zap.Logger) (*Server, error) {
	s := &Server{
		engine: eng,
		hub:    newNotificationHub(logger),
		logger: logger,
	}

	if adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		s.adminHash = hash
	}

	return s, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /v1/sessions/{id}/commands", s.handleExecuteCommand)
	mux.HandleFunc("POST /v1/sessions/{id}/undo", s.handleUndo)
	mux.HandleFunc("POST /v1/sessions/{id}/redo", s.handleRedo)
	mux.HandleFunc("GET /v1/sessions/{id}/lock", s.handleLockStatus)
	mux.HandleFunc("DELETE /v1/sessions/{id}/lock", s.handleForceRelease)
	mux.HandleFunc("GET /v1/sessions/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", s.handleSubscribe)
	mux.HandleFunc("GET /v1/commands", s.handleListCommands)
	mux.HandleFunc("GET /v1/metrics", s.handleMetrics)

	return mux
}

// Shutdown disconnects websocket subscribers.
func (s *Server) Shutdown() {
	s.hub.CloseAll()
}

type apiResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// writeError maps engine errors onto HTTP statuses and stable codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := engine.ErrorCode(err)

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		status = http.StatusNotFound
	case engine.Retryable(err):
		status = http.StatusConflict
	case code == command.CodeInternal:
		status = http.StatusInternalServerError
		s.logger.Error("internal engine error", zap.Error(err))
		// Internal detail stays in the logs.
		s.writeJSON(w, status, apiResponse{Success: false, Code: code, Error: "internal error"})
		return
	}

	s.writeJSON(w, status, apiResponse{Success: false, Code: code, Error: err.Error()})
}

type sessionView struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	State     *session.GameState `json:"state"`
	UndoDepth int                `json:"undoDepth"`
	RedoDepth int                `json:"redoDepth"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func viewOf(sess *session.Session) sessionView {
	return sessionView{
		ID:        sess.ID,
		UserID:    sess.UserID,
		State:     sess.State,
		UndoDepth: sess.Undo.Len(),
		RedoDepth: sess.Redo.Len(),
		UpdatedAt: sess.UpdatedAt(),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"userId"`
		CharacterName string `json:"characterName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
		return
	}

	sess, err := s.engine.CreateSession(r.Context(), req.UserID, req.CharacterName)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: viewOf(sess)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: viewOf(sess)})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
		return
	}

	if err := s.engine.DeleteSession(r.Context(), sessionID, req.UserID); err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.CloseSession(sessionID)

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req struct {
		Type   string            `json:"type"`
		Params map[string]string `json:"params"`
		UserID string            `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
		return
	}

	res, err := s.engine.ExecuteCommand(r.Context(), sessionID, req.Type, req.Params, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Publish(sessionID, req.Type, res.Notifications)

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: res})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.handleHistoryOp(w, r, s.engine.Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.handleHistoryOp(w, r, s.engine.Redo)
}

func (s *Server) handleHistoryOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sessionID, userID string) (*command.Result, error)) {
	sessionID := r.PathValue("id")

	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: "invalid request body"})
		return
	}

	res, err := op(r.Context(), sessionID, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: res})
}

func (s *Server) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	locked, err := s.engine.IsSessionLocked(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    map[string]bool{"locked": locked},
	})
}

func (s *Server) handleForceRelease(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAdmin(r) {
		s.writeJSON(w, http.StatusForbidden, apiResponse{Success: false, Error: "admin access denied"})
		return
	}

	sessionID := r.PathValue("id")
	if err := s.engine.ForceReleaseSessionLock(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Warn("admin force-released session lock", zap.String("session_id", sessionID))

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: sess.Events.All()})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if _, err := s.engine.GetSession(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Subscribe(w, r, sessionID)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: s.engine.CommandTypes()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: s.engine.Metrics()})
}

// authorizeAdmin checks the X-Admin-Password header against the configured
// credential hash. A server without a credential refuses all admin calls.
func (s *Server) authorizeAdmin(r *http.Request) bool {
	if len(s.adminHash) == 0 {
		return false
	}
	password := r.Header.Get("X-Admin-Password")
	return bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)) == nil
}
