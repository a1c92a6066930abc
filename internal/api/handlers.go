package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/decision"
	"github.com/Veraticus/catalog-mapper/internal/engine"
	"github.com/Veraticus/catalog-mapper/internal/model"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, SessionListResponse{Sessions: s.manager.IDs()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	session := s.manager.Create()
	s.writeJSON(w, http.StatusCreated, SessionResponse{SessionID: session.ID()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(r.PathValue("id")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req StartRequest
	if !s.decode(w, r, &req) {
		return
	}

	source, err := s.sources(req.FeedURL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := session.Start(r.Context(), engine.StartRequest{
		Source:      source,
		Offset:      req.FeedOffset,
		MaxItems:    req.MaxItems,
		Threshold:   req.Threshold,
		Keyword:     req.Keyword,
		Credentials: model.Credentials{ClientID: req.ClientID, APIKey: req.APIKey},
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, session.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, session.Reset())
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var req DecisionRequest
	if !s.decode(w, r, &req) {
		return
	}

	st, err := session.Resolve(r.PathValue("decision"), req.TypeID, req.DescriptionCategoryID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	st, err := session.Skip(r.PathValue("decision"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	taskID, err := session.Submit(r.Context())
	if errors.Is(err, engine.ErrNoItems) {
		s.writeJSON(w, http.StatusOK, SubmitResponse{Message: "No items to submit."})
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SubmitResponse{TaskID: &taskID, Message: session.Status().Message})
}

func (s *Server) handleTaskInfo(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var taskID int64
	if raw := r.PathValue("task"); raw != "last" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		taskID = id
	}

	info, err := session.TaskInfo(r.Context(), taskID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*engine.Session, bool) {
	session, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return nil, false
	}
	return session, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeEngineError maps session errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, decision.ErrDecisionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNotInitialized),
		errors.Is(err, engine.ErrDecisionMismatch),
		errors.Is(err, common.ErrMissingConfig):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrPendingDecision),
		errors.Is(err, engine.ErrSubmissionInProgress):
		status = http.StatusConflict
	case errors.Is(err, common.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrMarketplaceUnavailable),
		errors.Is(err, common.ErrRateLimit),
		errors.Is(err, common.ErrMaxRetries):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeError(w, status, err.Error())
}
