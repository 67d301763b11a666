package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/spice-tagger/internal/common"
	"github.com/Veraticus/spice-tagger/internal/engine"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

const maxBodyBytes = 1 << 20

type predictRequest struct {
	UserID  string `json:"user_id"`
	Payee   string `json:"payee"`
	Explain bool   `json:"explain"`
}

type traceResponse struct {
	engine.Trace
	MemoryError string `json:"memory_error,omitempty"`
}

type predictResponse struct {
	Trace      *traceResponse   `json:"trace,omitempty"`
	Payee      string           `json:"payee"`
	Prediction model.Prediction `json:"prediction"`
}

type catalogResponse struct {
	Fallback string      `json:"fallback,omitempty"`
	Tags     []model.Tag `json:"tags"`
}

type memoryResponse struct {
	UserID  string                `json:"user_id"`
	Records []model.UserTagMemory `json:"records"`
}

type forgetResponse struct {
	Payee   string `json:"payee"`
	Deleted int64  `json:"deleted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnknownTag):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errNoStore):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		common.LogError(r.Context(), err, "Request failed", common.Fields{"path": r.URL.Path})
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

var errNoStore = errors.New("memory store not configured")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %w", common.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, _ *http.Request) {
	c := s.engine.Catalog()
	fallback, _ := c.Fallback()
	respondJSON(w, http.StatusOK, catalogResponse{Tags: c.Tags(), Fallback: fallback})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, r, fmt.Errorf("%w: user_id is required", common.ErrInvalidInput))
		return
	}

	ctx := common.WithLogger(r.Context(), common.LoggerFromContext(r.Context()).With("user_id", req.UserID))
	prediction, trace := s.engine.Explain(ctx, req.UserID, req.Payee)

	resp := predictResponse{Payee: req.Payee, Prediction: prediction}
	if req.Explain {
		resp.Trace = &traceResponse{Trace: trace}
		if trace.MemoryErr != nil {
			resp.Trace.MemoryError = trace.MemoryErr.Error()
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errNoStore)
		return
	}

	var c model.Confirmation
	if err := decode(w, r, &c); err != nil {
		respondError(w, r, err)
		return
	}
	if c.Weight == 0 {
		c.Weight = 1
	}
	if err := c.Validate(); err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
		return
	}
	if _, ok := s.engine.Catalog().Tag(c.Tag); !ok {
		respondError(w, r, fmt.Errorf("%w: %s", common.ErrUnknownTag, c.Tag))
		return
	}
	if normalize.Payee(c.Payee) == "" {
		respondError(w, r, fmt.Errorf("%w: payee has no usable characters", common.ErrInvalidInput))
		return
	}

	if err := s.store.SaveUserTag(r.Context(), c.UserID, c.Payee, c.Tag, c.Weight); err != nil {
		respondError(w, r, fmt.Errorf("failed to save confirmation: %w", err))
		return
	}

	common.LogInfo(r.Context(), "Confirmation saved", common.Fields{
		"user_id": c.UserID,
		"payee":   c.Payee,
		"tag":     c.Tag,
		"weight":  c.Weight,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errNoStore)
		return
	}

	userID := chi.URLParam(r, "userID")
	records, err := s.store.GetUserPredictions(r.Context(), userID)
	if err != nil {
		respondError(w, r, fmt.Errorf("failed to load memory: %w", err))
		return
	}
	if records == nil {
		records = []model.UserTagMemory{}
	}

	respondJSON(w, http.StatusOK, memoryResponse{UserID: userID, Records: records})
}

func (s *Server) handleForgetMemory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, r, errNoStore)
		return
	}

	userID := chi.URLParam(r, "userID")
	payee := normalize.Payee(r.URL.Query().Get("payee"))
	if payee == "" {
		respondError(w, r, fmt.Errorf("%w: payee query parameter is required", common.ErrInvalidInput))
		return
	}

	deleted, err := s.store.DeleteUserTag(r.Context(), userID, payee)
	if err != nil {
		respondError(w, r, fmt.Errorf("failed to forget payee: %w", err))
		return
	}
	if deleted == 0 {
		respondError(w, r, fmt.Errorf("memory for %q: %w", payee, common.ErrNotFound))
		return
	}

	respondJSON(w, http.StatusOK, forgetResponse{Payee: payee, Deleted: deleted})
}
