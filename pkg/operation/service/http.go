package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
	"github.com/nexbridge/bridge-middleware/pkg/auth"
	"github.com/nexbridge/bridge-middleware/pkg/opstore"
)

// HTTP exposes the operation service over REST.
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes mounts the public transaction endpoints.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/transactions", apphttp.HandleError(h.create))
	r.Get("/transactions/{id}", apphttp.HandleError(h.get))
}

// RegisterAdvanceRoute mounts the status-monitor push endpoint. The caller
// attaches the bearer-token middleware to r before mounting.
func RegisterAdvanceRoute(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/transactions/{id}/advance", apphttp.HandleError(h.advance))
}

func (h *HTTP) create(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	if key, ok := auth.APIKeyFrom(r.Context()); ok {
		req.APIKeyID = key.ID
	}

	op, err := h.service.Create(r.Context(), &req)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, op)
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	op, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, opstore.ErrOperationNotFound) {
			return apperrors.ResourceNotFoundError(err, "operation not found")
		}
		return err
	}

	return writeJSON(w, http.StatusOK, op)
}

func (h *HTTP) advance(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req AdvanceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	op, err := h.service.Advance(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, opstore.ErrOperationNotFound) {
			return apperrors.ResourceNotFoundError(err, "operation not found")
		}
		return err
	}

	return writeJSON(w, http.StatusOK, op)
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
