package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
	"github.com/nexbridge/bridge-middleware/pkg/webhookstore"
)

// HTTP exposes subscription management over REST.
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes mounts the webhook subscription endpoints.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/webhooks", apphttp.HandleError(h.register))
	r.Get("/webhooks/{id}", apphttp.HandleError(h.get))
	r.Delete("/webhooks/{id}", apphttp.HandleError(h.deactivate))
	r.Get("/webhooks/{id}/deliveries", apphttp.HandleError(h.listDeliveries))
}

func (h *HTTP) register(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	sub, err := h.service.Register(r.Context(), &req)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, sub)
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) error {
	sub, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, webhookstore.ErrSubscriptionNotFound) {
			return apperrors.ResourceNotFoundError(err, "subscription not found")
		}
		return err
	}

	return writeJSON(w, http.StatusOK, sub)
}

func (h *HTTP) deactivate(w http.ResponseWriter, r *http.Request) error {
	err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, webhookstore.ErrSubscriptionNotFound) {
			return apperrors.ResourceNotFoundError(err, "subscription not found")
		}
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) listDeliveries(w http.ResponseWriter, r *http.Request) error {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	attempts, err := h.service.ListDeliveries(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		if errors.Is(err, webhookstore.ErrSubscriptionNotFound) {
			return apperrors.ResourceNotFoundError(err, "subscription not found")
		}
		return err
	}

	return writeJSON(w, http.StatusOK, map[string]any{"deliveries": attempts})
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
