package service

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
	"github.com/nexbridge/bridge-middleware/pkg/auth"
	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

// HTTP exposes route discovery over REST.
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes mounts the quote discovery and introspection endpoints.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/routes/discover", apphttp.HandleError(h.discover))
	r.Get("/providers/health", apphttp.HandleError(h.providerHealth))
	r.Get("/usage", apphttp.HandleError(h.usage))
}

// discoverRequest is the wire form of a quote request. Amount travels as a
// decimal string in the token's smallest unit.
type discoverRequest struct {
	SourceChain      string        `json:"source_chain"`
	DestinationChain string        `json:"destination_chain"`
	SourceToken      string        `json:"source_token"`
	DestinationToken string        `json:"destination_token"`
	Amount           string        `json:"amount"`
	Preferences      quote.Weights `json:"preferences"`
}

func (h *HTTP) discover(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var wire discoverRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	req := &quote.Request{
		SourceChain:      wire.SourceChain,
		DestinationChain: wire.DestinationChain,
		SourceToken:      wire.SourceToken,
		DestinationToken: wire.DestinationToken,
		Preferences:      wire.Preferences,
	}
	if wire.Amount != "" {
		amount, ok := new(big.Int).SetString(wire.Amount, 10)
		if !ok {
			return apperrors.BadRequestError(quote.ErrInvalidAmount, "amount must be a decimal integer string")
		}
		req.Amount = amount
	}

	result, err := h.service.DiscoverRoutes(r.Context(), req)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, result)
}

func (h *HTTP) providerHealth(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"providers": h.service.ProviderHealth(r.Context()),
	})
}

func (h *HTTP) usage(w http.ResponseWriter, r *http.Request) error {
	key, ok := auth.APIKeyFrom(r.Context())
	if !ok {
		return apperrors.UnAuthorizedError(nil, "API key required")
	}

	report, err := h.service.Usage(r.Context(), key.ID, key.Quota())
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
