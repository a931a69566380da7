// Package http provides the platform-facing REST handlers, the admin ajax
// handlers and the router of the BoxtalConnect service.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/atinyakov/BoxtalConnect/internal/middleware"
	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// maxBodySize bounds the encrypted request bodies accepted from the platform.
const maxBodySize = 1 << 20

// Opener decrypts a request body envelope.
type Opener interface {
	Open(body []byte) ([]byte, error)
}

// PairingService defines the pairing operations required by the handlers.
type PairingService interface {
	// HandlePair applies a pairing request and returns the status to answer with.
	// A nil request stands for an undecryptable or incomplete body.
	HandlePair(ctx context.Context, req *models.PairRequest) (int, error)
	// ValidatePairingUpdate forwards the admin input to the pending callback URL.
	ValidatePairingUpdate(ctx context.Context, input string) error
}

// ConfigurationService defines the shop configuration operations.
type ConfigurationService interface {
	Parse(ctx context.Context, doc []byte) (bool, error)
	Get(ctx context.Context) (*models.ShopConfiguration, bool, error)
	Delete(ctx context.Context, accessKey string) (int, error)
}

// ShopHandler serves the platform-facing /shop endpoints. Every body is an
// encrypted envelope opened with Opener.
type ShopHandler struct {
	Opener        Opener
	Pairing       PairingService
	Configuration ConfigurationService
	Log           *zap.Logger
	validate      *validator.Validate
}

// NewShopHandler constructs a ShopHandler.
func NewShopHandler(opener Opener, pairing PairingService, configuration ConfigurationService, log *zap.Logger) *ShopHandler {
	return &ShopHandler{
		Opener:        opener,
		Pairing:       pairing,
		Configuration: configuration,
		Log:           log,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Pair handles PATCH /shop/pair.
//
// A body that cannot be opened, decoded or validated is handed to the
// pairing service as a nil request, which records a failure notice and
// answers 400.
func (h *ShopHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req *models.PairRequest
	if plain, err := h.open(r); err == nil {
		var decoded models.PairRequest
		if err := json.Unmarshal(plain, &decoded); err == nil && h.validate.Struct(decoded) == nil {
			req = &decoded
		}
	}

	status, err := h.Pairing.HandlePair(r.Context(), req)
	if err != nil {
		h.Log.Error("pairing failed", platformField(r), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.Log.Info("pairing request handled", platformField(r), zap.Int("status", status))
	writeStatus(w, status)
}

// UpdateConfiguration handles PATCH /shop/configuration.
func (h *ShopHandler) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	plain, err := h.open(r)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ok, err := h.Configuration.Parse(r.Context(), plain)
	if err != nil {
		h.Log.Error("configuration update failed", platformField(r), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "invalid configuration", http.StatusBadRequest)
		return
	}
	writeStatus(w, http.StatusOK)
}

// DeleteConfiguration handles DELETE /shop/configuration. The body must carry
// the paired access key.
func (h *ShopHandler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	plain, err := h.open(r)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var req models.DeleteConfigurationRequest
	if err := json.Unmarshal(plain, &req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	status, err := h.Configuration.Delete(r.Context(), req.AccessKey)
	if err != nil {
		h.Log.Error("configuration delete failed", platformField(r), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.Log.Info("configuration delete handled", platformField(r), zap.Int("status", status))
	writeStatus(w, status)
}

func (h *ShopHandler) open(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	plain, err := h.Opener.Open(body)
	if err != nil {
		h.Log.Info("rejected request body", platformField(r), zap.String("path", r.URL.Path), zap.Error(err))
		return nil, err
	}
	return plain, nil
}

// platformField names the caller authenticated by CertAuth.
func platformField(r *http.Request) zap.Field {
	return zap.String("platform", middleware.GetPlatformIDFromContext(r.Context()))
}

// writeStatus answers with status and an empty JSON object, or with the
// status text for error statuses.
func writeStatus(w http.ResponseWriter, status int) {
	if status >= http.StatusBadRequest {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte("{}"))
}
