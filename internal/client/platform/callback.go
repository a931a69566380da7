package platform

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// CallbackHandler accepts the pairing-update validation the shop forwards
// from its admin. The request must authenticate with the new key pair and
// carry the expected code.
type CallbackHandler struct {
	AccessKey string
	SecretKey string
	Code      string
	Log       *zap.Logger
}

type callbackRequest struct {
	Input string `json:"input"`
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	access, secret, ok := r.BasicAuth()
	if !ok || !equal(access, h.AccessKey) || !equal(secret, h.SecretKey) {
		h.Log.Warn("pairing callback with wrong credentials")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !equal(req.Input, h.Code) {
		h.Log.Info("pairing callback with wrong code")
		http.Error(w, "wrong code", http.StatusUnprocessableEntity)
		return
	}

	h.Log.Info("pairing update validated")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
