package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/atinyakov/BoxtalConnect/internal/service"
	"go.uber.org/zap"
)

// NoticeAction is the nonce action guarding the notice ajax endpoints.
const NoticeAction = "boxtal_connect_notice"

// NoticeService defines the notice operations required by the handlers.
type NoticeService interface {
	RemoveNotice(ctx context.Context, key string) error
	GetNotices(ctx context.Context) ([]models.RenderedNotice, error)
}

// AjaxHandler serves the nonce-protected admin ajax endpoints.
type AjaxHandler struct {
	Notices NoticeService
	Pairing PairingService
	Log     *zap.Logger
}

type ajaxFailure struct {
	Success bool   `json:"success"`
	Data    string `json:"data"`
}

// HideNotice handles POST /ajax/hide_notice. It always answers true.
func (h *AjaxHandler) HideNotice(w http.ResponseWriter, r *http.Request) {
	if id := r.FormValue("notice_id"); id != "" {
		if err := h.Notices.RemoveNotice(r.Context(), id); err != nil {
			h.Log.Error("hide notice failed", zap.String("notice_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, true)
}

// PairingUpdateValidate handles POST /ajax/pairing_update_validate.
func (h *AjaxHandler) PairingUpdateValidate(w http.ResponseWriter, r *http.Request) {
	input := r.FormValue("input")
	if input == "" {
		writeJSON(w, http.StatusBadRequest, ajaxFailure{Data: "missing input"})
		return
	}

	if err := h.Pairing.ValidatePairingUpdate(r.Context(), input); err != nil {
		switch {
		case errors.Is(err, service.ErrNoPairingUpdate):
			writeJSON(w, http.StatusOK, ajaxFailure{Data: "no pairing update in progress"})
			return
		case errors.Is(err, service.ErrPairingValidationFailed):
			writeJSON(w, http.StatusOK, ajaxFailure{Data: "pairing validation failed"})
			return
		}
		h.Log.Error("pairing update validation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ajaxFailure{Data: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
