package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/BoxtalConnect/internal/models"
	"go.uber.org/zap"
)

// SetupRunner reconciles the setup wizard state on admin load.
type SetupRunner interface {
	Run(ctx context.Context) error
}

// NonceCreator issues ajax nonces.
type NonceCreator interface {
	Create(action string) (string, error)
}

// AdminHandler serves the admin page data.
type AdminHandler struct {
	Setup         SetupRunner
	Notices       NoticeService
	Configuration ConfigurationService
	Nonces        NonceCreator
	Log           *zap.Logger
}

type noticesResponse struct {
	Nonce   string                  `json:"nonce"`
	Notices []models.RenderedNotice `json:"notices"`
}

// ListNotices handles GET /admin/notices. It runs the setup wizard, then lists
// the active notices together with a nonce for the ajax endpoints. A setup
// wizard failure surfaces as a notice, never as an error status.
func (h *AdminHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	if err := h.Setup.Run(r.Context()); err != nil {
		h.Log.Warn("setup wizard failed", zap.Error(err))
	}

	notices, err := h.Notices.GetNotices(r.Context())
	if err != nil {
		h.Log.Error("list notices failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if notices == nil {
		notices = []models.RenderedNotice{}
	}

	nonce, err := h.Nonces.Create(NoticeAction)
	if err != nil {
		h.Log.Error("create nonce failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, noticesResponse{Nonce: nonce, Notices: notices})
}

// ShowConfiguration handles GET /admin/configuration and answers 404 when the
// platform has not pushed one yet.
func (h *AdminHandler) ShowConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, found, err := h.Configuration.Get(r.Context())
	if err != nil {
		h.Log.Error("read configuration failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "no configuration", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
