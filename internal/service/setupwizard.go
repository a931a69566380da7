package service

import (
	"context"

	"github.com/atinyakov/BoxtalConnect/internal/models"
	"go.uber.org/zap"
)

// SetupWizard reconciles the setup notices with the pairing state. It runs
// on every admin page load and never retries on its own.
type SetupWizard struct {
	store   OptionStore
	pairing *PairingService
	notices *NoticeController
	api     PlatformAPI
	locale  string
	log     *zap.Logger
}

// NewSetupWizard constructs a SetupWizard asking the platform for locale-specific URLs.
func NewSetupWizard(store OptionStore, pairing *PairingService, notices *NoticeController, api PlatformAPI, locale string, log *zap.Logger) *SetupWizard {
	return &SetupWizard{store: store, pairing: pairing, notices: notices, api: api, locale: locale, log: log}
}

// Run removes a stale setup-wizard notice once paired. While unpaired and
// without one, it fetches the endpoint URLs and shows the setup-wizard
// notice, or a setup-failure notice when the platform cannot be used.
// Platform failures become notices; only storage errors are returned.
func (w *SetupWizard) Run(ctx context.Context) error {
	paired, err := w.pairing.IsPaired(ctx)
	if err != nil {
		return err
	}
	hasWizard, err := w.notices.HasNotice(ctx, string(models.NoticeSetupWizard))
	if err != nil {
		return err
	}

	if paired {
		if hasWizard {
			return w.notices.RemoveNotice(ctx, string(models.NoticeSetupWizard))
		}
		return nil
	}
	if hasWizard {
		return nil
	}

	cfg, err := w.api.GetModuleConfig(ctx, w.locale)
	if err != nil {
		w.log.Warn("module config request failed", zap.Error(err))
		return w.fail(ctx)
	}
	if cfg.MapsEndpointURL == "" || cfg.SignupPageURL == "" {
		w.log.Warn("module config is incomplete")
		return w.fail(ctx)
	}

	if err := w.store.SetOption(ctx, optMapsEndpointURL, cfg.MapsEndpointURL); err != nil {
		return err
	}
	if err := w.store.SetOption(ctx, optSignupPageURL, cfg.SignupPageURL); err != nil {
		return err
	}
	payload := map[string]any{"signupPageUrl": cfg.SignupPageURL}
	if err := w.notices.AddNotice(ctx, models.NoticeSetupWizard, payload); err != nil {
		return err
	}
	return w.notices.RemoveNoticesOfKind(ctx, models.NoticeSetupFailure)
}

// fail shows a single setup-failure notice.
func (w *SetupWizard) fail(ctx context.Context) error {
	has, err := w.notices.HasNoticeOfKind(ctx, models.NoticeSetupFailure)
	if err != nil || has {
		return err
	}
	return w.notices.AddNotice(ctx, models.NoticeSetupFailure, nil)
}
