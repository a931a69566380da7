package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/atinyakov/BoxtalConnect/internal/boxtalapi"
	"github.com/atinyakov/BoxtalConnect/internal/models"
	"go.uber.org/zap"
)

// Pairing errors
var (
	ErrNotPaired               = errors.New("shop is not paired")
	ErrNoPairingUpdate         = errors.New("no pairing update in progress")
	ErrPairingValidationFailed = errors.New("pairing validation failed")
)

// PairingService tracks the link between the shop and a platform account.
//
// States: unpaired (no keys), paired, and pairing update in progress (keys
// plus a callback URL). The callback URL is only ever set while paired.
type PairingService struct {
	store   OptionStore
	notices *NoticeController
	api     PlatformAPI
	log     *zap.Logger
}

// NewPairingService constructs a PairingService.
func NewPairingService(store OptionStore, notices *NoticeController, api PlatformAPI, log *zap.Logger) *PairingService {
	return &PairingService{store: store, notices: notices, api: api, log: log}
}

// AccessKey returns the stored access key, or "" when unpaired.
func (s *PairingService) AccessKey(ctx context.Context) (string, error) {
	return getString(ctx, s.store, optAccessKey)
}

// SecretKey returns the stored secret key, or "" when unpaired.
func (s *PairingService) SecretKey(ctx context.Context) (string, error) {
	return getString(ctx, s.store, optSecretKey)
}

// IsPaired reports whether both keys are stored.
func (s *PairingService) IsPaired(ctx context.Context) (bool, error) {
	access, err := s.AccessKey(ctx)
	if err != nil {
		return false, err
	}
	secret, err := s.SecretKey(ctx)
	if err != nil {
		return false, err
	}
	return access != "" && secret != "", nil
}

// Pair stores a new key pair, replacing any previous one.
func (s *PairingService) Pair(ctx context.Context, accessKey, secretKey string) error {
	if err := s.store.SetOption(ctx, optAccessKey, accessKey); err != nil {
		return fmt.Errorf("store access key: %w", err)
	}
	if err := s.store.SetOption(ctx, optSecretKey, secretKey); err != nil {
		return fmt.Errorf("store secret key: %w", err)
	}
	return nil
}

// StartPairingUpdate records the callback URL of a re-pairing negotiation.
func (s *PairingService) StartPairingUpdate(ctx context.Context, callbackURL string) error {
	paired, err := s.IsPaired(ctx)
	if err != nil {
		return err
	}
	if !paired {
		return ErrNotPaired
	}
	if err := s.store.SetOption(ctx, optPairingUpdateURL, callbackURL); err != nil {
		return fmt.Errorf("store pairing update url: %w", err)
	}
	return nil
}

// EndPairingUpdate clears the re-pairing callback URL.
func (s *PairingService) EndPairingUpdate(ctx context.Context) error {
	if err := s.store.DeleteOption(ctx, optPairingUpdateURL); err != nil {
		return fmt.Errorf("clear pairing update url: %w", err)
	}
	return nil
}

// PairingUpdateURL returns the callback URL, or "" when no update is in progress.
func (s *PairingService) PairingUpdateURL(ctx context.Context) (string, error) {
	return getString(ctx, s.store, optPairingUpdateURL)
}

// HandlePair applies a pairing request and returns the HTTP status to answer
// with. req is nil when the body could not be decrypted or lacks the keys.
//
//	unpaired, keys                  -> pair, 200
//	paired,   keys + callback URL   -> re-pair and start update, 200
//	paired,   keys only             -> 403, nothing changes
//	any,      nil                   -> failure notice, 400
func (s *PairingService) HandlePair(ctx context.Context, req *models.PairRequest) (int, error) {
	if req == nil || req.AccessKey == "" || req.SecretKey == "" {
		if err := s.notices.AddNotice(ctx, models.NoticePairing, map[string]any{"result": 0}); err != nil {
			return http.StatusInternalServerError, err
		}
		return http.StatusBadRequest, nil
	}

	paired, err := s.IsPaired(ctx)
	if err != nil {
		return http.StatusInternalServerError, err
	}

	if !paired {
		if err := s.Pair(ctx, req.AccessKey, req.SecretKey); err != nil {
			return http.StatusInternalServerError, err
		}
		if err := s.notices.RemoveNotice(ctx, string(models.NoticeSetupWizard)); err != nil {
			return http.StatusInternalServerError, err
		}
		if err := s.notices.AddNotice(ctx, models.NoticePairing, map[string]any{"result": 1}); err != nil {
			return http.StatusInternalServerError, err
		}
		s.log.Info("shop paired")
		return http.StatusOK, nil
	}

	if req.PairCallbackURL == "" {
		s.log.Warn("rejected re-pairing without callback url")
		return http.StatusForbidden, nil
	}

	if err := s.Pair(ctx, req.AccessKey, req.SecretKey); err != nil {
		return http.StatusInternalServerError, err
	}
	if err := s.notices.RemoveNotice(ctx, string(models.NoticePairing)); err != nil {
		return http.StatusInternalServerError, err
	}
	if err := s.StartPairingUpdate(ctx, req.PairCallbackURL); err != nil {
		return http.StatusInternalServerError, err
	}
	if err := s.notices.AddNotice(ctx, models.NoticePairingUpdate, nil); err != nil {
		return http.StatusInternalServerError, err
	}
	s.log.Info("pairing update started")
	return http.StatusOK, nil
}

// ValidatePairingUpdate forwards input to the pending callback URL. On
// success the update ends and a pairing success notice replaces the update
// notice; on failure nothing changes.
func (s *PairingService) ValidatePairingUpdate(ctx context.Context, input string) error {
	callbackURL, err := s.PairingUpdateURL(ctx)
	if err != nil {
		return err
	}
	if callbackURL == "" {
		return ErrNoPairingUpdate
	}
	access, err := s.AccessKey(ctx)
	if err != nil {
		return err
	}
	secret, err := s.SecretKey(ctx)
	if err != nil {
		return err
	}

	creds := boxtalapi.Credentials{AccessKey: access, SecretKey: secret}
	if err := s.api.ValidatePairingUpdate(ctx, callbackURL, creds, input); err != nil {
		s.log.Warn("pairing update validation rejected", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPairingValidationFailed, err)
	}

	if err := s.EndPairingUpdate(ctx); err != nil {
		return err
	}
	if err := s.notices.RemoveNotice(ctx, string(models.NoticePairingUpdate)); err != nil {
		return err
	}
	return s.notices.AddNotice(ctx, models.NoticePairing, map[string]any{"result": 1})
}
