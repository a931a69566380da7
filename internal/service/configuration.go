package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var configurationKeys = []string{
	optMapBootstrapURL,
	optMapTokenURL,
	optParcelPointNetworks,
	optTrackingEvents,
}

// ConfigurationService stores the shipping configuration pushed by the platform.
type ConfigurationService struct {
	store    OptionStore
	pairing  *PairingService
	validate *validator.Validate
	log      *zap.Logger
}

// NewConfigurationService constructs a ConfigurationService. pairing supplies
// the access key that delete requests must present.
func NewConfigurationService(store OptionStore, pairing *PairingService, log *zap.Logger) *ConfigurationService {
	return &ConfigurationService{
		store:    store,
		pairing:  pairing,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// Parse decodes and persists a configuration document. It returns false
// without touching storage when the document is malformed or incomplete.
func (s *ConfigurationService) Parse(ctx context.Context, doc []byte) (bool, error) {
	var cfg models.ShopConfiguration
	if err := json.Unmarshal(doc, &cfg); err != nil {
		s.log.Info("configuration is not valid JSON", zap.Error(err))
		return false, nil
	}
	if err := s.validate.Struct(cfg); err != nil {
		s.log.Info("configuration rejected", zap.Error(err))
		return false, nil
	}

	values := map[string]any{
		optMapBootstrapURL:     cfg.MapBootstrapURL,
		optMapTokenURL:         cfg.MapTokenURL,
		optParcelPointNetworks: cfg.ParcelPointNetworks,
	}
	if cfg.TrackingEvents != nil {
		values[optTrackingEvents] = cfg.TrackingEvents
	}
	for _, key := range configurationKeys {
		v, ok := values[key]
		if !ok {
			// optional fields absent from the document must not survive from a previous push
			if err := s.store.DeleteOption(ctx, key); err != nil {
				return false, fmt.Errorf("clear configuration: %w", err)
			}
			continue
		}
		if err := s.store.SetOption(ctx, key, v); err != nil {
			return false, fmt.Errorf("store configuration: %w", err)
		}
	}
	return true, nil
}

// Get returns the stored configuration; found is false when none was pushed.
func (s *ConfigurationService) Get(ctx context.Context) (*models.ShopConfiguration, bool, error) {
	var cfg models.ShopConfiguration
	found, err := s.store.GetOption(ctx, optMapBootstrapURL, &cfg.MapBootstrapURL)
	if err != nil || !found {
		return nil, false, err
	}
	if _, err := s.store.GetOption(ctx, optMapTokenURL, &cfg.MapTokenURL); err != nil {
		return nil, false, err
	}
	if _, err := s.store.GetOption(ctx, optParcelPointNetworks, &cfg.ParcelPointNetworks); err != nil {
		return nil, false, err
	}
	if _, err := s.store.GetOption(ctx, optTrackingEvents, &cfg.TrackingEvents); err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

// Delete removes the configuration if accessKey matches the paired access
// key and returns the HTTP status to answer with.
func (s *ConfigurationService) Delete(ctx context.Context, accessKey string) (int, error) {
	stored, err := s.pairing.AccessKey(ctx)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	if stored == "" || accessKey != stored {
		s.log.Warn("configuration delete with mismatching access key")
		return http.StatusForbidden, nil
	}
	if err := s.store.DeleteOptions(ctx, configurationKeys...); err != nil {
		return http.StatusInternalServerError, fmt.Errorf("delete configuration: %w", err)
	}
	return http.StatusOK, nil
}
