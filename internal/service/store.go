// Package service implements the shop connector business logic: admin
// notices, pairing with the platform, shop configuration and the setup
// wizard. Persistence goes through the Store interfaces.
package service

import (
	"context"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/boxtalapi"
	"github.com/atinyakov/BoxtalConnect/internal/models"
)

// OptionStore persists durable JSON-encoded options.
type OptionStore interface {
	// GetOption decodes the value under key into dest. found is false when
	// the key does not exist.
	GetOption(ctx context.Context, key string, dest any) (found bool, err error)
	// SetOption inserts or replaces the value under key.
	SetOption(ctx context.Context, key string, value any) error
	// DeleteOption removes key; a missing key is not an error.
	DeleteOption(ctx context.Context, key string) error
	// DeleteOptions removes every listed key.
	DeleteOptions(ctx context.Context, keys ...string) error
}

// TransientStore persists values that expire after a TTL.
type TransientStore interface {
	SetTransient(ctx context.Context, key string, value any, ttl time.Duration) error
	// GetTransient reports found=false for missing and expired keys alike.
	GetTransient(ctx context.Context, key string, dest any) (found bool, err error)
	DeleteTransient(ctx context.Context, key string) error
}

// Store combines both persistence kinds.
type Store interface {
	OptionStore
	TransientStore
}

// CombineStores serves options from o and transients from t.
func CombineStores(o OptionStore, t TransientStore) Store {
	return struct {
		OptionStore
		TransientStore
	}{o, t}
}

// PlatformAPI is the subset of the platform REST API the services call.
type PlatformAPI interface {
	GetModuleConfig(ctx context.Context, locale string) (*models.ModuleConfig, error)
	ValidatePairingUpdate(ctx context.Context, callbackURL string, creds boxtalapi.Credentials, input string) error
}

// Option keys.
const (
	optActiveNotices    = "active_notices"
	optNoticePrefix     = "notice_"
	optAccessKey        = "paired_access_key"
	optSecretKey        = "paired_secret_key"
	optPairingUpdateURL = "pairing_update_url"
	optMapsEndpointURL  = "maps_endpoint_url"
	optSignupPageURL    = "signup_page_url"

	optMapBootstrapURL     = "map_bootstrap_url"
	optMapTokenURL         = "map_token_url"
	optParcelPointNetworks = "parcel_point_networks"
	optTrackingEvents      = "tracking_events"
)

// getString reads a string option, returning "" when absent.
func getString(ctx context.Context, s OptionStore, key string) (string, error) {
	var v string
	if _, err := s.GetOption(ctx, key, &v); err != nil {
		return "", err
	}
	return v, nil
}
