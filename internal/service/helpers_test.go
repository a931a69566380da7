package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/boxtalapi"
	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/atinyakov/BoxtalConnect/internal/repository"
	"github.com/atinyakov/BoxtalConnect/internal/service"
	"go.uber.org/zap"
)

type mockAPI struct {
	GetModuleConfigFunc       func(ctx context.Context, locale string) (*models.ModuleConfig, error)
	ValidatePairingUpdateFunc func(ctx context.Context, url string, creds boxtalapi.Credentials, input string) error
}

func (m *mockAPI) GetModuleConfig(ctx context.Context, locale string) (*models.ModuleConfig, error) {
	return m.GetModuleConfigFunc(ctx, locale)
}

func (m *mockAPI) ValidatePairingUpdate(ctx context.Context, url string, creds boxtalapi.Credentials, input string) error {
	return m.ValidatePairingUpdateFunc(ctx, url, creds, input)
}

// clock is a settable time source for the memory store.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	store   *repository.MemoryStore
	clock   *clock
	notices *service.NoticeController
	pairing *service.PairingService
	config  *service.ConfigurationService
	api     *mockAPI
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore()
	store.Now = c.Now
	log := zap.NewNop()
	api := &mockAPI{}
	notices := service.NewNoticeController(store, log)
	pairing := service.NewPairingService(store, notices, api, log)
	return &fixture{
		store:   store,
		clock:   c,
		notices: notices,
		pairing: pairing,
		config:  service.NewConfigurationService(store, pairing, log),
		api:     api,
	}
}

func (f *fixture) keys(t *testing.T) []string {
	t.Helper()
	keys, err := f.notices.GetNoticeKeys(context.Background())
	if err != nil {
		t.Fatalf("GetNoticeKeys: %v", err)
	}
	return keys
}

func (f *fixture) pair(t *testing.T, access, secret string) {
	t.Helper()
	if err := f.pairing.Pair(context.Background(), access, secret); err != nil {
		t.Fatalf("Pair: %v", err)
	}
}
