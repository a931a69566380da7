package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/atinyakov/BoxtalConnect/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWizard(f *fixture) *service.SetupWizard {
	return service.NewSetupWizard(f.store, f.pairing, f.notices, f.api, "fr_FR", zap.NewNop())
}

func TestSetupWizard_PairedRemovesStaleNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pair(t, "a", "b")
	require.NoError(t, f.notices.AddNotice(ctx, models.NoticeSetupWizard, nil))
	f.api.GetModuleConfigFunc = func(context.Context, string) (*models.ModuleConfig, error) {
		t.Fatal("platform must not be called once paired")
		return nil, nil
	}

	require.NoError(t, newWizard(f).Run(ctx))
	assert.Empty(t, f.keys(t))
}

func TestSetupWizard_UnpairedSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.notices.AddNotice(ctx, models.NoticeSetupFailure, nil))

	f.api.GetModuleConfigFunc = func(_ context.Context, locale string) (*models.ModuleConfig, error) {
		assert.Equal(t, "fr_FR", locale)
		return &models.ModuleConfig{MapsEndpointURL: "https://maps.example", SignupPageURL: "https://signup.example"}, nil
	}

	require.NoError(t, newWizard(f).Run(ctx))
	assert.Equal(t, []string{"setup-wizard"}, f.keys(t))

	var maps, signup string
	_, _ = f.store.GetOption(ctx, "maps_endpoint_url", &maps)
	_, _ = f.store.GetOption(ctx, "signup_page_url", &signup)
	assert.Equal(t, "https://maps.example", maps)
	assert.Equal(t, "https://signup.example", signup)

	notices, err := f.notices.GetNotices(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://signup.example", notices[0].Payload["signupPageUrl"])
}

func TestSetupWizard_Failures(t *testing.T) {
	tests := []struct {
		name string
		cfg  *models.ModuleConfig
		err  error
	}{
		{name: "transport error", err: errors.New("connection refused")},
		{name: "missing signup url", cfg: &models.ModuleConfig{MapsEndpointURL: "https://maps.example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.api.GetModuleConfigFunc = func(context.Context, string) (*models.ModuleConfig, error) {
				return tt.cfg, tt.err
			}

			w := newWizard(f)
			require.NoError(t, w.Run(ctx))
			require.NoError(t, w.Run(ctx))

			notices, err := f.notices.GetNotices(ctx)
			require.NoError(t, err)
			require.Len(t, notices, 1)
			assert.Equal(t, models.NoticeSetupFailure, notices[0].Kind)

			has, _ := f.notices.HasNotice(ctx, "setup-wizard")
			assert.False(t, has)
		})
	}
}

func TestSetupWizard_UnpairedWithNoticeDoesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.notices.AddNotice(ctx, models.NoticeSetupWizard, nil))
	f.api.GetModuleConfigFunc = func(context.Context, string) (*models.ModuleConfig, error) {
		t.Fatal("platform must not be called while the wizard notice is shown")
		return nil, nil
	}

	require.NoError(t, newWizard(f).Run(ctx))
	assert.Equal(t, []string{"setup-wizard"}, f.keys(t))
}
