package http_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/atinyakov/BoxtalConnect/internal/boxtalapi"
	"github.com/atinyakov/BoxtalConnect/internal/envelope"
	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/atinyakov/BoxtalConnect/internal/nonce"
	"github.com/atinyakov/BoxtalConnect/internal/repository"
	handler "github.com/atinyakov/BoxtalConnect/internal/server/handler/http"
	"github.com/atinyakov/BoxtalConnect/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	platformCN = "boxtal-platform"
	adminToken = "admin-token"
)

type stubAPI struct {
	moduleConfig *models.ModuleConfig
	moduleErr    error
	validateErr  error
	validateURL  string
}

func (s *stubAPI) GetModuleConfig(ctx context.Context, locale string) (*models.ModuleConfig, error) {
	return s.moduleConfig, s.moduleErr
}

func (s *stubAPI) ValidatePairingUpdate(ctx context.Context, callbackURL string, creds boxtalapi.Credentials, input string) error {
	s.validateURL = callbackURL
	return s.validateErr
}

type app struct {
	router  http.Handler
	store   *repository.MemoryStore
	key     *rsa.PrivateKey
	nonces  *nonce.Issuer
	pairing *service.PairingService
	notices *service.NoticeController
	api     *stubAPI
}

func newApp(t *testing.T) *app {
	t.Helper()
	return newAppWithLog(t, zap.NewNop())
}

func newAppWithLog(t *testing.T, log *zap.Logger) *app {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	api := &stubAPI{moduleErr: errors.New("platform unreachable")}
	notices := service.NewNoticeController(store, log)
	pairing := service.NewPairingService(store, notices, api, log)
	configuration := service.NewConfigurationService(store, pairing, log)
	wizard := service.NewSetupWizard(store, pairing, notices, api, "fr_FR", log)
	issuer := nonce.NewIssuer([]byte("nonce-secret"), 0)

	router := handler.NewRouter(
		handler.NewShopHandler(envelope.NewOpener(key), pairing, configuration, log),
		&handler.AjaxHandler{Notices: notices, Pairing: pairing, Log: log},
		&handler.AdminHandler{Setup: wizard, Notices: notices, Configuration: configuration, Nonces: issuer, Log: log},
		handler.RouterConfig{PlatformCN: platformCN, AdminToken: adminToken, Nonces: issuer},
		log,
	)
	return &app{router: router, store: store, key: key, nonces: issuer, pairing: pairing, notices: notices, api: api}
}

// platformRequest builds a sealed REST request presenting a client certificate.
func (a *app) platformRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	plain, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := envelope.Seal(&a.key.PublicKey, plain)
	require.NoError(t, err)

	req := httptest.NewRequest(method, handler.RESTPrefix+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{
		{Subject: pkix.Name{CommonName: platformCN}},
	}}
	return req
}

func (a *app) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *app) pairingNotices(t *testing.T) []models.RenderedNotice {
	t.Helper()
	rendered, err := a.notices.GetNotices(context.Background())
	require.NoError(t, err)
	var out []models.RenderedNotice
	for _, n := range rendered {
		if n.Kind == models.NoticePairing {
			out = append(out, n)
		}
	}
	return out
}

func TestRouter_PairUnpaired(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	w := a.serve(a.platformRequest(t, http.MethodPatch, "/shop/pair", map[string]string{"accessKey": "a", "secretKey": "b"}))
	require.Equal(t, http.StatusOK, w.Code)

	access, err := a.pairing.AccessKey(ctx)
	require.NoError(t, err)
	secret, err := a.pairing.SecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", access)
	assert.Equal(t, "b", secret)

	notices := a.pairingNotices(t)
	require.Len(t, notices, 1)
	assert.EqualValues(t, 1, notices[0].Payload["result"])
}

func TestRouter_RepairWithoutCallback(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.pairing.Pair(ctx, "a", "b"))

	w := a.serve(a.platformRequest(t, http.MethodPatch, "/shop/pair", map[string]string{"accessKey": "c", "secretKey": "d"}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	access, err := a.pairing.AccessKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", access)
}

func TestRouter_PairUndecryptable(t *testing.T) {
	a := newApp(t)
	req := a.platformRequest(t, http.MethodPatch, "/shop/pair", map[string]string{})
	req.Body = http.NoBody

	w := a.serve(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	notices := a.pairingNotices(t)
	require.Len(t, notices, 1)
	assert.EqualValues(t, 0, notices[0].Payload["result"])
}

func TestRouter_PairRequiresCertificate(t *testing.T) {
	a := newApp(t)
	req := a.platformRequest(t, http.MethodPatch, "/shop/pair", map[string]string{"accessKey": "a", "secretKey": "b"})
	req.TLS = nil

	w := a.serve(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	paired, err := a.pairing.IsPaired(context.Background())
	require.NoError(t, err)
	assert.False(t, paired)
}

func TestRouter_ConfigurationLifecycle(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.pairing.Pair(ctx, "a", "b"))

	doc := map[string]any{
		"mapBootstrapUrl":     "https://maps.test/bootstrap",
		"mapTokenUrl":         "https://maps.test/token",
		"parcelPointNetworks": map[string]any{"MONR": []string{"MONR_NETWORK"}},
	}
	w := a.serve(a.platformRequest(t, http.MethodPatch, "/shop/configuration", doc))
	require.Equal(t, http.StatusOK, w.Code)

	w = a.serve(a.platformRequest(t, http.MethodDelete, "/shop/configuration", map[string]string{"accessKey": "x"}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := httptest.NewRequest(http.MethodGet, "/admin/configuration", nil)
	admin.Header.Set("Authorization", "Bearer "+adminToken)
	w = a.serve(admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.serve(a.platformRequest(t, http.MethodDelete, "/shop/configuration", map[string]string{"accessKey": "a"}))
	assert.Equal(t, http.StatusOK, w.Code)

	admin = httptest.NewRequest(http.MethodGet, "/admin/configuration", nil)
	admin.Header.Set("Authorization", "Bearer "+adminToken)
	w = a.serve(admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AdminNoticesAndHide(t *testing.T) {
	a := newApp(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/notices", nil)
	w := a.serve(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/notices", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = a.serve(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Nonce   string                  `json:"nonce"`
		Notices []models.RenderedNotice `json:"notices"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, models.NoticeSetupFailure, resp.Notices[0].Kind)

	// wrong nonce
	w = a.serve(formRequest("/ajax/hide_notice", url.Values{"notice_id": {resp.Notices[0].ID}, "security": {"bogus"}}))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.serve(formRequest("/ajax/hide_notice", url.Values{"notice_id": {resp.Notices[0].ID}, "security": {resp.Nonce}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "true", w.Body.String())

	has, err := a.notices.HasNotices(context.Background())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRouter_PairingUpdateValidate(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()
	require.NoError(t, a.pairing.Pair(ctx, "a", "b"))

	w := a.serve(a.platformRequest(t, http.MethodPatch, "/shop/pair", map[string]string{
		"accessKey":       "c",
		"secretKey":       "d",
		"pairCallbackUrl": "https://platform.test/callback",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	token, err := a.nonces.Create(handler.NoticeAction)
	require.NoError(t, err)

	a.api.validateErr = errors.New("wrong code")
	w = a.serve(formRequest("/ajax/pairing_update_validate", url.Values{"input": {"000000"}, "security": {token}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"data":"pairing validation failed"}`, w.Body.String())

	pending, err := a.pairing.PairingUpdateURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://platform.test/callback", pending)

	a.api.validateErr = nil
	w = a.serve(formRequest("/ajax/pairing_update_validate", url.Values{"input": {"123456"}, "security": {token}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "true", w.Body.String())
	assert.Equal(t, "https://platform.test/callback", a.api.validateURL)

	pending, err = a.pairing.PairingUpdateURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	has, err := a.notices.HasNotice(ctx, string(models.NoticePairingUpdate))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRouter_LogsPlatformIdentity(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	a := newAppWithLog(t, zap.New(core))

	w := a.serve(a.platformRequest(t, http.MethodPatch, "/shop/pair", map[string]string{"accessKey": "a", "secretKey": "b"}))
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("pairing request handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, platformCN, fields["platform"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}
