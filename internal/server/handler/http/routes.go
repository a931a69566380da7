package http

import (
	"net/http"

	"github.com/atinyakov/BoxtalConnect/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RESTPrefix is the mount point of the platform-facing endpoints.
const RESTPrefix = "/boxtal-connect/v1"

// RouterConfig carries the authentication settings of the route groups.
type RouterConfig struct {
	// PlatformCN is the Common Name the platform client certificate must
	// carry. Empty accepts any certificate signed by the CA.
	PlatformCN string
	// AdminToken is the bearer token of the admin routes.
	AdminToken string
	// Nonces verifies the "security" field of ajax requests.
	Nonces middleware.NonceVerifier
}

// NewRouter constructs the HTTP handler of the BoxtalConnect service.
//
// Routes:
//
//	PATCH  /boxtal-connect/v1/shop/pair           → shop.Pair (CertAuth, JSON)
//	PATCH  /boxtal-connect/v1/shop/configuration  → shop.UpdateConfiguration (CertAuth, JSON)
//	DELETE /boxtal-connect/v1/shop/configuration  → shop.DeleteConfiguration (CertAuth, JSON)
//	POST   /ajax/hide_notice                      → ajax.HideNotice (nonce)
//	POST   /ajax/pairing_update_validate          → ajax.PairingUpdateValidate (nonce)
//	GET    /admin/notices                         → admin.ListNotices (bearer token)
//	GET    /admin/configuration                   → admin.ShowConfiguration (bearer token)
func NewRouter(
	shop *ShopHandler,
	ajax *AjaxHandler,
	admin *AdminHandler,
	cfg RouterConfig,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	// Platform endpoints: transport authentication runs before any body handling
	r.Route(RESTPrefix, func(r chi.Router) {
		r.Use(middleware.CertAuth(cfg.PlatformCN))
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Patch("/shop/pair", shop.Pair)
		r.Patch("/shop/configuration", shop.UpdateConfiguration)
		r.Delete("/shop/configuration", shop.DeleteConfiguration)
	})

	r.Route("/ajax", func(r chi.Router) {
		r.Use(middleware.RequireNonce(cfg.Nonces, NoticeAction))

		r.Post("/hide_notice", ajax.HideNotice)
		r.Post("/pairing_update_validate", ajax.PairingUpdateValidate)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(cfg.AdminToken))

		r.Get("/notices", admin.ListNotices)
		r.Get("/configuration", admin.ShowConfiguration)
	})

	return r
}
