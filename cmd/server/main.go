// Package main initializes and starts the BoxtalConnect HTTPS server,
// setting up configuration, logging, storage, services, handlers, and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/BoxtalConnect/internal/boxtalapi"
	"github.com/atinyakov/BoxtalConnect/internal/config"
	"github.com/atinyakov/BoxtalConnect/internal/db"
	"github.com/atinyakov/BoxtalConnect/internal/envelope"
	"github.com/atinyakov/BoxtalConnect/internal/logger"
	"github.com/atinyakov/BoxtalConnect/internal/nonce"
	"github.com/atinyakov/BoxtalConnect/internal/repository"
	"github.com/atinyakov/BoxtalConnect/internal/server/handler/http"
	"github.com/atinyakov/BoxtalConnect/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	if err := options.Validate(); err != nil {
		zapLogger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := initStore(ctx, options, zapLogger)
	defer closeStore()

	// Remote platform API.
	api := boxtalapi.NewClient(options.APIURL, &nethttp.Client{Timeout: 15 * time.Second})

	// Initialize business-logic services.
	notices := service.NewNoticeController(store, zapLogger)
	pairing := service.NewPairingService(store, notices, api, zapLogger)
	configuration := service.NewConfigurationService(store, pairing, zapLogger)
	wizard := service.NewSetupWizard(store, pairing, notices, api, options.Locale, zapLogger)

	opener, err := envelope.LoadOpener(options.EnvelopeKey)
	if err != nil {
		zapLogger.Fatal("failed to load envelope key", zap.Error(err))
	}
	nonces := nonce.NewIssuer([]byte(options.NonceSecret), nonce.DefaultLifetime)

	// Create HTTP handlers and build the router.
	router := http.NewRouter(
		http.NewShopHandler(opener, pairing, configuration, zapLogger),
		&http.AjaxHandler{Notices: notices, Pairing: pairing, Log: zapLogger},
		&http.AdminHandler{Setup: wizard, Notices: notices, Configuration: configuration, Nonces: nonces, Log: zapLogger},
		http.RouterConfig{PlatformCN: options.PlatformCN, AdminToken: options.AdminToken, Nonces: nonces},
		zapLogger,
	)

	tlsConfig, err := serverTLSConfig(options.CertsDir)
	if err != nil {
		zapLogger.Fatal("failed to configure TLS", zap.Error(err))
	}

	// Create and start the HTTPS server.
	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// initStore selects the option and transient stores. Options live in
// Postgres when a DSN is set, in memory otherwise. Transients move to Redis
// when an address is set.
func initStore(ctx context.Context, options *config.Options, zapLogger *zap.Logger) (service.Store, func()) {
	var (
		optionStore    service.OptionStore
		transientStore service.TransientStore
		closers        []func()
	)

	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		closers = append(closers, func() { _ = postgresDB.Close() })
		pg := repository.NewPostgresStore(postgresDB)
		optionStore, transientStore = pg, pg

		if options.RedisAddr == "" {
			db.StartTransientCleaner(ctx, postgresDB, time.Hour, zapLogger)
		}
	} else {
		zapLogger.Warn("no database configured, state is kept in memory")
		mem := repository.NewMemoryStore()
		optionStore, transientStore = mem, mem
	}

	if options.RedisAddr != "" {
		rs, err := repository.NewRedisTransientStore(options.RedisAddr, "", 0)
		if err != nil {
			zapLogger.Fatal("cannot init redis", zap.Error(err))
		}
		closers = append(closers, func() { _ = rs.Close() })
		transientStore = rs
	}

	return service.CombineStores(optionStore, transientStore), func() {
		for _, c := range closers {
			c()
		}
	}
}

// serverTLSConfig loads the server key pair and the CA verifying platform
// client certificates. Certificates are verified when given; CertAuth
// rejects platform requests that carry none.
func serverTLSConfig(certsDir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Join(certsDir, "server.crt"), filepath.Join(certsDir, "server.key"))
	if err != nil {
		return nil, fmt.Errorf("load server cert/key: %w", err)
	}

	caCert, err := os.ReadFile(filepath.Join(certsDir, "ca.crt"))
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return nil, errors.New("failed to append CA cert to pool")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
