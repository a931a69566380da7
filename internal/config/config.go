// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and a
// JSON config file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/atinyakov/BoxtalConnect/internal/certgen"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port"`

	// DatabaseDSN holds the Postgres connection string. Empty selects the
	// in-memory store.
	DatabaseDSN string `json:"database_dsn"`

	// RedisAddr moves transients (ad-hoc notices) to Redis when set.
	RedisAddr string `json:"redis_addr"`

	// CertsDir holds ca.crt, server.crt, server.key and envelope.key.
	CertsDir string `json:"certs_dir"`

	// EnvelopeKey is the RSA private key opening platform request bodies.
	// Defaults to <CertsDir>/envelope.key.
	EnvelopeKey string `json:"envelope_key"`

	// NonceSecret signs the ajax nonces.
	NonceSecret string `json:"nonce_secret"`

	// AdminToken guards the admin routes.
	AdminToken string `json:"admin_token"`

	// APIURL is the Boxtal platform base URL.
	APIURL string `json:"api_url"`

	// Locale is sent with the setup wizard module config request.
	Locale string `json:"locale"`

	// PlatformCN is the Common Name required on the platform client certificate.
	PlatformCN string `json:"platform_cn"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8443", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.RedisAddr, "r", "", "redis address for transients")
	flag.StringVar(&options.CertsDir, "certs", "certs", "directory with TLS and envelope keys")
	flag.StringVar(&options.EnvelopeKey, "envelope-key", "", "RSA private key opening request bodies")
	flag.StringVar(&options.NonceSecret, "nonce-secret", "", "secret signing ajax nonces")
	flag.StringVar(&options.AdminToken, "admin-token", "", "bearer token of the admin routes")
	flag.StringVar(&options.APIURL, "api", "https://api.boxtal.com", "Boxtal platform base URL")
	flag.StringVar(&options.Locale, "locale", "fr_FR", "locale of the setup wizard")
	flag.StringVar(&options.PlatformCN, "platform-cn", certgen.DefaultPlatformCN, "required platform certificate Common Name")
	flag.StringVar(&options.LogLevel, "l", "info", "log level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if err := options.LoadFile(options.Config); err != nil {
		log.Fatalf("error while loading config file: %v", err)
	}

	options.ApplyEnv()

	if options.EnvelopeKey == "" {
		options.EnvelopeKey = filepath.Join(options.CertsDir, "envelope.key")
	}

	return options
}

// LoadFile merges the JSON config file at path into o. A missing file is
// not an error.
func (o *Options) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides o with the environment variables that are set.
func (o *Options) ApplyEnv() {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		o.Port = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		o.DatabaseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		o.RedisAddr = v
	}
	if v := os.Getenv("NONCE_SECRET"); v != "" {
		o.NonceSecret = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		o.AdminToken = v
	}
}

// Validate reports the settings the server cannot start without.
func (o *Options) Validate() error {
	var errs []error
	if o.Port == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if o.CertsDir == "" {
		errs = append(errs, errors.New("certs directory is required"))
	}
	if len(o.NonceSecret) < 16 {
		errs = append(errs, errors.New("nonce secret must be at least 16 bytes"))
	}
	if o.AdminToken == "" {
		errs = append(errs, errors.New("admin token is required"))
	}
	if o.APIURL == "" {
		errs = append(errs, errors.New("api url is required"))
	}
	return errors.Join(errs...)
}
