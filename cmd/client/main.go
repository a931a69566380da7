// Package main is the platform-side command line client. It pairs a shop,
// pushes or deletes its shipping configuration, and serves the callback that
// validates pairing updates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/client/platform"
	"github.com/atinyakov/BoxtalConnect/internal/envelope"
	"github.com/atinyakov/BoxtalConnect/internal/logger"
	"github.com/atinyakov/BoxtalConnect/internal/models"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and dispatches to the requested command.
func main() {
	var (
		cmd         string
		baseURL     string
		certFile    string
		keyFile     string
		caFile      string
		shopKeyFile string
		accessKey   string
		secretKey   string
		callbackURL string
		configFile  string
		listenAddr  string
		code        string
		showVer     bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: pair | update-pairing | push-config | delete-config | serve-callback")
	flag.StringVar(&baseURL, "url", "https://localhost:8443", "shop base URL")
	flag.StringVar(&certFile, "cert", "certs/platform.crt", "path to platform cert")
	flag.StringVar(&keyFile, "key", "certs/platform.key", "path to platform key")
	flag.StringVar(&caFile, "ca", "certs/ca.crt", "path to CA cert")
	flag.StringVar(&shopKeyFile, "shop-key", "certs/envelope.pub", "path to the shop envelope public key")
	flag.StringVar(&accessKey, "access-key", "", "shop access key")
	flag.StringVar(&secretKey, "secret-key", "", "shop secret key")
	flag.StringVar(&callbackURL, "callback", "", "pairing update callback URL")
	flag.StringVar(&configFile, "config", "", "path to a configuration JSON document")
	flag.StringVar(&listenAddr, "listen", "localhost:9090", "callback listen address")
	flag.StringVar(&code, "code", "", "pairing update validation code")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("BoxtalConnect platform client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	if cmd == "serve-callback" {
		serveCallback(listenAddr, accessKey, secretKey, code)
		return
	}

	client := newClient(baseURL, certFile, keyFile, caFile, shopKeyFile)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		resp *platform.Response
		err  error
	)
	switch cmd {
	case "pair":
		requireFlags(map[string]string{"access-key": accessKey, "secret-key": secretKey})
		resp, err = client.Pair(ctx, models.PairRequest{AccessKey: accessKey, SecretKey: secretKey})
	case "update-pairing":
		requireFlags(map[string]string{"access-key": accessKey, "secret-key": secretKey, "callback": callbackURL})
		resp, err = client.Pair(ctx, models.PairRequest{AccessKey: accessKey, SecretKey: secretKey, PairCallbackURL: callbackURL})
	case "push-config":
		requireFlags(map[string]string{"config": configFile})
		doc, readErr := os.ReadFile(configFile)
		if readErr != nil {
			log.Fatal(readErr)
		}
		resp, err = client.PushConfiguration(ctx, doc)
	case "delete-config":
		requireFlags(map[string]string{"access-key": accessKey})
		resp, err = client.DeleteConfiguration(ctx, accessKey)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%d %s\n", resp.StatusCode, resp.Body)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func newClient(baseURL, certFile, keyFile, caFile, shopKeyFile string) *platform.Client {
	httpClient, err := platform.LoadClientCertificate(certFile, keyFile, caFile)
	if err != nil {
		log.Fatal(err)
	}
	shopKey, err := envelope.LoadPublicKey(shopKeyFile)
	if err != nil {
		log.Fatal(err)
	}
	return platform.NewClient(httpClient, baseURL, shopKey)
}

// serveCallback answers the shop's pairing update validation until killed.
func serveCallback(addr, accessKey, secretKey, code string) {
	requireFlags(map[string]string{"access-key": accessKey, "secret-key": secretKey, "code": code})

	l := logger.New()
	if err := l.Init("info"); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Log.Sync() }()

	handler := &platform.CallbackHandler{AccessKey: accessKey, SecretKey: secretKey, Code: code, Log: l.Log}
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	l.Log.Info("serving pairing callback", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil {
		l.Log.Fatal("callback server failed", zap.Error(err))
	}
}

func requireFlags(flags map[string]string) {
	for name, value := range flags {
		if value == "" {
			log.Fatalf("please provide -%s", name)
		}
	}
}
