// Package main generates the Certificate Authority (CA), the server
// certificate, the platform client certificate and the request body envelope
// key pair, writing them to files under the certs directory.
package main

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	host := flag.String("host", "localhost", "server DNS name")
	platformCN := flag.String("platform-cn", certgen.DefaultPlatformCN, "Common Name of the platform client certificate")
	reissue := flag.Bool("reissue", false, "reuse the existing CA and only issue a new platform certificate")
	flag.Parse()

	if err := run(*dir, *host, *platformCN, *reissue); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("✅ Certificates generated into %s\n", *dir)
}

// run writes ca.crt/ca.key, server.crt/server.key, platform.crt/platform.key
// and envelope.key/envelope.pub into dir. With reissue only the platform
// certificate is replaced, signed by the CA already in dir.
func run(dir, host, platformCN string, reissue bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	var caCert *x509.Certificate
	var caKey crypto.Signer
	if reissue {
		var err error
		caCert, caKey, err = certgen.LoadCACredentials(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
		if err != nil {
			return err
		}
	} else {
		// 1. CA certificate and key
		cert, key, err := generateCA()
		if err != nil {
			return err
		}
		if err := writeCertAndKey(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"), cert, key); err != nil {
			return err
		}

		// 2. Server certificate signed by the CA
		serverCert, serverKey, err := generateServerCert(host, cert, key)
		if err != nil {
			return err
		}
		if err := writeCertAndKey(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"), serverCert, serverKey); err != nil {
			return err
		}

		// 3. Envelope key pair
		privPEM, pubPEM, err := certgen.GenerateEnvelopeKeyPair(certgen.MinEnvelopeKeyBits)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "envelope.key"), privPEM, 0o600); err != nil {
			return fmt.Errorf("write envelope key: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "envelope.pub"), pubPEM, 0o644); err != nil {
			return fmt.Errorf("write envelope public key: %w", err)
		}
		caCert, caKey = cert, key
	}

	// 4. Platform client certificate signed by the CA
	certPEM, keyPEM, err := certgen.GeneratePlatformCertificate(platformCN, caCert, caKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "platform.crt"), certPEM, 0o644); err != nil {
		return fmt.Errorf("write platform cert: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "platform.key"), keyPEM, 0o600); err != nil {
		return fmt.Errorf("write platform key: %w", err)
	}
	return nil
}

// generateCA creates a self-signed CA certificate and its RSA private key.
// The CA is valid for 10 years and can sign other certificates.
func generateCA() (*x509.Certificate, *rsa.PrivateKey, error) {
	ca := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "BoxtalConnect CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	caKey, err := rsa.GenerateKey(rand.Reader, 3072)
	if err != nil {
		return nil, nil, fmt.Errorf("gen ca key: %w", err)
	}
	caBytes, err := x509.CreateCertificate(rand.Reader, ca, ca, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create ca cert: %w", err)
	}
	cert, err := x509.ParseCertificate(caBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse ca cert: %w", err)
	}
	return cert, caKey, nil
}

// generateServerCert creates the HTTPS server certificate and RSA private key
// for host, signed by the provided CA certificate and key. The certificate is
// valid for one year.
func generateServerCert(host string, ca *x509.Certificate, caKey *rsa.PrivateKey) (*x509.Certificate, *rsa.PrivateKey, error) {
	certTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName: host,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{host},
	}

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("gen server key: %w", err)
	}
	certBytes, err := x509.CreateCertificate(rand.Reader, certTmpl, ca, &privKey.PublicKey, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create server cert: %w", err)
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse server cert: %w", err)
	}
	return cert, privKey, nil
}

// writeCertAndKey writes the given certificate and private key to the specified file paths.
// The certificate is PEM-encoded as "CERTIFICATE" and the key as "RSA PRIVATE KEY".
func writeCertAndKey(certPath, keyPath string, cert *x509.Certificate, key *rsa.PrivateKey) error {
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}
	return nil
}
