// Package certgen issues the credentials of the shop protocol: the platform
// client certificate the shop authenticates with mTLS, and the RSA key pair
// platforms seal request bodies with.
package certgen

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"
)

const (
	// DefaultPlatformCN is the Common Name the server expects on the
	// platform client certificate unless configured otherwise.
	DefaultPlatformCN = "boxtal-platform"

	// PlatformCertValidity bounds how long a platform certificate is accepted.
	PlatformCertValidity = 180 * 24 * time.Hour

	// MinEnvelopeKeyBits is the smallest RSA modulus accepted for the envelope key.
	MinEnvelopeKeyBits = 2048

	platformOrganization = "Boxtal"
)

// LoadCACredentials reads the CA certificate and signing key from PEM files.
// The key may be EC, PKCS#1 RSA or PKCS#8.
func LoadCACredentials(certPath, keyPath string) (*x509.Certificate, crypto.Signer, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read ca cert: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read ca key: %w", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return nil, nil, errors.New("invalid CA cert PEM")
	}
	caCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse ca cert: %w", err)
	}
	if !caCert.IsCA {
		return nil, nil, errors.New("certificate is not a CA")
	}

	caKey, err := parseSigner(keyPEM)
	if err != nil {
		return nil, nil, err
	}
	return caCert, caKey, nil
}

func parseSigner(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("invalid CA key PEM")
	}
	var (
		key any
		err error
	)
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parse ca key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("ca key %T cannot sign", key)
	}
	return signer, nil
}

// GeneratePlatformCertificate issues an ECDSA P-256 client certificate for
// the shipping platform, signed by the CA. An empty commonName selects
// DefaultPlatformCN. The certificate is usable for client authentication
// only, so it cannot be deployed as a server certificate.
func GeneratePlatformCertificate(commonName string, caCert *x509.Certificate, caKey crypto.Signer) (certPEM, keyPEM []byte, err error) {
	if commonName == "" {
		commonName = DefaultPlatformCN
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("gen key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, nil, fmt.Errorf("gen serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{platformOrganization},
		},
		NotBefore:   now.Add(-time.Minute),
		NotAfter:    now.Add(PlatformCertValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if template.NotAfter.After(caCert.NotAfter) {
		template.NotAfter = caCert.NotAfter
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, caCert, &priv.PublicKey, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create cert: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal priv key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

// GenerateEnvelopeKeyPair generates the RSA key pair platforms seal request
// bodies with. The private key is PEM-encoded as PKCS#1 "RSA PRIVATE KEY" and
// the public key as PKIX "PUBLIC KEY".
func GenerateEnvelopeKeyPair(bits int) (privPEM, pubPEM []byte, err error) {
	if bits < MinEnvelopeKeyBits {
		return nil, nil, fmt.Errorf("envelope key too small: %d bits", bits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("gen key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal pub key: %w", err)
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}
