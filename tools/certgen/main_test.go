package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/certgen"
	"github.com/atinyakov/BoxtalConnect/internal/envelope"
)

func TestGenerateCA(t *testing.T) {
	caCert, caKey, err := generateCA()
	if err != nil {
		t.Fatalf("generateCA: %v", err)
	}

	// IsCA + BasicConstraintsValid
	if !caCert.IsCA {
		t.Error("CA certificate should have IsCA=true")
	}
	if !caCert.BasicConstraintsValid {
		t.Error("CA certificate should have BasicConstraintsValid=true")
	}

	// KeyUsage includes CertSign and DigitalSignature
	wantKU := x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature
	if caCert.KeyUsage&wantKU != wantKU {
		t.Errorf("CA KeyUsage = %v; want bits %v", caCert.KeyUsage, wantKU)
	}

	// Validity ~10 years
	dur := caCert.NotAfter.Sub(caCert.NotBefore)
	if dur < 9*365*24*time.Hour {
		t.Errorf("CA validity too short: %v", dur)
	}

	if caKey.N.BitLen() < 2048 {
		t.Errorf("CA RSA key too small: %d bits", caKey.N.BitLen())
	}
}

func TestGenerateServerCert(t *testing.T) {
	caCert, caKey, err := generateCA()
	if err != nil {
		t.Fatalf("generateCA: %v", err)
	}
	cert, key, err := generateServerCert("shop.example", caCert, caKey)
	if err != nil {
		t.Fatalf("generateServerCert: %v", err)
	}

	if cert.Subject.CommonName != "shop.example" {
		t.Errorf("CommonName = %q; want \"shop.example\"", cert.Subject.CommonName)
	}
	if !reflect.DeepEqual(cert.DNSNames, []string{"shop.example"}) {
		t.Errorf("DNSNames = %v; want [\"shop.example\"]", cert.DNSNames)
	}
	if err := cert.CheckSignatureFrom(caCert); err != nil {
		t.Errorf("certificate not signed by CA: %v", err)
	}
	if !reflect.DeepEqual(cert.ExtKeyUsage, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}) {
		t.Errorf("ExtKeyUsage = %v; want server auth", cert.ExtKeyUsage)
	}
	if key.N.BitLen() < 2048 {
		t.Errorf("RSA key too small: %d bits", key.N.BitLen())
	}
}

func TestWriteCertAndKey_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "foo.crt")
	keyPath := filepath.Join(dir, "foo.key")

	caCert, caKey, err := generateCA()
	if err != nil {
		t.Fatalf("generateCA: %v", err)
	}
	if err := writeCertAndKey(certPath, keyPath, caCert, caKey); err != nil {
		t.Fatalf("writeCertAndKey: %v", err)
	}

	crtPEM, err := os.ReadFile(certPath)
	if err != nil {
		t.Fatalf("failed to read cert file: %v", err)
	}
	block, _ := pem.Decode(crtPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("expected CERTIFICATE PEM block; got %v", block)
	}
	parsedCert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	if !reflect.DeepEqual(parsedCert.Raw, caCert.Raw) {
		t.Error("parsed certificate does not match original")
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("failed to read key file: %v", err)
	}
	block, _ = pem.Decode(keyPEM)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		t.Fatalf("expected RSA PRIVATE KEY PEM block; got %v", block)
	}
	parsedKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	if caKey.N.Cmp(parsedKey.N) != 0 || caKey.E != parsedKey.E {
		t.Error("parsed private key does not match original")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	if err := run(dir, "localhost", certgen.DefaultPlatformCN, false); err != nil {
		t.Fatalf("run: %v", err)
	}

	// server and platform pairs load as TLS key pairs
	for _, name := range []string{"server", "platform"} {
		if _, err := tls.LoadX509KeyPair(filepath.Join(dir, name+".crt"), filepath.Join(dir, name+".key")); err != nil {
			t.Errorf("load %s key pair: %v", name, err)
		}
	}

	platformPEM, err := os.ReadFile(filepath.Join(dir, "platform.crt"))
	if err != nil {
		t.Fatalf("read platform cert: %v", err)
	}
	block, _ := pem.Decode(platformPEM)
	platform, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse platform cert: %v", err)
	}
	if platform.Subject.CommonName != certgen.DefaultPlatformCN {
		t.Errorf("platform CN = %q, want %q", platform.Subject.CommonName, certgen.DefaultPlatformCN)
	}
	if !reflect.DeepEqual(platform.ExtKeyUsage, []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}) {
		t.Errorf("platform ext key usage = %v, want client auth only", platform.ExtKeyUsage)
	}

	opener, err := envelope.LoadOpener(filepath.Join(dir, "envelope.key"))
	if err != nil {
		t.Fatalf("LoadOpener: %v", err)
	}
	pub, err := envelope.LoadPublicKey(filepath.Join(dir, "envelope.pub"))
	if err != nil {
		t.Fatalf("LoadPublicKey: %v", err)
	}
	if !opener.Public().Equal(pub) {
		t.Error("envelope public key does not match private key")
	}

	// reissue keeps the CA and replaces the platform certificate
	caBefore, _ := os.ReadFile(filepath.Join(dir, "ca.crt"))
	platformBefore, _ := os.ReadFile(filepath.Join(dir, "platform.crt"))
	if err := run(dir, "localhost", certgen.DefaultPlatformCN, true); err != nil {
		t.Fatalf("run reissue: %v", err)
	}
	caAfter, _ := os.ReadFile(filepath.Join(dir, "ca.crt"))
	platformAfter, _ := os.ReadFile(filepath.Join(dir, "platform.crt"))
	if !reflect.DeepEqual(caBefore, caAfter) {
		t.Error("reissue replaced the CA")
	}
	if reflect.DeepEqual(platformBefore, platformAfter) {
		t.Error("reissue did not replace the platform certificate")
	}
}
