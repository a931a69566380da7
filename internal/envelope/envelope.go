// Package envelope seals and opens the encrypted request bodies exchanged
// with the shipping platform.
//
// A body is a JSON object {"key": ..., "data": ...}. "key" is a random seed
// encrypted with the shop's RSA public key (OAEP, SHA-256). The AES-256-GCM
// key for "data" is derived from that seed with HKDF-SHA256; "data" holds
// nonce || ciphertext. Both fields are standard base64.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidEnvelope is returned for any body that cannot be opened.
var ErrInvalidEnvelope = errors.New("invalid envelope")

const (
	seedSize = 32
	hkdfInfo = "boxtal-connect body"
)

// Envelope is the wire form of an encrypted body.
type Envelope struct {
	Key  string `json:"key"`
	Data string `json:"data"`
}

// Opener decrypts envelopes addressed to the shop.
type Opener struct {
	priv *rsa.PrivateKey
}

// NewOpener returns an Opener for priv.
func NewOpener(priv *rsa.PrivateKey) *Opener {
	return &Opener{priv: priv}
}

// LoadOpener reads a PEM private key (PKCS#1 or PKCS#8 RSA) from path.
func LoadOpener(path string) (*Opener, error) {
	keyPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope key: %w", err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("invalid envelope key PEM")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse envelope key: %w", err)
		}
		return NewOpener(priv), nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse envelope key: %w", err)
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("envelope key is not RSA")
		}
		return NewOpener(priv), nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

// Public returns the key platforms must seal with.
func (o *Opener) Public() *rsa.PublicKey {
	return &o.priv.PublicKey
}

// Open decrypts body and returns the plaintext JSON.
func (o *Opener) Open(body []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Key == "" || env.Data == "" {
		return nil, fmt.Errorf("%w: missing key or data", ErrInvalidEnvelope)
	}

	encSeed, err := base64.StdEncoding.DecodeString(env.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key: %v", ErrInvalidEnvelope, err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrInvalidEnvelope, err)
	}

	seed, err := rsa.DecryptOAEP(sha256.New(), nil, o.priv, encSeed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	aead, err := newAEAD(seed)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: data too short", ErrInvalidEnvelope)
	}
	plain, err := aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return plain, nil
}

// Seal encrypts plaintext for the holder of pub and returns the JSON envelope.
func Seal(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	encSeed, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, seed, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}

	aead, err := newAEAD(seed)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ct := aead.Seal(nonce, nonce, plaintext, nil)

	return json.Marshal(Envelope{
		Key:  base64.StdEncoding.EncodeToString(encSeed),
		Data: base64.StdEncoding.EncodeToString(ct),
	})
}

// LoadPublicKey reads a PEM "PUBLIC KEY" (PKIX) RSA key from path.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	pubPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	block, _ := pem.Decode(pubPEM)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("invalid public key PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

func newAEAD(seed []byte) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}
