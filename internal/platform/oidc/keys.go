// Package oidc implements the authorization-code + PKCE OAuth2/OIDC
// state machine of spec §4.5: discovery, JWKS, /authorize, /token,
// login/logout/consent interactions, and federated IdP initiate/
// callback.
package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyFilename = "private_key.pem"
	publicKeyFilename  = "public_key.pem"
	keyBits            = 2048
)

// KeyPair holds the server's RSA signing key and its derived JWKS `kid`,
// loaded or generated under CERTIFICATION_DIR (spec §4.5, teacher's
// auth/certificates pattern carried over from original_source's
// auth_n/certificates/mod.rs).
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
	Kid     string
}

// LoadOrCreateKeyPair reads private_key.pem from dir and derives the
// public key and kid from it, first generating and persisting a fresh
// 2048-bit keypair (private_key.pem and public_key.pem) when
// private_key.pem does not exist. public_key.pem is never read back.
func LoadOrCreateKeyPair(dir string) (*KeyPair, error) {
	privPath := filepath.Join(dir, privateKeyFilename)
	pubPath := filepath.Join(dir, publicKeyFilename)

	if _, err := os.Stat(privPath); os.IsNotExist(err) {
		if err := generateAndPersist(dir, privPath, pubPath); err != nil {
			return nil, err
		}
	}

	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	priv, err := parseRSAPrivateKeyPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	kid, err := deriveKid(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{Private: priv, Public: &priv.PublicKey, Kid: kid}, nil
}

func generateAndPersist(dir, privPath, pubPath string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating certification dir: %w", err)
	}
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("generating RSA key: %w", err)
	}

	privBlock := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	if err := os.WriteFile(privPath, pem.EncodeToMemory(privBlock), 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	pubBlock := &pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)}
	if err := os.WriteFile(pubPath, pem.EncodeToMemory(pubBlock), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

func parseRSAPrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// deriveKid computes the JWKS key id as base64url(SHA-1(DER(public
// key))), per spec §4.5.
func deriveKid(pub *rsa.PublicKey) (string, error) {
	der := x509.MarshalPKCS1PublicKey(pub)
	sum := sha1.Sum(der)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
