package cryptography

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// HMACKey an interface for hashing to hmac-sha256
type HMACKey interface {
	// HMACSha256 does the appropriate hashing
	HMACSha256(payload []byte) ([]byte, error)
}

// HMACHasher is an in process signer implementation for HMACKey
type HMACHasher struct {
	secret []byte
}

// NewHMACHasher creates a new HMACKey for hashing
func NewHMACHasher(secret []byte) HMACKey {
	hasher := HMACHasher{secret}
	return &hasher
}

// HMACSha256 hashes using an in process secret
func (hmh *HMACHasher) HMACSha256(payload []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, hmh.secret)
	len, err := mac.Write(payload)
	if err != nil {
		return []byte{}, err
	}
	if len == 0 {
		return []byte{}, errors.New("no bytes written in HMACSha256 Hash")
	}
	return mac.Sum(nil), nil
}

// WebhookSecret is a shared secret used to sign and verify webhook payloads
type WebhookSecret struct {
	key HMACKey
}

// NewWebhookSecret creates a WebhookSecret from the shared secret string
func NewWebhookSecret(secret string) WebhookSecret {
	return WebhookSecret{key: NewHMACHasher([]byte(secret))}
}

// Sign produces the lowercase hex encoded hmac-sha256 signature of body
func (ws WebhookSecret) Sign(body []byte) (string, error) {
	mac, err := ws.key.HMACSha256(body)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac), nil
}

// Verify checks the provided hex signature against the signature of body.
// Comparison happens in constant time, an empty or malformed signature never verifies.
func (ws WebhookSecret) Verify(body []byte, signature string) bool {
	if len(signature) == 0 {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	expected, err := ws.key.HMACSha256(body)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, provided) == 1
}
