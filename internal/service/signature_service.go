package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
//
// On delivery the key is the endpoint's stored secret hash, not the raw
// secret. The raw secret is never persisted, so receivers must hash the
// secret they hold before verifying. Known wart, kept for wire compatibility
// with existing receivers.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using key.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(key string, payload string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(key, payload).
// Uses constant-time comparison to prevent timing attacks.
func (s *HMACSignatureService) Verify(key string, payload string, signature string) bool {
	expected := s.Sign(key, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
