package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/rs/zerolog"
)

// SignaturePrefix is the mandatory algorithm prefix of a signature header
const SignaturePrefix = "sha256="

// SecretProvider looks up the shared secret of a provider
type SecretProvider interface {
	Secret(provider string) (string, bool)
}

// SignatureValidator verifies HMAC-SHA256 webhook signatures
type SignatureValidator struct {
	secrets SecretProvider
	logger  zerolog.Logger
}

// NewSignatureValidator creates a validator backed by the given secrets
func NewSignatureValidator(secrets SecretProvider) *SignatureValidator {
	return &SignatureValidator{
		secrets: secrets,
		logger:  logging.NewLogger("signature"),
	}
}

// Validate reports whether signature is "sha256=" + hex(HMAC-SHA256(secret, rawBody))
// for the provider's secret. rawBody must be the body exactly as received.
func (sv *SignatureValidator) Validate(provider string, rawBody []byte, signature string) bool {
	secret, ok := sv.secrets.Secret(provider)
	if !ok {
		sv.reject(provider, "unknown provider")
		return false
	}

	if !strings.HasPrefix(signature, SignaturePrefix) {
		sv.reject(provider, "missing sha256= prefix")
		return false
	}

	given, err := hex.DecodeString(signature[len(SignaturePrefix):])
	if err != nil {
		sv.reject(provider, "malformed hex digest")
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)

	// hmac.Equal is constant time over the decoded bytes
	if !hmac.Equal(given, mac.Sum(nil)) {
		sv.reject(provider, "digest mismatch")
		return false
	}

	sv.logger.Debug().Str("provider", provider).Msg("signature accepted")
	return true
}

func (sv *SignatureValidator) reject(provider, reason string) {
	sv.logger.Debug().Str("provider", provider).Str("reason", reason).Msg("signature rejected")
}

// Sign returns the signature header value for body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
