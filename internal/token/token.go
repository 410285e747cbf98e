// Package token issues and verifies the delivery token: a compact signed
// credential binding a buyer email to an order serial. Tokens carry no
// expiry; revocation happens by the order leaving approved status.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"digi-merch/internal/model"
)

// Payload is the signed claim set.
type Payload struct {
	Email    string `json:"email"`
	SerialNo string `json:"serialNo"`
}

// Service signs and verifies delivery tokens with a server-held symmetric
// secret. Rotating the secret invalidates every outstanding token.
type Service struct {
	secret []byte
}

// NewService creates a token service around the shared secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Issue signs the payload into the wire form
// base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(secret, encoded)).
func (s *Service) Issue(payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + s.sign(encoded), nil
}

// Verify checks the signature and decodes the payload. The signature is
// compared in constant time before any decoding happens; malformed input,
// a bad signature, or undecodable payload all yield ErrInvalidToken.
func (s *Service) Verify(tok string) (*Payload, error) {
	encoded, signature, found := strings.Cut(tok, ".")
	if !found || encoded == "" || signature == "" {
		return nil, model.ErrInvalidToken
	}

	expected := s.sign(encoded)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, model.ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, model.ErrInvalidToken
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, model.ErrInvalidToken
	}
	return &payload, nil
}

func (s *Service) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
