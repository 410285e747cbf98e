package token

import (
	"strings"
	"testing"

	"digi-merch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	svc := NewService("test-secret")

	payload := Payload{
		Email:    "buyer@example.com",
		SerialNo: "DMERCH-2025AUG24-001",
	}

	tok, err := svc.Issue(payload)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	assert.Contains(t, tok, ".")

	decoded, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, payload.Email, decoded.Email)
	assert.Equal(t, payload.SerialNo, decoded.SerialNo)
}

func TestVerify_TamperedPayload(t *testing.T) {
	svc := NewService("test-secret")

	tok, err := svc.Issue(Payload{Email: "buyer@example.com", SerialNo: "DMERCH-2025AUG24-001"})
	require.NoError(t, err)

	parts := strings.SplitN(tok, ".", 2)
	require.Len(t, parts, 2)

	// Swap in a different payload while keeping the original signature
	other, err := svc.Issue(Payload{Email: "attacker@example.com", SerialNo: "DMERCH-2025AUG24-001"})
	require.NoError(t, err)
	otherParts := strings.SplitN(other, ".", 2)

	tampered := otherParts[0] + "." + parts[1]
	payload, err := svc.Verify(tampered)
	assert.Nil(t, payload)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewService("secret-a")
	verifier := NewService("secret-b")

	tok, err := issuer.Issue(Payload{Email: "buyer@example.com", SerialNo: "DMERCH-2025AUG24-001"})
	require.NoError(t, err)

	payload, err := verifier.Verify(tok)
	assert.Nil(t, payload)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	svc := NewService("test-secret")

	tests := []struct {
		name string
		tok  string
	}{
		{"Empty token", ""},
		{"No separator", "abcdef"},
		{"Empty payload", ".signature"},
		{"Empty signature", "payload."},
		{"Not base64", "!!!.???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := svc.Verify(tt.tok)
			assert.Nil(t, payload)
			assert.ErrorIs(t, err, model.ErrInvalidToken)
		})
	}
}

func TestVerify_UndecodablePayloadWithValidSignature(t *testing.T) {
	svc := NewService("test-secret")

	// Sign something that is not valid base64url JSON
	encoded := "%%%not-base64%%%"
	tok := encoded + "." + svc.sign(encoded)

	payload, err := svc.Verify(tok)
	assert.Nil(t, payload)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}
