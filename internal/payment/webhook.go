package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventPaymentPaid is the only webhook event type the core reacts to.
const EventPaymentPaid = "checkout_session.payment.paid"

// WebhookEvent is the parsed payment confirmation. Metadata carries the
// correlation keys set at checkout creation.
type WebhookEvent struct {
	Type          string
	SerialNo      string
	ReferenceNo   string
	CustomerEmail string
	BillingName   string
}

// ParseWebhook decodes the gateway's event envelope into the fields the
// core needs. Unknown event types parse fine; the caller filters on Type.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var envelope struct {
		Data struct {
			Attributes struct {
				Type string `json:"type"`
				Data struct {
					Attributes struct {
						Metadata map[string]string `json:"metadata"`
						Billing  struct {
							Name  string `json:"name"`
							Email string `json:"email"`
						} `json:"billing"`
						CustomerEmail string `json:"customer_email"`
						ReferenceNo   string `json:"reference_number"`
					} `json:"attributes"`
				} `json:"data"`
			} `json:"attributes"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}

	attrs := envelope.Data.Attributes.Data.Attributes

	event := &WebhookEvent{
		Type:          envelope.Data.Attributes.Type,
		SerialNo:      attrs.Metadata["serial_no"],
		ReferenceNo:   attrs.ReferenceNo,
		CustomerEmail: attrs.CustomerEmail,
		BillingName:   attrs.Billing.Name,
	}
	if event.ReferenceNo == "" {
		event.ReferenceNo = attrs.Metadata["reference_no"]
	}
	if event.CustomerEmail == "" {
		event.CustomerEmail = attrs.Billing.Email
	}

	return event, nil
}

// ComputeSignature computes the hex HMAC-SHA256 the gateway sends in its
// signature header.
func ComputeSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the header signature against the payload in
// constant time. An empty header fails closed.
func VerifySignature(secret, header string, payload []byte) bool {
	if header == "" {
		return false
	}
	expected, err := hex.DecodeString(ComputeSignature(secret, payload))
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
