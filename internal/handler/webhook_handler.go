package handler

import (
	"errors"
	"io"
	"net/http"

	"digi-merch/internal/model"
	"digi-merch/internal/payment"
	"digi-merch/internal/service"

	"github.com/rs/zerolog"
)

// maxWebhookBody caps how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment gateway callbacks.
type WebhookHandler struct {
	reviews       service.ReviewService
	webhookSecret string
	logger        zerolog.Logger
}

// NewWebhookHandler creates a new payment webhook handler.
func NewWebhookHandler(reviews service.ReviewService, webhookSecret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		reviews:       reviews,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("handler", "webhook").Logger(),
	}
}

// HandlePayment handles POST /api/webhooks/payment requests. The gateway
// retries on non-2xx, so only genuinely retryable failures return one.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidationFailed, "method not allowed", h.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "failed to read request body", h.logger)
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !payment.VerifySignature(h.webhookSecret, signature, body) {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("webhook signature verification failed")
		writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "invalid webhook signature", h.logger)
		return
	}

	event, err := payment.ParseWebhook(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid webhook payload", h.logger)
		return
	}

	if err := h.reviews.FulfillPayment(r.Context(), event); err != nil {
		// Unknown serials are acknowledged: retrying will never resolve them.
		var domainErr *model.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == model.ErrCodeOrderNotFound {
			h.logger.Warn().Str("serial_no", event.SerialNo).Msg("webhook for unknown order acknowledged")
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
