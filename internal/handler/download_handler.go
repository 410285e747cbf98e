package handler

import (
	"encoding/json"
	"net/http"

	"digi-merch/internal/model"
	"digi-merch/internal/service"

	"github.com/rs/zerolog"
)

// DownloadHandler serves the emailed access-link landing payload and the
// per-product download redemption.
type DownloadHandler struct {
	redemptions service.RedemptionService
	logger      zerolog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(redemptions service.RedemptionService, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{
		redemptions: redemptions,
		logger:      logger.With().Str("handler", "download").Logger(),
	}
}

// Delivery handles GET /api/delivery?access=<token> requests: the landing
// view the buyer reaches from the access-link email.
func (h *DownloadHandler) Delivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidationFailed, "method not allowed", h.logger)
		return
	}

	tok := r.URL.Query().Get("access")
	if tok == "" {
		writeError(w, http.StatusUnauthorized, model.ErrCodeInvalidToken, "access token is required", h.logger)
		return
	}

	resp, err := h.redemptions.Delivery(r.Context(), tok)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Redeem handles POST /api/download requests: resolves one product's link
// and counts the download against the buyer's entitlement.
func (h *DownloadHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidationFailed, "method not allowed", h.logger)
		return
	}

	var req model.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusUnauthorized, model.ErrCodeInvalidToken, "access token is required", h.logger)
		return
	}
	if req.ProductName == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidationFailed, "productName is required", h.logger)
		return
	}

	resp, err := h.redemptions.Redeem(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
