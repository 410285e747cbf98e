package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"digi-merch/internal/model"
	"digi-merch/internal/service"

	"github.com/rs/zerolog"
)

// AdminHandler handles the review inbox HTTP requests.
type AdminHandler struct {
	orders  service.OrderService
	reviews service.ReviewService
	logger  zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(orders service.OrderService, reviews service.ReviewService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		orders:  orders,
		reviews: reviews,
		logger:  logger.With().Str("handler", "admin").Logger(),
	}
}

// List handles GET /api/admin/orders requests. Supports limit, offset and
// status (pending/approved/rejected) query parameters.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidationFailed, "method not allowed", h.logger)
		return
	}

	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	orders, err := h.orders.List(r.Context(), limit, offset, r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetBySerial handles GET /api/admin/orders/{serial} requests.
func (h *AdminHandler) GetBySerial(w http.ResponseWriter, r *http.Request) {
	serialNo := h.serialFromPath(r.URL.Path)
	if serialNo == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidationFailed, "serial number is required", h.logger)
		return
	}

	order, err := h.orders.GetBySerial(r.Context(), serialNo)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, model.ErrCodeOrderNotFound, "order not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Review handles POST /api/admin/orders/{serial}/review requests.
func (h *AdminHandler) Review(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidationFailed, "method not allowed", h.logger)
		return
	}

	serialNo := h.serialFromPath(strings.TrimSuffix(r.URL.Path, "/review"))
	if serialNo == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidationFailed, "serial number is required", h.logger)
		return
	}

	var req model.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	resp, err := h.reviews.Review(r.Context(), serialNo, &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Archive handles POST /api/admin/orders/{serial}/archive requests.
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeValidationFailed, "method not allowed", h.logger)
		return
	}

	serialNo := h.serialFromPath(strings.TrimSuffix(r.URL.Path, "/archive"))
	if serialNo == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidationFailed, "serial number is required", h.logger)
		return
	}

	if err := h.reviews.Archive(r.Context(), serialNo); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"serialNo": serialNo,
		"archived": "true",
	})
}

// serialFromPath extracts the serial number segment from an admin order
// path such as /api/admin/orders/DMERCH-2025AUG24-001.
func (h *AdminHandler) serialFromPath(path string) string {
	serialNo := strings.TrimPrefix(path, "/api/admin/orders/")
	serialNo = strings.Trim(serialNo, "/")
	if strings.Contains(serialNo, "/") {
		return ""
	}
	return serialNo
}
