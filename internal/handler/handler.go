package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"digi-merch/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().
		Str("code", code).
		Str("error", message).
		Int("status", status).
		Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps service-layer failures onto the error taxonomy:
// validation 400, auth 401/403, missing 404, exhaustion 403, rest 500.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidationFailed, validationErr.Error(), logger)
		return
	}

	var unresolvedErr *model.UnresolvedProductsError
	if errors.As(err, &unresolvedErr) {
		writeError(w, http.StatusBadRequest, model.ErrCodeUnresolvedProducts, unresolvedErr.Error(), logger)
		return
	}

	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		writeError(w, domainErrorStatus(domainErr), domainErr.Code, domainErr.Message, logger)
		return
	}

	writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
}

func domainErrorStatus(err *model.DomainError) int {
	switch err.Code {
	case model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeOrderNotFound, model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeOrderNotApproved, model.ErrCodeDownloadLimit:
		return http.StatusForbidden
	case model.ErrCodeLinkNotConfigured, model.ErrCodeInvalidReviewAction:
		return http.StatusBadRequest
	case model.ErrCodeSerialExhausted:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
