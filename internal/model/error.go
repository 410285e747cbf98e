package model

import (
	"fmt"
	"strings"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeOrderNotApproved    = "ORDER_NOT_APPROVED"
	ErrCodeDownloadLimit       = "DOWNLOAD_LIMIT_REACHED"
	ErrCodeLinkNotConfigured   = "LINK_NOT_CONFIGURED"
	ErrCodeUnresolvedProducts  = "UNRESOLVED_PRODUCTS"
	ErrCodeSerialConflict      = "SERIAL_CONFLICT"
	ErrCodeSerialExhausted     = "SERIAL_ALLOCATION_EXHAUSTED"
	ErrCodeInvalidReviewAction = "INVALID_REVIEW_ACTION"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is a business failure carrying a machine-readable code that
// callers can branch on.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidToken      = NewDomainError(ErrCodeInvalidToken, "Delivery token is missing, malformed, or has an invalid signature")
	ErrOrderNotFound     = NewDomainError(ErrCodeOrderNotFound, "No order matches the given serial and buyer email")
	ErrProductNotFound   = NewDomainError(ErrCodeProductNotFound, "Product is not part of this order")
	ErrOrderNotApproved  = NewDomainError(ErrCodeOrderNotApproved, "Order has not been approved for delivery")
	ErrDownloadLimit     = NewDomainError(ErrCodeDownloadLimit, "Download limit reached for this buyer")
	ErrLinkNotConfigured = NewDomainError(ErrCodeLinkNotConfigured, "Download link has not been configured for this product")
	ErrSerialConflict    = NewDomainError(ErrCodeSerialConflict, "Order serial already exists")
	ErrSerialExhausted   = NewDomainError(ErrCodeSerialExhausted, "Could not allocate a unique order serial")
	ErrInvalidAction     = NewDomainError(ErrCodeInvalidReviewAction, "Review action must be approve or reject")
)

// ValidationError aggregates the exact reasons a submission was rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Reasons, "; "))
}

// NewValidationError creates a validation error from the collected reasons.
func NewValidationError(reasons []string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

// UnresolvedProductsError lists the product names approval could not
// resolve a delivery link for. Approval is all-or-nothing.
type UnresolvedProductsError struct {
	Names []string
}

func (e *UnresolvedProductsError) Error() string {
	return fmt.Sprintf("no delivery link resolved for: %s", strings.Join(e.Names, ", "))
}
