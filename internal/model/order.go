package model

import (
	"time"

	"github.com/google/uuid"
)

// Order represents a purchase claim submitted by a buyer.
type Order struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	SerialNo          string         `json:"serialNo" db:"serial_no"`
	SequenceNo        int64          `json:"sequenceNo" db:"sequence_no"`
	BuyerUsername     string         `json:"buyerUsername" db:"buyer_username"`
	BuyerEmail        string         `json:"buyerEmail" db:"buyer_email"`
	Products          []OrderProduct `json:"products" db:"products"`
	TotalAmount       float64        `json:"totalAmount" db:"total_amount"`
	ReferenceNo       string         `json:"referenceNo" db:"reference_no"`
	PaymentPortalUsed string         `json:"paymentPortalUsed" db:"payment_portal_used"`
	PaymentDetailUsed string         `json:"paymentDetailUsed" db:"payment_detail_used"`
	StatusTags        string         `json:"statusTags" db:"status_tags"`
	CreatedAt         time.Time      `json:"createdAt" db:"created_at"`
}

// SubmitOrderRequest represents the request payload for submitting an order.
type SubmitOrderRequest struct {
	Username          string         `json:"username"`
	Email             string         `json:"email"`
	Products          []OrderProduct `json:"products"`
	TotalAmount       float64        `json:"totalAmount"`
	ReferenceNo       string         `json:"referenceNo"`
	Channel           string         `json:"channel"`
	PaymentPortalUsed string         `json:"paymentPortalUsed"`
	PaymentDetailUsed string         `json:"paymentDetailUsed"`
}

// SubmitOrderResponse reports the outcome of a submission, including the
// per-recipient notification email outcome.
type SubmitOrderResponse struct {
	SerialNo    string    `json:"serialNo"`
	SequenceNo  int64     `json:"sequenceNo"`
	CreatedAt   time.Time `json:"createdAt"`
	EmailStatus string    `json:"emailStatus"`
}

// CheckoutResponse reports the serial assigned to a gateway-channel order
// together with the hosted checkout URL the buyer is redirected to.
type CheckoutResponse struct {
	SerialNo    string `json:"serialNo"`
	CheckoutURL string `json:"checkoutUrl"`
}

// ReviewRequest represents an admin review decision for an order.
// DeliveryLinks overrides the catalog lookup per normalised product name.
type ReviewRequest struct {
	Action        string            `json:"action"`
	DeliveryLinks map[string]string `json:"deliveryLinks,omitempty"`
}

// ReviewResponse reports the resulting derived status after a review.
type ReviewResponse struct {
	SerialNo string `json:"serialNo"`
	Status   string `json:"status"`
}

// RedeemRequest represents a download redemption attempt.
type RedeemRequest struct {
	Token       string `json:"token"`
	ProductName string `json:"productName"`
}

// RedeemResponse carries the resolved download link and the entitlement
// snapshot after the redemption was counted.
type RedeemResponse struct {
	RedirectURL string       `json:"redirectUrl"`
	Entitlement *Entitlement `json:"entitlement"`
}

// DeliveryResponse is the access-link landing payload: the purchased items
// and the buyer's current entitlement.
type DeliveryResponse struct {
	SerialNo    string         `json:"serialNo"`
	Status      string         `json:"status"`
	Products    []OrderProduct `json:"products"`
	Entitlement *Entitlement   `json:"entitlement"`
}
