package model

import "strings"

// OrderProduct is a line item on an order. Name is the stable join key used
// everywhere; there is no surrogate product ID.
type OrderProduct struct {
	Name          string  `json:"name"`
	Amount        float64 `json:"amount"`
	FileLink      string  `json:"fileLink,omitempty"`
	DownloadCount int     `json:"downloadCount,omitempty"`
	OS            string  `json:"os,omitempty"`
}

// NormalizeName lower-cases a product name and collapses internal whitespace
// so that names compare equal regardless of casing and spacing.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
