package model

// Entitlement is the per-buyer download allowance derived from that buyer's
// approved orders. One row per email, upserted on every approval.
type Entitlement struct {
	Email                string `json:"email" db:"email"`
	ApprovedProductCount int    `json:"approvedProductCount" db:"approved_product_count"`
	DownloadLimit        int    `json:"downloadLimit" db:"download_limit"`
	DownloadUsed         int    `json:"downloadUsed" db:"download_used"`
	IsUnlimited          bool   `json:"isUnlimited" db:"is_unlimited"`
}

// DefaultDownloadLimit is the cap applied to buyers without unlimited status.
const DefaultDownloadLimit = 10

// UnlimitedThreshold is the number of distinct approved product names at
// which a buyer earns unlimited downloads.
const UnlimitedThreshold = 3

// Remaining returns how many downloads the buyer has left, or -1 when
// unlimited.
func (e *Entitlement) Remaining() int {
	if e.IsUnlimited {
		return -1
	}
	remaining := e.DownloadLimit - e.DownloadUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Exhausted reports whether a capped buyer has used up their allowance.
func (e *Entitlement) Exhausted() bool {
	return !e.IsUnlimited && e.DownloadUsed >= e.DownloadLimit
}
