// Package status implements the order lifecycle ledger: an append-only,
// pipe-delimited set of free-text tags stored in a single field. The ledger
// is the only source of truth for order state; the coarse review status is
// derived from tag presence and never stored separately.
package status

import "strings"

// Derived is the coarse review status computed from the tag ledger.
type Derived string

const (
	Pending  Derived = "pending"
	Approved Derived = "approved"
	Rejected Derived = "rejected"
)

// Well-known tags. Anything else (payment provenance, email outcomes,
// archival) rides on the same field as free text.
const (
	TagPending  = "pending"
	TagApproved = "review:approved"
	TagRejected = "review:rejected"
	TagArchived = "inbox:archived"
	TagPaid     = "payment:paid"
)

// Parse splits a ledger string into its tags, trimming whitespace and
// dropping empty segments.
func Parse(ledger string) []string {
	if strings.TrimSpace(ledger) == "" {
		return nil
	}

	segments := strings.Split(ledger, "|")
	tags := make([]string, 0, len(segments))
	for _, segment := range segments {
		tag := strings.TrimSpace(segment)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// Has reports whether the ledger contains the given tag. Comparison is
// case-insensitive to match how statuses are derived.
func Has(ledger, tag string) bool {
	for _, existing := range Parse(ledger) {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// Append adds a tag to the ledger if it is not already present. The
// operation is idempotent so that duplicated writes from concurrent
// reviewers collapse to a single tag.
func Append(ledger, tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return strings.Join(Parse(ledger), " | ")
	}

	tags := Parse(ledger)
	for _, existing := range tags {
		if strings.EqualFold(existing, tag) {
			return strings.Join(tags, " | ")
		}
	}
	return strings.Join(append(tags, tag), " | ")
}

// Derive computes the review status from the ledger. Only the review tags
// participate; archival, payment, and email tags never change the result.
// An approved tag wins over a rejected one if both are somehow present.
func Derive(ledger string) Derived {
	lower := strings.ToLower(ledger)
	if strings.Contains(lower, TagApproved) {
		return Approved
	}
	if strings.Contains(lower, TagRejected) {
		return Rejected
	}
	return Pending
}
