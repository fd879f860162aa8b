package models

import "time"

// AccessLevel is the outcome of evaluating an unlock condition for a
// reader.
type AccessLevel string

const (
	AccessLocked      AccessLevel = "locked"
	AccessPreviewOnly AccessLevel = "preview_only"
	AccessUnlocked    AccessLevel = "unlocked"
)

// AccessDecision is what the gate hands back to the caller. Preview is
// populated only when Level is AccessPreviewOnly.
type AccessDecision struct {
	Level   AccessLevel `json:"level"`
	Preview string      `json:"preview,omitempty"`
}

// PaymentReceipt is the narrow abstraction this core consumes from the
// external payment provider: an amount paid against one document key.
// Provider-specific webhook and session handling stays outside.
type PaymentReceipt struct {
	ID          string    `json:"id"`
	DocumentKey string    `json:"document_key"`
	PayerID     string    `json:"payer_id"`
	Amount      Money     `json:"amount"`
	PaidAt      time.Time `json:"paid_at"`
}
