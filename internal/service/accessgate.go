package service

import (
	"log/slog"
	"time"

	"quillvault/internal/domain/models"
)

// EvaluateAccess arbitrates a reader's access to a document from its
// unlock condition, the current time and an optional payment receipt.
//
// The gate fails closed: a malformed condition (unknown kind, missing
// variant fields) yields Locked, never Unlocked. A nil receipt means no
// payment was presented.
func EvaluateAccess(cond models.UnlockCondition, now time.Time, receipt *models.PaymentReceipt, body string) models.AccessDecision {
	locked := models.AccessDecision{Level: models.AccessLocked}

	switch cond.Kind {
	case models.UnlockImmediate:
		return models.AccessDecision{Level: models.AccessUnlocked}

	case models.UnlockTimed:
		if cond.UnlockAt == nil {
			slog.Warn("unlock condition missing timestamp, failing closed")
			return locked
		}
		if !now.Before(*cond.UnlockAt) {
			return models.AccessDecision{Level: models.AccessUnlocked}
		}
		return locked

	case models.UnlockPriced:
		if cond.Price == nil {
			slog.Warn("unlock condition missing price, failing closed")
			return locked
		}
		if paid(receipt) >= *cond.Price {
			return models.AccessDecision{Level: models.AccessUnlocked}
		}
		return locked

	case models.UnlockTieredPriced:
		if cond.FullPrice == nil || cond.PreviewPrice == nil {
			slog.Warn("tiered unlock condition missing price tiers, failing closed")
			return locked
		}
		amount := paid(receipt)
		switch {
		case amount >= *cond.FullPrice:
			return models.AccessDecision{Level: models.AccessUnlocked}
		case amount >= *cond.PreviewPrice:
			return models.AccessDecision{
				Level:   models.AccessPreviewOnly,
				Preview: previewOf(body, cond.PreviewLength),
			}
		default:
			return locked
		}

	case models.UnlockTimedAndPriced:
		// Whichever condition is satisfied first wins: payment unlocks
		// early, the timestamp makes it free afterwards.
		if cond.UnlockAt != nil && !now.Before(*cond.UnlockAt) {
			return models.AccessDecision{Level: models.AccessUnlocked}
		}
		if price := flatOrFullPrice(cond); price != nil && paid(receipt) >= *price {
			return models.AccessDecision{Level: models.AccessUnlocked}
		}
		if cond.UnlockAt == nil && flatOrFullPrice(cond) == nil {
			slog.Warn("unlock condition carries neither timestamp nor price, failing closed")
		}
		return locked

	default:
		slog.Warn("unknown unlock kind, failing closed", "kind", string(cond.Kind))
		return locked
	}
}

// paid returns the presented amount, zero when no receipt was given.
func paid(receipt *models.PaymentReceipt) models.Money {
	if receipt == nil {
		return 0
	}
	return receipt.Amount
}

// flatOrFullPrice resolves the price a timed-and-priced condition unlocks
// at; a tiered payload uses its full price.
func flatOrFullPrice(cond models.UnlockCondition) *models.Money {
	if cond.Price != nil {
		return cond.Price
	}
	return cond.FullPrice
}

// previewOf truncates body to n runes. Rune-based so multi-byte scripts
// are never cut mid-character.
func previewOf(body string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(body)
	if len(runes) <= n {
		return body
	}
	return string(runes[:n])
}
