package config

import "time"

const (
	// MaxTitleLength is the maximum length for document titles. Limited
	// to 255 to provide reasonable UX (titles should be short and
	// descriptive).
	MaxTitleLength = 255

	// MaxDescriptionLength bounds the free-text description attached to
	// a save configuration.
	MaxDescriptionLength = 2000

	// MaxTags bounds how many tags one save may carry.
	MaxTags = 25

	// MinPreviewLength and MaxPreviewLength bound the preview window of
	// tiered pricing. These are policy defaults, not hard laws; the
	// bounds are enforced at validation time so a deployment can widen
	// them here without touching the validator.
	MinPreviewLength = 100
	MaxPreviewLength = 5000

	// MaxRoyaltyPercentage caps the creator royalty on minted documents.
	MaxRoyaltyPercentage = 50

	// MaxSupplyCeiling caps the mintable supply of one document.
	MaxSupplyCeiling = 10000

	// DefaultAutoSaveInterval is the debounce window between the last
	// content change and the automatic save it triggers.
	DefaultAutoSaveInterval = 30 * time.Second

	// DefaultMaxAutoSaveVersions caps retained auto-save versions per
	// topic; the oldest beyond the cap are evicted after each auto-save.
	DefaultMaxAutoSaveVersions = 5

	// DefaultSessionTTL is how long an idle editor session survives
	// before the sweep evicts it.
	DefaultSessionTTL = 2 * time.Hour

	// DefaultReceiptTTL is how long a payment receipt stays presentable
	// to the access gate.
	DefaultReceiptTTL = 24 * time.Hour
)
