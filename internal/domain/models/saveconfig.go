package models

import "time"

// Money is a monetary amount in USD. Pricing in this system is flat and
// small (cents), so a float is sufficient; callers must not rely on it for
// ledger arithmetic.
type Money float64

// StorageMethod selects where the document payload lands.
type StorageMethod string

const (
	StorageDirect StorageMethod = "direct"
	StorageIPFS   StorageMethod = "ipfs"
	StorageHybrid StorageMethod = "hybrid"
)

// EncryptionMethod selects how the content key is derived.
type EncryptionMethod string

const (
	EncryptionPassword   EncryptionMethod = "password"
	EncryptionMultiparty EncryptionMethod = "multiparty"
	EncryptionTimelock   EncryptionMethod = "timelock"
)

// UnlockKind tags the active variant of an UnlockCondition.
type UnlockKind string

const (
	UnlockImmediate      UnlockKind = "immediate"
	UnlockTimed          UnlockKind = "timed"
	UnlockPriced         UnlockKind = "priced"
	UnlockTieredPriced   UnlockKind = "tiered_priced"
	UnlockTimedAndPriced UnlockKind = "timed_and_priced"
)

// UnlockCondition is the policy attached to a document governing when and
// how a reader gains full access. Exactly one variant is active, selected
// by Kind; only the fields belonging to that variant are consulted.
//
// TimedAndPriced unlocks on whichever condition is satisfied first: paying
// the price unlocks early, and the document becomes free at UnlockAt.
type UnlockCondition struct {
	Kind UnlockKind `json:"kind"`

	// Timed / TimedAndPriced
	UnlockAt *time.Time `json:"unlock_at,omitempty"`

	// Priced / TimedAndPriced
	Price *Money `json:"price,omitempty"`

	// TieredPriced
	PreviewPrice  *Money `json:"preview_price,omitempty"`
	FullPrice     *Money `json:"full_price,omitempty"`
	PreviewLength int    `json:"preview_length,omitempty"`
}

// Priced reports whether the condition carries any price field.
func (u UnlockCondition) Priced() bool {
	switch u.Kind {
	case UnlockPriced, UnlockTieredPriced, UnlockTimedAndPriced:
		return true
	}
	return false
}

// Timed reports whether the condition carries an unlock timestamp.
func (u UnlockCondition) Timed() bool {
	return u.Kind == UnlockTimed || u.Kind == UnlockTimedAndPriced
}

// Monetization captures the NFT terms of a save configuration.
type Monetization struct {
	EnableNFT         bool   `json:"enable_nft"`
	RoyaltyPercentage *int   `json:"royalty_percentage,omitempty"`
	InitialPrice      *Money `json:"initial_price,omitempty"`
	MaxSupply         *int   `json:"max_supply,omitempty"`
}

// ConfigMetadata is the display metadata attached to a save.
type ConfigMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// SaveConfiguration is the immutable value object describing how a
// document is to be persisted: storage method, encryption, unlock policy
// and monetization terms. It is validated as a whole before any save.
type SaveConfiguration struct {
	StorageMethod    StorageMethod    `json:"storage_method"`
	Encryption       bool             `json:"encryption"`
	EncryptionMethod EncryptionMethod `json:"encryption_method,omitempty"`
	Unlock           UnlockCondition  `json:"unlock_condition"`
	Monetization     Monetization     `json:"monetization"`
	Metadata         ConfigMetadata   `json:"metadata"`
}
