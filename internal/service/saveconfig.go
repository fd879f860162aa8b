package service

import (
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"quillvault/internal/config"
	"quillvault/internal/domain"
	"quillvault/internal/domain/models"
)

// ValidConfig is a SaveConfiguration that passed validation. Downstream
// components (cost estimation, persistence, tokenization) accept only
// this wrapper, so an unvalidated configuration cannot reach them by
// accident.
type ValidConfig struct {
	models.SaveConfiguration
}

// ValidateSaveConfig checks a save configuration against the structural
// rules and returns every violation at once; callers can present the full
// list instead of fixing errors one at a time. Pure: no I/O, order of
// rules does not matter.
func ValidateSaveConfig(cfg models.SaveConfiguration, now time.Time) (ValidConfig, error) {
	var violations domain.ValidationErrors

	violations = append(violations, structuralViolations(cfg)...)
	violations = append(violations, unlockViolations(cfg.Unlock, now)...)
	violations = append(violations, monetizationViolations(cfg.Monetization)...)

	if len(violations) > 0 {
		// Stable order keeps API responses deterministic.
		sort.Slice(violations, func(i, j int) bool {
			if violations[i].Field != violations[j].Field {
				return violations[i].Field < violations[j].Field
			}
			return violations[i].Code < violations[j].Code
		})
		return ValidConfig{}, violations
	}
	return ValidConfig{SaveConfiguration: cfg}, nil
}

// structuralViolations covers the enum and metadata fields via ozzo field
// rules, translated into coded violations.
func structuralViolations(cfg models.SaveConfiguration) []domain.ValidationError {
	var out []domain.ValidationError

	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.StorageMethod,
			validation.Required,
			validation.In(models.StorageDirect, models.StorageIPFS, models.StorageHybrid),
		),
	)
	if fieldErrs, ok := err.(validation.Errors); ok {
		// ozzo keys errors by the field's json tag.
		if _, bad := fieldErrs["storage_method"]; bad {
			out = append(out, domain.ValidationError{
				Code:    domain.CodeInvalidStorageMethod,
				Field:   "storage_method",
				Message: fmt.Sprintf("must be one of direct, ipfs, hybrid; got %q", cfg.StorageMethod),
			})
		}
	}

	metaErr := validation.ValidateStruct(&cfg.Metadata,
		validation.Field(&cfg.Metadata.Title,
			validation.Required,
			validation.Length(1, config.MaxTitleLength),
		),
		validation.Field(&cfg.Metadata.Description,
			validation.Length(0, config.MaxDescriptionLength),
		),
		validation.Field(&cfg.Metadata.Tags,
			validation.Length(0, config.MaxTags),
		),
	)
	if fieldErrs, ok := metaErr.(validation.Errors); ok {
		for _, field := range sortedKeys(fieldErrs) {
			out = append(out, domain.ValidationError{
				Code:    domain.CodeInvalidMetadata,
				Field:   "metadata." + field,
				Message: fieldErrs[field].Error(),
			})
		}
	}

	if cfg.Encryption {
		switch cfg.EncryptionMethod {
		case models.EncryptionPassword, models.EncryptionMultiparty, models.EncryptionTimelock:
		default:
			out = append(out, domain.ValidationError{
				Code:    domain.CodeInvalidEncryptionMethod,
				Field:   "encryption_method",
				Message: fmt.Sprintf("must be one of password, multiparty, timelock; got %q", cfg.EncryptionMethod),
			})
		}
	}

	return out
}

func unlockViolations(u models.UnlockCondition, now time.Time) []domain.ValidationError {
	var out []domain.ValidationError

	switch u.Kind {
	case models.UnlockImmediate, models.UnlockTimed, models.UnlockPriced,
		models.UnlockTieredPriced, models.UnlockTimedAndPriced:
	default:
		out = append(out, domain.ValidationError{
			Code:    domain.CodeInvalidMetadata,
			Field:   "unlock_condition.kind",
			Message: fmt.Sprintf("unknown unlock kind %q", u.Kind),
		})
		return out
	}

	if u.Timed() {
		if u.UnlockAt == nil {
			out = append(out, domain.ValidationError{
				Code:    domain.CodeUnlockTimeNotInFuture,
				Field:   "unlock_condition.unlock_at",
				Message: "unlock time is required",
			})
		} else if !u.UnlockAt.After(now) {
			out = append(out, domain.ValidationError{
				Code:    domain.CodeUnlockTimeNotInFuture,
				Field:   "unlock_condition.unlock_at",
				Message: "unlock time must be in the future",
			})
		}
	}

	switch u.Kind {
	case models.UnlockPriced, models.UnlockTimedAndPriced:
		if u.Kind == models.UnlockTimedAndPriced && u.Price == nil && u.FullPrice != nil {
			// Timed-and-priced may carry a tiered payload instead of a
			// flat price.
			out = append(out, priceViolations(map[string]*models.Money{
				"unlock_condition.preview_price": u.PreviewPrice,
				"unlock_condition.full_price":    u.FullPrice,
			})...)
			out = append(out, previewLengthViolations(u.PreviewLength)...)
		} else {
			out = append(out, priceViolations(map[string]*models.Money{
				"unlock_condition.price": u.Price,
			})...)
		}
	case models.UnlockTieredPriced:
		out = append(out, priceViolations(map[string]*models.Money{
			"unlock_condition.preview_price": u.PreviewPrice,
			"unlock_condition.full_price":    u.FullPrice,
		})...)
		out = append(out, previewLengthViolations(u.PreviewLength)...)
	}

	return out
}

// priceViolations requires every named price field to be present and
// strictly positive.
func priceViolations(fields map[string]*models.Money) []domain.ValidationError {
	var out []domain.ValidationError
	for _, field := range sortedPtrKeys(fields) {
		p := fields[field]
		if p == nil || *p <= 0 {
			out = append(out, domain.ValidationError{
				Code:    domain.CodeInvalidPrice,
				Field:   field,
				Message: "price must be greater than zero",
			})
		}
	}
	return out
}

func previewLengthViolations(length int) []domain.ValidationError {
	if length >= config.MinPreviewLength && length <= config.MaxPreviewLength {
		return nil
	}
	return []domain.ValidationError{{
		Code:  domain.CodeInvalidPreviewLength,
		Field: "unlock_condition.preview_length",
		Message: fmt.Sprintf("preview length must be between %d and %d characters",
			config.MinPreviewLength, config.MaxPreviewLength),
	}}
}

func monetizationViolations(m models.Monetization) []domain.ValidationError {
	if !m.EnableNFT {
		return nil
	}
	var out []domain.ValidationError

	if m.RoyaltyPercentage != nil {
		if *m.RoyaltyPercentage < 0 || *m.RoyaltyPercentage > config.MaxRoyaltyPercentage {
			out = append(out, domain.ValidationError{
				Code:  domain.CodeInvalidMonetizationTerms,
				Field: "monetization.royalty_percentage",
				Message: fmt.Sprintf("royalty must be between 0 and %d percent",
					config.MaxRoyaltyPercentage),
			})
		}
	}
	if m.InitialPrice != nil && *m.InitialPrice < 0 {
		out = append(out, domain.ValidationError{
			Code:    domain.CodeInvalidMonetizationTerms,
			Field:   "monetization.initial_price",
			Message: "initial price cannot be negative",
		})
	}
	if m.MaxSupply != nil {
		if *m.MaxSupply < 1 || *m.MaxSupply > config.MaxSupplyCeiling {
			out = append(out, domain.ValidationError{
				Code:  domain.CodeInvalidMonetizationTerms,
				Field: "monetization.max_supply",
				Message: fmt.Sprintf("max supply must be between 1 and %d",
					config.MaxSupplyCeiling),
			})
		}
	}

	return out
}

func sortedKeys(m validation.Errors) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPtrKeys(m map[string]*models.Money) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
