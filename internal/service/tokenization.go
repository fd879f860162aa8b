package service

import (
	"fmt"

	"quillvault/internal/config"
	"quillvault/internal/domain"
	"quillvault/internal/domain/models"
)

// BuildMintRequest maps a validated configuration with NFT monetization
// into the parameter block the chain-broadcast collaborator accepts.
//
// The monetization ranges are re-checked here even though validation
// already covered them: mint requests can be constructed outside the
// save flow, and a bad request must never leave the process.
func BuildMintRequest(documentKey string, cfg ValidConfig) (models.MintRequest, error) {
	if documentKey == "" {
		return models.MintRequest{}, domain.ValidationErrors{{
			Code:    domain.CodeInvalidMonetizationTerms,
			Field:   "document_key",
			Message: "document key is required",
		}}
	}
	if !cfg.Monetization.EnableNFT {
		return models.MintRequest{}, domain.ValidationErrors{{
			Code:    domain.CodeInvalidMonetizationTerms,
			Field:   "monetization.enable_nft",
			Message: "configuration does not enable minting",
		}}
	}

	req := models.MintRequest{
		DocumentKey:  documentKey,
		InitialPrice: 0,
		MaxSupply:    1,
	}
	if cfg.Monetization.InitialPrice != nil {
		req.InitialPrice = *cfg.Monetization.InitialPrice
	}
	if cfg.Monetization.MaxSupply != nil {
		req.MaxSupply = *cfg.Monetization.MaxSupply
	}
	if cfg.Monetization.RoyaltyPercentage != nil {
		req.RoyaltyPercentage = *cfg.Monetization.RoyaltyPercentage
	}

	var violations domain.ValidationErrors
	if req.InitialPrice < 0 {
		violations = append(violations, domain.ValidationError{
			Code:    domain.CodeInvalidMonetizationTerms,
			Field:   "monetization.initial_price",
			Message: "initial price cannot be negative",
		})
	}
	if req.MaxSupply < 1 || req.MaxSupply > config.MaxSupplyCeiling {
		violations = append(violations, domain.ValidationError{
			Code:  domain.CodeInvalidMonetizationTerms,
			Field: "monetization.max_supply",
			Message: fmt.Sprintf("max supply must be between 1 and %d",
				config.MaxSupplyCeiling),
		})
	}
	if req.RoyaltyPercentage < 0 || req.RoyaltyPercentage > config.MaxRoyaltyPercentage {
		violations = append(violations, domain.ValidationError{
			Code:  domain.CodeInvalidMonetizationTerms,
			Field: "monetization.royalty_percentage",
			Message: fmt.Sprintf("royalty must be between 0 and %d percent",
				config.MaxRoyaltyPercentage),
		})
	}
	if len(violations) > 0 {
		return models.MintRequest{}, violations
	}

	return req, nil
}
