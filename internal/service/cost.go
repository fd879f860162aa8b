package service

import "quillvault/internal/domain/models"

// Save pricing is flat and additive: a fixed base fee, a surcharge for
// hybrid storage (two backends written), and a surcharge for minting.
// Content size does not factor in; deployments that need size-sensitive
// pricing can swap the constants for a policy hook.
const (
	baseSaveCost    models.Money = 0.01
	hybridSurcharge models.Money = 0.005
	nftSurcharge    models.Money = 0.01
)

// EstimateCost computes the monetary cost of saving under a validated
// configuration. Deterministic; the same flags always price the same
// regardless of metadata, unlock policy or content.
func EstimateCost(cfg ValidConfig) models.Money {
	cost := baseSaveCost
	if cfg.StorageMethod == models.StorageHybrid {
		cost += hybridSurcharge
	}
	if cfg.Monetization.EnableNFT {
		cost += nftSurcharge
	}
	return cost
}
