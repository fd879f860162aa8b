package chain

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"quillvault/internal/domain/models"
)

// LoggingBroadcaster records mint requests without submitting them
// anywhere. Used when no broadcast service is configured, so the rest of
// the save flow stays exercisable in development.
type LoggingBroadcaster struct {
	logger *slog.Logger
}

// NewLoggingBroadcaster creates a broadcaster that only logs.
func NewLoggingBroadcaster(logger *slog.Logger) *LoggingBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingBroadcaster{logger: logger}
}

// Mint logs the request and returns a synthetic transaction ID.
func (b *LoggingBroadcaster) Mint(ctx context.Context, req models.MintRequest) (models.BroadcastResult, error) {
	result := models.BroadcastResult{TransactionID: "dev-" + uuid.NewString()}
	b.logger.Info("mint request accepted (logging broadcaster)",
		"document_key", req.DocumentKey,
		"initial_price", float64(req.InitialPrice),
		"max_supply", req.MaxSupply,
		"royalty_percentage", req.RoyaltyPercentage,
		"transaction_id", result.TransactionID,
	)
	return result, nil
}
