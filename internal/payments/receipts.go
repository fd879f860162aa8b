// Package payments holds the narrow payment-receipt abstraction the
// access gate consumes. Provider-specific webhook and session handling
// lives outside this repository; collaborators record receipts here and
// the gate looks them up.
package payments

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"quillvault/internal/domain"
	"quillvault/internal/domain/models"
)

// ReceiptStore is an in-memory arena of payment receipts with explicit
// now-based eviction: expired receipts are swept on each access rather
// than by a background goroutine.
type ReceiptStore struct {
	ttl time.Duration

	mu       sync.Mutex
	receipts map[string]models.PaymentReceipt // by receipt ID
}

// NewReceiptStore creates an empty store. Receipts older than ttl stop
// being presentable to the gate.
func NewReceiptStore(ttl time.Duration) *ReceiptStore {
	return &ReceiptStore{
		ttl:      ttl,
		receipts: make(map[string]models.PaymentReceipt),
	}
}

// Record stores a receipt for an amount paid against a document and
// returns it with its assigned ID.
func (s *ReceiptStore) Record(documentKey, payerID string, amount models.Money, now time.Time) models.PaymentReceipt {
	receipt := models.PaymentReceipt{
		ID:          uuid.NewString(),
		DocumentKey: documentKey,
		PayerID:     payerID,
		Amount:      amount,
		PaidAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	s.receipts[receipt.ID] = receipt
	return receipt
}

// Get resolves one receipt by ID.
func (s *ReceiptStore) Get(id string, now time.Time) (models.PaymentReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)

	receipt, ok := s.receipts[id]
	if !ok {
		return models.PaymentReceipt{}, &domain.NotFoundError{Message: "receipt not found"}
	}
	return receipt, nil
}

// BestFor returns the highest-amount live receipt a payer holds against a
// document, or nil if none exists. The gate compares this single receipt
// against the unlock prices.
func (s *ReceiptStore) BestFor(documentKey, payerID string, now time.Time) *models.PaymentReceipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)

	var best *models.PaymentReceipt
	for id := range s.receipts {
		receipt := s.receipts[id]
		if receipt.DocumentKey != documentKey || receipt.PayerID != payerID {
			continue
		}
		if best == nil || receipt.Amount > best.Amount {
			best = &receipt
		}
	}
	return best
}

// Len reports how many live receipts the store holds.
func (s *ReceiptStore) Len(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	return len(s.receipts)
}

func (s *ReceiptStore) evictExpiredLocked(now time.Time) {
	for id, receipt := range s.receipts {
		if now.Sub(receipt.PaidAt) > s.ttl {
			delete(s.receipts, id)
		}
	}
}
