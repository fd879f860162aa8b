package service

import (
	"strings"
	"testing"
	"time"

	"quillvault/internal/domain/models"
)

func receiptFor(amount float64) *models.PaymentReceipt {
	return &models.PaymentReceipt{
		ID:          "r1",
		DocumentKey: "doc-1",
		PayerID:     "reader-1",
		Amount:      models.Money(amount),
	}
}

func TestGateImmediate(t *testing.T) {
	d := EvaluateAccess(models.UnlockCondition{Kind: models.UnlockImmediate}, time.Now(), nil, "body")
	if d.Level != models.AccessUnlocked {
		t.Fatalf("immediate must always unlock, got %s", d.Level)
	}
}

func TestGateTimed(t *testing.T) {
	unlockAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cond := models.UnlockCondition{Kind: models.UnlockTimed, UnlockAt: &unlockAt}

	if d := EvaluateAccess(cond, unlockAt.Add(-time.Second), nil, "body"); d.Level != models.AccessLocked {
		t.Fatalf("before unlockAt: got %s", d.Level)
	}
	if d := EvaluateAccess(cond, unlockAt, nil, "body"); d.Level != models.AccessUnlocked {
		t.Fatalf("at unlockAt: got %s", d.Level)
	}
	if d := EvaluateAccess(cond, unlockAt.Add(time.Second), nil, "body"); d.Level != models.AccessUnlocked {
		t.Fatalf("after unlockAt: got %s", d.Level)
	}
}

func TestGatePriced(t *testing.T) {
	cond := models.UnlockCondition{Kind: models.UnlockPriced, Price: money(5)}
	now := time.Now()

	if d := EvaluateAccess(cond, now, nil, "body"); d.Level != models.AccessLocked {
		t.Fatalf("no receipt: got %s", d.Level)
	}
	if d := EvaluateAccess(cond, now, receiptFor(4.99), "body"); d.Level != models.AccessLocked {
		t.Fatalf("underpaid: got %s", d.Level)
	}
	if d := EvaluateAccess(cond, now, receiptFor(5), "body"); d.Level != models.AccessUnlocked {
		t.Fatalf("exact payment: got %s", d.Level)
	}
	if d := EvaluateAccess(cond, now, receiptFor(10), "body"); d.Level != models.AccessUnlocked {
		t.Fatalf("overpaid: got %s", d.Level)
	}
}

func TestGateTieredPriced(t *testing.T) {
	body := strings.Repeat("a", 150) + strings.Repeat("b", 150)
	cond := models.UnlockCondition{
		Kind:          models.UnlockTieredPriced,
		PreviewPrice:  money(1),
		FullPrice:     money(5),
		PreviewLength: 150,
	}
	now := time.Now()

	if d := EvaluateAccess(cond, now, nil, body); d.Level != models.AccessLocked {
		t.Fatalf("no receipt: got %s", d.Level)
	}

	d := EvaluateAccess(cond, now, receiptFor(3), body)
	if d.Level != models.AccessPreviewOnly {
		t.Fatalf("receipt between tiers: got %s", d.Level)
	}
	if d.Preview != strings.Repeat("a", 150) {
		t.Fatalf("preview must be the first previewLength characters, got %d chars", len(d.Preview))
	}

	if d := EvaluateAccess(cond, now, receiptFor(5), body); d.Level != models.AccessUnlocked {
		t.Fatalf("full price: got %s", d.Level)
	}
}

func TestGatePreviewRespectsRunes(t *testing.T) {
	body := "日本語のテキストです"
	cond := models.UnlockCondition{
		Kind:          models.UnlockTieredPriced,
		PreviewPrice:  money(1),
		FullPrice:     money(5),
		PreviewLength: 3,
	}
	d := EvaluateAccess(cond, time.Now(), receiptFor(1), body)
	if d.Preview != "日本語" {
		t.Fatalf("preview must cut on rune boundaries, got %q", d.Preview)
	}
}

func TestGateTimedAndPricedIsOr(t *testing.T) {
	unlockAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cond := models.UnlockCondition{
		Kind:     models.UnlockTimedAndPriced,
		UnlockAt: &unlockAt,
		Price:    money(5),
	}

	// Before the deadline, payment alone unlocks.
	before := unlockAt.Add(-time.Second)
	if d := EvaluateAccess(cond, before, nil, "body"); d.Level != models.AccessLocked {
		t.Fatalf("T-1s, no receipt: got %s", d.Level)
	}
	if d := EvaluateAccess(cond, before, receiptFor(5), "body"); d.Level != models.AccessUnlocked {
		t.Fatalf("T-1s, paid: got %s", d.Level)
	}

	// After the deadline, time alone unlocks.
	after := unlockAt.Add(time.Second)
	if d := EvaluateAccess(cond, after, nil, "body"); d.Level != models.AccessUnlocked {
		t.Fatalf("T+1s, no receipt: got %s", d.Level)
	}
}

func TestGateFailsClosed(t *testing.T) {
	now := time.Now()
	malformed := []models.UnlockCondition{
		{Kind: "subscription"},
		{Kind: models.UnlockTimed},        // missing timestamp
		{Kind: models.UnlockPriced},       // missing price
		{Kind: models.UnlockTieredPriced}, // missing tiers
		{Kind: models.UnlockTieredPriced, FullPrice: money(5)},
		{Kind: models.UnlockTimedAndPriced}, // neither field
	}
	for i, cond := range malformed {
		if d := EvaluateAccess(cond, now, receiptFor(100), "body"); d.Level != models.AccessLocked {
			t.Fatalf("case %d: malformed condition must fail closed, got %s", i, d.Level)
		}
	}
}
