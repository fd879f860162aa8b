package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"quillvault/internal/chain"
	"quillvault/internal/content"
	"quillvault/internal/domain"
	"quillvault/internal/domain/models"
	"quillvault/internal/kvstore"
	"quillvault/internal/payments"
)

// saveConfigMetadataKey is the caller field the save configuration is
// stored under in a persisted version's metadata.
const saveConfigMetadataKey = "saveConfig"

// SaveResult is returned after a successful save.
type SaveResult struct {
	Key  string                 `json:"key"`
	Cost models.Money           `json:"cost"`
	Meta models.VersionMetadata `json:"metadata"`
}

// ReadResult is a gated view of one persisted version. Version is
// populated only when access is Unlocked; PreviewOnly carries the preview
// text in Decision.
type ReadResult struct {
	Key      string                  `json:"key"`
	Decision models.AccessDecision   `json:"access"`
	Version  *models.PersistedVersion `json:"version,omitempty"`
}

// DocumentService orchestrates the save flow (validate, price, persist,
// mint) and the reader flow (gate, preview, export) over one store topic.
type DocumentService struct {
	store       kvstore.Store
	topic       string
	encrypt     bool
	sessions    *SessionManager
	receipts    *payments.ReceiptStore
	broadcaster chain.Broadcaster
	exporter    *content.Exporter
	clock       Clock
	logger      *slog.Logger
}

// NewDocumentService wires the save and reader flows together.
func NewDocumentService(
	store kvstore.Store,
	topic string,
	encrypt bool,
	sessions *SessionManager,
	receipts *payments.ReceiptStore,
	broadcaster chain.Broadcaster,
	exporter *content.Exporter,
	clock Clock,
	logger *slog.Logger,
) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		store:       store,
		topic:       topic,
		encrypt:     encrypt,
		sessions:    sessions,
		receipts:    receipts,
		broadcaster: broadcaster,
		exporter:    exporter,
		clock:       clock,
		logger:      logger,
	}
}

// EstimateSave validates a configuration and prices the save it would
// perform. Validation failures surface as the full violation list.
func (s *DocumentService) EstimateSave(cfg models.SaveConfiguration) (models.Money, error) {
	valid, err := ValidateSaveConfig(cfg, s.clock.Now())
	if err != nil {
		return 0, err
	}
	return EstimateCost(valid), nil
}

// Save validates the configuration, persists the session's current
// content under key with the configuration embedded in the version
// metadata, and reports the charged cost.
func (s *DocumentService) Save(ctx context.Context, sessionID, key string, cfg models.SaveConfiguration) (SaveResult, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return SaveResult{}, err
	}

	now := s.clock.Now()
	valid, err := ValidateSaveConfig(cfg, now)
	if err != nil {
		return SaveResult{}, err
	}
	session.Config = &valid

	extra := map[string]interface{}{saveConfigMetadataKey: valid.SaveConfiguration}
	if err := session.Engine.Save(ctx, key, extra); err != nil {
		return SaveResult{}, err
	}

	s.logger.Info("document saved",
		"key", key,
		"user_id", session.UserID,
		"storage_method", string(valid.StorageMethod),
		"nft", valid.Monetization.EnableNFT,
	)

	return SaveResult{
		Key:  key,
		Cost: EstimateCost(valid),
		Meta: models.VersionMetadata{
			SavedAt:        now,
			WordCount:      content.CountWords(session.Editor.PlainText()),
			CharacterCount: content.CountChars(session.Editor.PlainText()),
			Extra:          extra,
		},
	}, nil
}

// Read loads one persisted version and arbitrates the reader's access
// from the stored unlock condition, the clock and the reader's best
// receipt. Locked documents return a decision with no content rather
// than an error, so callers can render a paywall.
func (s *DocumentService) Read(ctx context.Context, readerID, key string) (ReadResult, error) {
	version, err := s.fetch(ctx, key)
	if err != nil {
		return ReadResult{}, err
	}

	cfg, hasConfig := configFromMetadata(version.Metadata)
	if !hasConfig {
		// Versions saved without a configuration (auto-saves) carry no
		// unlock policy.
		return ReadResult{
			Key:      key,
			Decision: models.AccessDecision{Level: models.AccessUnlocked},
			Version:  &version,
		}, nil
	}

	receipt := s.receipts.BestFor(key, readerID, s.clock.Now())
	decision := EvaluateAccess(cfg.Unlock, s.clock.Now(), receipt, version.PlainText)

	result := ReadResult{Key: key, Decision: decision}
	if decision.Level == models.AccessUnlocked {
		result.Version = &version
	}
	return result, nil
}

// List enumerates the topic's keys with metadata for display. An entry
// that fails to read or decode is listed with empty metadata instead of
// failing the whole listing.
func (s *DocumentService) List(ctx context.Context) ([]models.VersionListing, error) {
	keys, err := s.store.List(ctx, s.topic)
	if err != nil {
		return nil, &domain.StoreReadError{Key: "", Err: err}
	}

	listings := make([]models.VersionListing, 0, len(keys))
	for _, key := range keys {
		listing := models.VersionListing{Key: key}
		if version, ferr := s.fetch(ctx, key); ferr == nil {
			listing.Metadata = version.Metadata
		} else {
			s.logger.Warn("skipping unreadable entry in listing", "key", key, "error", ferr)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// Delete removes one version from the topic.
func (s *DocumentService) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key, s.topic); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return &domain.NotFoundError{Message: "document not found"}
		}
		return &domain.StoreWriteError{Key: key, Err: err}
	}
	return nil
}

// ExportMarkdown renders one version as markdown with a frontmatter
// header. Requires full access; preview-only readers cannot export.
func (s *DocumentService) ExportMarkdown(ctx context.Context, readerID, key string) (string, error) {
	result, err := s.Read(ctx, readerID, key)
	if err != nil {
		return "", err
	}
	if result.Decision.Level != models.AccessUnlocked {
		return "", &domain.ForbiddenError{Message: "document is not unlocked for this reader"}
	}
	return s.exporter.Export(result.Version)
}

// Mint re-validates the stored configuration's monetization terms, builds
// the mint request and submits it to the chain-broadcast collaborator.
func (s *DocumentService) Mint(ctx context.Context, key string) (models.BroadcastResult, error) {
	version, err := s.fetch(ctx, key)
	if err != nil {
		return models.BroadcastResult{}, err
	}

	cfg, hasConfig := configFromMetadata(version.Metadata)
	if !hasConfig {
		return models.BroadcastResult{}, domain.ValidationErrors{{
			Code:    domain.CodeInvalidMonetizationTerms,
			Field:   "metadata",
			Message: "version carries no save configuration",
		}}
	}

	valid, err := ValidateSaveConfig(cfg, version.Metadata.SavedAt)
	if err != nil {
		return models.BroadcastResult{}, err
	}

	req, err := BuildMintRequest(key, valid)
	if err != nil {
		return models.BroadcastResult{}, err
	}
	return s.broadcaster.Mint(ctx, req)
}

// RecordPayment records a payment receipt a reader can later present to
// the gate.
func (s *DocumentService) RecordPayment(documentKey, payerID string, amount models.Money) models.PaymentReceipt {
	return s.receipts.Record(documentKey, payerID, amount, s.clock.Now())
}

// fetch reads and decodes one persisted version.
func (s *DocumentService) fetch(ctx context.Context, key string) (models.PersistedVersion, error) {
	raw, err := s.store.Get(ctx, key, kvstore.Options{Topic: s.topic, Encrypt: s.encrypt})
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return models.PersistedVersion{}, &domain.NotFoundError{Message: "document not found"}
		}
		return models.PersistedVersion{}, &domain.StoreReadError{Key: key, Err: err}
	}

	var version models.PersistedVersion
	if err := json.Unmarshal([]byte(raw), &version); err != nil {
		return models.PersistedVersion{}, &domain.DeserializationError{Key: key, Err: err}
	}
	return version, nil
}

// configFromMetadata recovers the save configuration embedded in version
// metadata. The round-trip through JSON turns the stored map back into
// the typed form.
func configFromMetadata(meta models.VersionMetadata) (models.SaveConfiguration, bool) {
	raw, ok := meta.Extra[saveConfigMetadataKey]
	if !ok {
		return models.SaveConfiguration{}, false
	}

	// The value is either the typed struct (same-process save) or a
	// generic map (decoded from the wire).
	if cfg, ok := raw.(models.SaveConfiguration); ok {
		return cfg, true
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return models.SaveConfiguration{}, false
	}
	var cfg models.SaveConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.SaveConfiguration{}, false
	}
	return cfg, true
}
