package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"quillvault/internal/content"
	"quillvault/internal/domain"
	"quillvault/internal/domain/models"
	"quillvault/internal/kvstore"
)

// autoSaveKeyPrefix marks engine-generated version keys. Caller-supplied
// keys must not use this prefix or they become subject to eviction.
const autoSaveKeyPrefix = "autosave_"

// EngineConfig is the running configuration of one persistence engine.
type EngineConfig struct {
	Topic               string
	AutoSave            bool
	AutoSaveInterval    time.Duration
	EncryptContent      bool
	MaxAutoSaveVersions int
}

// EngineConfigPatch merges into a running configuration; nil fields are
// left unchanged.
type EngineConfigPatch struct {
	Topic               *string
	AutoSave            *bool
	AutoSaveInterval    *time.Duration
	EncryptContent      *bool
	MaxAutoSaveVersions *int
}

// Observer receives lifecycle notifications from the engine. All fields
// are optional. Callbacks run on the goroutine performing the operation;
// they must not call back into the engine.
type Observer struct {
	OnSaveStart    func(key string)
	OnSaveComplete func(key string)
	OnSaveError    func(key string, err error)
	OnLoadComplete func(key string)
}

// PersistenceEngine owns one editable document's connection to the
// key-value store: explicit save/load/list/delete, a dirty flag, and a
// debounced auto-save scheduler. Bound 1:1 to a live editor; all store
// operations are scoped to the configured topic.
type PersistenceEngine struct {
	store    kvstore.Store
	clock    Clock
	logger   *slog.Logger
	observer Observer

	mu          sync.Mutex
	cfg         EngineConfig
	editor      Editor
	initialized bool
	destroyed   bool

	// At most one of these is pending at any time. timerGen identifies
	// the current timer: a fired callback whose generation no longer
	// matches was superseded by a reschedule and must stand down.
	pendingTimer Timer
	timerGen     uint64

	dirty bool

	// changeSeq increments on every content change. A save captures the
	// sequence at issue time and clears the dirty flag only if no newer
	// change arrived while the write was in flight.
	changeSeq uint64
}

// NewPersistenceEngine creates an engine over the given store. Call
// Initialize before any other operation.
func NewPersistenceEngine(store kvstore.Store, clock Clock, logger *slog.Logger, cfg EngineConfig, obs Observer) *PersistenceEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistenceEngine{
		store:    store,
		clock:    clock,
		logger:   logger,
		observer: obs,
		cfg:      cfg,
	}
}

// Initialize binds the engine to one editor and subscribes to its change
// notifications. Calling it twice on the same engine is an error.
func (p *PersistenceEngine) Initialize(editor Editor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return domain.ErrEngineDestroyed
	}
	if p.initialized {
		return fmt.Errorf("persistence engine already initialized")
	}
	p.initialized = true
	p.editor = editor
	editor.OnChange(p.onContentChange)
	return nil
}

// onContentChange marks the session dirty and reschedules the debounce
// timer: every change clears the previous pending timer and arms a fresh
// one, so rapid typing keeps deferring the save until a quiet period.
func (p *PersistenceEngine) onContentChange() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.dirty = true
	p.changeSeq++
	if p.cfg.AutoSave {
		p.rescheduleLocked(p.cfg.AutoSaveInterval)
	}
}

// rescheduleLocked replaces the pending timer. Callers hold p.mu; this is
// the only place a timer is armed, which keeps the single-timer invariant.
// Stop cannot cancel a timer whose callback already launched, so the
// generation bump is what retires it: the stale callback sees a mismatch
// and stands down without touching the replacement.
func (p *PersistenceEngine) rescheduleLocked(d time.Duration) {
	if p.pendingTimer != nil {
		p.pendingTimer.Stop()
	}
	p.timerGen++
	gen := p.timerGen
	p.pendingTimer = p.clock.AfterFunc(d, func() { p.autoSaveFire(gen) })
}

// stopTimerLocked cancels any pending timer, including one whose callback
// is already in flight.
func (p *PersistenceEngine) stopTimerLocked() {
	if p.pendingTimer != nil {
		p.pendingTimer.Stop()
		p.pendingTimer = nil
	}
	p.timerGen++
}

// autoSaveFire runs when the debounce window closes. A failed auto-save
// is logged and swallowed; the dirty flag stays set so the next cycle
// retries. After the save the regular recurring interval resumes.
func (p *PersistenceEngine) autoSaveFire(gen uint64) {
	p.mu.Lock()
	if p.destroyed || gen != p.timerGen {
		// A content change rescheduled between this timer's expiry and
		// the callback taking the lock; the replacement timer owns the
		// next save.
		p.mu.Unlock()
		return
	}
	p.pendingTimer = nil
	shouldSave := p.dirty
	key := autoSaveKeyPrefix + strconv.FormatInt(p.clock.Now().UnixMilli(), 10)
	p.mu.Unlock()

	if shouldSave {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := p.Save(ctx, key, map[string]interface{}{"autoSave": true})
		cancel()
		if err != nil {
			p.logger.Error("auto-save failed", "key", key, "error", err)
		} else {
			p.evictOldAutoSaves(context.Background())
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-read the config: a toggle-off during the save must win.
	if p.destroyed || !p.cfg.AutoSave {
		return
	}
	// A content change during the save already armed a fresh debounce
	// timer; do not stack a second one on top of it.
	if p.pendingTimer == nil {
		p.rescheduleLocked(p.cfg.AutoSaveInterval)
	}
}

// Save serializes the current editor content plus merged metadata and
// writes it under key in the configured topic. On success the dirty flag
// is cleared unless the content changed again while the write was in
// flight.
func (p *PersistenceEngine) Save(ctx context.Context, key string, extra map[string]interface{}) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return domain.ErrEngineDestroyed
	}
	if !p.initialized {
		p.mu.Unlock()
		return fmt.Errorf("persistence engine not initialized")
	}
	editor := p.editor
	opts := kvstore.Options{Topic: p.cfg.Topic, Encrypt: p.cfg.EncryptContent}
	seq := p.changeSeq
	p.mu.Unlock()

	if p.observer.OnSaveStart != nil {
		p.observer.OnSaveStart(key)
	}

	payload, err := serializeVersion(editor, p.clock.Now(), extra)
	if err != nil {
		err = fmt.Errorf("serialize version: %w", err)
		if p.observer.OnSaveError != nil {
			p.observer.OnSaveError(key, err)
		}
		return err
	}

	if err := p.store.Set(ctx, key, payload, opts); err != nil {
		// Dirty stays set so a retry re-attempts with the same content.
		werr := &domain.StoreWriteError{Key: key, Err: err}
		if p.observer.OnSaveError != nil {
			p.observer.OnSaveError(key, werr)
		}
		return werr
	}

	p.mu.Lock()
	if p.changeSeq == seq {
		p.dirty = false
	}
	p.mu.Unlock()

	if p.observer.OnSaveComplete != nil {
		p.observer.OnSaveComplete(key)
	}
	return nil
}

// Load reads a persisted version and applies it to the bound editor,
// preferring the delta and falling back to rendered markup when no delta
// was stored. Clears the dirty flag.
func (p *PersistenceEngine) Load(ctx context.Context, key string) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return domain.ErrEngineDestroyed
	}
	if !p.initialized {
		p.mu.Unlock()
		return fmt.Errorf("persistence engine not initialized")
	}
	editor := p.editor
	opts := kvstore.Options{Topic: p.cfg.Topic, Encrypt: p.cfg.EncryptContent}
	p.mu.Unlock()

	raw, err := p.store.Get(ctx, key, opts)
	if err != nil {
		return &domain.StoreReadError{Key: key, Err: err}
	}

	var version models.PersistedVersion
	if err := json.Unmarshal([]byte(raw), &version); err != nil {
		return &domain.DeserializationError{Key: key, Err: err}
	}

	if version.Delta != nil && !version.Delta.IsEmpty() {
		editor.SetContents(*version.Delta)
	} else {
		editor.SetHTML(version.HTML)
	}

	p.mu.Lock()
	p.dirty = false
	// Applying the content fired a change event that bumped changeSeq
	// and may have armed a debounce timer; a load is not an edit.
	if p.cfg.AutoSave {
		p.stopTimerLocked()
	}
	p.mu.Unlock()

	if p.observer.OnLoadComplete != nil {
		p.observer.OnLoadComplete(key)
	}
	return nil
}

// ListDocuments enumerates keys in the topic with each key's metadata for
// display. One corrupted or undecryptable entry does not fail the rest:
// its metadata is returned zero-valued.
func (p *PersistenceEngine) ListDocuments(ctx context.Context) ([]models.VersionListing, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil, domain.ErrEngineDestroyed
	}
	opts := kvstore.Options{Topic: p.cfg.Topic, Encrypt: p.cfg.EncryptContent}
	p.mu.Unlock()

	keys, err := p.store.List(ctx, opts.Topic)
	if err != nil {
		return nil, &domain.StoreReadError{Key: "", Err: err}
	}

	listings := make([]models.VersionListing, 0, len(keys))
	for _, key := range keys {
		listing := models.VersionListing{Key: key}
		raw, err := p.store.Get(ctx, key, opts)
		if err == nil {
			var version models.PersistedVersion
			if jerr := json.Unmarshal([]byte(raw), &version); jerr == nil {
				listing.Metadata = version.Metadata
			} else {
				p.logger.Warn("skipping undecodable entry in listing", "key", key, "error", jerr)
			}
		} else {
			p.logger.Warn("skipping unreadable entry in listing", "key", key, "error", err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// DeleteDocument removes one key from the topic.
func (p *PersistenceEngine) DeleteDocument(ctx context.Context, key string) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return domain.ErrEngineDestroyed
	}
	topic := p.cfg.Topic
	p.mu.Unlock()

	if err := p.store.Delete(ctx, key, topic); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return &domain.NotFoundError{Message: fmt.Sprintf("document %q not found", key)}
		}
		return &domain.StoreWriteError{Key: key, Err: err}
	}
	return nil
}

// HasUnsavedChanges reports the dirty flag.
func (p *PersistenceEngine) HasUnsavedChanges() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// Config returns a copy of the running configuration.
func (p *PersistenceEngine) Config() EngineConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// UpdateConfig merges a patch into the running configuration. Changing
// the interval while auto-save is on restarts the scheduler with the new
// interval; toggling auto-save off cancels any pending timer.
func (p *PersistenceEngine) UpdateConfig(patch EngineConfigPatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}

	prevInterval := p.cfg.AutoSaveInterval
	prevAutoSave := p.cfg.AutoSave

	if patch.Topic != nil {
		p.cfg.Topic = *patch.Topic
	}
	if patch.AutoSave != nil {
		p.cfg.AutoSave = *patch.AutoSave
	}
	if patch.AutoSaveInterval != nil {
		p.cfg.AutoSaveInterval = *patch.AutoSaveInterval
	}
	if patch.EncryptContent != nil {
		p.cfg.EncryptContent = *patch.EncryptContent
	}
	if patch.MaxAutoSaveVersions != nil {
		p.cfg.MaxAutoSaveVersions = *patch.MaxAutoSaveVersions
	}

	switch {
	case prevAutoSave && !p.cfg.AutoSave:
		p.stopTimerLocked()
	case p.cfg.AutoSave && !prevAutoSave:
		p.rescheduleLocked(p.cfg.AutoSaveInterval)
	case p.cfg.AutoSave && p.cfg.AutoSaveInterval != prevInterval && p.pendingTimer != nil:
		p.rescheduleLocked(p.cfg.AutoSaveInterval)
	}
}

// Destroy cancels any pending timer and detaches from the editor. All
// operations after Destroy return ErrEngineDestroyed.
func (p *PersistenceEngine) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.stopTimerLocked()
	p.editor = nil
}

// evictOldAutoSaves enforces the auto-save retention cap: the newest
// MaxAutoSaveVersions auto-save keys survive, older ones are deleted.
// Best-effort; failures are logged and do not surface.
func (p *PersistenceEngine) evictOldAutoSaves(ctx context.Context) {
	p.mu.Lock()
	max := p.cfg.MaxAutoSaveVersions
	topic := p.cfg.Topic
	p.mu.Unlock()
	if max <= 0 {
		return
	}

	keys, err := p.store.List(ctx, topic)
	if err != nil {
		p.logger.Warn("auto-save eviction: listing failed", "error", err)
		return
	}

	type stamped struct {
		key string
		ts  int64
	}
	var autoSaves []stamped
	for _, key := range keys {
		suffix, ok := strings.CutPrefix(key, autoSaveKeyPrefix)
		if !ok {
			continue
		}
		ts, perr := strconv.ParseInt(suffix, 10, 64)
		if perr != nil {
			continue
		}
		autoSaves = append(autoSaves, stamped{key: key, ts: ts})
	}
	if len(autoSaves) <= max {
		return
	}

	sort.Slice(autoSaves, func(i, j int) bool { return autoSaves[i].ts > autoSaves[j].ts })
	for _, old := range autoSaves[max:] {
		if derr := p.store.Delete(ctx, old.key, topic); derr != nil {
			p.logger.Warn("auto-save eviction: delete failed", "key", old.key, "error", derr)
		}
	}
}

// serializeVersion builds the persisted wire format from the editor's
// current content.
func serializeVersion(editor Editor, now time.Time, extra map[string]interface{}) (string, error) {
	delta := editor.Contents()
	plain := editor.PlainText()

	version := models.PersistedVersion{
		PlainText: plain,
		HTML:      editor.HTML(),
		Metadata: models.VersionMetadata{
			SavedAt:        now,
			WordCount:      content.CountWords(plain),
			CharacterCount: content.CountChars(plain),
			Extra:          extra,
		},
	}
	if !delta.IsEmpty() {
		version.Delta = &delta
	}

	data, err := json.Marshal(version)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
