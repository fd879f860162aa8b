package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"quillvault/internal/content"
	"quillvault/internal/domain"
	"quillvault/internal/domain/models"
	"quillvault/internal/kvstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDelta(text string) models.Delta {
	return models.Delta{Ops: []models.DeltaOp{{Insert: text + "\n"}}}
}

func newTestEngine(t *testing.T, store kvstore.Store, clock Clock, cfg EngineConfig) (*PersistenceEngine, *BufferEditor) {
	t.Helper()
	editor := NewBufferEditor(content.NewRenderer())
	engine := NewPersistenceEngine(store, clock, discardLogger(), cfg, Observer{})
	if err := engine.Initialize(editor); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return engine, editor
}

func autoSaveKeys(t *testing.T, store kvstore.Store, topic string) []string {
	t.Helper()
	keys, err := store.List(context.Background(), topic)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, autoSaveKeyPrefix) {
			out = append(out, k)
		}
	}
	return out
}

func TestInitializeTwiceFails(t *testing.T) {
	engine, _ := newTestEngine(t, kvstore.NewMemoryStore(), newFakeClock(), EngineConfig{Topic: "docs"})
	if err := engine.Initialize(NewBufferEditor(content.NewRenderer())); err == nil {
		t.Fatal("expected second Initialize to fail")
	}
}

func TestSaveClearsDirtyAndRoundTrips(t *testing.T) {
	store := kvstore.NewMemoryStore()
	clock := newFakeClock()
	engine, editor := newTestEngine(t, store, clock, EngineConfig{Topic: "docs"})

	editor.SetContents(models.Delta{Ops: []models.DeltaOp{
		{Insert: "Hello ", Attributes: map[string]interface{}{"bold": true}},
		{Insert: "world"},
		{Insert: "\n"},
	}})
	if !engine.HasUnsavedChanges() {
		t.Fatal("expected dirty after content change")
	}

	if err := engine.Save(context.Background(), "draft-1", map[string]interface{}{"label": "v1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if engine.HasUnsavedChanges() {
		t.Fatal("expected clean after save")
	}

	wantText := editor.PlainText()

	// Load into a fresh editor bound to its own engine.
	engine2, editor2 := newTestEngine(t, store, clock, EngineConfig{Topic: "docs"})
	if err := engine2.Load(context.Background(), "draft-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if editor2.PlainText() != wantText {
		t.Fatalf("plain text mismatch: got %q want %q", editor2.PlainText(), wantText)
	}
	if got, want := content.CountWords(editor2.PlainText()), content.CountWords(wantText); got != want {
		t.Fatalf("word count mismatch: got %d want %d", got, want)
	}
	if engine2.HasUnsavedChanges() {
		t.Fatal("expected clean after load")
	}
}

func TestLoadFallsBackToHTML(t *testing.T) {
	store := kvstore.NewMemoryStore()
	clock := newFakeClock()

	version := models.PersistedVersion{
		PlainText: "plain body",
		HTML:      "<p>plain body</p>",
		Metadata:  models.VersionMetadata{SavedAt: clock.Now(), WordCount: 2, CharacterCount: 10},
	}
	raw, _ := json.Marshal(version)
	if err := store.Set(context.Background(), "markup-only", string(raw), kvstore.Options{Topic: "docs"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	engine, editor := newTestEngine(t, store, clock, EngineConfig{Topic: "docs"})
	if err := engine.Load(context.Background(), "markup-only"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if editor.PlainText() != "plain body" {
		t.Fatalf("expected text recovered from markup, got %q", editor.PlainText())
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	store := kvstore.NewMemoryStore()
	store.Set(context.Background(), "bad", "{not json", kvstore.Options{Topic: "docs"})

	engine, _ := newTestEngine(t, store, newFakeClock(), EngineConfig{Topic: "docs"})
	err := engine.Load(context.Background(), "bad")
	var deserr *domain.DeserializationError
	if !errors.As(err, &deserr) {
		t.Fatalf("expected DeserializationError, got %v", err)
	}
}

// failingStore rejects every write.
type failingStore struct {
	kvstore.Store
}

func (s *failingStore) Set(ctx context.Context, key, value string, opts kvstore.Options) error {
	return fmt.Errorf("backend down")
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	store := &failingStore{Store: kvstore.NewMemoryStore()}
	engine, editor := newTestEngine(t, store, newFakeClock(), EngineConfig{Topic: "docs"})

	editor.SetContents(testDelta("unsaved"))
	err := engine.Save(context.Background(), "k", nil)
	var werr *domain.StoreWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected StoreWriteError, got %v", err)
	}
	if !engine.HasUnsavedChanges() {
		t.Fatal("dirty flag must survive a failed save")
	}
}

// reentrantStore mutates the editor while a write is in flight, modeling
// a content change racing a pending save.
type reentrantStore struct {
	kvstore.Store
	editor  *BufferEditor
	mutated bool
}

func (s *reentrantStore) Set(ctx context.Context, key, value string, opts kvstore.Options) error {
	if !s.mutated {
		s.mutated = true
		s.editor.SetContents(testDelta("changed mid-save"))
	}
	return s.Store.Set(ctx, key, value, opts)
}

func TestInFlightChangeIsNotLost(t *testing.T) {
	inner := kvstore.NewMemoryStore()
	store := &reentrantStore{Store: inner}
	engine, editor := newTestEngine(t, store, newFakeClock(), EngineConfig{Topic: "docs"})
	store.editor = editor

	editor.SetContents(testDelta("original"))
	if err := engine.Save(context.Background(), "k", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !engine.HasUnsavedChanges() {
		t.Fatal("save completion must not clear dirtiness from a newer change")
	}
}

func TestAutoSaveDebounce(t *testing.T) {
	store := kvstore.NewMemoryStore()
	clock := newFakeClock()
	interval := 30 * time.Second
	engine, editor := newTestEngine(t, store, clock, EngineConfig{
		Topic:            "docs",
		AutoSave:         true,
		AutoSaveInterval: interval,
	})
	defer engine.Destroy()

	// Rapid edits within interval/2 of each other keep deferring the
	// save.
	for i := 0; i < 5; i++ {
		if i > 0 {
			clock.Advance(interval / 2)
		}
		editor.SetContents(testDelta(fmt.Sprintf("draft %d", i)))
	}
	if n := len(autoSaveKeys(t, store, "docs")); n != 0 {
		t.Fatalf("no auto-save should fire while edits keep arriving, got %d", n)
	}

	lastEdit := clock.Now()
	clock.Advance(interval)

	keys := autoSaveKeys(t, store, "docs")
	if len(keys) != 1 {
		t.Fatalf("expected exactly 1 auto-save, got %d", len(keys))
	}
	if engine.HasUnsavedChanges() {
		t.Fatal("auto-save should clear the dirty flag")
	}

	raw, err := store.Get(context.Background(), keys[0], kvstore.Options{Topic: "docs"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var version models.PersistedVersion
	if err := json.Unmarshal([]byte(raw), &version); err != nil {
		t.Fatalf("decode auto-save: %v", err)
	}
	if !version.Metadata.SavedAt.Equal(lastEdit.Add(interval)) {
		t.Fatalf("auto-save fired at %v, want %v (interval after last edit)",
			version.Metadata.SavedAt, lastEdit.Add(interval))
	}
	if flag, _ := version.Metadata.Extra["autoSave"].(bool); !flag {
		t.Fatal("auto-save versions must be tagged autoSave")
	}
}

func TestSingleTimerInvariant(t *testing.T) {
	clock := newFakeClock()
	interval := 30 * time.Second
	engine, editor := newTestEngine(t, kvstore.NewMemoryStore(), clock, EngineConfig{
		Topic:            "docs",
		AutoSave:         true,
		AutoSaveInterval: interval,
	})
	defer engine.Destroy()

	for i := 0; i < 50; i++ {
		editor.SetContents(testDelta(fmt.Sprintf("edit %d", i)))
		if i%3 == 0 {
			newInterval := interval + time.Duration(i)*time.Second
			engine.UpdateConfig(EngineConfigPatch{AutoSaveInterval: &newInterval})
		}
		if i%7 == 0 {
			off := false
			on := true
			engine.UpdateConfig(EngineConfigPatch{AutoSave: &off})
			engine.UpdateConfig(EngineConfigPatch{AutoSave: &on})
		}
		if n := clock.PendingCount(); n > 1 {
			t.Fatalf("step %d: %d timers pending, invariant allows at most 1", i, n)
		}
	}
}

func TestTimerFireRacingContentChange(t *testing.T) {
	clock := newDeferredClock()
	store := kvstore.NewMemoryStore()
	interval := 30 * time.Second
	engine, editor := newTestEngine(t, store, clock, EngineConfig{
		Topic:            "docs",
		AutoSave:         true,
		AutoSaveInterval: interval,
	})
	defer engine.Destroy()

	// First edit arms a debounce timer, which then expires. Its callback
	// has launched but not yet run when a second edit reschedules; Stop on
	// the expired timer reports false, exactly as time.AfterFunc does.
	editor.SetContents(testDelta("first"))
	stale := clock.ExpireNext()
	if stale == nil {
		t.Fatal("expected an armed debounce timer")
	}
	editor.SetContents(testDelta("second"))
	if n := clock.Armed(); n != 1 {
		t.Fatalf("%d timers armed after reschedule, invariant allows exactly 1", n)
	}

	// The superseded callback must stand down: no save, no extra timer,
	// and the replacement timer stays armed.
	stale()
	if n := clock.Armed(); n != 1 {
		t.Fatalf("%d timers armed after a fire raced a reschedule, invariant allows exactly 1", n)
	}
	if keys := autoSaveKeys(t, store, "docs"); len(keys) != 0 {
		t.Fatalf("superseded timer must not save, found %v", keys)
	}

	// The replacement timer performs the save at its own deadline.
	live := clock.ExpireNext()
	if live == nil {
		t.Fatal("expected the replacement timer to be armed")
	}
	live()
	keys := autoSaveKeys(t, store, "docs")
	if len(keys) != 1 {
		t.Fatalf("expected exactly one auto-save, got %v", keys)
	}
	if engine.HasUnsavedChanges() {
		t.Fatal("expected clean after the replacement timer saved")
	}
}

func TestAutoSaveFailureRetriesNextCycle(t *testing.T) {
	store := &failingStore{Store: kvstore.NewMemoryStore()}
	clock := newFakeClock()
	interval := 10 * time.Second
	engine, editor := newTestEngine(t, store, clock, EngineConfig{
		Topic:            "docs",
		AutoSave:         true,
		AutoSaveInterval: interval,
	})
	defer engine.Destroy()

	editor.SetContents(testDelta("doomed"))
	clock.Advance(interval)

	if !engine.HasUnsavedChanges() {
		t.Fatal("failed auto-save must leave the dirty flag set")
	}
	if clock.PendingCount() != 1 {
		t.Fatal("scheduler must rearm after a failed auto-save")
	}
}

func TestAutoSaveEviction(t *testing.T) {
	store := kvstore.NewMemoryStore()
	clock := newFakeClock()
	interval := 10 * time.Second
	engine, editor := newTestEngine(t, store, clock, EngineConfig{
		Topic:               "docs",
		AutoSave:            true,
		AutoSaveInterval:    interval,
		MaxAutoSaveVersions: 2,
	})
	defer engine.Destroy()

	for i := 0; i < 4; i++ {
		editor.SetContents(testDelta(fmt.Sprintf("rev %d", i)))
		clock.Advance(interval)
	}

	keys := autoSaveKeys(t, store, "docs")
	if len(keys) != 2 {
		t.Fatalf("retention cap is 2, got %d auto-saves", len(keys))
	}
	// Survivors must be the two newest.
	latest := autoSaveKeyPrefix + fmt.Sprint(clock.Now().UnixMilli())
	found := false
	for _, k := range keys {
		if k == latest {
			found = true
		}
	}
	if !found {
		t.Fatalf("newest auto-save %s missing from survivors %v", latest, keys)
	}
}

func TestListToleratesCorruptEntry(t *testing.T) {
	store := kvstore.NewMemoryStore()
	clock := newFakeClock()
	engine, editor := newTestEngine(t, store, clock, EngineConfig{Topic: "docs"})

	editor.SetContents(testDelta("good"))
	if err := engine.Save(context.Background(), "good-1", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	store.Set(context.Background(), "corrupt", "%%% not json", kvstore.Options{Topic: "docs"})

	listings, err := engine.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected both entries listed, got %d", len(listings))
	}
	byKey := map[string]models.VersionListing{}
	for _, l := range listings {
		byKey[l.Key] = l
	}
	if byKey["good-1"].Metadata.WordCount != 1 {
		t.Fatalf("good entry metadata lost: %+v", byKey["good-1"].Metadata)
	}
	if !byKey["corrupt"].Metadata.SavedAt.IsZero() {
		t.Fatal("corrupt entry should carry zero metadata")
	}
}

func TestDestroy(t *testing.T) {
	clock := newFakeClock()
	engine, editor := newTestEngine(t, kvstore.NewMemoryStore(), clock, EngineConfig{
		Topic:            "docs",
		AutoSave:         true,
		AutoSaveInterval: 10 * time.Second,
	})

	editor.SetContents(testDelta("pending"))
	if clock.PendingCount() != 1 {
		t.Fatal("expected a pending debounce timer")
	}

	engine.Destroy()
	if clock.PendingCount() != 0 {
		t.Fatal("Destroy must cancel the pending timer")
	}

	if err := engine.Save(context.Background(), "k", nil); !errors.Is(err, domain.ErrEngineDestroyed) {
		t.Fatalf("expected ErrEngineDestroyed, got %v", err)
	}
	if err := engine.Load(context.Background(), "k"); !errors.Is(err, domain.ErrEngineDestroyed) {
		t.Fatalf("expected ErrEngineDestroyed, got %v", err)
	}
	if _, err := engine.ListDocuments(context.Background()); !errors.Is(err, domain.ErrEngineDestroyed) {
		t.Fatalf("expected ErrEngineDestroyed, got %v", err)
	}

	// A change event arriving after Destroy must not arm anything.
	editor.SetContents(testDelta("late"))
	if clock.PendingCount() != 0 {
		t.Fatal("destroyed engine must not schedule timers")
	}
}

func TestUpdateConfigRestartsWithNewInterval(t *testing.T) {
	store := kvstore.NewMemoryStore()
	clock := newFakeClock()
	engine, editor := newTestEngine(t, store, clock, EngineConfig{
		Topic:            "docs",
		AutoSave:         true,
		AutoSaveInterval: 60 * time.Second,
	})
	defer engine.Destroy()

	editor.SetContents(testDelta("draft"))
	short := 5 * time.Second
	engine.UpdateConfig(EngineConfigPatch{AutoSaveInterval: &short})

	clock.Advance(5 * time.Second)
	if n := len(autoSaveKeys(t, store, "docs")); n != 1 {
		t.Fatalf("expected auto-save at the new shorter interval, got %d saves", n)
	}
}
