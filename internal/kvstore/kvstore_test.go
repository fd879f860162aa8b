package kvstore

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	opts := Options{Topic: "docs"}

	if err := s.Set(ctx, "a", "first", opts); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := s.Get(ctx, "a", opts)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "first" {
		t.Errorf("expected %q, got %q", "first", got)
	}
}

func TestMemoryStore_TopicsAreDisjoint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "a", "one", Options{Topic: "t1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := s.Get(ctx, "a", Options{Topic: "t2"}); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound across topics, got %v", err)
	}
}

func TestMemoryStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	opts := Options{Topic: "docs"}

	for _, k := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, k, "v", opts); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	keys, err := s.List(ctx, "docs")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("unexpected keys %v", keys)
	}

	if err := s.Delete(ctx, "b", "docs"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "b", "docs"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound on double delete, got %v", err)
	}
}

func TestCipher_SealOpenRoundTrip(t *testing.T) {
	c, err := NewCipher([]byte("test-root-secret"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	sealed, err := c.Seal("docs", "key-1", `{"plainText":"hello"}`)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed == `{"plainText":"hello"}` {
		t.Fatal("sealed value equals plaintext")
	}

	opened, err := c.Open("docs", "key-1", sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened != `{"plainText":"hello"}` {
		t.Errorf("round trip mismatch: %q", opened)
	}
}

func TestCipher_RejectsMovedCiphertext(t *testing.T) {
	c, err := NewCipher([]byte("test-root-secret"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	sealed, err := c.Seal("docs", "key-1", "secret body")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := c.Open("docs", "key-2", sealed); err == nil {
		t.Error("expected open to fail for a ciphertext moved to another key")
	}
	if _, err := c.Open("other", "key-1", sealed); err == nil {
		t.Error("expected open to fail for a ciphertext moved to another topic")
	}
}

func TestCipher_OpenRejectsPlainValue(t *testing.T) {
	c, err := NewCipher([]byte("test-root-secret"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	if _, err := c.Open("docs", "k", "not an envelope"); !errors.Is(err, ErrNotSealed) {
		t.Errorf("expected ErrNotSealed, got %v", err)
	}
}

func TestPasswordCipher_SameInputsSameKey(t *testing.T) {
	c1, err := NewPasswordCipher([]byte("hunter2"), []byte("salt"))
	if err != nil {
		t.Fatalf("NewPasswordCipher failed: %v", err)
	}
	c2, err := NewPasswordCipher([]byte("hunter2"), []byte("salt"))
	if err != nil {
		t.Fatalf("NewPasswordCipher failed: %v", err)
	}

	sealed, err := c1.Seal("docs", "k", "body")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	opened, err := c2.Open("docs", "k", sealed)
	if err != nil {
		t.Fatalf("expected an equally derived cipher to open the envelope: %v", err)
	}
	if opened != "body" {
		t.Errorf("round trip mismatch: %q", opened)
	}
}

func TestEncryptedStore_SealsAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	cipher, err := NewCipher([]byte("test-root-secret"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	s := NewEncryptedStore(inner, cipher)
	opts := Options{Topic: "docs", Encrypt: true}

	if err := s.Set(ctx, "k", "plain body", opts); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// The inner transport must only ever see the sealed envelope.
	raw, err := inner.Get(ctx, "k", Options{Topic: "docs"})
	if err != nil {
		t.Fatalf("inner Get failed: %v", err)
	}
	if raw == "plain body" {
		t.Fatal("value reached transport unencrypted")
	}

	got, err := s.Get(ctx, "k", opts)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "plain body" {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestEncryptedStore_PlainCallsPassThrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	cipher, err := NewCipher([]byte("test-root-secret"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	s := NewEncryptedStore(inner, cipher)
	opts := Options{Topic: "docs"}

	if err := s.Set(ctx, "k", "visible", opts); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	raw, err := inner.Get(ctx, "k", opts)
	if err != nil {
		t.Fatalf("inner Get failed: %v", err)
	}
	if raw != "visible" {
		t.Errorf("expected passthrough, got %q", raw)
	}
}
