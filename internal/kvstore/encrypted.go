package kvstore

import "context"

// EncryptedStore wraps an inner Store and honors the per-call Encrypt
// option: writes seal the value before it reaches the transport, reads
// open it on the way back. Calls without Encrypt pass through untouched.
type EncryptedStore struct {
	inner  Store
	cipher *Cipher
}

// NewEncryptedStore wraps inner with the given cipher.
func NewEncryptedStore(inner Store, cipher *Cipher) *EncryptedStore {
	return &EncryptedStore{inner: inner, cipher: cipher}
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string, opts Options) error {
	if opts.Encrypt {
		sealed, err := s.cipher.Seal(opts.Topic, key, value)
		if err != nil {
			return err
		}
		value = sealed
	}
	return s.inner.Set(ctx, key, value, opts)
}

func (s *EncryptedStore) Get(ctx context.Context, key string, opts Options) (string, error) {
	value, err := s.inner.Get(ctx, key, opts)
	if err != nil {
		return "", err
	}
	if opts.Encrypt {
		return s.cipher.Open(opts.Topic, key, value)
	}
	return value, nil
}

func (s *EncryptedStore) List(ctx context.Context, topic string) ([]string, error) {
	return s.inner.List(ctx, topic)
}

func (s *EncryptedStore) Delete(ctx context.Context, key, topic string) error {
	return s.inner.Delete(ctx, key, topic)
}
