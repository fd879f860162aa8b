package kvstore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store used in tests and single-node dev
// setups. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	topics map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{topics: make(map[string]map[string]string)}
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	topic := s.topics[opts.Topic]
	if topic == nil {
		topic = make(map[string]string)
		s.topics[opts.Topic] = topic
	}
	topic[key] = value
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.topics[opts.Topic][key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (s *MemoryStore) List(ctx context.Context, topic string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.topics[topic]))
	for k := range s.topics[topic] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topic][key]; !ok {
		return ErrKeyNotFound
	}
	delete(s.topics[topic], key)
	return nil
}
