package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each topic in one Redis hash, so listing a topic is a
// single HKEYS and topics never collide.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func topicHash(topic string) string {
	return "qv:topic:" + topic
}

func (s *RedisStore) Set(ctx context.Context, key, value string, opts Options) error {
	return s.client.HSet(ctx, topicHash(opts.Topic), key, value).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string, opts Options) (string, error) {
	value, err := s.client.HGet(ctx, topicHash(opts.Topic), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisStore) List(ctx context.Context, topic string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, topicHash(topic)).Result()
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *RedisStore) Delete(ctx context.Context, key, topic string) error {
	removed, err := s.client.HDel(ctx, topicHash(topic), key).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
