// Package kvstore defines the topic-scoped key-value protocol documents
// are persisted through, with interchangeable transports: in-memory,
// Redis, Postgres, and an overlay "call" RPC client. All transports are
// semantically identical; values are opaque strings (JSON-encoded
// persisted versions).
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get and Delete when the key does not
// exist under the requested topic.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Options scope a single read or write. Topic is the namespace the key
// lives under (analogous to a table or bucket). Encrypt asks the store to
// seal the value at rest; Get with Encrypt set expects a sealed value and
// opens it.
type Options struct {
	Topic   string
	Encrypt bool
}

// Store is the key-value store protocol consumed by the persistence
// layer. Implementations must treat keys under different topics as
// disjoint; listing is not transactionally consistent with concurrent
// writes, so callers must tolerate a listed key subsequently failing to
// load.
type Store interface {
	Set(ctx context.Context, key, value string, opts Options) error
	Get(ctx context.Context, key string, opts Options) (string, error)
	List(ctx context.Context, topic string) ([]string, error)
	Delete(ctx context.Context, key, topic string) error
}
