package kvstore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyLen = 32

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1

	// sealedPrefix marks a value as a sealed envelope. Plain values never
	// start with it, so Open can reject mismatched reads cheaply.
	sealedPrefix = "qv1:"
)

// ErrNotSealed is returned by Open when the value is not a sealed
// envelope.
var ErrNotSealed = errors.New("kvstore: value is not sealed")

// Cipher seals and opens store values with XChaCha20-Poly1305. The AAD
// binds a sealed value to its topic and key, so a ciphertext moved to a
// different key fails to open.
type Cipher struct {
	key []byte
}

// NewCipher creates a cipher from identity-bound key material. The root
// secret is stretched through HKDF-SHA256 so short inputs still yield a
// full-strength key.
func NewCipher(rootSecret []byte) (*Cipher, error) {
	if len(rootSecret) == 0 {
		return nil, errors.New("kvstore: empty root secret")
	}
	key := make([]byte, keyLen)
	r := hkdf.New(sha256.New, rootSecret, nil, []byte("quillvault/content"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &Cipher{key: key}, nil
}

// NewPasswordCipher derives the key from a caller-supplied password via
// Argon2id. The salt must be stable per document store; callers persist
// it alongside the topic.
func NewPasswordCipher(password, salt []byte) (*Cipher, error) {
	if len(password) == 0 {
		return nil, errors.New("kvstore: empty password")
	}
	if len(salt) == 0 {
		return nil, errors.New("kvstore: empty salt")
	}
	key := argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keyLen)
	return &Cipher{key: key}, nil
}

// Seal encrypts value with AAD = topic || key and a random nonce, and
// returns a printable envelope.
func (c *Cipher) Seal(topic, key, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	aad := aadFor(topic, key)
	out := make([]byte, 0, len(nonce)+len(value)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(value), aad)...)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a sealed envelope produced by Seal for the same topic and
// key.
func (c *Cipher) Open(topic, key, sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrNotSealed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("kvstore: bad envelope: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", errors.New("kvstore: envelope too short")
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := raw[:chacha20poly1305.NonceSizeX]
	ct := raw[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ct, aadFor(topic, key))
	if err != nil {
		return "", fmt.Errorf("kvstore: open envelope: %w", err)
	}
	return string(plain), nil
}

func aadFor(topic, key string) []byte {
	aad := make([]byte, 0, len(topic)+len(key)+1)
	aad = append(aad, topic...)
	aad = append(aad, 0)
	aad = append(aad, key...)
	return aad
}
