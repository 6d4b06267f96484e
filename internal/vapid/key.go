// Package vapid handles VAPID application server keys: validation of the
// public key clients subscribe with, and generation of fresh key pairs for
// new websites.
package vapid

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	// uncompressedPointLen is the length of an uncompressed P-256 public key:
	// one marker byte followed by the 32-byte X and Y coordinates.
	uncompressedPointLen = 65

	// uncompressedPointMarker prefixes an uncompressed EC point.
	uncompressedPointMarker = 0x04
)

// ErrInvalidPublicKey is returned when a VAPID public key does not decode to
// a 65-byte uncompressed P-256 point. Callers must refuse to attempt a push
// subscription with such a key; the push service would reject it with a far
// less diagnosable error.
var ErrInvalidPublicKey = errors.New("vapid: invalid public key")

// DecodePublicKey decodes a base64url VAPID public key, normalizing padding,
// and verifies it is a 65-byte uncompressed EC point.
func DecodePublicKey(key string) ([]byte, error) {
	s := strings.TrimRight(strings.TrimSpace(key), "=")
	if s == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidPublicKey)
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(raw) != uncompressedPointLen {
		return nil, fmt.Errorf("%w: decoded to %d bytes, want %d", ErrInvalidPublicKey, len(raw), uncompressedPointLen)
	}
	if raw[0] != uncompressedPointMarker {
		return nil, fmt.Errorf("%w: missing uncompressed point marker", ErrInvalidPublicKey)
	}
	return raw, nil
}

// ValidatePublicKey reports whether key is a well-formed VAPID public key.
func ValidatePublicKey(key string) error {
	_, err := DecodePublicKey(key)
	return err
}

// EncodePublicKey renders a raw key back to its canonical base64url form,
// used to compare a subscription's recorded applicationServerKey against a
// configured key regardless of padding differences.
func EncodePublicKey(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// GenerateKeyPair generates a new ECDSA P-256 key pair for VAPID, returning
// both halves base64url-encoded without padding.
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}
