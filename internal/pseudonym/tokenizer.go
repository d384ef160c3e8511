package pseudonym

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// MinKeyLength is the shortest HMAC key accepted, in bytes.
	MinKeyLength = 16

	// MaxIdentifierLength is the longest UID accepted. ISO14443A defines
	// single (4), double (7) and triple (10) size UIDs.
	MaxIdentifierLength = 10

	// TokenLength is the length of a rendered token in characters.
	TokenLength = sha256.Size * 2

	// redactedPrefix is how many token characters Redacted keeps.
	redactedPrefix = 8
)

// Token is the pseudonymous form of a card identifier: 64 lowercase hex
// characters. It is the only identifier that is ever transmitted off-device.
type Token string

// String returns the full token.
func (t Token) String() string {
	return string(t)
}

// Redacted returns a short prefix of the token suitable for logs.
func (t Token) Redacted() string {
	if len(t) <= redactedPrefix {
		return string(t)
	}
	return string(t[:redactedPrefix]) + "…"
}

// Valid reports whether t has the shape of a token produced by Tokenize.
func (t Token) Valid() bool {
	if len(t) != TokenLength {
		return false
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Tokenizer computes tokens with a fixed pre-shared key.
//
// Thread Safety:
//   - Tokenize is safe for concurrent use; the key is immutable after New.
type Tokenizer struct {
	key []byte
}

// New creates a Tokenizer. The key is copied so later changes to the
// caller's slice have no effect.
//
// Parameters:
//   - key: Pre-shared HMAC key, at least MinKeyLength bytes
//
// Returns:
//   - *Tokenizer: Ready for use
//   - error: ErrInvalidKey if the key is too short
func New(key []byte) (*Tokenizer, error) {
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidKey, MinKeyLength, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Tokenizer{key: k}, nil
}

// Tokenize returns HMAC-SHA256(key, uid) rendered as lowercase hex.
//
// Parameters:
//   - uid: Raw card identifier as read from the card (1 to 10 bytes)
//
// Returns:
//   - Token: 64 lowercase hex characters
//   - error: ErrInvalidIdentifier for an empty or oversized uid
func (t *Tokenizer) Tokenize(uid []byte) (Token, error) {
	if len(uid) == 0 || len(uid) > MaxIdentifierLength {
		return "", fmt.Errorf("%w: length %d", ErrInvalidIdentifier, len(uid))
	}

	mac := hmac.New(sha256.New, t.key)
	// hash.Hash.Write never returns an error.
	mac.Write(uid) //nolint:errcheck
	return Token(hex.EncodeToString(mac.Sum(nil))), nil
}
