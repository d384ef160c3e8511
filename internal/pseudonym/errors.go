package pseudonym

import "errors"

// Sentinel errors for pseudonymization.
var (
	// ErrInvalidKey is returned when the HMAC key is missing or too short.
	ErrInvalidKey = errors.New("pseudonym: invalid key")

	// ErrInvalidIdentifier is returned when a raw identifier is empty or
	// longer than any ISO14443A UID the reader can produce.
	ErrInvalidIdentifier = errors.New("pseudonym: invalid card identifier")
)
