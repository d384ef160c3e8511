// Package pseudonym turns raw proximity-card identifiers into stable,
// non-reversible tokens.
//
// A card's factory UID is a tracking identifier in its own right, so it
// never leaves the endpoint. Instead the endpoint computes
// HMAC-SHA256(key, uid) with a pre-shared key and sends the 64-character
// lowercase hex digest to the authorization service. The same card and key
// always produce the same token; a different key produces an unrelated one.
//
// # Security
//
//   - The key is copied at construction and never exposed or logged.
//   - Raw UIDs are accepted as input only; nothing in this package stores them.
//   - Use Token.Redacted when a token has to appear in operator-facing output.
//
// # Usage
//
//	tok, err := pseudonym.New(key)
//	if err != nil {
//	    return err
//	}
//	token, err := tok.Tokenize(uid)
package pseudonym
