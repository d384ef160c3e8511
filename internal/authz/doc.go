// Package authz asks the remote authorization service whether a card token
// may open the door.
//
// The protocol is a single GET per card presentation:
//
//	GET {scheme}://{host}:{port}/api/{token}
//	  200 {"isValid": true}   -> Permitted
//	  200 {"isValid": false}  -> Denied
//	  404                     -> Denied
//	  anything else           -> Indeterminate
//
// Every ambiguous outcome (no link, timeout, unexpected status, malformed or
// incomplete body) resolves to Indeterminate, which the access cycle treats
// exactly like Denied. There are no retries: a user standing at the door
// waits for at most one bounded request.
//
// # Privacy
//
// The client only ever sees the pseudonymous token. It does not log; the
// caller decides what part of the token reaches the observability channel.
package authz
