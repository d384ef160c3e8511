package authz

import "errors"

// Sentinel errors classifying non-permitted outcomes. They are carried in
// Result.Err and can be checked with errors.Is.
var (
	// ErrTransportUnavailable means the network link was down, so no
	// request was attempted.
	ErrTransportUnavailable = errors.New("authz: transport unavailable")

	// ErrProtocol covers timeouts, request failures, unexpected status codes
	// and response bodies that do not carry a boolean isValid field.
	ErrProtocol = errors.New("authz: protocol error")

	// ErrExplicitDenial means the service answered and said no.
	ErrExplicitDenial = errors.New("authz: explicit denial")
)
