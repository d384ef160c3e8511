package authz

import (
	"time"
)

// Decision is the outcome of an authorization query.
//
// The zero value is Indeterminate so that an unset decision denies access.
type Decision int

const (
	// Indeterminate means the service could not be asked or its answer could
	// not be understood.
	Indeterminate Decision = iota

	// Permitted means the service explicitly allowed the token.
	Permitted

	// Denied means the service explicitly refused the token.
	Denied
)

// String returns the lowercase name used in logs and telemetry.
func (d Decision) String() string {
	switch d {
	case Permitted:
		return "permitted"
	case Denied:
		return "denied"
	default:
		return "indeterminate"
	}
}

// Reason codes recorded with each Result.
const (
	ReasonPermitted            = "permitted"
	ReasonNotValid             = "not_valid"
	ReasonNotFound             = "not_found"
	ReasonTransportUnavailable = "transport_unavailable"
	ReasonTimeout              = "timeout"
	ReasonRequestFailed        = "request_failed"
	ReasonUnexpectedStatus     = "unexpected_status"
	ReasonMalformedBody        = "malformed_body"
	ReasonMissingField         = "missing_field"
	ReasonInvalidToken         = "invalid_token"
)

// Result describes one authorization query.
type Result struct {
	// Decision is the access decision. Only Permitted may unlock.
	Decision Decision

	// Reason is a short machine-readable code (see Reason* constants).
	Reason string

	// StatusCode is the HTTP status received, or 0 when no response arrived.
	StatusCode int

	// Latency is the wall time spent on the query.
	Latency time.Duration

	// Err classifies non-permitted outcomes; nil when Permitted.
	Err error
}

// Permitted reports whether the result allows the door to open.
func (r Result) Permitted() bool {
	return r.Decision == Permitted
}
