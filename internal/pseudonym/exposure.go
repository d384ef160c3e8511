package pseudonym

import "fmt"

// Exposure controls how much of a token is shown outside the
// authorization request: logs, events, the journal and the status API.
type Exposure string

// Supported exposure levels.
const (
	ExposureRedacted Exposure = "redacted"
	ExposureFull     Exposure = "full"
	ExposureNone     Exposure = "none"
)

// ParseExposure validates an exposure level read from configuration.
// An empty string selects ExposureRedacted.
func ParseExposure(s string) (Exposure, error) {
	switch e := Exposure(s); e {
	case "":
		return ExposureRedacted, nil
	case ExposureRedacted, ExposureFull, ExposureNone:
		return e, nil
	default:
		return "", fmt.Errorf("pseudonym: unknown token exposure %q", s)
	}
}

// Apply renders t under the exposure level. An empty token stays empty.
// Unknown levels behave like ExposureNone.
func (e Exposure) Apply(t Token) string {
	if t == "" {
		return ""
	}
	switch e {
	case ExposureFull:
		return t.String()
	case ExposureRedacted:
		return t.Redacted()
	default:
		return ""
	}
}
