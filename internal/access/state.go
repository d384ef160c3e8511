package access

// State is a phase of the access cycle.
type State int

const (
	Idle State = iota
	Reading
	Authorizing
	Unlocking
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Reading:
		return "reading"
	case Authorizing:
		return "authorizing"
	case Unlocking:
		return "unlocking"
	default:
		return "idle"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
