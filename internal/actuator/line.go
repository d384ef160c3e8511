package actuator

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Level is a digital output level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// String returns "high" or "low".
func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Line is a single digital output.
type Line interface {
	// Set drives the output to level.
	Set(level Level) error

	// Name identifies the line in logs.
	Name() string
}

// Driver names accepted by Open.
const (
	DriverGPIO      = "gpio"
	DriverSimulated = "simulated"
)

// Open returns a Line for the named driver.
//
// Parameters:
//   - driver: "gpio" or "simulated"
//   - pin: GPIO name for the gpio driver (e.g. "GPIO17"), label otherwise
//
// Returns:
//   - Line: Ready for use; the caller sets the initial level
//   - error: ErrUnknownDriver, ErrUnknownPin, or a host init failure
func Open(driver, pin string) (Line, error) {
	switch driver {
	case DriverGPIO:
		return OpenGPIO(pin)
	case DriverSimulated, "":
		return NewSimulatedLine(pin), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// GPIOLine is a Line backed by a periph.io GPIO pin.
type GPIOLine struct {
	pin gpio.PinIO
}

// OpenGPIO initialises the host drivers and resolves the named pin.
func OpenGPIO(name string) (*GPIOLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialising periph host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPin, name)
	}
	return &GPIOLine{pin: p}, nil
}

// Set drives the pin as an output at level.
func (g *GPIOLine) Set(level Level) error {
	if err := g.pin.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("gpio %s: %w", g.pin.Name(), err)
	}
	return nil
}

// Name returns the pin name.
func (g *GPIOLine) Name() string {
	return g.pin.Name()
}

// Transition is one recorded level change on a SimulatedLine.
type Transition struct {
	Level Level
	At    time.Time
}

// SimulatedLine is an in-memory Line.
type SimulatedLine struct {
	name string

	mu          sync.Mutex
	level       Level
	transitions []Transition
	failures    int
	failLevel   Level
}

// NewSimulatedLine creates a simulated line at LOW with no recorded transitions.
func NewSimulatedLine(name string) *SimulatedLine {
	if name == "" {
		name = "simulated"
	}
	return &SimulatedLine{name: name}
}

// Set records the transition, or fails if a failure was injected for level.
func (s *SimulatedLine) Set(level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 && s.failLevel == level {
		s.failures--
		return fmt.Errorf("simulated line %s: injected fault driving %s", s.name, level)
	}
	s.level = level
	s.transitions = append(s.transitions, Transition{Level: level, At: time.Now()})
	return nil
}

// Name returns the line label.
func (s *SimulatedLine) Name() string {
	return s.name
}

// Level returns the current level.
func (s *SimulatedLine) Level() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Transitions returns a copy of every successful Set.
func (s *SimulatedLine) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// FailNext makes the next n attempts to drive level fail.
func (s *SimulatedLine) FailNext(level Level, n int) {
	s.mu.Lock()
	s.failLevel = level
	s.failures = n
	s.mu.Unlock()
}
