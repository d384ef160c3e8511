package reader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
)

// maxUIDLength matches the longest ISO14443A UID (triple size).
const maxUIDLength = 10

// Subscriber is the subset of the MQTT client the bench reader needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Bench is a Reader fed by MQTT messages carrying hex UIDs.
//
// Only the most recent presentation is kept: a card presented twice before
// the next poll is read once.
type Bench struct {
	sub    Subscriber
	topic  string
	logger Logger

	mu      sync.Mutex
	pending []byte
	closed  bool
}

// NewBench creates a bench reader listening on topic.
func NewBench(sub Subscriber, topic string, logger Logger) *Bench {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bench{sub: sub, topic: topic, logger: logger}
}

// Init subscribes to the bench topic.
func (b *Bench) Init(_ context.Context) error {
	if b.sub == nil {
		return fmt.Errorf("%w: bench reader has no mqtt client", ErrHardwareFault)
	}
	if err := b.sub.Subscribe(b.topic, 1, b.handle); err != nil {
		return fmt.Errorf("%w: subscribing to %s: %w", ErrHardwareFault, b.topic, err)
	}
	b.logger.Info("bench reader listening", "topic", b.topic)
	return nil
}

// Poll returns the pending UID, if any.
func (b *Bench) Poll(_ context.Context) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, false, ErrClosed
	}
	if b.pending == nil {
		return nil, false, nil
	}
	uid := b.pending
	b.pending = nil
	return uid, true, nil
}

// Close unsubscribes. A disconnected client is not an error.
func (b *Bench) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.pending = nil
	b.mu.Unlock()

	if b.sub == nil {
		return nil
	}
	if err := b.sub.Unsubscribe(b.topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		return err
	}
	return nil
}

// handle stores the newest presented UID. The payload is never logged.
func (b *Bench) handle(_ string, payload []byte) error {
	uid, err := ParseUID(string(payload))
	if err != nil {
		b.logger.Warn("bench reader ignored malformed presentation", "bytes", len(payload))
		return nil
	}

	b.mu.Lock()
	if !b.closed {
		b.pending = uid
	}
	b.mu.Unlock()
	b.logger.Debug("bench presentation queued")
	return nil
}

// ParseUID decodes a hex UID. Colons, spaces and dashes between bytes are
// ignored, so "04:1A:2B:3C", "04 1a 2b 3c" and "041a2b3c" are equivalent.
func ParseUID(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', ' ', '-', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)

	uid, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrame, err)
	}
	if len(uid) == 0 || len(uid) > maxUIDLength {
		return nil, fmt.Errorf("%w: uid length %d", ErrFrame, len(uid))
	}
	return uid, nil
}

// Open returns a Reader for the named driver.
//
// Parameters:
//   - driver: "pn532" or "mqtt"
//   - cfg: Driver settings
//
// Returns:
//   - Reader: Not yet initialised
//   - error: ErrUnknownDriver, or an ErrHardwareFault from the bus
func Open(driver string, cfg OpenConfig) (Reader, error) {
	switch driver {
	case DriverPN532, "":
		p, err := OpenPN532(cfg.I2CBus, cfg.I2CAddress, PN532Options{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		return p, nil
	case DriverMQTT:
		return NewBench(cfg.Subscriber, cfg.BenchTopic, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Driver names accepted by Open.
const (
	DriverPN532 = "pn532"
	DriverMQTT  = "mqtt"
)

// OpenConfig carries the settings for every driver; each uses its own.
type OpenConfig struct {
	I2CBus     string
	I2CAddress uint16
	Subscriber Subscriber
	BenchTopic string
	Logger     Logger
}
