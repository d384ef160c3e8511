package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultPN532Address is the fixed 7-bit I²C address of the PN532.
const DefaultPN532Address = 0x24

// PN532 frame identifiers and commands (NXP UM0701-02).
const (
	tfiHostToPN532 = 0xD4
	tfiPN532ToHost = 0xD5
	tfiError       = 0x7F

	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdRFConfiguration     = 0x32
	cmdInListPassiveTarget = 0x4A

	rfItemMaxRetries = 0x05
	samNormalMode    = 0x01
	samTimeout       = 0x14 // 50ms units, 1s
	samUseIRQ        = 0x01
	baud106TypeA     = 0x00
	icPN532          = 0x32

	statusReady = 0x01

	// maxFrameLen covers the largest response we ask for: one target with a
	// triple-size UID plus framing.
	maxFrameLen = 64
)

var ackFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// Bus is a single I²C device. *i2c.Dev satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// Firmware is the GetFirmwareVersion answer.
type Firmware struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

// String renders the firmware as "PN532 v1.6".
func (f Firmware) String() string {
	return fmt.Sprintf("PN5%02x v%d.%d", f.IC, f.Version, f.Revision)
}

// PN532Options tunes the driver. Zero values select defaults.
type PN532Options struct {
	// AckTimeout bounds the wait for a command ACK. Default: 100ms.
	AckTimeout time.Duration

	// ResponseTimeout bounds the wait for a configuration response. Default: 1s.
	ResponseTimeout time.Duration

	// PollTimeout bounds the wait for an InListPassiveTarget answer. Default: 300ms.
	PollTimeout time.Duration

	// PassiveRetries is how many activation attempts the PN532 makes per
	// poll before reporting no target. Default: 2.
	PassiveRetries byte

	Logger Logger
}

// PN532 is an NXP PN532 on I²C.
//
// Thread Safety:
//   - Init, Poll and Close serialise on an internal mutex.
type PN532 struct {
	bus    Bus
	closer io.Closer
	opts   PN532Options
	logger Logger

	mu       sync.Mutex
	closed   bool
	firmware Firmware
}

// NewPN532 wraps an already-open bus device.
func NewPN532(bus Bus, opts PN532Options) *PN532 {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 100 * time.Millisecond
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 300 * time.Millisecond
	}
	if opts.PassiveRetries == 0 {
		opts.PassiveRetries = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &PN532{bus: bus, opts: opts, logger: logger}
}

// OpenPN532 opens an I²C bus through periph.io and attaches a PN532.
//
// Parameters:
//   - busName: periph bus name or number ("" selects the first bus, "1" is /dev/i2c-1)
//   - addr: 7-bit device address, normally DefaultPN532Address
//   - opts: Driver tuning
//
// Returns:
//   - *PN532: Not yet initialised (call Init)
//   - error: Wraps ErrHardwareFault if the bus cannot be opened
func OpenPN532(busName string, addr uint16, opts PN532Options) (*PN532, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: initialising periph host: %w", ErrHardwareFault, err)
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("%w: opening i2c bus %q: %w", ErrHardwareFault, busName, err)
	}
	p := NewPN532(&i2c.Dev{Bus: b, Addr: addr}, opts)
	p.closer = b
	return p, nil
}

// Init identifies the chip and configures it for passive ISO14443A polling.
func (p *PN532) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	data, err := p.exchange(ctx, cmdGetFirmwareVersion, nil, p.opts.ResponseTimeout)
	if err != nil {
		return fmt.Errorf("%w: firmware version: %w", ErrHardwareFault, err)
	}
	if len(data) < 4 {
		return fmt.Errorf("%w: short firmware response (%d bytes)", ErrHardwareFault, len(data))
	}
	fw := Firmware{IC: data[0], Version: data[1], Revision: data[2], Support: data[3]}
	if fw.IC != icPN532 {
		return fmt.Errorf("%w: unexpected IC 0x%02x", ErrHardwareFault, fw.IC)
	}
	p.firmware = fw

	if _, err := p.exchange(ctx, cmdSAMConfiguration, []byte{samNormalMode, samTimeout, samUseIRQ}, p.opts.ResponseTimeout); err != nil {
		return fmt.Errorf("%w: SAM configuration: %w", ErrHardwareFault, err)
	}

	retries := []byte{rfItemMaxRetries, 0xFF, 0x01, p.opts.PassiveRetries}
	if _, err := p.exchange(ctx, cmdRFConfiguration, retries, p.opts.ResponseTimeout); err != nil {
		return fmt.Errorf("%w: RF configuration: %w", ErrHardwareFault, err)
	}

	p.logger.Info("pn532 ready", "firmware", fw.String())
	return nil
}

// Firmware returns the version read by Init.
func (p *PN532) Firmware() Firmware {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firmware
}

// Poll looks for one ISO14443A target.
func (p *PN532) Poll(ctx context.Context) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, ErrClosed
	}

	data, err := p.exchange(ctx, cmdInListPassiveTarget, []byte{0x01, baud106TypeA}, p.opts.PollTimeout)
	if err != nil {
		return nil, false, err
	}
	return parseTarget(data)
}

// Close releases the bus. Subsequent calls are no-ops.
func (p *PN532) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// parseTarget decodes an InListPassiveTarget answer:
// NbTg [Tg SENS_RES(2) SEL_RES NFCIDLength NFCID...].
func parseTarget(data []byte) ([]byte, bool, error) {
	if len(data) < 1 {
		return nil, false, fmt.Errorf("%w: empty target list", ErrFrame)
	}
	if data[0] == 0 {
		return nil, false, nil
	}
	if len(data) < 6 {
		return nil, false, fmt.Errorf("%w: short target record (%d bytes)", ErrFrame, len(data))
	}
	idLen := int(data[5])
	if idLen == 0 || len(data) < 6+idLen {
		return nil, false, fmt.Errorf("%w: NFCID length %d in %d byte record", ErrFrame, idLen, len(data))
	}
	uid := make([]byte, idLen)
	copy(uid, data[6:6+idLen])
	return uid, true, nil
}

// exchange sends one command, waits for the ACK and returns the response
// payload after the response code.
func (p *PN532) exchange(ctx context.Context, cmd byte, params []byte, timeout time.Duration) ([]byte, error) {
	if err := p.bus.Tx(encodeFrame(tfiHostToPN532, cmd, params), nil); err != nil {
		return nil, fmt.Errorf("writing command 0x%02x: %w", cmd, err)
	}

	if err := p.waitReady(ctx, p.opts.AckTimeout); err != nil {
		return nil, fmt.Errorf("ack for 0x%02x: %w", cmd, err)
	}
	ack := make([]byte, 1+len(ackFrame))
	if err := p.bus.Tx(nil, ack); err != nil {
		return nil, fmt.Errorf("reading ack: %w", err)
	}
	if !bytes.Equal(ack[1:], ackFrame) {
		return nil, fmt.Errorf("%w: expected ack for 0x%02x, got % x", ErrFrame, cmd, ack[1:])
	}

	if err := p.waitReady(ctx, timeout); err != nil {
		return nil, fmt.Errorf("response to 0x%02x: %w", cmd, err)
	}
	buf := make([]byte, 1+maxFrameLen)
	if err := p.bus.Tx(nil, buf); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return decodeFrame(buf[1:], cmd+1)
}

// waitReady polls the status byte until the PN532 reports ready.
func (p *PN532) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	status := make([]byte, 1)
	for {
		if err := p.bus.Tx(nil, status); err != nil {
			return fmt.Errorf("reading status: %w", err)
		}
		if status[0]&statusReady != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrNotReady, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// encodeFrame builds a normal information frame:
// 00 00 FF LEN LCS TFI CMD DATA... DCS 00.
func encodeFrame(tfi, cmd byte, data []byte) []byte {
	n := byte(2 + len(data))
	frame := make([]byte, 0, 8+len(data))
	frame = append(frame, 0x00, 0x00, 0xFF, n, -n, tfi, cmd)
	frame = append(frame, data...)

	sum := tfi + cmd
	for _, b := range data {
		sum += b
	}
	return append(frame, -sum, 0x00)
}

// decodeFrame validates a frame from the PN532 and returns the data that
// follows the expected response code.
func decodeFrame(buf []byte, wantCode byte) ([]byte, error) {
	start := -1
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0x00 && buf[i+1] == 0xFF {
			start = i + 2
			break
		}
	}
	if start < 0 || start+2 > len(buf) {
		return nil, fmt.Errorf("%w: no start code", ErrFrame)
	}

	n, lcs := buf[start], buf[start+1]
	if n+lcs != 0 {
		return nil, fmt.Errorf("%w: length checksum", ErrFrame)
	}
	body := start + 2
	if n == 0 || body+int(n)+1 > len(buf) {
		return nil, fmt.Errorf("%w: length %d", ErrFrame, n)
	}

	payload := buf[body : body+int(n)]
	var sum byte
	for _, b := range payload {
		sum += b
	}
	if sum+buf[body+int(n)] != 0 {
		return nil, fmt.Errorf("%w: data checksum", ErrFrame)
	}

	if payload[0] == tfiError {
		return nil, fmt.Errorf("%w: application error frame", ErrFrame)
	}
	if len(payload) < 2 || payload[0] != tfiPN532ToHost || payload[1] != wantCode {
		return nil, fmt.Errorf("%w: unexpected response % x", ErrFrame, payload[:min(len(payload), 2)])
	}
	return payload[2:], nil
}
