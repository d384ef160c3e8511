package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/network"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 30 * time.Second

// Status is the operational status of the door endpoint.
type Status string

// Health status values.
const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusStarting Status = "starting"
	StatusStopping Status = "stopping"
)

// Degraded reasons.
const (
	ReasonLinkDown     = "authorization link down"
	ReasonStrikeFault  = "strike fault"
	ReasonReaderFailed = "reader failing"
)

// Counts mirrors the cycle counters.
type Counts struct {
	Polls          uint64 `json:"polls"`
	Presentations  uint64 `json:"presentations"`
	Permitted      uint64 `json:"permitted"`
	Denied         uint64 `json:"denied"`
	Indeterminate  uint64 `json:"indeterminate"`
	ReaderErrors   uint64 `json:"reader_errors"`
	ActuatorErrors uint64 `json:"actuator_errors"`
}

// Message is the retained health payload.
type Message struct {
	DoorID        string         `json:"door_id"`
	Version       string         `json:"version"`
	Status        Status         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Link          network.Status `json:"link"`
	Strike        string         `json:"strike"`
	CycleState    string         `json:"cycle_state"`
	Counts        Counts         `json:"counts"`
}

// Publisher is implemented by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// LinkStatus is implemented by *network.Link.
type LinkStatus interface {
	Status() network.Status
}

// SnapshotSource is implemented by *access.Cycle.
type SnapshotSource interface {
	Snapshot() access.Snapshot
}

// SampleWriter records health samples in a time-series store. It is
// implemented by *influxdb.Client.
type SampleWriter interface {
	WriteDoorHealth(doorID string, linkUp bool, uptime time.Duration)
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Error(msg string, args ...any)
}

// Config holds the reporter's collaborators. Publisher, Link and Cycle
// are required; Samples and Logger are optional.
type Config struct {
	DoorID    string
	Version   string
	Interval  time.Duration
	Publisher Publisher
	Link      LinkStatus
	Cycle     SnapshotSource
	Samples   SampleWriter
	Logger    Logger
}

// Reporter publishes periodic health messages.
//
// Thread Safety:
//   - Start, Stop and PublishNow may be called from any goroutine.
type Reporter struct {
	cfg Config
	now func() time.Time

	mu   sync.Mutex
	prev access.Stats

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReporter creates a reporter. Call Start to begin reporting.
func NewReporter(cfg Config) (*Reporter, error) {
	if cfg.Publisher == nil || cfg.Link == nil || cfg.Cycle == nil {
		return nil, fmt.Errorf("health: publisher, link and cycle are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Reporter{
		cfg:  cfg,
		now:  time.Now,
		done: make(chan struct{}),
	}, nil
}

// Start publishes immediately and then on every interval until ctx is
// cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop ends reporting and publishes a final "stopping" message.
// Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		if err := r.publish(r.build(StatusStopping, "shutdown")); err != nil {
			r.logError("failed to publish stopping health", err)
		}
	})
}

// PublishStarting publishes a "starting" message before the cycle runs.
func (r *Reporter) PublishStarting() error {
	return r.publish(r.build(StatusStarting, ""))
}

// PublishNow evaluates and publishes the current health.
func (r *Reporter) PublishNow() error {
	msg := r.Evaluate()
	if r.cfg.Samples != nil {
		r.cfg.Samples.WriteDoorHealth(r.cfg.DoorID, msg.Link.Connected, time.Duration(msg.UptimeSeconds)*time.Second)
	}
	return r.publish(msg)
}

// Evaluate builds the current health message and advances the baseline
// used to detect new faults.
func (r *Reporter) Evaluate() Message {
	snap := r.cfg.Cycle.Snapshot()
	link := r.cfg.Link.Status()

	r.mu.Lock()
	prev := r.prev
	r.prev = snap.Stats
	r.mu.Unlock()

	status, reason := StatusHealthy, ""
	switch {
	case !link.Connected:
		status, reason = StatusDegraded, ReasonLinkDown
	case snap.Stats.ActuatorErrors > prev.ActuatorErrors:
		status, reason = StatusDegraded, ReasonStrikeFault
	case snap.Stats.Polls > prev.Polls &&
		snap.Stats.ReaderErrors-prev.ReaderErrors >= snap.Stats.Polls-prev.Polls:
		status, reason = StatusDegraded, ReasonReaderFailed
	}

	return r.message(status, reason, snap, link)
}

func (r *Reporter) build(status Status, reason string) Message {
	return r.message(status, reason, r.cfg.Cycle.Snapshot(), r.cfg.Link.Status())
}

func (r *Reporter) message(status Status, reason string, snap access.Snapshot, link network.Status) Message {
	return Message{
		DoorID:        r.cfg.DoorID,
		Version:       r.cfg.Version,
		Status:        status,
		Reason:        reason,
		Timestamp:     r.now().UTC(),
		UptimeSeconds: int64(snap.Uptime.Seconds()),
		Link:          link,
		Strike:        snap.Strike.String(),
		CycleState:    snap.State.String(),
		Counts: Counts{
			Polls:          snap.Stats.Polls,
			Presentations:  snap.Stats.Presentations,
			Permitted:      snap.Stats.Permitted,
			Denied:         snap.Stats.Denied,
			Indeterminate:  snap.Stats.Indeterminate,
			ReaderErrors:   snap.Stats.ReaderErrors,
			ActuatorErrors: snap.Stats.ActuatorErrors,
		},
	}
}

func (r *Reporter) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	if err := r.PublishNow(); err != nil {
		r.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.PublishNow(); err != nil {
				r.logError("failed to publish health", err)
			}
		}
	}
}

func (r *Reporter) publish(msg Message) error {
	if !r.cfg.Publisher.IsConnected() {
		return mqtt.ErrNotConnected
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding health message: %w", err)
	}
	return r.cfg.Publisher.Publish(mqtt.Topics{}.Health(r.cfg.DoorID), payload, 1, true)
}

func (r *Reporter) logError(msg string, err error) {
	if r.cfg.Logger != nil {
		r.cfg.Logger.Error(msg, "door", r.cfg.DoorID, "error", err)
	}
}
