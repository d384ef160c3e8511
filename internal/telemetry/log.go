package telemetry

import (
	"context"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/authz"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

// Logger is the logging surface LogObserver needs. *slog.Logger and
// *logging.Logger satisfy it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// LogObserver writes one structured line per outcome.
// Permitted and denied outcomes log at Info, indeterminate ones at Warn.
type LogObserver struct {
	logger   Logger
	exposure pseudonym.Exposure
}

// NewLogObserver returns a LogObserver.
func NewLogObserver(logger Logger, exposure pseudonym.Exposure) *LogObserver {
	return &LogObserver{logger: logger, exposure: exposure}
}

// Observe implements access.Observer.
func (l *LogObserver) Observe(_ context.Context, o access.Outcome) error {
	args := []any{
		"door", o.DoorID,
		"decision", o.Decision.String(),
		"reason", o.Reason,
		"latency_ms", latencyMS(o.Latency),
		"unlocked", o.Unlocked,
	}
	if tok := l.exposure.Apply(o.Token); tok != "" {
		args = append(args, "token", tok)
	}
	if o.StatusCode != 0 {
		args = append(args, "status", o.StatusCode)
	}
	if o.Err != nil {
		args = append(args, "error", o.Err)
	}
	if o.ActuatorErr != nil {
		args = append(args, "actuator_error", o.ActuatorErr)
	}

	if o.Decision == authz.Indeterminate {
		l.logger.Warn("access indeterminate", args...)
		return nil
	}
	l.logger.Info("access "+o.Decision.String(), args...)
	return nil
}
