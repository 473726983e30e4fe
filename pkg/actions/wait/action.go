// Package wait implements the wait action and the duration rules shared with wait steps.
package wait

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/deskflow/pkg/actions"
	"github.com/dukex/deskflow/pkg/models"
	"github.com/dukex/deskflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

var unitMultipliers = map[string]float64{
	"seconds": 1000,
	"minutes": 60000,
	"hours":   3.6e6,
	"days":    8.64e7,
}

// Duration converts duration*unit to a time.Duration; unknown units count as seconds.
func Duration(duration float64, unit string) time.Duration {
	multiplier, ok := unitMultipliers[unit]
	if !ok {
		multiplier = unitMultipliers["seconds"]
	}

	return time.Duration(duration * multiplier * float64(time.Millisecond))
}

// Sleep blocks for d on clock or until ctx is done.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// ActionFactory builds wait actions.
type ActionFactory struct {
	clock clockwork.Clock
}

// NewActionFactory creates the factory. A nil clock means the real clock.
func NewActionFactory(clock clockwork.Clock) *ActionFactory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &ActionFactory{clock: clock}
}

func (f *ActionFactory) ID() string {
	return "wait"
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	duration, ok := models.ToFloat(config["duration"])
	if !ok {
		duration, ok = models.ToFloat(config["value"])
	}

	if !ok || duration < 0 {
		return nil, actions.Missing("duration")
	}

	unit, _ := config["unit"].(string)

	return &Action{clock: f.clock, duration: duration, unit: unit}, nil
}

// Action suspends the execution.
type Action struct {
	clock    clockwork.Clock
	duration float64
	unit     string
}

func (a *Action) Execute(ctx context.Context, execCtx *models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	d := Duration(a.duration, a.unit)
	result := map[string]any{"duration": a.duration, "unit": a.unit, "waitMs": d.Milliseconds()}

	if execCtx.TestMode {
		result["waited"] = false

		return result, nil
	}

	logger.DebugContext(ctx, "Waiting", "wait_ms", d.Milliseconds())

	err := Sleep(ctx, a.clock, d)
	if err != nil {
		return nil, err
	}

	result["waited"] = true

	return result, nil
}
