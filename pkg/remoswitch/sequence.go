package remoswitch

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
)

// playSequence sends each step of the on or off sequence in order, pausing
// after each for its delay. The session must already be claimed by the
// caller; it is always released on return.
func (c *Controller) playSequence(ctx context.Context, on bool) error {
	defer func() {
		c.mu.Lock()
		c.inProgress = false
		c.mu.Unlock()
	}()

	steps := c.cfg.Sequence(on)
	slog.InfoContext(ctx, "Sending signals", "on", on, "steps", len(steps))

	for i, step := range steps {
		signal, ok := c.cfg.Signals[step.Signal]
		if !ok {
			err := errors.Errorf("unknown signal %q", step.Signal)
			slog.ErrorContext(ctx, "Sending signal failed", "error", err, "step", i)
			return err
		}

		err := c.transmitSignal(ctx, &signal)
		if err != nil {
			slog.ErrorContext(ctx, "Sending signal failed", "error", err, "signal", step.Signal, "step", i)
			c.invalidate(ctx)
			return errors.Wrapf(err, "sending signal %q", step.Signal)
		}

		if d := step.Duration(); d > 0 {
			<-c.clock.After(d)
		}
	}

	slog.InfoContext(ctx, "Finished sending signals", "on", on)
	return nil
}

func (c *Controller) transmitSignal(ctx context.Context, signal *remo.Signal) error {
	return c.transmitter.Emit(ctx, c.Address(), signal)
}
