package remoswitch

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
)

// FetchLastLearnedSignal reads the most recent signal the Remo received, so
// it can be copied into the config. The learn switch is turned back off a
// second later whatever the outcome.
func (c *Controller) FetchLastLearnedSignal(ctx context.Context) (*remo.Signal, error) {
	addr, ok := c.ResolveAddress(ctx)
	if !ok {
		return nil, ErrDeviceNotFound
	}
	defer c.scheduleLearnReset(context.WithoutCancel(ctx))

	signal, err := c.transmitter.Fetch(ctx, addr)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch signal", "error", err)
		c.invalidate(context.WithoutCancel(ctx))
		return nil, errors.Wrap(err, "fetching last signal")
	}

	slog.InfoContext(ctx, "Last signal", "signal", remo.FormatSignal(signal))
	return signal, nil
}

func (c *Controller) scheduleLearnReset(ctx context.Context) {
	if c.indicator == nil {
		return
	}

	c.tasks.Go(func() {
		<-c.clock.After(learnResetDelay)
		slog.DebugContext(ctx, "Resetting learn switch")
		c.indicator.UpdateLearn(false)
	})
}
