package homekit

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v2"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/remo-switch/pkg/config"
	"github.com/ivanvanderbyl/remo-switch/pkg/discovery"
	"github.com/ivanvanderbyl/remo-switch/pkg/logging"
	"github.com/ivanvanderbyl/remo-switch/pkg/mqttstate"
	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
	"github.com/ivanvanderbyl/remo-switch/pkg/remoswitch"
)

type (
	// SwitchAccessory is the HomeKit face of a Controller: a switch that plays
	// the on/off sequences, plus an optional learn switch.
	SwitchAccessory struct {
		accessory *accessory.Switch
		learn     *service.Switch
	}
)

const (
	manufacturer = "Nature Japan"
	model        = "Nature Remo"
	serialNumber = "90-11-27"

	learnServiceName = "Learn Signal"

	// HAP status codes returned from value requests.
	statusSuccess              = 0
	statusCommunicationFailure = -70402
)

func AccessoryAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	if c.Bool("debug") {
		cfg.Log.Level = "debug"
	}
	logging.Setup(cfg.Log)

	ctx := slogctx.Append(c.Context, "name", cfg.Name)
	slog.InfoContext(ctx, "Starting HomeKit accessory")

	// Setup a listener for interrupts and SIGTERM signals
	// to stop the server.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sigChan:
			slog.Info("Interrupt signal received")
		case <-ctx.Done():
		}
		// Stop delivering signals.
		signal.Stop(sigChan)
		// Cancel the context to stop the server.
		cancel()
	}()

	sa := NewSwitchAccessory(cfg)
	opts := []remoswitch.Option{remoswitch.WithIndicator(sa)}

	if cfg.MQTT.Enabled() {
		pub, err := mqttstate.Connect(cfg.MQTT, cfg.Name)
		if err != nil {
			return errors.Wrap(err, "connecting to mqtt")
		}
		defer pub.Close()
		slog.InfoContext(ctx, "Mirroring state to MQTT", "topic", pub.Topics().State)
		opts = append(opts, remoswitch.WithStateListener(pub))
	}

	controller := remoswitch.New(cfg, discovery.NewScanner(), remo.NewClient(), opts...)
	sa.Bind(ctx, controller)

	p := pool.New().WithErrors().WithContext(ctx)

	// Resolve up front so the first toggle does not wait on discovery.
	p.Go(func(ctx context.Context) error {
		if addr, ok := controller.ResolveAddress(ctx); ok {
			slog.InfoContext(ctx, "Nature Remo ready", "address", addr)
		}
		return nil
	})

	p.Go(func(ctx context.Context) error {
		return startServer(ctx, cfg.HomeKit, sa.accessory.A, logging.ParseLevel(cfg.Log.Level) == slog.LevelDebug)
	})

	err = p.Wait()
	controller.Wait()
	return err
}

func NewSwitchAccessory(cfg *config.Config) *SwitchAccessory {
	acc := accessory.NewSwitch(accessory.Info{
		Name:         cfg.Name,
		SerialNumber: serialNumber,
		Manufacturer: manufacturer,
		Model:        model,
	})

	sa := &SwitchAccessory{accessory: acc}

	if cfg.LearnButton {
		learn := service.NewSwitch()
		name := characteristic.NewName()
		name.SetValue(learnServiceName)
		learn.AddC(name.C)
		acc.AddS(learn.S)
		sa.learn = learn
	}

	return sa
}

// Bind routes HomeKit reads and writes to the controller.
func (sa *SwitchAccessory) Bind(ctx context.Context, controller *remoswitch.Controller) {
	on := sa.accessory.Switch.On

	on.OnSetRemoteValue(func(v bool) error {
		slog.InfoContext(ctx, "Switch set", "on", v)
		err := controller.SetState(ctx, v)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to set switch", "error", err, "on", v)
			return errors.Wrap(err, "setting switch")
		}
		return nil
	})

	on.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		v, err := controller.GetState(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get switch state", "error", err)
			return nil, statusCommunicationFailure
		}
		return v, statusSuccess
	}

	if sa.learn == nil {
		return
	}

	sa.learn.On.OnSetRemoteValue(func(v bool) error {
		if !v {
			return nil
		}
		_, err := controller.FetchLastLearnedSignal(ctx)
		if err != nil {
			return errors.Wrap(err, "fetching learned signal")
		}
		return nil
	})

	sa.learn.On.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return false, statusSuccess
	}
}

func (sa *SwitchAccessory) UpdateOn(on bool) {
	sa.accessory.Switch.On.SetValue(on)
}

func (sa *SwitchAccessory) UpdateLearn(on bool) {
	if sa.learn == nil {
		return
	}
	sa.learn.On.SetValue(on)
}
