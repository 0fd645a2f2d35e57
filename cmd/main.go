package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	slogctx "github.com/veqryn/slog-context"

	"github.com/ivanvanderbyl/remo-switch/pkg/config"
	"github.com/ivanvanderbyl/remo-switch/pkg/discovery"
	"github.com/ivanvanderbyl/remo-switch/pkg/homekit"
	"github.com/ivanvanderbyl/remo-switch/pkg/logging"
	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
	"github.com/ivanvanderbyl/remo-switch/pkg/remoswitch"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the switch config file (YAML or JSON)",
		EnvVars:  []string{"REMO_SWITCH_CONFIG"},
		Required: true,
	}

	app := &cli.App{
		Name:  "remo-switch",
		Usage: "Nature Remo infrared sequences as a HomeKit switch",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HomeKit accessory",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Enable debug logging, including the HAP server",
					},
				},
				Action: homekit.AccessoryAction,
			},
			{
				Name:  "discover",
				Usage: "Search for Nature Remo devices on the network",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "service",
						Usage: "mDNS service type to browse",
						Value: discovery.ServiceType,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for answers",
						Value: discovery.DefaultScanTimeout,
					},
				},
				Action: func(c *cli.Context) error {
					scanner := discovery.NewScanner()
					scanner.Timeout = c.Duration("timeout")

					devices, err := scanner.Scan(c.Context, c.String("service"))
					if err != nil {
						slog.Error("Error searching for devices", "error", err)
						return err
					}

					if len(devices) == 0 {
						fmt.Println("No Nature Remo devices found")
						return nil
					}
					for _, d := range devices {
						fmt.Printf("%s\t%s:%d\n", d.Identifier, d.Address, d.Port)
					}
					return nil
				},
			},
			{
				Name:  "send",
				Usage: "Play the on or off sequence once",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "state",
						Usage:    "Sequence to play: on or off",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					on, err := parseState(c.String("state"))
					if err != nil {
						return err
					}

					ctx, controller, err := newController(c)
					if err != nil {
						return err
					}
					defer controller.Wait()

					fmt.Printf("Sending %s sequence...\n", formatBoolean(on))
					err = controller.Play(ctx, on)
					if err != nil {
						slog.ErrorContext(ctx, "Failed to send sequence", "error", err)
						return err
					}

					slog.InfoContext(ctx, "Sequence sent", "address", controller.Address())
					return nil
				},
			},
			{
				Name:  "learn",
				Usage: "Print the last signal received by the Nature Remo",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					ctx, controller, err := newController(c)
					if err != nil {
						return err
					}
					defer controller.Wait()

					signal, err := controller.FetchLastLearnedSignal(ctx)
					if err != nil {
						slog.ErrorContext(ctx, "Failed to fetch signal", "error", err)
						return err
					}

					fmt.Printf("format: %s\nfreq: %v\ndata: %v\n", signal.Format, signal.Freq, signal.Data)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newController(c *cli.Context) (context.Context, *remoswitch.Controller, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading config")
	}
	logging.Setup(cfg.Log)

	ctx := slogctx.Append(c.Context, "name", cfg.Name)
	controller := remoswitch.New(cfg, discovery.NewScanner(), remo.NewClient())
	return ctx, controller, nil
}

func parseState(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, errors.Errorf("invalid state %q, want on or off", s)
}

func formatBoolean(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}
