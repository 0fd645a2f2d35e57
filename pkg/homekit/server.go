package homekit

import (
	"context"
	syslog "log"
	"log/slog"
	"os"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/log"
	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/remo-switch/pkg/config"
)

func startServer(ctx context.Context, cfg config.HomeKitConfig, a *accessory.A, debug bool) error {
	slog.InfoContext(ctx, "Starting HomeKit server", "storage", cfg.StoragePath)

	fs := hap.NewFsStore(cfg.StoragePath)

	if debug {
		newLogger := syslog.New(os.Stdout, "SERV ", syslog.LstdFlags|syslog.Lshortfile)
		log.Debug = &log.Logger{Logger: newLogger}
	}

	// Create the hap server.
	server, err := hap.NewServer(fs, a)
	if err != nil {
		return errors.Wrap(err, "creating server")
	}
	if cfg.Pin != "" {
		server.Pin = cfg.Pin
	}
	if cfg.Addr != "" {
		server.Addr = cfg.Addr
	}

	// Run the server.
	return server.ListenAndServe(ctx)
}
