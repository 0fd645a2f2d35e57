package remo

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/tenntenn/natureremo"
)

// Client sends and reads signals through the local API of a Remo. It is
// addressed per call since the device address may change between calls.
type Client struct {
	Timeout time.Duration
}

func NewClient() *Client {
	return &Client{Timeout: DefaultTimeout}
}

func (c *Client) local(addr string) *natureremo.LocalClient {
	lc := natureremo.NewLocalClient(addr)
	lc.HTTPClient = &http.Client{Timeout: c.Timeout}
	return lc
}

// Emit transmits a signal from the Remo at addr.
func (c *Client) Emit(ctx context.Context, addr string, signal *Signal) error {
	if addr == "" {
		return ErrNoAddress
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	err := c.local(addr).Emit(ctx, signal)
	if err != nil {
		return errors.Wrapf(err, "emitting signal via %s", addr)
	}

	return nil
}

// Fetch returns the last signal the Remo at addr received.
func (c *Client) Fetch(ctx context.Context, addr string) (*Signal, error) {
	if addr == "" {
		return nil, ErrNoAddress
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	signal, err := c.local(addr).Fetch(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching signal from %s", addr)
	}

	return signal, nil
}
