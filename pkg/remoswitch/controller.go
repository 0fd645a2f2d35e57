package remoswitch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"

	"github.com/ivanvanderbyl/remo-switch/pkg/config"
	"github.com/ivanvanderbyl/remo-switch/pkg/discovery"
	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
)

type (
	// Scanner finds devices advertising a service on the local network.
	Scanner interface {
		Scan(ctx context.Context, service string) ([]discovery.Device, error)
	}

	// Transmitter talks to a Remo at a given address.
	Transmitter interface {
		Emit(ctx context.Context, addr string, signal *remo.Signal) error
		Fetch(ctx context.Context, addr string) (*remo.Signal, error)
	}

	// Indicator reflects controller state back into the host accessory.
	Indicator interface {
		UpdateOn(on bool)
		UpdateLearn(on bool)
	}

	// StateListener is told about every accepted state change.
	StateListener interface {
		StateChanged(ctx context.Context, on bool)
	}

	Option func(*Controller)
)

const (
	// correctionDelay is how long a rejected toggle waits before the switch
	// is flipped back in the host.
	correctionDelay = 100 * time.Millisecond

	// learnResetDelay is how long the learn switch stays on after a fetch.
	learnResetDelay = time.Second

	resolveKey = "address"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrSessionActive  = errors.New("signals are still being sent")
)

// Controller drives a single Remo as an on/off switch. It owns the cached
// device address, the switch state and the background tasks that send
// signal sequences.
type Controller struct {
	cfg         *config.Config
	scanner     Scanner
	transmitter Transmitter
	indicator   Indicator
	listeners   []StateListener
	clock       clockwork.Clock

	resolving singleflight.Group
	tasks     conc.WaitGroup

	mu         sync.Mutex
	address    string
	state      bool
	inProgress bool

	// Accepted state changes waiting to reach the listeners, oldest first.
	// At most one drain task runs at a time.
	deliveryMu sync.Mutex
	pending    []stateChange
	draining   bool
}

type stateChange struct {
	ctx context.Context
	on  bool
}

func WithIndicator(i Indicator) Option {
	return func(c *Controller) { c.indicator = i }
}

func WithStateListener(l StateListener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func New(cfg *config.Config, scanner Scanner, transmitter Transmitter, opts ...Option) *Controller {
	c := &Controller{
		cfg:         cfg,
		scanner:     scanner,
		transmitter: transmitter,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the cached device address, or "" when unresolved.
func (c *Controller) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Controller) State() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InProgress reports whether a sequence is currently being sent.
func (c *Controller) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

// Wait blocks until every background task has finished.
func (c *Controller) Wait() {
	c.tasks.Wait()
}

func (c *Controller) setAddress(addr string) {
	c.mu.Lock()
	c.address = addr
	c.mu.Unlock()
}

// ResolveAddress returns the cached address or discovers it. Concurrent
// callers share a single discovery.
func (c *Controller) ResolveAddress(ctx context.Context) (string, bool) {
	if addr := c.Address(); addr != "" {
		return addr, true
	}

	v, _, _ := c.resolving.Do(resolveKey, func() (any, error) {
		if addr := c.Address(); addr != "" {
			return addr, nil
		}
		return c.discover(context.WithoutCancel(ctx)), nil
	})

	addr, _ := v.(string)
	return addr, addr != ""
}

func (c *Controller) discover(ctx context.Context) string {
	slog.InfoContext(ctx, "Searching for Nature Remo devices", "service", c.cfg.Service)

	devices, err := c.scanner.Scan(ctx, c.cfg.Service)
	if err != nil {
		slog.WarnContext(ctx, "Discovery failed", "error", err)
		devices = nil
	}

	if len(devices) == 0 {
		c.setAddress("")
		slog.WarnContext(ctx, "No Nature Remo device found")
		return ""
	}

	device, ok := selectDevice(devices, c.cfg.Instance)
	if !ok {
		slog.WarnContext(ctx, "Unable to find device with instance name", "instance", c.cfg.Instance, "found-count", len(devices))
		return ""
	}

	c.setAddress(device.Address)
	slog.InfoContext(ctx, "Found Nature Remo", "address", device.Address, "identifier", device.Identifier)
	return device.Address
}

func selectDevice(devices []discovery.Device, instance string) (discovery.Device, bool) {
	if instance == "" {
		return devices[0], true
	}

	for _, d := range devices {
		if strings.Contains(d.Identifier, instance) {
			return d, true
		}
	}
	return discovery.Device{}, false
}

// invalidate drops the cached address and starts a fresh resolution that
// nobody waits on.
func (c *Controller) invalidate(ctx context.Context) {
	c.setAddress("")
	c.tasks.Go(func() {
		c.ResolveAddress(ctx)
	})
}

// SetState requests the switch be turned on or off. It returns as soon as
// the request is accepted; the signals are sent in the background.
func (c *Controller) SetState(ctx context.Context, on bool) error {
	if _, ok := c.ResolveAddress(ctx); !ok {
		return ErrDeviceNotFound
	}

	c.mu.Lock()
	if on == c.state {
		c.mu.Unlock()
		return nil
	}

	// The host has already flipped its switch, so it gets flipped back once
	// the request has been acknowledged.
	if c.inProgress {
		c.mu.Unlock()
		slog.InfoContext(ctx, "Ignoring toggle while signals are being sent", "requested", on)
		c.scheduleCorrection(context.WithoutCancel(ctx))
		return nil
	}

	bg := context.WithoutCancel(ctx)
	c.inProgress = true
	c.state = on
	c.notify(bg, on)
	c.mu.Unlock()

	c.tasks.Go(func() {
		_ = c.playSequence(bg, on)
	})

	return nil
}

// GetState returns the last accepted state. It fails while no device can be
// resolved.
func (c *Controller) GetState(ctx context.Context) (bool, error) {
	if _, ok := c.ResolveAddress(ctx); !ok {
		return false, ErrDeviceNotFound
	}
	return c.State(), nil
}

// Play sends the sequence for on and waits for it to finish. Unlike SetState
// it always plays, even if the state already matches.
func (c *Controller) Play(ctx context.Context, on bool) error {
	if _, ok := c.ResolveAddress(ctx); !ok {
		return ErrDeviceNotFound
	}

	c.mu.Lock()
	if c.inProgress {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.inProgress = true
	c.state = on
	c.notify(context.WithoutCancel(ctx), on)
	c.mu.Unlock()

	return c.playSequence(ctx, on)
}

func (c *Controller) scheduleCorrection(ctx context.Context) {
	c.tasks.Go(func() {
		<-c.clock.After(correctionDelay)

		c.mu.Lock()
		busy, state := c.inProgress, c.state
		c.mu.Unlock()

		if busy && c.indicator != nil {
			slog.DebugContext(ctx, "Restoring switch state", "on", state)
			c.indicator.UpdateOn(state)
		}
	})
}

// notify queues a state change for the listeners. It is called with c.mu
// held so the queue order matches the order the state was flipped in.
func (c *Controller) notify(ctx context.Context, on bool) {
	if len(c.listeners) == 0 {
		return
	}

	c.deliveryMu.Lock()
	defer c.deliveryMu.Unlock()

	c.pending = append(c.pending, stateChange{ctx: ctx, on: on})
	if c.draining {
		return
	}
	c.draining = true
	c.tasks.Go(c.deliver)
}

// deliver hands queued changes to every listener, one change at a time.
func (c *Controller) deliver() {
	for {
		c.deliveryMu.Lock()
		if len(c.pending) == 0 {
			c.draining = false
			c.deliveryMu.Unlock()
			return
		}
		change := c.pending[0]
		c.pending = c.pending[1:]
		c.deliveryMu.Unlock()

		for _, l := range c.listeners {
			l.StateChanged(change.ctx, change.on)
		}
	}
}
