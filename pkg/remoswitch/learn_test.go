package remoswitch

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ivanvanderbyl/remo-switch/pkg/discovery"
	"github.com/ivanvanderbyl/remo-switch/pkg/remo"
)

func TestFetchLastLearnedSignal(t *testing.T) {
	a := assert.New(t)
	h := newHarness(testConfig(nil, nil), []discovery.Device{livingRoom})
	h.tx.fetched = &remo.Signal{Format: "us", Freq: 38}

	signal, err := h.ctrl.FetchLastLearnedSignal(context.Background())
	a.NoError(err)
	a.Equal("us", signal.Format)
	a.Equal("10.0.0.1", h.ctrl.Address())

	h.clock.BlockUntil(1)
	a.Empty(h.indicator.learn)

	h.clock.Advance(learnResetDelay)
	h.ctrl.Wait()

	select {
	case on := <-h.indicator.learn:
		a.False(on)
	case <-time.After(time.Second):
		t.Fatal("learn switch was not reset")
	}
}

func TestFetchLastLearnedSignalFailure(t *testing.T) {
	a := assert.New(t)
	h := newHarness(testConfig(nil, nil), []discovery.Device{livingRoom}, []discovery.Device{})
	h.tx.fetchErr = errors.New("i/o timeout")

	_, err := h.ctrl.FetchLastLearnedSignal(context.Background())
	a.Error(err)
	a.Contains(err.Error(), "i/o timeout")

	h.clock.BlockUntil(1)
	h.clock.Advance(learnResetDelay)
	h.ctrl.Wait()

	a.Equal("", h.ctrl.Address())
	a.Equal(2, h.scanner.Calls())
	a.False(<-h.indicator.learn)
}

func TestFetchLastLearnedSignalWithoutDevice(t *testing.T) {
	a := assert.New(t)
	h := newHarness(testConfig(nil, nil), []discovery.Device{})

	_, err := h.ctrl.FetchLastLearnedSignal(context.Background())
	a.True(errors.Is(err, ErrDeviceNotFound))

	h.ctrl.Wait()
	a.Empty(h.indicator.learn)
}
