package mqttstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTopics(t *testing.T) {
	tests := []struct {
		prefix, name string
		want         Topics
	}{
		{"remo-switch", "TV", Topics{"remo-switch/tv/state", "remo-switch/tv/availability"}},
		{"home/ir/", "Living Room  Fan", Topics{"home/ir/living-room-fan/state", "home/ir/living-room-fan/availability"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTopics(tt.prefix, tt.name))
		})
	}
}

func TestStatePayload(t *testing.T) {
	a := assert.New(t)
	a.Equal("on", statePayload(true))
	a.Equal("off", statePayload(false))
}
