package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
name: TV
instance: Remo-1A2B
learnButton: true
signals:
  power: {format: us, freq: 38, data: [3400, 1700, 450]}
  input: {format: us, freq: 38, data: [3400, 1700]}
on:
  - signal: power
  - signal: input
    delay: 500
off:
  - signal: power
`

func TestParse(t *testing.T) {
	a := assert.New(t)

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	a.Equal("TV", cfg.Name)
	a.Equal("Remo-1A2B", cfg.Instance)
	a.True(cfg.LearnButton)
	a.Len(cfg.Signals, 2)
	a.Equal("us", cfg.Signals["power"].Format)
	a.Len(cfg.Signals["power"].Data, 3)

	a.Equal([]Step{{Signal: "power"}, {Signal: "input", Delay: 500}}, cfg.Sequence(true))
	a.Equal([]Step{{Signal: "power"}}, cfg.Sequence(false))
	a.Equal(500*time.Millisecond, cfg.On[1].Duration())
	a.Equal(time.Duration(0), cfg.On[0].Duration())

	// Defaults
	a.Equal("_remo._tcp", cfg.Service)
	a.Equal("./db", cfg.HomeKit.StoragePath)
	a.Equal("info", cfg.Log.Level)
	a.Equal("text", cfg.Log.Format)
	a.False(cfg.MQTT.Enabled())
}

func TestParseJSON(t *testing.T) {
	a := assert.New(t)

	cfg, err := Parse([]byte(`{
		"name": "Fan",
		"signals": {"toggle": {"format": "us", "freq": 38, "data": [1, 2]}},
		"on": [{"signal": "toggle", "delay": 100}],
		"off": [{"signal": "toggle"}]
	}`))
	require.NoError(t, err)

	a.Equal("Fan", cfg.Name)
	a.Equal(100, cfg.On[0].Delay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", `{signals: {}, on: [], off: []}`},
		{"unknown signal", `{name: TV, signals: {}, on: [{signal: power}]}`},
		{"negative delay", `{name: TV, signals: {p: {format: us}}, off: [{signal: p, delay: -1}]}`},
		{"bad qos", `{name: TV, mqtt: {qos: 3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	a := assert.New(t)

	t.Setenv("REMO_TEST_BROKER", "tcp://broker:1883")
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(sampleYAML+"mqtt:\n  broker: ${REMO_TEST_BROKER}\n"), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	a.Equal("tcp://broker:1883", cfg.MQTT.Broker)
	a.True(cfg.MQTT.Enabled())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	a.Error(err)
}
