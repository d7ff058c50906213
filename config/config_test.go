package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `simulation:
  rounds: 250
  seed: 42
  workers: 4
  probabilities: [0.5, 0.9]
input:
  stays_path: "data/stays.csv.gz"
  date_layout: "02/01/2006"
  filter_inverted: false
  window_start: "2021-01-01"
  window_end: "2021-03-31"
output:
  summary_path: "out/summary.json"
  format: json
runlog:
  backend: sqlite
  path: "runs.db"
metrics:
  sinks:
    - type: "nop"
    - type: "influx"
      conf:
        url: "http://influx:8086"
        bucket: "icu"
  prometheus_port: ":9102"
mqtt:
  broker: "tcp://localhost:1883"
  summary_topic: "icu/summary"
  qos:
    summary: 1
api:
  token: "secret"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Simulation.Rounds)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, []float64{0.5, 0.9}, cfg.Simulation.Probabilities)
	assert.Equal(t, 4, cfg.Simulation.Core().Workers)

	assert.Equal(t, "data/stays.csv.gz", cfg.Input.StaysPath)
	assert.Equal(t, "DATE_START", cfg.Input.StartColumn)
	assert.Equal(t, "02/01/2006", cfg.Input.Options().Layout)
	assert.False(t, cfg.Input.Filter())
	start, end, err := cfg.Input.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC), end)

	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "sqlite", cfg.RunLog.Backend)
	assert.Equal(t, 10, cfg.RunLog.MaxSizeMB)

	require.Len(t, cfg.Metrics.Sinks, 2)
	assert.Equal(t, "influx", cfg.Metrics.Sinks[1].Type)
	assert.Equal(t, "icu", cfg.Metrics.Sinks[1].Conf["bucket"])
	assert.Equal(t, ":9102", cfg.Metrics.PrometheusPort)

	assert.Equal(t, "icu/summary", cfg.MQTT.SummaryTopic)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["summary"])
	assert.Equal(t, 3, cfg.MQTT.MaxRetries)

	assert.Equal(t, ":8080", cfg.API.Address)
	assert.Equal(t, "secret", cfg.API.Token)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{"input":{"stays_path":"stays.csv"}}`))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Simulation.Rounds)
	assert.Equal(t, []float64{0.5, 0.95}, cfg.Simulation.Probabilities)
	assert.True(t, cfg.Input.Filter())
	assert.Equal(t, "2006-01-02", cfg.Input.DateLayout)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, "none", cfg.RunLog.Backend)
	assert.False(t, cfg.MQTT.Enabled())
	assert.Empty(t, cfg.MQTT.SummaryTopic)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("K_SIMULATION__ROUNDS", "7")
	t.Setenv("K_SIMULATION__SEED", "99")
	t.Setenv("K_API__TOKEN", "from-env")
	t.Setenv("K_SENTRY__ENVIRONMENT", "staging")
	cfg, err := Load(writeConfig(t, "config.yaml", "simulation:\n  rounds: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Simulation.Rounds)
	assert.Equal(t, int64(99), cfg.Simulation.Seed)
	assert.Equal(t, "from-env", cfg.API.Token)
	assert.Equal(t, "staging", cfg.Sentry.Environment)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Simulation.Rounds)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"rounds":      "simulation:\n  rounds: -2\n",
		"probability": "simulation:\n  probabilities: [1.5]\n",
		"window":      "input:\n  window_start: \"2021-01-01\"\n",
		"window date": "input:\n  window_start: \"01/01/2021\"\n  window_end: \"2021-02-01\"\n",
		"format":      "output:\n  format: xml\n",
		"runlog":      "runlog:\n  backend: sqlite\n",
		"mqtt qos":    "mqtt:\n  broker: tcp://b\n  qos:\n    summary: 5\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeConfig(t, "config.toml", "x = 1"))
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
