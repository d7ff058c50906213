package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/icusim/config"
	coremetrics "github.com/kilianp07/icusim/core/metrics"
	coremon "github.com/kilianp07/icusim/core/monitoring"
	"github.com/kilianp07/icusim/core/model"
	coremqtt "github.com/kilianp07/icusim/core/mqtt"
	"github.com/kilianp07/icusim/core/runlog"
	"github.com/kilianp07/icusim/infra/logger"
	"github.com/kilianp07/icusim/infra/mqtt"
)

const staysCSV = `DATE_START,DATE_END
2021-01-01,2021-01-05
2021-01-01,2021-01-03
2021-01-03,2021-01-04
2021-01-04,
2021-01-06,2021-01-02
`

type captureSink struct {
	mu        sync.Mutex
	rounds    int
	runs      []coremetrics.RunSample
	occupancy []coremetrics.OccupancySample
}

func (c *captureSink) RecordRound(coremetrics.RoundSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rounds++
	return nil
}

func (c *captureSink) RecordRun(s coremetrics.RunSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, s)
	return nil
}

func (c *captureSink) RecordOccupancy(s coremetrics.OccupancySample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.occupancy = append(c.occupancy, s)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	stays := filepath.Join(dir, "stays.csv")
	require.NoError(t, os.WriteFile(stays, []byte(staysCSV), 0o644))
	cfg := &config.Config{
		Simulation: config.SimulationConfig{Rounds: 20, Seed: 7, Workers: 2},
		Input:      config.InputConfig{StaysPath: stays},
		Output: config.OutputConfig{
			SummaryPath:  filepath.Join(dir, "out", "summary.csv"),
			EnsemblePath: filepath.Join(dir, "out", "ensemble.csv"),
		},
		RunLog: runlog.Config{Backend: "jsonl", Path: filepath.Join(dir, "runs.jsonl")},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, opts ...Option) (*Service, *captureSink, *mqtt.MockPublisher) {
	t.Helper()
	sink := &captureSink{}
	pub := mqtt.NewMockPublisher()
	opts = append([]Option{
		WithSink(sink),
		WithPublisher(pub),
		WithMonitor(coremon.NopMonitor{}),
		WithLogger(logger.NopLogger{}),
	}, opts...)
	svc, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, sink, pub
}

func TestLoadInputs(t *testing.T) {
	cfg := testConfig(t)
	in, err := LoadInputs(cfg.Input)
	require.NoError(t, err)
	assert.Equal(t, 5, in.Stays)
	assert.Equal(t, 1, in.Dropped)
	assert.Equal(t, 3, in.Sampler.Len())
	assert.Equal(t, 5, in.Admissions.Total())
	assert.Equal(t, 6, in.Admissions.Len())
}

func TestLoadInputs_Window(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.WindowStart = "2021-01-02"
	cfg.Input.WindowEnd = "2021-01-10"
	in, err := LoadInputs(cfg.Input)
	require.NoError(t, err)
	assert.Equal(t, 9, in.Admissions.Len())
	assert.Equal(t, 3, in.Admissions.Total())
}

func TestLoadInputs_Errors(t *testing.T) {
	_, err := LoadInputs(config.InputConfig{})
	assert.Error(t, err)

	cfg := testConfig(t)
	no := false
	cfg.Input.FilterInverted = &no
	_, err = LoadInputs(cfg.Input)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestServiceRun(t *testing.T) {
	cfg := testConfig(t)
	svc, sink, pub := newTestService(t, cfg)

	out, err := svc.Run(context.Background(), SourceCLI, coremqtt.RunRequest{RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, 20, out.Results.Rounds())
	assert.Len(t, out.Rows, out.Results.Days())
	assert.Equal(t, "completed", out.Record.Status)
	assert.Equal(t, SourceCLI, out.Record.Source)
	assert.Equal(t, 5, out.Record.Admitted)
	assert.Greater(t, out.Record.PeakMean, 0.0)

	for _, p := range []string{cfg.Output.SummaryPath, cfg.Output.EnsemblePath} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "date,"))
	}

	recs, err := svc.Store().Query(context.Background(), runlog.RunQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, out.Record.ID, recs[0].ID)

	published := pub.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "req-1", published[0].RequestID)
	assert.Equal(t, out.Record.ID, published[0].RunID)

	require.NoError(t, svc.Close())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 20, sink.rounds)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, "completed", sink.runs[0].Status)
	require.Len(t, sink.occupancy, 1)
	assert.Equal(t, out.Record.ID, sink.occupancy[0].RunID)
}

func TestServiceRun_RequestOverrides(t *testing.T) {
	svc, _, _ := newTestService(t, testConfig(t))
	seed := int64(99)
	a, err := svc.Run(context.Background(), SourceAPI, coremqtt.RunRequest{Rounds: 5, Seed: &seed})
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), SourceAPI, coremqtt.RunRequest{Rounds: 5, Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, 5, a.Record.Rounds)
	assert.Equal(t, int64(99), a.Record.Seed)
	assert.NotEqual(t, a.Record.ID, b.Record.ID)
	assert.Equal(t, a.Results.RawEnsemble(), b.Results.RawEnsemble())

	_, err = svc.Run(context.Background(), SourceAPI, coremqtt.RunRequest{Rounds: -1})
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestServiceRun_CancelledIsRecorded(t *testing.T) {
	mon := &captureMonitor{}
	svc, _, pub := newTestService(t, testConfig(t), WithMonitor(mon))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, SourceCLI, coremqtt.RunRequest{})
	assert.True(t, errors.Is(err, context.Canceled))

	recs, err := svc.Store().Query(context.Background(), runlog.RunQuery{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].Error)
	assert.Empty(t, pub.Published())
	assert.Empty(t, mon.errs)
}

type captureMonitor struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (m *captureMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}
func (m *captureMonitor) Recover()            {}
func (m *captureMonitor) Flush(time.Duration) {}

func TestServiceRun_ExportFailureIsReported(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.SummaryPath = t.TempDir()
	mon := &captureMonitor{}
	svc, _, pub := newTestService(t, cfg, WithMonitor(mon))

	_, err := svc.Run(context.Background(), SourceCLI, coremqtt.RunRequest{})
	require.Error(t, err)
	assert.Empty(t, pub.Published())

	mon.mu.Lock()
	defer mon.mu.Unlock()
	require.Len(t, mon.errs, 1)
	assert.Equal(t, SourceCLI, mon.tags[0]["source"])
	assert.NotEmpty(t, mon.tags[0]["run_id"])
}

func TestServiceRun_PublishFailureDoesNotFailRun(t *testing.T) {
	pub := mqtt.NewMockPublisher()
	pub.Fail = true
	svc, _, _ := newTestService(t, testConfig(t), WithPublisher(pub))
	_, err := svc.Run(context.Background(), SourceCLI, coremqtt.RunRequest{})
	assert.NoError(t, err)
}

func TestServiceHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Token = "secret"
	svc, _, _ := newTestService(t, cfg)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer secret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := do(http.MethodPost, "/api/runs", `{"rounds": 3}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created runlog.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, 3, created.Rounds)
	assert.Equal(t, SourceAPI, created.Source)

	resp = do(http.MethodGet, "/api/runs?status=completed", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []runlog.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.WithinDuration(t, created.Timestamp, listed[0].Timestamp, time.Second)

	resp = do(http.MethodPost, "/api/runs", `{"rounds": -2}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(http.MethodGet, "/metrics", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleRequest(t *testing.T) {
	svc, _, pub := newTestService(t, testConfig(t))
	svc.handleRequest(coremqtt.RunRequest{RequestID: "mqtt-1", Rounds: 2})
	require.Eventually(t, func() bool { return len(pub.Published()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "mqtt-1", pub.Published()[0].RequestID)

	recs, err := svc.Store().Query(context.Background(), runlog.RunQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, SourceMQTT, recs[0].Source)
}

type closeTrackingStore struct {
	runlog.NopStore
	mu          sync.Mutex
	closed      bool
	appends     int
	lateAppends int
}

func (s *closeTrackingStore) Append(context.Context, runlog.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.closed {
		s.lateAppends++
	}
	return nil
}

func (s *closeTrackingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestCloseWaitsForRequestRuns(t *testing.T) {
	store := &closeTrackingStore{}
	svc, _, pub := newTestService(t, testConfig(t), WithStore(store))

	svc.handleRequest(coremqtt.RunRequest{RequestID: "long", Rounds: 20000})
	require.NoError(t, svc.Close())

	store.mu.Lock()
	assert.Equal(t, 1, store.appends, "the request run is recorded before the store closes")
	assert.Zero(t, store.lateAppends)
	store.mu.Unlock()

	svc.handleRequest(coremqtt.RunRequest{RequestID: "late", Rounds: 2})
	_, err := svc.Run(context.Background(), SourceCLI, coremqtt.RunRequest{})
	assert.ErrorIs(t, err, ErrClosed)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.appends)
	assert.Zero(t, store.lateAppends)
	for _, s := range pub.Published() {
		assert.NotEqual(t, "late", s.RequestID)
	}
}
