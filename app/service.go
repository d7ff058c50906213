package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/icusim/api/runs"
	"github.com/kilianp07/icusim/config"
	"github.com/kilianp07/icusim/core/events"
	coremetrics "github.com/kilianp07/icusim/core/metrics"
	coremon "github.com/kilianp07/icusim/core/monitoring"
	"github.com/kilianp07/icusim/core/model"
	coremqtt "github.com/kilianp07/icusim/core/mqtt"
	"github.com/kilianp07/icusim/core/runlog"
	"github.com/kilianp07/icusim/core/simulation"
	"github.com/kilianp07/icusim/infra/logger"
	"github.com/kilianp07/icusim/infra/metrics"
	"github.com/kilianp07/icusim/infra/monitoring"
	"github.com/kilianp07/icusim/infra/mqtt"
	"github.com/kilianp07/icusim/internal/eventbus"
	"github.com/kilianp07/icusim/pkg/export"
)

// Run sources stored in RunRecord.Source.
const (
	SourceCLI  = "cli"
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Outcome is the result of a successful run.
type Outcome struct {
	Record  runlog.RunRecord
	Results *simulation.Results
	Rows    []simulation.SummaryRow
}

// Service wires the inputs, the simulator and every output of a run.
type Service struct {
	cfg    *config.Config
	inputs *Inputs
	format export.Format

	bus   *eventbus.Bus
	sink  coremetrics.MetricsSink
	store runlog.Store
	pub   coremqtt.Publisher
	mon   coremon.Monitor
	log   logger.Logger

	collectorDone <-chan struct{}
	stopCollector context.CancelFunc

	// reqCtx is cancelled by Close to abort runs started from MQTT requests.
	reqCtx    context.Context
	cancelReq context.CancelFunc
	reqMu     sync.Mutex
	closing   bool
	reqs      sync.WaitGroup

	// mu serializes runs; each run already uses every worker.
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// ErrClosed is returned by Run once the service is closed.
var ErrClosed = errors.New("service closed")

// Option overrides a collaborator built from the configuration.
type Option func(*Service)

// WithInputs uses in instead of reading the input files.
func WithInputs(in *Inputs) Option { return func(s *Service) { s.inputs = in } }

// WithSink replaces the configured metrics sinks.
func WithSink(sink coremetrics.MetricsSink) Option { return func(s *Service) { s.sink = sink } }

// WithStore replaces the configured run log.
func WithStore(store runlog.Store) Option { return func(s *Service) { s.store = store } }

// WithPublisher replaces the MQTT publisher.
func WithPublisher(p coremqtt.Publisher) Option { return func(s *Service) { s.pub = p } }

// WithMonitor replaces the Sentry monitor.
func WithMonitor(m coremon.Monitor) Option { return func(s *Service) { s.mon = m } }

// WithLogger replaces the service logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, format: format, bus: eventbus.New(eventbus.WithBlocking())}
	s.reqCtx, s.cancelReq = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.New("service")
	}
	if s.mon == nil {
		if s.mon, err = monitoring.NewSentryMonitor(cfg.Sentry); err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
	}
	if s.inputs == nil {
		if s.inputs, err = LoadInputs(cfg.Input); err != nil {
			return nil, fmt.Errorf("inputs: %w", err)
		}
	}
	s.log.Infof("loaded %d stays (%d dropped) and %s", s.inputs.Stays, s.inputs.Dropped, s.inputs.Admissions)
	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	if s.store == nil {
		if s.store, err = runlog.Open(cfg.RunLog); err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
	}
	if s.pub == nil {
		s.pub = coremqtt.NopPublisher{}
		if cfg.MQTT.Enabled() {
			p, err := mqtt.NewPahoPublisher(cfg.MQTT, s.handleRequest)
			if err != nil {
				_ = s.store.Close()
				return nil, fmt.Errorf("mqtt publisher: %w", err)
			}
			s.pub = p
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCollector = cancel
	s.collectorDone = metrics.StartEventCollector(ctx, s.bus, s.sink)
	return s, nil
}

// Inputs returns the loaded inputs.
func (s *Service) Inputs() *Inputs { return s.inputs }

// Store returns the run log.
func (s *Service) Store() runlog.Store { return s.store }

// Run executes one simulation with the configured parameters, overridden by
// the non-zero fields of req. Results are exported, recorded and published.
// Failures after the simulation finished are logged and do not fail the run,
// except for exports.
func (s *Service) Run(ctx context.Context, source string, req coremqtt.RunRequest) (*Outcome, error) {
	if req.Rounds < 0 {
		return nil, fmt.Errorf("%w: rounds must be >= 1, got %d", model.ErrInvalidArgument, req.Rounds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	simCfg := s.cfg.Simulation.Core()
	if req.Rounds > 0 {
		simCfg.Rounds = req.Rounds
	}
	if req.Seed != nil {
		simCfg.Seed = *req.Seed
	}
	runID := uuid.NewString()
	sim, err := simulation.New(s.inputs.Admissions, s.inputs.Sampler, simCfg,
		simulation.WithRunID(runID),
		simulation.WithLogger(s.log),
		simulation.WithObserver(simulation.Observers{
			events.NewRoundPublisher(s.bus),
			simulation.LogProgress(s.log, simCfg.Rounds),
		}),
	)
	if err != nil {
		return nil, err
	}
	start, days := sim.Horizon()
	rec := runlog.RunRecord{
		ID:           runID,
		Timestamp:    time.Now().UTC(),
		Seed:         simCfg.Seed,
		Rounds:       simCfg.Rounds,
		Workers:      sim.Config().Workers,
		HorizonStart: start,
		HorizonDays:  days,
		Admitted:     s.inputs.Admissions.Total(),
		Source:       source,
	}
	s.bus.Publish(events.RunEvent{RunID: runID, Status: events.RunStarted, Rounds: simCfg.Rounds})

	res, err := sim.RunAll(ctx)
	if err != nil {
		return nil, s.fail(ctx, rec, err)
	}
	rows, err := res.Summary(s.cfg.Simulation.Probabilities...)
	if err != nil {
		return nil, s.fail(ctx, rec, err)
	}
	if err := s.export(rows, res); err != nil {
		return nil, s.fail(ctx, rec, fmt.Errorf("export: %w", err))
	}
	rec.PeakDate, rec.PeakMean = res.Peak()
	rec.ElapsedMS = res.Elapsed().Milliseconds()
	rec.Status = string(events.RunCompleted)

	if r, ok := s.sink.(coremetrics.OccupancyRecorder); ok {
		if err := r.RecordOccupancy(coremetrics.OccupancySample{RunID: runID, Rows: rows}); err != nil {
			s.log.Warnf("record occupancy of run %s: %v", runID, err)
		}
	}
	s.bus.Publish(events.RunEvent{
		RunID:    runID,
		Status:   events.RunCompleted,
		Rounds:   simCfg.Rounds,
		Elapsed:  res.Elapsed(),
		PeakDate: rec.PeakDate,
		PeakMean: rec.PeakMean,
	})
	if err := s.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Errorf("append run %s: %v", runID, err)
	}
	summary := coremqtt.Summary{
		RunID:     runID,
		RequestID: req.RequestID,
		Timestamp: rec.Timestamp,
		Seed:      rec.Seed,
		Rounds:    rec.Rounds,
		PeakDate:  rec.PeakDate,
		PeakMean:  rec.PeakMean,
		Rows:      rows,
	}
	if err := s.pub.PublishSummary(summary); err != nil {
		s.log.Errorf("publish summary of run %s: %v", runID, err)
	}
	s.log.Infof("run %s: peak %.1f beds on %s", runID, rec.PeakMean, rec.PeakDate.Format(time.DateOnly))
	return &Outcome{Record: rec, Results: res, Rows: rows}, nil
}

func (s *Service) fail(ctx context.Context, rec runlog.RunRecord, err error) error {
	rec.Status = string(events.RunFailed)
	rec.Error = err.Error()
	s.bus.Publish(events.RunEvent{RunID: rec.ID, Status: events.RunFailed, Rounds: rec.Rounds, Err: err})
	if !errors.Is(err, context.Canceled) {
		s.mon.CaptureException(err, map[string]string{"run_id": rec.ID, "source": rec.Source})
	}
	if aerr := s.store.Append(context.WithoutCancel(ctx), rec); aerr != nil {
		s.log.Errorf("append run %s: %v", rec.ID, aerr)
	}
	return err
}

func (s *Service) export(rows []simulation.SummaryRow, res *simulation.Results) error {
	out := s.cfg.Output
	if out.SummaryPath != "" {
		if err := export.WriteSummaryFile(out.SummaryPath, s.format, rows); err != nil {
			return err
		}
	}
	if out.EnsemblePath != "" {
		if err := export.WriteEnsembleFile(out.EnsemblePath, s.format, res); err != nil {
			return err
		}
	}
	return nil
}

// handleRequest runs an MQTT run request in the background. Requests
// arriving after Close has started are ignored.
func (s *Service) handleRequest(req coremqtt.RunRequest) {
	s.reqMu.Lock()
	if s.closing {
		s.reqMu.Unlock()
		s.log.Warnf("ignoring run request %s: service closing", req.RequestID)
		return
	}
	s.reqs.Add(1)
	s.reqMu.Unlock()
	go func() {
		defer s.reqs.Done()
		defer s.mon.Recover()
		if _, err := s.Run(s.reqCtx, SourceMQTT, req); err != nil {
			s.log.Errorf("run request %s: %v", req.RequestID, err)
		}
	}()
}

// Handler returns the HTTP routes of the service: /metrics and /api/runs.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.Metrics.PrometheusPort == "" {
		mux.Handle("/metrics", metrics.NewMetricsHandler(nil))
	}
	runner := runs.RunnerFunc(func(r *http.Request, req coremqtt.RunRequest) (runlog.RunRecord, error) {
		out, err := s.Run(r.Context(), SourceAPI, req)
		if err != nil {
			return runlog.RunRecord{}, err
		}
		return out.Record, nil
	})
	mux.Handle("/api/runs", runs.NewHandler(s.store, runner, s.cfg.API.Token))
	return mux
}

// Serve starts the HTTP server and blocks until the context is cancelled.
// A configured Prometheus port gets its own metrics server.
func (s *Service) Serve(ctx context.Context) error {
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	srv := &http.Server{Addr: s.cfg.API.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.log.Infof("serving on %s", srv.Addr)
	return metrics.Serve(ctx, srv)
}

// Close stops accepting MQTT requests, aborts and waits for the runs they
// started, flushes pending metrics and releases the broker connection and
// the run log.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.reqMu.Lock()
		s.closing = true
		s.reqMu.Unlock()
		s.cancelReq()
		s.reqs.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		s.pub.Disconnect()
		s.bus.Close()
		<-s.collectorDone
		s.stopCollector()
		if d := s.bus.Dropped(); d > 0 {
			s.log.Warnf("%d metric events dropped", d)
		}
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		err = s.store.Close()
		s.mon.Flush(2 * time.Second)
	})
	return err
}
