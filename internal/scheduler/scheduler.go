package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindmap-dev/mindmap/internal/metrics"
	"github.com/mindmap-dev/mindmap/internal/monitors"
	"github.com/mindmap-dev/mindmap/internal/types"
	"github.com/sirupsen/logrus"
)

// Probe is one named reachability check run on a fixed interval.
type Probe struct {
	Name     string
	Kind     types.ProbeKind
	Target   string
	Interval time.Duration
	Check    func(ctx context.Context) error
}

type Scheduler struct {
	probes  map[string]*ProbeJob // probe name -> job
	results map[string]types.ProbeResult
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logrus.Logger
	metrics *metrics.Metrics
}

type ProbeJob struct {
	probe  Probe
	ticker *time.Ticker
	cancel context.CancelFunc
}

// NewScheduler initializes a new Scheduler instance. m may be nil.
func NewScheduler(log *logrus.Logger, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		probes:  make(map[string]*ProbeJob),
		results: make(map[string]types.ProbeResult),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
		metrics: m,
	}
}

// DatabaseProbe pings the pool.
func DatabaseProbe(db monitors.Pinger, interval time.Duration) Probe {
	return Probe{
		Name:     "database",
		Kind:     types.ProbeDatabase,
		Target:   "database",
		Interval: interval,
		Check: func(ctx context.Context) error {
			return monitors.CheckDatabase(ctx, db, 0)
		},
	}
}

// HTTPProbe sends a GET to url; anything below 500 is up.
func HTTPProbe(name, url string, interval time.Duration) Probe {
	cfg := types.HttpConfig{Method: "GET", URL: url}

	return Probe{
		Name:     name,
		Kind:     types.ProbeHTTP,
		Target:   url,
		Interval: interval,
		Check: func(ctx context.Context) error {
			return monitors.CheckHTTP(ctx, &cfg)
		},
	}
}

// Start begins scheduling the given probes
func (s *Scheduler) Start(probes ...Probe) {
	s.log.Info("Starting scheduler...")

	for _, probe := range probes {
		s.AddProbe(probe)
	}

	s.log.WithField("probes", len(probes)).Info("Scheduler started")
}

// Stop gracefully shuts down all probe jobs
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler...")
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.probes {
		job.ticker.Stop()
		job.cancel()
	}

	s.probes = make(map[string]*ProbeJob)
	s.log.Info("Scheduler stopped")
}

// AddProbe starts a probe, replacing any running one with the same name.
func (s *Scheduler) AddProbe(probe Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingJob, exists := s.probes[probe.Name]; exists {
		existingJob.ticker.Stop()
		existingJob.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	ticker := time.NewTicker(probe.Interval)

	job := &ProbeJob{
		probe:  probe,
		ticker: ticker,
		cancel: jobCancel,
	}

	s.probes[probe.Name] = job

	go func() {
		s.executeCheck(jobCtx, probe)
		s.runProbe(jobCtx, job)
	}()
}

// RemoveProbe stops a probe and forgets its last result.
func (s *Scheduler) RemoveProbe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.probes[name]; exists {
		job.ticker.Stop()
		job.cancel()
		delete(s.probes, name)
		delete(s.results, name)
	}
}

func (s *Scheduler) runProbe(ctx context.Context, job *ProbeJob) {
	defer job.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.ticker.C:
			s.executeCheck(ctx, job.probe)
		}
	}
}

func (s *Scheduler) executeCheck(ctx context.Context, probe Probe) {
	start := time.Now()
	err := probe.Check(ctx)
	responseTime := time.Since(start)

	if ctx.Err() != nil {
		return
	}

	result := types.ProbeResult{
		Name:         probe.Name,
		Kind:         probe.Kind,
		Target:       probe.Target,
		Up:           err == nil,
		ResponseTime: responseTime.Milliseconds(),
		CheckedAt:    time.Now().UTC(),
	}

	entry := s.log.WithFields(logrus.Fields{
		"probe":            probe.Name,
		"response_time_ms": result.ResponseTime,
	})

	if err != nil {
		result.Error = err.Error()
		entry.WithError(err).Warn("Probe failed")
	} else {
		entry.Debug("Probe succeeded")
	}

	s.mu.Lock()
	if _, active := s.probes[probe.Name]; active {
		s.results[probe.Name] = result
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetUpstream(probe.Name, result.Up)
	}
}

// Results returns the latest result of every probe that has run, by name.
func (s *Scheduler) Results() []types.ProbeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]types.ProbeResult, 0, len(s.results))
	for _, result := range s.results {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})

	return results
}

// GetStatus returns current scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"active_probes": len(s.probes),
		"running":       s.ctx.Err() == nil,
	}
}
