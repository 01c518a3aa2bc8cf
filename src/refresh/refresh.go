// Package refresh runs price refresh jobs: batched, rate-paced requests to
// the price provider whose per-ticker failures never abort the job.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ReasonUnavailable is the per-ticker reason for a missing quote.
const ReasonUnavailable = "price unavailable"

// genericFailure is what the job reports when any ticker failed for a
// reason other than a missing quote. Details go to the log.
const genericFailure = "price refresh failed for one or more tickers"

// JobInFlightError rejects a second job for a scope that already runs one.
type JobInFlightError struct {
	Scope models.Scope
	JobID string
}

func (e *JobInFlightError) Error() string {
	return fmt.Sprintf("a price refresh is already running for %s (job %s)", e.Scope, e.JobID)
}

// Provider is the subset of the holdings API the workflow needs.
type Provider interface {
	RefreshPrices(ctx context.Context, scope models.Scope, tickers []string) (<-chan services.PriceResult, error)
}

// ApplyFunc receives the successfully priced tickers of a finished job. It is
// never called for cancelled or failed jobs.
type ApplyFunc func(prices map[string]decimal.Decimal)

// Options tune how a job talks to the provider.
type Options struct {
	BatchSize   int
	Concurrency int
	// Interval is the minimum spacing between two provider requests.
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize < 1 {
		o.BatchSize = 10
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o
}

// Manager owns at most one job per scope.
type Manager struct {
	provider Provider
	opts     Options

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewManager(provider Provider, opts Options) *Manager {
	return &Manager{
		provider: provider,
		opts:     opts.withDefaults(),
		jobs:     make(map[string]*Job),
	}
}

// Start creates a job for tickers and runs it in the background. The job
// outlives ctx's cancellation but keeps its values (request-scoped logger).
func (m *Manager) Start(ctx context.Context, scope models.Scope, tickers []string, apply ApplyFunc) (models.JobStatus, error) {
	targets := dedupe(tickers)

	m.mu.Lock()
	if prev, ok := m.jobs[scope.Key()]; ok && !prev.State().Terminal() {
		m.mu.Unlock()
		return models.JobStatus{}, &JobInFlightError{Scope: scope, JobID: prev.id}
	}
	job := newJob(scope, targets)
	m.jobs[scope.Key()] = job
	m.mu.Unlock()

	log := logger.FromContext(ctx).With("jobID", job.id, "scope", scope.Key())
	log.Info("Price refresh started", "tickers", len(targets))

	go m.run(context.WithoutCancel(ctx), job, apply)
	return job.Status(), nil
}

// Cancel flags the scope's running job. It reports whether a job was running.
func (m *Manager) Cancel(scope models.Scope) bool {
	m.mu.Lock()
	job, ok := m.jobs[scope.Key()]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return job.cancel()
}

// Discard cancels the scope's job and forgets it, as on a view change.
func (m *Manager) Discard(scope models.Scope) {
	m.mu.Lock()
	job, ok := m.jobs[scope.Key()]
	delete(m.jobs, scope.Key())
	m.mu.Unlock()
	if ok {
		job.cancel()
	}
}

// Status returns the scope's current or last job.
func (m *Manager) Status(scope models.Scope) (models.JobStatus, bool) {
	m.mu.Lock()
	job, ok := m.jobs[scope.Key()]
	m.mu.Unlock()
	if !ok {
		return models.JobStatus{}, false
	}
	return job.Status(), true
}

// Wait blocks until the scope's job is over or ctx is done.
func (m *Manager) Wait(ctx context.Context, scope models.Scope) (models.JobStatus, error) {
	m.mu.Lock()
	job, ok := m.jobs[scope.Key()]
	m.mu.Unlock()
	if !ok {
		return models.JobStatus{}, errors.New("no refresh job for " + scope.Key())
	}
	select {
	case <-job.done:
		return job.Status(), nil
	case <-ctx.Done():
		return job.Status(), ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, job *Job, apply ApplyFunc) {
	log := logger.FromContext(ctx).With("jobID", job.id, "scope", job.scope.Key())

	limit := rate.Inf
	if m.opts.Interval > 0 {
		limit = rate.Every(m.opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	batches := chunk(job.tickers, m.opts.BatchSize)
	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)

	issued := 0
	for _, batch := range batches {
		if job.isCancelled() {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if job.isCancelled() {
			break
		}
		issued++
		g.Go(func() error {
			m.runBatch(ctx, log, job, batch)
			return nil
		})
	}
	g.Wait()

	prices, state := job.settle(len(batches), issued)
	if state == models.JobCompleted || state == models.JobPartiallyFailed {
		if apply != nil {
			apply(prices)
		}
	}
	job.finish(state)

	status := job.Status()
	log.Info("Price refresh finished", "state", status.State, "priced", len(prices), "unavailable", len(status.Unavailable()))
}

func (m *Manager) runBatch(ctx context.Context, log *slog.Logger, job *Job, batch []string) {
	results, err := m.provider.RefreshPrices(ctx, job.scope, batch)
	if err != nil {
		log.Warn("Price refresh request failed", "tickers", strings.Join(batch, ","), "error", err)
		job.failBatch(batch, err)
		return
	}
	job.batchStarted()
	for r := range results {
		if r.Err != nil && !errors.Is(r.Err, services.ErrPriceUnavailable) {
			log.Warn("Price refresh failed for ticker", "ticker", r.Ticker, "error", r.Err)
		}
		job.record(r)
	}
	job.failMissing(batch)
}

func dedupe(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// Job is one refresh run. Fields below mu are guarded by it.
type Job struct {
	id      string
	scope   models.Scope
	tickers []string
	done    chan struct{}

	mu         sync.Mutex
	status     models.JobStatus
	index      map[string]int
	settled    int
	okBatches  int
	settling   bool
	cancelled  bool
	errorCount int
}

func newJob(scope models.Scope, tickers []string) *Job {
	j := &Job{
		id:      uuid.New().String(),
		scope:   scope,
		tickers: tickers,
		done:    make(chan struct{}),
		index:   make(map[string]int, len(tickers)),
	}
	j.status = models.JobStatus{
		ID:        j.id,
		Scope:     scope,
		State:     models.JobRunning,
		Tickers:   make([]models.TickerStatus, len(tickers)),
		StartedAt: time.Now().UTC(),
	}
	for i, t := range tickers {
		j.index[t] = i
		j.status.Tickers[i] = models.TickerStatus{Ticker: t, State: models.TickerPending}
	}
	return j
}

func (j *Job) State() models.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status.State
}

// Status returns a deep copy safe to hand out.
func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.status
	s.Tickers = make([]models.TickerStatus, len(j.status.Tickers))
	copy(s.Tickers, j.status.Tickers)
	if j.status.FinishedAt != nil {
		at := *j.status.FinishedAt
		s.FinishedAt = &at
	}
	return s
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// cancel flags the job unless it is already settling or over.
func (j *Job) cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.settling || j.status.State.Terminal() {
		return false
	}
	j.cancelled = true
	j.status.Cancelled = true
	return true
}

func (j *Job) batchStarted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.okBatches++
}

// record stores one provider answer. Answers arriving after cancellation,
// for unknown tickers or for tickers already settled are dropped.
func (j *Job) record(r services.PriceResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return
	}
	i, ok := j.index[r.Ticker]
	if !ok || j.status.Tickers[i].State != models.TickerPending {
		return
	}

	ts := &j.status.Tickers[i]
	switch {
	case r.Err == nil:
		price := r.Price
		ts.State = models.TickerOK
		ts.Price = &price
	case errors.Is(r.Err, services.ErrPriceUnavailable):
		ts.State = models.TickerError
		ts.Reason = ReasonUnavailable
		ts.Unavailable = true
		j.errorCount++
	default:
		ts.State = models.TickerError
		ts.Reason = r.Err.Error()
		j.status.Error = genericFailure
		j.errorCount++
	}
	j.advance()
}

// failBatch marks every pending ticker of a batch whose request failed.
func (j *Job) failBatch(batch []string, err error) {
	j.failPending(batch, err.Error())
}

// failMissing marks tickers the provider never answered.
func (j *Job) failMissing(batch []string) {
	j.failPending(batch, "no result returned")
}

func (j *Job) failPending(batch []string, reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return
	}
	for _, t := range batch {
		i := j.index[t]
		ts := &j.status.Tickers[i]
		if ts.State != models.TickerPending {
			continue
		}
		ts.State = models.TickerError
		ts.Reason = reason
		j.status.Error = genericFailure
		j.errorCount++
		j.advance()
	}
}

// advance bumps progress after one more ticker settled. Progress stays
// below 100 until the job finishes. The caller holds mu.
func (j *Job) advance() {
	j.settled++
	p := j.settled * 100 / len(j.tickers)
	if p > 99 {
		p = 99
	}
	if p > j.status.Progress {
		j.status.Progress = p
	}
}

// settle decides the outcome and blocks further cancellation. It returns the
// successful prices and the final state.
func (j *Job) settle(batches, issued int) (map[string]decimal.Decimal, models.JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.settling = true

	prices := make(map[string]decimal.Decimal)
	if j.cancelled {
		return prices, models.JobCancelled
	}
	for _, t := range j.status.Tickers {
		if t.State == models.TickerOK {
			prices[t.Ticker] = *t.Price
		}
	}
	switch {
	case batches > 0 && j.okBatches == 0:
		return prices, models.JobFailed
	case j.errorCount > 0 || issued < batches:
		return prices, models.JobPartiallyFailed
	default:
		return prices, models.JobCompleted
	}
}

func (j *Job) finish(state models.JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.status.State = state
	j.status.FinishedAt = &now
	if state != models.JobCancelled {
		j.status.Progress = 100
	}
	close(j.done)
}
