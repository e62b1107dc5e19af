package stresstest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/studiowebux/orderstress/internal/executor"
	"github.com/studiowebux/orderstress/internal/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Executor dispatches every order case of a scenario concurrently:
// one goroutine per case, launches spaced by Config.Stagger.
type Executor struct {
	config        *ExecutionConfig
	manager       *Manager
	run           *Run
	stats         *Stats
	ctx           context.Context
	cancelFunc    context.CancelFunc
	stopLink      func() bool
	limiter       *rate.Limiter
	requests      errgroup.Group
	resultChan    chan *Result
	schedulerDone chan struct{}
	collectorDone chan struct{}
	startOnce     sync.Once
	closeOnce     sync.Once // Ensures resultChan is only closed once
	finalizeOnce  sync.Once
	finalizeErr   error
	testStart     time.Time
	statsMu       sync.Mutex
	ordersSent    int   // Orders actually launched
	active        int32 // Atomic counter for in-flight orders
	results       []*Result
	resultsBuf    []*Result
	bufferSize    int
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewExecutor creates a new executor. manager may be nil, in which case
// nothing is persisted.
func NewExecutor(config *ExecutionConfig, manager *Manager) (*Executor, error) {
	if config.Config == nil {
		return nil, fmt.Errorf("invalid config: missing run configuration")
	}
	if err := config.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Scenario == nil || len(config.Scenario.Orders) == 0 {
		return nil, fmt.Errorf("invalid config: scenario has no orders")
	}

	httpClient := config.Client
	if httpClient == nil {
		var err error
		httpClient, err = executor.BuildHTTPClient(executor.ClientOptions{
			Timeout:  config.Config.GetRequestTimeout(),
			MaxConns: len(config.Scenario.Orders),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP client: %w", err)
		}
	}

	run := &Run{
		ScenarioName: config.Scenario.Name,
		Mode:         config.Config.Mode,
		BaseURL:      config.Config.BaseURL,
		Account:      config.Config.Account,
		StartedAt:    time.Now(),
		Status:       StatusRunning,
		TotalOrders:  len(config.Scenario.Orders),
	}
	if manager != nil {
		if err := manager.CreateRun(run); err != nil {
			return nil, fmt.Errorf("failed to create run record: %w", err)
		}
	}

	stats := NewStats()
	stats.TotalOrders = len(config.Scenario.Orders)

	limit := rate.Inf
	if config.Config.Stagger > 0 {
		limit = rate.Every(config.Config.Stagger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Executor{
		config:        config,
		manager:       manager,
		run:           run,
		stats:         stats,
		ctx:           ctx,
		cancelFunc:    cancel,
		stopLink:      func() bool { return false },
		limiter:       rate.NewLimiter(limit, 1),
		resultChan:    make(chan *Result, len(config.Scenario.Orders)),
		schedulerDone: make(chan struct{}),
		collectorDone: make(chan struct{}),
		results:       make([]*Result, 0, len(config.Scenario.Orders)),
		resultsBuf:    make([]*Result, 0, 50),
		bufferSize:    50,
		httpClient:    httpClient,
		log: log.With().
			Str("scenario", config.Scenario.Name).
			Str("mode", config.Config.Mode).
			Logger(),
	}, nil
}

// Start launches the scenario. Cancelling ctx stops further launches and
// aborts orders still in flight. Only the first call has an effect, and
// Start after Stop or Wait launches nothing.
func (e *Executor) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.testStart = time.Now()
		e.stopLink = context.AfterFunc(ctx, e.cancelFunc)

		go e.collectResults()

		go func() {
			defer close(e.schedulerDone)
			e.scheduleOrders()
		}()
	})
}

// Stop cancels the run and waits for everything launched so far to settle
func (e *Executor) Stop() error {
	e.cancelFunc()
	return e.Wait()
}

// closeResultChan safely closes the result channel (only once)
func (e *Executor) closeResultChan() {
	e.closeOnce.Do(func() {
		close(e.resultChan)
	})
}

// Wait blocks until every launched order has a result, then finalizes the run.
// The run is "completed" when every case produced a result without the run
// being cancelled, "cancelled" otherwise.
func (e *Executor) Wait() error {
	// Never started: nothing will be launched, so settle the run as cancelled
	e.startOnce.Do(func() {
		close(e.schedulerDone)
		close(e.collectorDone)
	})

	<-e.schedulerDone
	e.requests.Wait()
	e.closeResultChan()
	<-e.collectorDone

	e.statsMu.Lock()
	completed := e.stats.CompletedOrders
	total := e.stats.TotalOrders
	e.statsMu.Unlock()

	status := StatusCompleted
	if completed < total || e.ctx.Err() != nil {
		status = StatusCancelled
	}

	e.finalize(status)
	e.stopLink()
	e.cancelFunc()
	return e.finalizeErr
}

// GetStats returns the current statistics (thread-safe)
func (e *Executor) GetStats() *Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	statsCopy := &Stats{
		TotalOrders:     e.stats.TotalOrders,
		CompletedOrders: e.stats.CompletedOrders,
		AcceptedCount:   e.stats.AcceptedCount,
		RejectedCount:   e.stats.RejectedCount,
		ErrorCount:      e.stats.ErrorCount,
		ActiveRequests:  int(atomic.LoadInt32(&e.active)),
		TotalDurationMs: e.stats.TotalDurationMs,
		MinDurationMs:   e.stats.MinDurationMs,
		MaxDurationMs:   e.stats.MaxDurationMs,
		Durations:       make([]int64, len(e.stats.Durations)),
	}
	copy(statsCopy.Durations, e.stats.Durations)

	return statsCopy
}

// GetRun returns the current run record
func (e *Executor) GetRun() *Run {
	return e.run
}

// Results returns the results received so far, in arrival order
func (e *Executor) Results() []*Result {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := make([]*Result, len(e.results))
	copy(out, e.results)
	return out
}

// scheduleOrders launches one goroutine per order case, in scenario order.
// The limiter lets the first launch through immediately.
func (e *Executor) scheduleOrders() {
	for i, oc := range e.config.Scenario.Orders {
		if err := e.limiter.Wait(e.ctx); err != nil {
			e.log.Debug().Int("launched", i).Msg("launch stopped")
			return
		}

		e.statsMu.Lock()
		e.ordersSent++
		e.statsMu.Unlock()

		seq, orderCase := i+1, oc
		e.requests.Go(func() error {
			e.resultChan <- e.dispatch(seq, orderCase)
			return nil
		})
	}
}

// dispatch posts one order and records what came back
func (e *Executor) dispatch(seq int, oc types.OrderCase) *Result {
	payload := oc.Items.String()
	req := &types.HttpRequest{
		Name:   oc.Name,
		Method: http.MethodPost,
		URL:    e.config.Config.OrderURL(),
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: payload,
	}

	e.log.Debug().Int("seq", seq).Str("case", oc.Name).Str("payload", payload).Msg("launching order")

	atomic.AddInt32(&e.active, 1)
	start := time.Now()
	res, err := executor.Execute(e.ctx, e.httpClient, req)
	duration := time.Since(start)
	atomic.AddInt32(&e.active, -1)

	result := &Result{
		RunID:      e.run.ID,
		Seq:        seq,
		CaseName:   oc.Name,
		Payload:    payload,
		DurationMs: duration.Milliseconds(),
		ElapsedMs:  time.Since(e.testStart).Milliseconds(),
		Timestamp:  time.Now(),
	}

	switch {
	case err != nil:
		result.Error = err.Error()
	default:
		result.StatusCode = res.Status
		result.Body = res.Body
		result.Error = res.Error
	}
	result.classify()
	return result
}

// collectResults is the only reader of resultChan; OnResult is called from here
func (e *Executor) collectResults() {
	defer close(e.collectorDone)

	for result := range e.resultChan {
		if e.config.Query != nil && result.Outcome != OutcomeError {
			projected, err := e.config.Query.Apply(result.Body)
			if err != nil {
				result.QueryError = err.Error()
			} else {
				result.Query = projected
			}
		}

		e.statsMu.Lock()
		e.stats.AddResult(result.DurationMs, result.Outcome)
		e.results = append(e.results, result)
		e.statsMu.Unlock()

		if e.config.OnResult != nil {
			e.config.OnResult(result)
		}

		if e.manager != nil {
			e.resultsBuf = append(e.resultsBuf, result)
			if len(e.resultsBuf) >= e.bufferSize {
				e.flushResults()
			}
		}
	}

	e.flushResults()
}

// flushResults writes buffered results to the database
func (e *Executor) flushResults() {
	if e.manager == nil || len(e.resultsBuf) == 0 {
		return
	}

	if err := e.manager.SaveResultsBatch(e.resultsBuf); err != nil {
		// Persisting is best effort; the run itself carries on
		e.log.Warn().Err(err).Int64("run", e.run.ID).Msg("failed to save results")
	}

	e.resultsBuf = e.resultsBuf[:0]
}

// finalize completes the run record with final statistics
func (e *Executor) finalize(status string) {
	e.finalizeOnce.Do(func() {
		e.statsMu.Lock()
		now := time.Now()
		e.run.CompletedAt = &now
		e.run.Status = status
		e.run.TotalSent = e.ordersSent
		e.run.TotalCompleted = e.stats.CompletedOrders
		e.run.TotalAccepted = e.stats.AcceptedCount
		e.run.TotalRejected = e.stats.RejectedCount
		e.run.TotalErrors = e.stats.ErrorCount
		e.run.AvgDurationMs = e.stats.AvgDurationMs()
		e.run.MinDurationMs = e.stats.Min()
		e.run.MaxDurationMs = e.stats.Max()
		e.run.P50DurationMs = e.stats.P50()
		e.run.P95DurationMs = e.stats.P95()
		e.run.P99DurationMs = e.stats.P99()
		e.statsMu.Unlock()

		e.log.Debug().
			Str("status", status).
			Int("completed", e.run.TotalCompleted).
			Int("total", e.run.TotalOrders).
			Msg("run finished")

		if e.manager == nil {
			return
		}
		if err := e.manager.UpdateRun(e.run); err != nil {
			e.finalizeErr = fmt.Errorf("failed to update run record: %w", err)
		}
	})
}
