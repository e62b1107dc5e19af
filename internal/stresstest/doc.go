/*
Package stresstest dispatches a scenario of order payloads against the order API.

# Overview

Every order case in a scenario is posted to /api/order by its own goroutine.
Launches are spaced by a fixed stagger (100ms by default); the first one
goes out immediately. Once every case has been launched the executor joins
all request goroutines and finalizes the run.

Nothing is asserted about the responses. Each result is classified as:
  - accepted: the server answered 2xx
  - rejected: the server answered with any other status
  - error: no response (connection refused, timeout, cancellation)

# Architecture

  1. Config (config.go): run configuration and validation
  2. Executor (executor.go): launch scheduler, request goroutines, result collector
  3. Stats (stats.go): outcome counts and duration percentiles
  4. Manager (manager.go): SQLite persistence of runs and results

# Executor Design

  - A rate.Limiter with burst 1 spaces the launches
  - Request goroutines are joined with an errgroup.Group
  - One shared *http.Client; session runs pass the cookie-carrying client
  - A single collector goroutine receives results, updates stats, persists
    them in batches and calls ExecutionConfig.OnResult, so callers can print
    without locking
  - Cancelling the context passed to Start stops further launches and aborts
    in-flight requests; aborted requests still produce an error result

# Database Schema

SQLite database stores:
  - stress_runs: one row per run with final statistics
  - stress_results: one row per order result

# Example Usage

	manager, err := NewManager("orderstress.db")
	if err != nil {
		return err
	}
	defer manager.Close()

	executor, err := NewExecutor(&ExecutionConfig{
		Scenario: types.DefaultScenario(),
		Config: &Config{
			Name:    "default",
			Mode:    ModeBasic,
			BaseURL: "http://localhost:3000",
			Stagger: 100 * time.Millisecond,
		},
		OnResult: func(r *Result) { fmt.Println(r.Line()) },
	}, manager)
	if err != nil {
		return err
	}

	executor.Start(ctx)
	err = executor.Wait()

	run := executor.GetRun()
	fmt.Printf("%d accepted, %d rejected, %d errors\n",
		run.TotalAccepted, run.TotalRejected, run.TotalErrors)
*/
package stresstest
