package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/studiowebux/orderstress/internal/config"
	"github.com/studiowebux/orderstress/internal/executor"
	"github.com/studiowebux/orderstress/internal/filter"
	"github.com/studiowebux/orderstress/internal/parser"
	"github.com/studiowebux/orderstress/internal/session"
	"github.com/studiowebux/orderstress/internal/stresstest"
	"github.com/studiowebux/orderstress/internal/types"
)

// DefaultCleanupTimeout bounds the account cleanup that follows a session run
const DefaultCleanupTimeout = 10 * time.Second

// ErrCancelled is returned when a run was interrupted before every order got a result
var ErrCancelled = errors.New("run cancelled")

// RunOptions contains options for dispatching a scenario
type RunOptions struct {
	BaseURL        string
	Stagger        time.Duration
	RequestTimeout time.Duration
	ScenarioPath   string // empty means the built-in scenario
	OutputFormat   string // text, json, yaml
	Query          string // JMESPath projection applied to each response body
	NoSave         bool   // skip run history
	DBPath         string // defaults to config.DatabasePath
	Out            io.Writer
}

// SessionOptions contains options for the session variant
type SessionOptions struct {
	RunOptions

	// Login reuses an existing account instead of signing up a throwaway one.
	// The account is logged out afterwards, never deleted.
	Login       bool
	Credentials types.Credentials
	// KeepAccount skips deleting the throwaway account
	KeepAccount    bool
	CleanupTimeout time.Duration
}

// Run dispatches a scenario without a session
func Run(ctx context.Context, opts RunOptions) error {
	p, err := newPrinter(opts.Out, opts.OutputFormat)
	if err != nil {
		return err
	}
	scenario, query, err := prepare(opts)
	if err != nil {
		return err
	}

	client, err := executor.BuildHTTPClient(executor.ClientOptions{
		Timeout:  opts.RequestTimeout,
		MaxConns: len(scenario.Orders),
	})
	if err != nil {
		return err
	}

	ex, err := dispatch(ctx, opts, p, &stresstest.ExecutionConfig{
		Scenario: scenario,
		Config:   newRunConfig(opts, scenario, stresstest.ModeBasic, ""),
		Client:   client,
		Query:    query,
	})
	if err != nil {
		return err
	}

	if err := emit(p, ex, nil); err != nil {
		return err
	}
	return runError(ex.GetRun())
}

// RunSession opens a session, dispatches the scenario with the session cookie
// and removes the throwaway account afterwards
func RunSession(ctx context.Context, opts SessionOptions) error {
	p, err := newPrinter(opts.Out, opts.OutputFormat)
	if err != nil {
		return err
	}
	scenario, query, err := prepare(opts.RunOptions)
	if err != nil {
		return err
	}

	client, err := executor.BuildHTTPClient(executor.ClientOptions{
		Timeout:   opts.RequestTimeout,
		MaxConns:  len(scenario.Orders),
		CookieJar: true,
	})
	if err != nil {
		return err
	}
	sc, err := session.NewClient(opts.BaseURL, client)
	if err != nil {
		return err
	}

	creds := opts.Credentials
	if opts.Login {
		if creds.Email == "" || creds.Password == "" {
			return fmt.Errorf("login requires an email and a password")
		}
	} else {
		creds = session.NewCredentials()
	}

	user, err := sc.Bootstrap(ctx, creds, opts.Login)
	if err != nil {
		// Sign-up may have gone through before the session check failed
		if !opts.Login && sc.User() != nil {
			discardAccount(ctx, sc, opts, creds)
		}
		return fmt.Errorf("session bootstrap failed: %w", err)
	}
	log.Info().Str("username", user.Username).Str("email", user.Email).Msg("session opened")

	ex, dispatchErr := dispatch(ctx, opts.RunOptions, p, &stresstest.ExecutionConfig{
		Scenario: scenario,
		Config:   newRunConfig(opts.RunOptions, scenario, stresstest.ModeSession, user.Username),
		Client:   sc.HTTPClient(),
		Query:    query,
	})

	// Cleanup must run even when the run was interrupted
	report := cleanup(ctx, sc, opts, creds, user)

	if dispatchErr != nil {
		return dispatchErr
	}
	if err := emit(p, ex, report); err != nil {
		return err
	}
	if report.CleanupError != "" {
		return fmt.Errorf("account cleanup failed: %s", report.CleanupError)
	}
	return runError(ex.GetRun())
}

// discardAccount deletes a throwaway account that never got a usable session
func discardAccount(ctx context.Context, sc *session.Client, opts SessionOptions, creds types.Credentials) {
	cleanupCtx, cancel := cleanupContext(ctx, opts)
	defer cancel()

	username := sc.User().Username
	if err := sc.DeleteAccount(cleanupCtx, creds.Password); err != nil {
		log.Error().Err(err).Str("username", username).Msg("failed to delete account after bootstrap failure")
		return
	}
	log.Debug().Str("username", username).Msg("account deleted after bootstrap failure")
}

// cleanupContext outlives ctx so cleanup still runs after an interrupt
func cleanupContext(ctx context.Context, opts SessionOptions) (context.Context, context.CancelFunc) {
	timeout := opts.CleanupTimeout
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// cleanup counts the orders the server stored for the account, then deletes
// the account (or logs out of a reused one) on a context that outlives ctx
func cleanup(ctx context.Context, sc *session.Client, opts SessionOptions, creds types.Credentials, user *types.User) *SessionReport {
	cleanupCtx, cancel := cleanupContext(ctx, opts)
	defer cancel()

	report := &SessionReport{User: user}

	orders, err := sc.Orders(cleanupCtx)
	switch {
	case session.IsUnauthorized(err):
		log.Warn().Err(err).Str("username", user.Username).Msg("session expired during the run")
	case err != nil:
		log.Warn().Err(err).Msg("failed to list stored orders")
	default:
		report.StoredOrders = len(orders)
	}

	switch {
	case opts.Login:
		if err := sc.Logout(cleanupCtx); err != nil {
			log.Warn().Err(err).Msg("logout failed")
		}
	case opts.KeepAccount:
		log.Info().
			Str("email", creds.Email).
			Str("password", creds.Password).
			Msg("account kept")
	default:
		if err := sc.DeleteAccount(cleanupCtx, creds.Password); err != nil {
			log.Error().Err(err).Str("username", user.Username).Msg("failed to delete account")
			report.CleanupError = err.Error()
		} else {
			report.AccountDeleted = true
			log.Debug().Str("username", user.Username).Msg("account deleted")
		}
	}
	return report
}

// prepare loads the scenario and compiles the query
func prepare(opts RunOptions) (*types.Scenario, *filter.Query, error) {
	scenario, err := loadScenario(opts.ScenarioPath)
	if err != nil {
		return nil, nil, err
	}
	query, err := filter.Compile(opts.Query)
	if err != nil {
		return nil, nil, err
	}
	return scenario, query, nil
}

func loadScenario(path string) (*types.Scenario, error) {
	if path == "" {
		return types.DefaultScenario(), nil
	}
	scenario, err := parser.ParseScenario(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return scenario, nil
}

func newRunConfig(opts RunOptions, scenario *types.Scenario, mode, account string) *stresstest.Config {
	return &stresstest.Config{
		Name:           scenario.Name,
		Mode:           mode,
		BaseURL:        opts.BaseURL,
		Account:        account,
		Stagger:        opts.Stagger,
		RequestTimeout: opts.RequestTimeout,
	}
}

// dispatch runs the executor to completion. Text output is printed line by
// line as results arrive; other formats are printed by emit afterwards.
func dispatch(ctx context.Context, opts RunOptions, p *printer, execCfg *stresstest.ExecutionConfig) (*stresstest.Executor, error) {
	var manager *stresstest.Manager
	if !opts.NoSave {
		dbPath := opts.DBPath
		if dbPath == "" {
			dbPath = config.DatabasePath
		}
		m, err := stresstest.NewManager(dbPath)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		manager = m
	}

	if p.text() {
		execCfg.OnResult = p.result
	}

	ex, err := stresstest.NewExecutor(execCfg, manager)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("baseURL", execCfg.Config.BaseURL).
		Int("orders", len(execCfg.Scenario.Orders)).
		Dur("stagger", execCfg.Config.Stagger).
		Str("query", execCfg.Query.String()).
		Msg("dispatching scenario")

	ex.Start(ctx)
	if err := ex.Wait(); err != nil {
		// History is best effort
		log.Warn().Err(err).Msg("failed to save run")
	}

	stats := ex.GetStats()
	log.Debug().
		Float64("progress", stats.Progress()).
		Float64("acceptRate", stats.AcceptRate()).
		Float64("rejectRate", stats.RejectRate()).
		Float64("errorRate", stats.ErrorRate()).
		Msg("run finished")
	return ex, nil
}

// emit prints the summary (text) or the full report (json/yaml)
func emit(p *printer, ex *stresstest.Executor, s *SessionReport) error {
	run := ex.GetRun()
	if p.text() {
		p.summary(run)
		p.session(s)
		return nil
	}
	return p.document(&Report{Run: run, Session: s, Results: ex.Results()})
}

func runError(run *stresstest.Run) error {
	if run.IsCompleted() && run.Status != stresstest.StatusCompleted {
		return fmt.Errorf("%w: %d of %d orders completed", ErrCancelled, run.TotalCompleted, run.TotalOrders)
	}
	return nil
}
