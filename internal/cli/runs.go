package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/studiowebux/orderstress/internal/config"
	"github.com/studiowebux/orderstress/internal/executor"
	"github.com/studiowebux/orderstress/internal/parser"
	"github.com/studiowebux/orderstress/internal/session"
	"github.com/studiowebux/orderstress/internal/stresstest"
)

// HistoryOptions contains options for the run history commands
type HistoryOptions struct {
	DBPath       string
	OutputFormat string
	Limit        int  // runs list only; <= 0 means all
	Yes          bool // runs delete: skip confirmation
	Out          io.Writer
	In           io.Reader // confirmation input, defaults to stdin
}

func openManager(dbPath string) (*stresstest.Manager, error) {
	if dbPath == "" {
		dbPath = config.DatabasePath
	}
	return stresstest.NewManager(dbPath)
}

// ListRuns prints the recorded runs, newest first
func ListRuns(opts HistoryOptions) error {
	p, err := newPrinter(opts.Out, opts.OutputFormat)
	if err != nil {
		return err
	}
	manager, err := openManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer manager.Close()

	runs, err := manager.ListRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if !p.text() {
		if runs == nil {
			runs = []*stresstest.Run{}
		}
		return p.document(runs)
	}

	if len(runs) == 0 {
		p.println("No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Local().Format(time.DateTime),
			r.ScenarioName,
			r.Mode,
			r.Status,
			fmt.Sprintf("%d/%d", r.TotalCompleted, r.TotalOrders),
			strconv.Itoa(r.TotalAccepted),
			strconv.Itoa(r.TotalRejected),
			strconv.Itoa(r.TotalErrors),
			executor.FormatDuration(r.P95DurationMs),
		})
	}
	p.table([]string{"ID", "STARTED", "SCENARIO", "MODE", "STATUS", "DONE", "ACCEPTED", "REJECTED", "ERRORS", "P95"}, rows)
	return nil
}

// ShowRun prints a recorded run with all its results.
// id 0 opens a picker when stdin is a terminal.
func ShowRun(opts HistoryOptions, id int64) error {
	p, err := newPrinter(opts.Out, opts.OutputFormat)
	if err != nil {
		return err
	}
	manager, err := openManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer manager.Close()

	if id == 0 {
		if id, err = pickRun(manager, "Select a run to show"); err != nil {
			return err
		}
	}

	run, err := manager.GetRun(id)
	if err != nil {
		return err
	}
	results, err := manager.GetResults(id)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}

	if !p.text() {
		if results == nil {
			results = []*stresstest.Result{}
		}
		return p.document(&Report{Run: run, Results: results})
	}

	for _, r := range results {
		p.result(r)
	}
	p.summary(run)
	if run.IsRunning() {
		p.println("  run was never finalized (the process exited while it was in flight)")
	}
	if run.Account != "" {
		p.println("  account: " + run.Account)
	}
	return nil
}

// DeleteRun removes a recorded run and its results
func DeleteRun(opts HistoryOptions, id int64) error {
	p, err := newPrinter(opts.Out, FormatText)
	if err != nil {
		return err
	}
	manager, err := openManager(opts.DBPath)
	if err != nil {
		return err
	}
	defer manager.Close()

	if id == 0 {
		if id, err = pickRun(manager, "Select a run to delete"); err != nil {
			return err
		}
	}

	if !opts.Yes {
		run, err := manager.GetRun(id)
		if err != nil {
			return err
		}
		in := opts.In
		if in == nil {
			in = os.Stdin
		}
		question := fmt.Sprintf("Delete run #%d (%s, %s)?", run.ID, run.ScenarioName, run.StartedAt.Local().Format(time.DateTime))
		if !confirm(in, p.out, question) {
			return fmt.Errorf("deletion cancelled by user")
		}
	}

	if err := manager.DeleteRun(id); err != nil {
		return err
	}
	p.println(fmt.Sprintf("Deleted run #%d", id))
	return nil
}

// pickRun lets the user choose one of the most recent runs
func pickRun(manager *stresstest.Manager, title string) (int64, error) {
	if !isInteractive() {
		return 0, fmt.Errorf("run id is required (non-interactive mode)")
	}
	runs, err := manager.ListRuns(pickerLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return 0, fmt.Errorf("no runs recorded")
	}
	return promptForRun(title, runs)
}

// ScenarioOptions contains options for printing a scenario
type ScenarioOptions struct {
	Path   string // empty means the built-in scenario
	Format string // yaml or json
	Out    io.Writer
}

// PrintScenario prints a scenario in a form ParseScenario reads back
func PrintScenario(opts ScenarioOptions) error {
	scenario, err := loadScenario(opts.Path)
	if err != nil {
		return err
	}
	format := opts.Format
	if format == FormatText {
		format = FormatYAML
	}
	data, err := parser.MarshalScenario(scenario, format)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = out.Write(data)
	return err
}

// ProductsOptions contains options for listing the catalogue
type ProductsOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
	OutputFormat   string
	Out            io.Writer
}

// ListProducts prints the product catalogue served by the API
func ListProducts(ctx context.Context, opts ProductsOptions) error {
	p, err := newPrinter(opts.Out, opts.OutputFormat)
	if err != nil {
		return err
	}
	client, err := executor.BuildHTTPClient(executor.ClientOptions{Timeout: opts.RequestTimeout})
	if err != nil {
		return err
	}
	sc, err := session.NewClient(opts.BaseURL, client)
	if err != nil {
		return err
	}

	products, err := sc.Products(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch products: %w", err)
	}

	if !p.text() {
		return p.document(products)
	}

	rows := make([][]string, 0, len(products))
	for _, prod := range products {
		rows = append(rows, []string{
			strconv.Itoa(prod.ID),
			prod.Name,
			fmt.Sprintf("%.2f", prod.Price),
		})
	}
	p.table([]string{"ID", "NAME", "PRICE"}, rows)
	return nil
}
