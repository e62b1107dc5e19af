package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/studiowebux/orderstress/internal/executor"
	"github.com/studiowebux/orderstress/internal/stresstest"
	"github.com/studiowebux/orderstress/internal/types"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Report is the document printed by the json and yaml formats
type Report struct {
	Run     *stresstest.Run      `json:"run" yaml:"run"`
	Session *SessionReport       `json:"session,omitempty" yaml:"session,omitempty"`
	Results []*stresstest.Result `json:"results" yaml:"results"`
}

// SessionReport describes the account a session run used
type SessionReport struct {
	User           *types.User `json:"user" yaml:"user"`
	StoredOrders   int         `json:"storedOrders" yaml:"storedOrders"`
	AccountDeleted bool        `json:"accountDeleted" yaml:"accountDeleted"`
	CleanupError   string      `json:"cleanupError,omitempty" yaml:"cleanupError,omitempty"`
}

// printer writes results for one command. Text lines may be written from the
// executor's collector goroutine, so writes are serialized.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	color  bool
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	if out == nil {
		out = os.Stdout
	}
	if format == "" {
		format = FormatText
	}
	switch format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q (text/json/yaml)", format)
	}
	return &printer{out: out, format: format, color: colorEnabled(out)}, nil
}

// colorEnabled reports whether out is a terminal that should get ANSI colours
func colorEnabled(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) text() bool {
	return p.format == FormatText
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) println(a ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, a...)
}

// result prints one response line, coloured by outcome
func (p *printer) result(r *stresstest.Result) {
	line := r.Line()
	switch r.Outcome {
	case stresstest.OutcomeAccepted:
		line = p.style(acceptedStyle, line)
	case stresstest.OutcomeRejected:
		line = p.style(rejectedStyle, line)
	default:
		line = p.style(errorStyle, line)
	}
	p.println(line)
}

// summary prints the run totals and latency distribution
func (p *printer) summary(run *stresstest.Run) {
	title := fmt.Sprintf("%s (%s) %s", run.ScenarioName, run.Mode, run.Status)
	if run.ID > 0 {
		title = fmt.Sprintf("Run #%d %s", run.ID, title)
	}
	if d := run.Duration(); d > 0 {
		title += " in " + executor.FormatDuration(d.Milliseconds())
	}

	counts := fmt.Sprintf("orders: %d  sent: %d  accepted: %s  rejected: %s  errors: %s",
		run.TotalOrders, run.TotalSent,
		p.style(acceptedStyle, strconv.Itoa(run.TotalAccepted)),
		p.style(rejectedStyle, strconv.Itoa(run.TotalRejected)),
		p.style(errorStyle, strconv.Itoa(run.TotalErrors)))

	latency := fmt.Sprintf("latency: min %s  avg %.1fms  p50 %s  p95 %s  p99 %s  max %s",
		executor.FormatDuration(run.MinDurationMs),
		run.AvgDurationMs,
		executor.FormatDuration(run.P50DurationMs),
		executor.FormatDuration(run.P95DurationMs),
		executor.FormatDuration(run.P99DurationMs),
		executor.FormatDuration(run.MaxDurationMs))

	p.println()
	p.println(p.style(headerStyle, title))
	p.println("  " + counts)
	p.println("  " + p.style(dimStyle, latency))
}

// session prints what happened to the account after a session run
func (p *printer) session(s *SessionReport) {
	if s == nil || s.User == nil {
		return
	}
	p.println(fmt.Sprintf("  account: %s <%s>  stored orders: %d", s.User.Username, s.User.Email, s.StoredOrders))
	switch {
	case s.CleanupError != "":
		p.println("  " + p.style(errorStyle, "cleanup failed: "+s.CleanupError))
	case s.AccountDeleted:
		p.println("  account deleted")
	}
}

// document encodes v as json or yaml
func (p *printer) document(v interface{}) error {
	var data []byte
	var err error
	switch p.format {
	case FormatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.out.Write(data)
	return err
}

// table renders rows with a header line
func (p *printer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		Rows(rows...)
	if p.color {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.PaddingRight(1)
			}
			return lipgloss.NewStyle().PaddingRight(1)
		})
	} else {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(1)
		})
	}
	p.println(strings.TrimRight(t.String(), "\n"))
}
