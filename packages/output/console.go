package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/faisalraja/testhttp/packages/assertions"
	"github.com/faisalraja/testhttp/packages/core/env"
	"github.com/faisalraja/testhttp/packages/core/runner"
	"github.com/faisalraja/testhttp/packages/http"
	"github.com/fatih/color"
	"github.com/kr/pretty"
)

// maxInlineBody is the largest body echoed verbatim in verbose mode.
const maxInlineBody = 1000

// Console prints run progress. It implements runner.Reporter.
type Console struct {
	writer  io.Writer
	verbose bool
	debug   bool
	noColor bool

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	bold   func(a ...any) string
}

type ConsoleOption func(*Console)

func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.noColor {
		color.NoColor = true
	}
	c.green = color.New(color.FgGreen).SprintFunc()
	c.red = color.New(color.FgRed).SprintFunc()
	c.yellow = color.New(color.FgYellow).SprintFunc()
	c.cyan = color.New(color.FgCyan).SprintFunc()
	c.bold = color.New(color.Bold).SprintFunc()
	return c
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(c *Console) {
		c.writer = w
	}
}

// WithVerbose echoes every request and response.
func WithVerbose(v bool) ConsoleOption {
	return func(c *Console) {
		c.verbose = v
	}
}

// WithDebug dumps the session variables after every definition.
func WithDebug(d bool) ConsoleOption {
	return func(c *Console) {
		c.debug = d
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(c *Console) {
		c.noColor = nc
	}
}

func (c *Console) Skipped(d *runner.Definition) {
	fmt.Fprintf(c.writer, "%s %s\n", c.yellow("Skipped"), d.DisplayName())
}

func (c *Console) Running(d *runner.Definition) {
	fmt.Fprintf(c.writer, "%s\n", c.bold(fmt.Sprintf("Running '%s' in %s", d.DisplayName(), d.SourceFile)))
}

func (c *Console) Request(_ *runner.Definition, req *http.Request) {
	if !c.verbose {
		return
	}
	fmt.Fprintf(c.writer, "%s %s %s %s\n", c.cyan("Request:"), req.Method, req.URL, summarizeBody(req.Body))
	for _, k := range req.HeaderKeys() {
		fmt.Fprintf(c.writer, "  %s: %s\n", k, req.Headers[k])
	}
}

func (c *Console) Response(_ *runner.Definition, resp *http.Response) {
	if !c.verbose {
		return
	}
	fmt.Fprintf(c.writer, "%s %d %s %s\n",
		c.cyan("Response:"), resp.StatusCode, summarizeBody(resp.Body),
		c.cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))
}

func (c *Console) AssertionFailed(_ *runner.Definition, res *assertions.Result) {
	fmt.Fprintf(c.writer, "  %s %s\n", c.red("Failed test:"), res.Expression)
	if res.Message != "" {
		label := "Reason:"
		if res.Err != nil {
			label = "Exception:"
		}
		fmt.Fprintf(c.writer, "    %s %s\n", label, res.Message)
	}
}

func (c *Console) TestsFinished(_ *runner.Definition, passed, failed int) {
	if passed > 0 {
		fmt.Fprintf(c.writer, "%s\n", c.green(fmt.Sprintf("PASSED: %d", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(c.writer, "%s\n", c.red(fmt.Sprintf("FAILED: %d", failed)))
	}
}

func (c *Console) Vars(session *env.Vars) {
	if !c.debug {
		return
	}
	fmt.Fprintf(c.writer, "%s %s\n", c.yellow("VARS:"), pretty.Sprint(session.Native()))
}

// Warn prints a non-fatal diagnostic.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintf(c.writer, "%s %s\n", c.yellow("Warning:"), fmt.Sprintf(format, args...))
}

// Summary prints the totals of a finished run followed by its verdict. A
// run error fails the run regardless of the tally.
func (c *Console) Summary(report *runner.Report, runErr error) {
	fmt.Fprintf(c.writer, "\nTests: ")
	if report.Success > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.green(fmt.Sprintf("%d passed", report.Success)))
	}
	if report.Failures > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.red(fmt.Sprintf("%d failed", report.Failures)))
	}
	skipped := 0
	for _, d := range report.Definitions {
		if d.Skipped {
			skipped++
		}
	}
	if skipped > 0 {
		fmt.Fprintf(c.writer, "%s, ", c.yellow(fmt.Sprintf("%d skipped", skipped)))
	}
	fmt.Fprintf(c.writer, "%d total\n", report.Success+report.Failures+skipped)
	fmt.Fprintf(c.writer, "Time:  %dms\n", report.Duration.Milliseconds())

	if l := report.Latency; l.Count > 0 {
		fmt.Fprintf(c.writer, "Latency: p50 %dms, p95 %dms, p99 %dms, max %dms\n",
			l.P50.Milliseconds(), l.P95.Milliseconds(), l.P99.Milliseconds(), l.Max.Milliseconds())
	}

	counts := fmt.Sprintf("[PASSED: %d FAILED: %d]", report.Success, report.Failures)
	if runErr == nil && report.Passed() {
		fmt.Fprintf(c.writer, "%s %s\n", c.green("Success"), counts)
	} else {
		fmt.Fprintf(c.writer, "%s %s\n", c.red("Failed"), counts)
	}
}

func (c *Console) Error(err error) {
	fmt.Fprintf(c.writer, "%s %v\n", c.red("Error:"), err)
}

func (c *Console) Header(version string) {
	fmt.Fprintf(c.writer, "%s %s\n", c.bold("testhttp"), version)
}

// summarizeBody returns the body text, or only its length when it is
// large.
func summarizeBody(body []byte) string {
	if len(body) > maxInlineBody {
		return fmt.Sprintf("<%d bytes>", len(body))
	}
	return strings.TrimSpace(string(body))
}
