package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/faisalraja/testhttp/packages/core/config"
	"github.com/faisalraja/testhttp/packages/core/env"
	"github.com/faisalraja/testhttp/packages/core/runner"
	"github.com/faisalraja/testhttp/packages/history"
	"github.com/faisalraja/testhttp/packages/http"
	"github.com/faisalraja/testhttp/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory...]",
	Short: "Run the requests and tests in .http files",
	Long: `Run every request defined in the given files, in file order, and
evaluate their assert lines. Requests referenced through templates such as
{{login.response.body.token}} run on demand, once per session.

Examples:
  testhttp run api.http
  testhttp run --file auth.http,users.http --var host=http://localhost:8080
  testhttp run --pattern "tests/*.http" --distinct
  testhttp run api.http --pre-name login --name me,orders --post-name logout
  testhttp run api.http --index 2 -v
  testhttp run ./tests --output junit --output-file report.xml`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	outputConsole = "console"
	// envVarPrefix marks environment variables seeded into the session
	envVarPrefix = "TESTHTTP_VAR_"
)

var (
	fileFlags      []string
	patternFlag    string
	varFlags       []string
	envFileFlag    string
	configFlag     string
	nameFlag       string
	preNameFlag    string
	postNameFlag   string
	indexFlag      int
	distinctFlag   bool
	stopOnFailFlag bool
	verboseFlag    bool
	debugFlag      bool
	noColorFlag    bool
	outputFlag     string
	outputFileFlag string
	timeoutFlag    string
	proxyFlag      string
	insecureFlag   bool
	rateFlag       float64
	historyFlag    string
	watchFlag      bool
)

func init() {
	// Input flags
	runCmd.Flags().StringArrayVarP(&fileFlags, "file", "f", nil, "File to run; repeatable or comma separated")
	runCmd.Flags().StringVar(&patternFlag, "pattern", getEnvString("TESTHTTP_PATTERN", ""), `Run files matching a glob such as "tests/*.http" (env: TESTHTTP_PATTERN)`)
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Seed a session variable as key=value; repeatable")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("TESTHTTP_ENV_FILE", ""), "Seed session variables from a .env file (env: TESTHTTP_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("TESTHTTP_CONFIG", ""), "Path to config file (env: TESTHTTP_CONFIG)")

	// Selection flags
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only these names, comma separated")
	runCmd.Flags().StringVar(&preNameFlag, "pre-name", "", "Run these names first, comma separated")
	runCmd.Flags().StringVar(&postNameFlag, "post-name", "", "Run these names last unless they already ran, comma separated")
	runCmd.Flags().IntVar(&indexFlag, "index", 0, "Run only the definition at this zero-based position")
	runCmd.Flags().BoolVar(&distinctFlag, "distinct", getEnvBool("TESTHTTP_DISTINCT", false), "Run each name once, keeping the last definition (env: TESTHTTP_DISTINCT)")

	// Execution flags
	runCmd.Flags().BoolVar(&stopOnFailFlag, "stop-on-fail", getEnvBool("TESTHTTP_STOP_ON_FAIL", false), "Stop at the first failed test (env: TESTHTTP_STOP_ON_FAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("TESTHTTP_TIMEOUT", ""), "Request timeout such as 30s or 1m (env: TESTHTTP_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("TESTHTTP_RATE", 0), "Maximum requests per second, 0 for unlimited (env: TESTHTTP_RATE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("TESTHTTP_PROXY", ""), "Proxy URL for HTTP requests (env: TESTHTTP_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("TESTHTTP_INSECURE", false), "Disable SSL certificate validation (env: TESTHTTP_INSECURE)")

	// Output flags
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("TESTHTTP_VERBOSE", false), "Print requests and responses (env: TESTHTTP_VERBOSE)")
	runCmd.Flags().BoolVar(&debugFlag, "debug", getEnvBool("TESTHTTP_DEBUG", false), "Print the session variables after each request (env: TESTHTTP_DEBUG)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("TESTHTTP_NO_COLOR", false), "Disable colored output (env: TESTHTTP_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("TESTHTTP_OUTPUT", outputConsole), "Output format: console, json, junit, tap (env: TESTHTTP_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("TESTHTTP_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: TESTHTTP_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("TESTHTTP_HISTORY", ""), "Record the run in this SQLite file (env: TESTHTTP_HISTORY)")
}

// runSettings is everything a single run needs, resolved from flags,
// environment and config file.
type runSettings struct {
	files      []string
	cfg        *config.Config
	vars       map[string]string
	selection  runner.Selection
	debug      bool
	output     string
	outputFile string
}

func runCommand(cmd *cobra.Command, args []string) error {
	s, err := buildSettings(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	passed, err := execute(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), s)
	if err != nil {
		return err
	}
	if watchFlag {
		return watch(ctx, cmd, args, s)
	}
	if !passed {
		return errTestsFailed
	}
	return nil
}

func buildSettings(cmd *cobra.Command, args []string) (*runSettings, error) {
	files, err := collectFiles(args, fileFlags, patternFlag)
	if err != nil {
		return nil, err
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flagConfig := &config.Config{
		Proxy:      proxyFlag,
		RateLimit:  rateFlag,
		History:    historyFlag,
		StopOnFail: flagBool(cmd, "stop-on-fail", stopOnFailFlag),
		Verbose:    flagBool(cmd, "verbose", verboseFlag),
		NoColor:    flagBool(cmd, "no-color", noColorFlag),
		Distinct:   flagBool(cmd, "distinct", distinctFlag),
	}
	if insecure := flagBool(cmd, "insecure", insecureFlag); insecure != nil {
		flagConfig.ValidateSSL = config.BoolPtr(!*insecure)
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout %q: %w", timeoutFlag, err)
		}
		flagConfig.Timeout = int(d.Milliseconds())
	}

	cfg := fileConfig.Merge(flagConfig)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vars, err := buildVars(cfg.Vars, envFileFlag, varFlags)
	if err != nil {
		return nil, err
	}

	if !validOutput(outputFlag) {
		return nil, fmt.Errorf("unknown output format %q", outputFlag)
	}

	sel := runner.Selection{
		PreNames:  splitList(preNameFlag),
		Names:     splitList(nameFlag),
		PostNames: splitList(postNameFlag),
		Distinct:  cfg.GetDistinct(),
	}
	if cmd.Flags().Changed("index") {
		index := indexFlag
		sel.Index = &index
	}

	return &runSettings{
		files:      files,
		cfg:        cfg,
		vars:       vars,
		selection:  sel,
		debug:      debugFlag,
		output:     outputFlag,
		outputFile: outputFileFlag,
	}, nil
}

// flagBool returns nil when a boolean flag was neither given nor enabled
// through its environment default, so the config file decides.
func flagBool(cmd *cobra.Command, name string, val bool) *bool {
	if cmd.Flags().Changed(name) || val {
		return config.BoolPtr(val)
	}
	return nil
}

// buildVars layers the session seeds: config file, TESTHTTP_VAR_*
// environment, the .env file, then --var.
func buildVars(configVars map[string]string, envFile string, assignments []string) (map[string]string, error) {
	var dotenv map[string]string
	if envFile != "" {
		var err error
		dotenv, err = env.LoadDotEnv(envFile)
		if err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	cliVars, invalid := env.ParseAssignments(assignments)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid --var %q: expected key=value", invalid[0])
	}

	return env.MergeVariables(configVars, env.LoadSystemEnv(envVarPrefix), dotenv, cliVars), nil
}

func validOutput(name string) bool {
	if name == outputConsole {
		return true
	}
	for _, f := range output.Formats {
		if f == name {
			return true
		}
	}
	return false
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithDefaultHeaders(cfg.Headers),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, http.WithTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(cfg.RateLimit))
	}
	return http.NewClient(opts...)
}

// execute performs one run with a fresh session and reports it. The
// returned error covers problems writing output; failed tests and fatal
// run errors only clear the passed result.
func execute(ctx context.Context, stdout, stderr io.Writer, s *runSettings) (bool, error) {
	out := stdout
	if s.outputFile != "" {
		f, err := os.Create(s.outputFile)
		if err != nil {
			return false, fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	// Structured formats own the output stream; progress and diagnostics
	// then go to stderr.
	var formatter output.Formatter
	consoleOut := out
	if s.output != outputConsole {
		var err error
		if formatter, err = output.NewFormatter(s.output, out); err != nil {
			return false, err
		}
		consoleOut = stderr
	}

	console := output.NewConsole(
		output.WithWriter(consoleOut),
		output.WithVerbose(s.cfg.GetVerbose()),
		output.WithDebug(s.debug),
		output.WithNoColor(s.cfg.GetNoColor()),
	)

	runCfg := runner.Config{
		StopOnFail: s.cfg.GetStopOnFail(),
		Warn:       console.Warn,
	}
	if formatter == nil {
		runCfg.Reporter = console
		if s.cfg.GetVerbose() {
			console.Header(version)
		}
	}

	p := runner.NewProcessor(newClient(s.cfg), runCfg)
	var (
		report *runner.Report
		runErr error
	)
	if err := p.Load(s.files...); err != nil {
		report = &runner.Report{Files: s.files, StartedAt: time.Now()}
		runErr = err
	} else {
		p.SetVars(env.FromStrings(s.vars))
		report, runErr = p.Run(ctx, s.selection)
	}

	if formatter != nil {
		if err := formatter.Format(report, runErr); err != nil {
			return false, fmt.Errorf("writing %s output: %w", s.output, err)
		}
		if runErr != nil {
			console.Error(runErr)
		}
	} else {
		if runErr != nil {
			console.Error(runErr)
		}
		console.Summary(report, runErr)
	}

	if s.cfg.History != "" {
		recordHistory(ctx, console, s.cfg.History, report, runErr)
	}

	return runErr == nil && report.Passed(), nil
}

func recordHistory(ctx context.Context, console *output.Console, path string, report *runner.Report, runErr error) {
	store, err := history.Open(path)
	if err != nil {
		console.Warn("history: %v", err)
		return
	}
	defer store.Close()

	if _, err := store.Record(ctx, report, runErr); err != nil {
		console.Warn("history: %v", err)
	}
}

// watch re-runs on every change to a watched .http file until the context
// is cancelled. Each re-run starts from a fresh session.
func watch(ctx context.Context, cmd *cobra.Command, args []string, s *runSettings) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range s.files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintf(stdout, "\nWatching for changes... (press Ctrl+C to stop)\n")

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
	)
	rerun := func(changed string) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(stdout, "\n\nFile changed: %s\nRe-running...\n\n", changed)
		next := *s
		if files, err := collectFiles(args, fileFlags, patternFlag); err == nil {
			next.files = files
		}
		if _, err := execute(ctx, stdout, stderr, &next); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		fmt.Fprintf(stdout, "\nWatching for changes... (press Ctrl+C to stop)\n")
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isHTTPFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			changed := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() { rerun(changed) })

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(stderr, "Error: watcher: %v\n", err)
		}
	}
}
