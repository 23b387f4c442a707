package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// errTestsFailed signals a finished run with failures. The run already
// printed its own report, so Execute only sets the exit code.
var errTestsFailed = errors.New("tests failed")

var rootCmd = &cobra.Command{
	Use:   "testhttp",
	Short: "Run and test HTTP requests written in plain text files",
	Long: `testhttp runs HTTP requests described in .http files. Requests can
reference each other's responses through {{name.response...}} templates and
carry assert lines that are evaluated against the response.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = v
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(ExitFailure)
	}
}

// normalizeFlag accepts underscores in flag names, so --stop_on_fail and
// --stop-on-fail are the same flag.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
