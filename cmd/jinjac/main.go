// Command jinjac compiles templates into instruction programs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const appName = "jinjac"

var version = "0.1.0"

// errFailed reports that diagnostics were already printed.
var errFailed = errors.New("compilation failed")

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{log: logrus.New()}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Compile Jinja-style templates ahead of time",
		Long: `jinjac checks templates against a context schema and lowers them to
instruction programs. Every missing binding, unknown filter or bad macro
call is reported at compile time with its location.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.setupLogging(cmd)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default: $JINJAC_CONFIG, ./jinjac.yaml, ~/.config/"+appName+"/jinjac.yaml)")
	flags.StringVarP(&a.schemaPath, "schema", "s", "", "context schema YAML file")
	flags.StringVar(&a.syntax, "syntax", "", "named delimiter syntax from the configuration")
	flags.StringVar(&a.whitespace, "whitespace", "", "default trim mode: preserve, suppress or minimize")
	flags.StringVar(&a.escape, "escape", "", "force an escape mode instead of the extension based one")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log every pipeline stage")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "only log errors")
	flags.BoolVar(&a.logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(newCompileCommand(a))
	rootCmd.AddCommand(newCheckCommand(a))
	rootCmd.AddCommand(newWatchCommand(a))
	rootCmd.AddCommand(newFiltersCommand(a))

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd
}
