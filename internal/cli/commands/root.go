package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/sensorthings/internal/cli/ui"
	"github.com/conduit-lang/sensorthings/internal/model"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// rootOptions holds the persistent flags and what error reporting needs
// to know about the last request.
type rootOptions struct {
	configFile string
	logLevel   string
	noColor    bool

	registry *model.Registry
	rawPath  string
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sensorthings",
		Short: "SensorThings entity store",
		Long: color.CyanString(`SensorThings - entity store for sensor observations

Reads, creates, patches and deletes Things, Locations, Datastreams,
Observations and the other SensorThings entities stored in PostgreSQL.
Paths and query options use the SensorThings URL syntax.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Config file (default ./sensorthings.yml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level, overrides log.level from the config")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newExplainCommand(opts))
	rootCmd.AddCommand(newGetCommand(opts))
	rootCmd.AddCommand(newCreateCommand(opts))
	rootCmd.AddCommand(newPatchCommand(opts))
	rootCmd.AddCommand(newDeleteCommand(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	opts := &rootOptions{}
	rootCmd := newRootCommand(opts)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, ui.DescribeError(err, opts.registry, opts.rawPath, opts.noColor))
		return err
	}
	return nil
}
