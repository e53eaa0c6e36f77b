package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)
			labelColor := color.New(color.FgWhite)
			valueColor := color.New(color.FgGreen)

			goVersion := GoVersion
			if goVersion == "unknown" {
				goVersion = runtime.Version()
			}

			titleColor.Fprintln(w, "SensorThings")
			fmt.Fprintln(w)
			for _, row := range [][2]string{
				{"Version:    ", Version},
				{"Git Commit: ", GitCommit},
				{"Build Date: ", BuildDate},
				{"Go Version: ", goVersion},
			} {
				labelColor.Fprint(w, row[0])
				valueColor.Fprintln(w, row[1])
			}
		},
	}
}
