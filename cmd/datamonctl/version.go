package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("datamonctl " + buildVersion())
	},
}

// buildVersion folds the VCS revision recorded at build time into the
// release string when one is available.
func buildVersion() string {
	v := rootCmd.Version
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return fmt.Sprintf("%s (%s)", v, s.Value[:12])
		}
	}
	return v
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
