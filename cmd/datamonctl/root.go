package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "datamonctl",
	Short: "Watch a process's own memory for read/write access",
	Long: `datamonctl demonstrates guard-page based memory access monitoring.
It arms a monitor over a region of its own memory, performs a scripted set of
reads and writes, and prints every access the monitor intercepts.

The watch command uses the native fault interception backend (Windows/amd64);
simulate and stress run the same protocol on a simulated memory platform and
work on any OS.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var tagStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

// tag renders the interception marker, red and bold unless colors are off.
func tag() string {
	if noColor {
		return "[DATAMON]"
	}
	return tagStyle.Render("[DATAMON]")
}

// printVerbose prints a message only in verbose mode.
func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
