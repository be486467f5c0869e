package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/datamon-go/datamon/internal/simplat"
	"github.com/datamon-go/datamon/monitor"
)

var stressCount int

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressCount, "count", "n", 100_000, "Number of monitored writes to perform")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Measure interception throughput on the simulated platform",
		Long: `The stress command hammers a monitored simulated region with writes and
reports how many interceptions ran and at what rate. Every write pays the full
protocol: guard fault, tree query, callback, single step, guard re-arm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(stressCount)
		},
	}
}

func runStress(count int) error {
	const regionBase = uintptr(0x900000)
	const regionSize = uintptr(64)

	sim := simplat.New()
	sim.Map(regionBase, regionSize, 0x04)
	if err := monitor.SetPlatform(sim); err != nil {
		return err
	}

	intercepted := 0
	m, err := monitor.New(regionBase, regionSize, func(uintptr, bool, uintptr) {
		intercepted++
	})
	if err != nil {
		return err
	}
	defer m.Close()

	th := sim.Thread(1)
	start := time.Now()
	for i := 0; i < count; i++ {
		if err := th.Write(regionBase+uintptr(i)%regionSize, []byte{byte(i)}); err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)

	p := message.NewPrinter(language.English)
	p.Printf("%d writes, %d intercepted in %v (%.0f/s)\n",
		count, intercepted, elapsed.Round(time.Millisecond),
		float64(intercepted)/elapsed.Seconds())
	return nil
}
