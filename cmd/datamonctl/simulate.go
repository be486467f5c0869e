package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/datamon-go/datamon/internal/diag"
	"github.com/datamon-go/datamon/internal/simplat"
	"github.com/datamon-go/datamon/monitor"
)

func init() {
	rootCmd.AddCommand(newSimulateCmd())
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run the watch scenario on a simulated memory platform",
		Long: `The simulate command runs the same scripted access scenario as watch, but
against a fully simulated memory platform: paged protection state, synthetic
guard-page and single-step faults. It behaves identically on every OS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate()
		},
	}
}

// field offsets of the simulated player struct
const (
	simPlayerBase = uintptr(0x7f0000)
	offHealth     = uintptr(0)
	offArmor      = uintptr(4)
	offAmmo       = uintptr(8)
	offName       = uintptr(12)
	simPlayerSize = uintptr(4096)
)

func runSimulate() error {
	if verbose {
		diag.Init(diag.Options{Enabled: true, Level: slog.LevelDebug})
	}

	sim := simplat.New()
	sim.Map(simPlayerBase, simPlayerSize, 0x04) // PAGE_READWRITE
	if err := monitor.SetPlatform(sim); err != nil {
		return err
	}

	m, err := monitor.New(simPlayerBase, simPlayerSize,
		func(ip uintptr, read bool, addr uintptr) {
			kind := "write"
			if read {
				kind = "read"
			}
			fmt.Printf("%s Intercepted %s. Data address: 0x%x, caused from: 0x%x.\n",
				tag(), kind, addr, ip)
		})
	if err != nil {
		return err
	}
	defer m.Close()

	th := sim.Thread(1)
	u32 := func(v uint32) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		return b[:]
	}

	fmt.Println("Setting health to 100.")
	if err := th.Write(simPlayerBase+offHealth, u32(100)); err != nil {
		return err
	}

	fmt.Println("Setting armor to 100.")
	if err := th.Write(simPlayerBase+offArmor, u32(100)); err != nil {
		return err
	}

	fmt.Println("Setting ammo to 100.")
	if err := th.Write(simPlayerBase+offAmmo, u32(100)); err != nil {
		return err
	}

	fmt.Println("Setting name to \"datamon\".")
	if err := th.Write(simPlayerBase+offName, []byte("datamon")); err != nil {
		return err
	}

	fmt.Println("Reading health...")
	b, err := th.Read(simPlayerBase+offHealth, 4)
	if err != nil {
		return err
	}
	fmt.Printf("Health: %d\n", binary.LittleEndian.Uint32(b))

	fmt.Println("Reading name...")
	name, err := th.Read(simPlayerBase+offName, 7)
	if err != nil {
		return err
	}
	fmt.Printf("Name: %s\n", name)

	printVerbose("final page protection: 0x%x\n", uint32(sim.Prot(simPlayerBase)))
	return nil
}
