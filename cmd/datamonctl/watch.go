package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/datamon-go/datamon/internal/diag"
	"github.com/datamon-go/datamon/monitor"
	"github.com/datamon-go/datamon/monitor/platform"
)

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Monitor a struct in this process's real memory (native backend)",
		Long: `The watch command allocates a page-sized struct, arms a monitor over it
using the native fault interception backend, then performs scripted writes and
reads so every interception can be observed.

Requires Windows/amd64; use "datamonctl simulate" elsewhere.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

// player is the demonstration target. It is padded to a full 4KiB page so
// the guard flag on its page does not also catch accesses to unrelated
// neighbouring allocations.
type player struct {
	Health int32
	Armor  int32
	Ammo   int32
	Name   [32]byte
	_      [4052]byte
}

func runWatch() error {
	if verbose {
		diag.Init(diag.Options{Enabled: true, Level: slog.LevelDebug})
	}

	p := new(player)

	m, err := monitor.New(uintptr(unsafe.Pointer(p)), unsafe.Sizeof(*p),
		func(ip uintptr, read bool, addr uintptr) {
			kind := "write"
			if read {
				kind = "read"
			}
			fmt.Printf("%s Intercepted %s. Data address: 0x%x, caused from: 0x%x.\n",
				tag(), kind, addr, ip)
		})
	if errors.Is(err, platform.ErrUnsupported) {
		return fmt.Errorf("native monitoring is unavailable on this target; try \"datamonctl simulate\"")
	}
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Println("Setting health to 100.")
	p.Health = 100

	fmt.Println("Setting armor to 100.")
	p.Armor = 100

	fmt.Println("Setting ammo to 100.")
	p.Ammo = 100

	fmt.Println("Setting name to \"datamon\".")
	copy(p.Name[:], "datamon")

	fmt.Println("Reading health...")
	fmt.Printf("Health: %d\n", p.Health)

	fmt.Println("Reading armor...")
	fmt.Printf("Armor: %d\n", p.Armor)

	fmt.Println("Reading ammo...")
	fmt.Printf("Ammo: %d\n", p.Ammo)

	fmt.Println("Reading name...")
	fmt.Printf("Name: %s\n", p.Name[:7])

	// the monitor tracks the address, not the object
	runtime.KeepAlive(p)
	return nil
}
