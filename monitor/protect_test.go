package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datamon-go/datamon/internal/simplat"
	"github.com/datamon-go/datamon/monitor/platform"
)

// TestProtectRangeStraddlesRegions walks a range whose cursor starts
// mid-region and ends inside a later one; every overlapped region must
// pick up the guard flag, the tail included.
func TestProtectRangeStraddlesRegions(t *testing.T) {
	sim := simplat.New()
	sim.Map(simBase, 3*simplat.PageSize, simRW)

	// 8 bytes before the first page boundary, ending 16 bytes into page 2
	a := simBase + simplat.PageSize - 8
	n := uintptr(8 + simplat.PageSize + 16)
	require.NoError(t, protectRange(sim, a, n, addGuard))

	require.Equal(t, simRW|platform.GuardFlag, sim.Prot(simBase))
	require.Equal(t, simRW|platform.GuardFlag, sim.Prot(simBase+simplat.PageSize))
	require.Equal(t, simRW|platform.GuardFlag, sim.Prot(simBase+2*simplat.PageSize))

	require.NoError(t, protectRange(sim, a, n, dropGuard))
	require.Equal(t, simRW, sim.Prot(simBase))
	require.Equal(t, simRW, sim.Prot(simBase+simplat.PageSize))
	require.Equal(t, simRW, sim.Prot(simBase+2*simplat.PageSize))
}

// TestProtectRangeSingleByteTail re-arms exactly one byte, the dispatcher's
// re-arm shape, at the very end of a region.
func TestProtectRangeSingleByteTail(t *testing.T) {
	sim := simplat.New()
	sim.Map(simBase, simplat.PageSize, simRW)

	require.NoError(t, protectRange(sim, simBase+simplat.PageSize-1, 1, addGuard))
	require.Equal(t, simRW|platform.GuardFlag, sim.Prot(simBase))
}
