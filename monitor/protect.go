package monitor

import (
	"fmt"

	"github.com/datamon-go/datamon/monitor/platform"
)

// addGuard and dropGuard are the two protection transforms the monitor
// ever applies. Everything but the guard bit passes through.
func addGuard(p platform.Protection) platform.Protection { return p | platform.GuardFlag }

func dropGuard(p platform.Protection) platform.Protection { return p &^ platform.GuardFlag }

// protectRange applies transform to the protection of every platform
// region overlapping [addr, addr+size). One monitored range can straddle
// several regions with independently tracked protection, so the cursor
// re-queries at every region boundary. Each step protects the overlap of
// the remaining range with the queried region, then moves the cursor to
// the region's end; the cursor may start mid-region, so the region size
// alone is not a valid stride. The platform call is skipped when the
// transform is a no-op for a region.
func protectRange(p platform.Platform, addr, size uintptr, transform func(platform.Protection) platform.Protection) error {
	cur := addr
	end := addr + size
	for cur < end {
		reg, err := p.QueryRegion(cur)
		if err != nil {
			return fmt.Errorf("%w (address 0x%x): %w", ErrRegionQuery, cur, err)
		}
		regEnd := reg.Base + reg.Size
		next := transform(reg.Protect)
		if next != reg.Protect {
			length := min(end, regEnd) - reg.Base
			if _, err := p.SetProtection(reg.Base, length, next); err != nil {
				return fmt.Errorf("%w (base 0x%x, %d bytes): %w", ErrProtectionChange, reg.Base, length, err)
			}
		}
		cur = regEnd
	}
	return nil
}
