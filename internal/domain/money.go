package domain

import "fmt"

// Amounts are int64 micro-units: 1 native unit = 1_000_000 µ.
// Integer arithmetic keeps escrow accounting exact; rendering to native
// units happens only at display boundaries.
const MicroPerUnit = 1_000_000

// FormatAmount renders a micro-unit amount as native units for display.
func FormatAmount(micro int64) string {
	whole := micro / MicroPerUnit
	frac := micro % MicroPerUnit
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%06d", whole, frac)
}
