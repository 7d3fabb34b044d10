package vm

import "fmt"

// Quirks captures the behavioral variances between CHIP-8 dialects. The
// flags are consulted by the instruction handlers at execute time, so a
// single interpreter binary can emulate multiple dialects.
type Quirks struct {
	// SpriteWrap wraps sprite pixels around the screen edges instead of
	// clipping them.
	SpriteWrap bool

	// ShiftUsesVY makes 8XY6/8XYE shift VY into VX, as the COSMAC VIP
	// interpreter did, instead of shifting VX in place.
	ShiftUsesVY bool

	// IndexOverflowVF makes FX1E set VF when the index register moves
	// past 0xFFF.
	IndexOverflowVF bool

	// LoadStoreIncrement makes FX55/FX65 leave the index register
	// pointing past the transferred range (I = I + X + 1).
	LoadStoreIncrement bool
}

// DefaultQuirks is the profile most modern ROMs expect: clipped sprites,
// in-place shifts, FX1E carry into VF, index register untouched by
// FX55/FX65.
func DefaultQuirks() Quirks {
	return Quirks{
		IndexOverflowVF: true,
	}
}

// CosmacQuirks reproduces the original COSMAC VIP interpreter.
func CosmacQuirks() Quirks {
	return Quirks{
		ShiftUsesVY:        true,
		LoadStoreIncrement: true,
	}
}

// QuirksByName maps a profile name from the command line to a Quirks
// value.
func QuirksByName(name string) (Quirks, error) {
	switch name {
	case "default":
		return DefaultQuirks(), nil
	case "cosmac":
		return CosmacQuirks(), nil
	default:
		return Quirks{}, fmt.Errorf("unknown quirks profile %q", name)
	}
}
