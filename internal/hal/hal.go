package hal

import (
	"errors"

	"chip8emu/internal/vm"
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

// A Shell owns the host-side devices (window, keyboard, speaker) and
// drives a machine at the 60Hz display refresh rate: forward key events,
// run a batch of instructions, tick the timers, redraw when the draw flag
// is set, and sound the tone while the sound timer is nonzero.
//
// Run returns ErrQuit when the user closes the window, ErrReboot when a
// restart was requested, or the machine fault that stopped execution.
type Shell interface {
	Run(machine *vm.VM) error
	Shutdown()
}

const (
	DefaultCyclesPerFrame = 10
	DefaultWindowScale    = 16
)

// Options is the host-side configuration shared by all shells.
type Options struct {
	// CyclesPerFrame is the number of instructions executed per 60Hz
	// frame.
	CyclesPerFrame int

	// WindowScale is the window size as a multiple of the 64x32 screen.
	WindowScale int
}

// Normalized fills unset fields with the defaults.
func (o Options) Normalized() Options {
	if o.CyclesPerFrame <= 0 {
		o.CyclesPerFrame = DefaultCyclesPerFrame
	}
	if o.WindowScale <= 0 {
		o.WindowScale = DefaultWindowScale
	}
	return o
}
