package vm

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	FontStart    = uint16(0x050)
	FontHeight   = 5
	ProgramStart = uint16(0x200)

	// MaxProgramSize is the largest ROM image that fits between the
	// program start and the end of memory.
	MaxProgramSize = MemorySize - int(ProgramStart)

	InstructionSize = 2
)

// VM is a CHIP-8 machine. It owns all machine state and mutates it one
// instruction per Step call. The host drives Step, TickTimers and
// SetKeyState and reads back Frame and the timer values; see the hal
// packages for the two bundled hosts.
type VM struct {
	memory    []uint8 // Memory (4k)
	registers []uint8 // V registers (V0-VF)

	stack []uint16 // Stack
	sp    uint8    // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      []uint8 // Graphics buffer
	keypad   []bool  // Keypad
	drawFlag bool    // Indicates a draw has occurred

	// Key-wait state for the FX0A instruction. waitReg is the target
	// register, or -1 when no wait is pending. waitKeys holds the keypad
	// state at the moment the wait began, so only an up-to-down
	// transition completes the instruction.
	waitReg  int
	waitKeys []bool

	quirks Quirks
	rng    *rand.Rand
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithQuirks selects the behavioral profile for the quirk-sensitive
// instructions.
func WithQuirks(q Quirks) Option {
	return func(vm *VM) { vm.quirks = q }
}

// WithRand replaces the random source used by the CXNN instruction.
// Tests supply a seeded source here.
func WithRand(r *rand.Rand) Option {
	return func(vm *VM) { vm.rng = r }
}

func New(opts ...Option) *VM {
	vm := &VM{
		memory:    make([]uint8, MemorySize),
		registers: make([]uint8, RegisterCount),
		stack:     make([]uint16, StackSize),
		gfx:       make([]uint8, ScreenWidth*ScreenHeight),
		keypad:    make([]bool, KeyCount),
		waitKeys:  make([]bool, KeyCount),

		pc:      ProgramStart,
		waitReg: -1,

		quirks: DefaultQuirks(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	for _, opt := range opts {
		opt(vm)
	}

	vm.loadFontSet()
	return vm
}

func (vm *VM) loadFontSet() {
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", FontStart), "n", len(fontSet))
	copy(vm.memory[FontStart:], fontSet)
}

// LoadProgram copies a ROM image into memory at the program start address.
// The rest of memory is left untouched.
func (vm *VM) LoadProgram(program []byte) error {
	if len(program) == 0 {
		return &EmptyProgramError{}
	}

	if len(program) > MaxProgramSize {
		return &ProgramTooLargeError{Size: len(program)}
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(vm.memory[ProgramStart:], program)
	return nil
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// SetKeyState records a keypad key as pressed or released. Keys outside
// the 16-key pad are ignored.
func (vm *VM) SetKeyState(key Key, pressed bool) {
	if int(key) >= KeyCount {
		return
	}
	vm.keypad[int(key)] = pressed
}

// Step runs a single fetch-decode-execute cycle. While a key-wait is
// pending it polls the keypad instead; the program counter stays parked
// on the waiting instruction until a key goes down.
func (vm *VM) Step() error {
	if vm.waitReg >= 0 {
		vm.pollWaitKey()
		return nil
	}

	if int(vm.pc)+1 >= MemorySize {
		return &AddressError{Addr: vm.pc, PC: vm.pc}
	}

	opcode := vm.fetchOpcode()
	vm.pc += InstructionSize

	return vm.executeOpcode(opcode)
}

func (vm *VM) pollWaitKey() {
	for i := range vm.keypad {
		if vm.keypad[i] && !vm.waitKeys[i] {
			vm.registers[vm.waitReg] = uint8(i)
			vm.waitReg = -1
			vm.pc += InstructionSize
			return
		}
	}

	// Remember releases so a later re-press of a held key counts as a
	// transition.
	for i := range vm.keypad {
		if !vm.keypad[i] {
			vm.waitKeys[i] = false
		}
	}
}

// TickTimers decrements the delay and sound timers. Hosts call it once
// per 60Hz frame, independent of how many instructions ran.
func (vm *VM) TickTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

func (vm *VM) DelayTimer() uint8 {
	return vm.delayTimer
}

func (vm *VM) SoundTimer() uint8 {
	return vm.soundTimer
}

// Frame returns a copy of the 64x32 graphics buffer, one byte per pixel
// in row-major order, nonzero meaning lit.
func (vm *VM) Frame() []uint8 {
	frame := make([]uint8, len(vm.gfx))
	copy(frame, vm.gfx)
	return frame
}

// TakeDrawFlag reports whether an instruction touched the graphics
// buffer since the last call, and clears the flag.
func (vm *VM) TakeDrawFlag() bool {
	flag := vm.drawFlag
	vm.drawFlag = false
	return flag
}

func (vm *VM) fetchOpcode() uint16 {
	hi := vm.memory[vm.pc]
	lo := vm.memory[vm.pc+1]

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode
}
