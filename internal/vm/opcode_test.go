package vm

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestClearScreen(t *testing.T) {
	machine := New()
	for i := range machine.gfx {
		machine.gfx[i] = 1
	}

	mustLoad(t, machine, 0x00E0)
	mustStep(t, machine)

	for _, pixel := range machine.Frame() {
		if pixel != 0 {
			t.Fatal("expected all pixels off after cls")
		}
	}
	assert.True(t, machine.drawFlag)
}

func TestJump(t *testing.T) {
	machine := New()
	mustLoad(t, machine, 0x1234)
	mustStep(t, machine)

	assert.Equal(t, uint16(0x234), machine.pc)
}

func TestJumpPlusV0(t *testing.T) {
	machine := New()
	machine.registers[0] = 0x10
	mustLoad(t, machine, 0xB300)
	mustStep(t, machine)

	assert.Equal(t, uint16(0x310), machine.pc)
}

func TestSubroutineCallAndReturn(t *testing.T) {
	machine := New()
	// 0x200: jsr 0x204
	// 0x202: (next instruction after the call)
	// 0x204: rts
	mustLoad(t, machine, 0x2204, 0x0000, 0x00EE)

	mustStep(t, machine)
	assert.Equal(t, uint16(0x204), machine.pc)
	assert.Equal(t, uint8(1), machine.sp)

	mustStep(t, machine)
	assert.Equal(t, uint16(0x202), machine.pc)
	assert.Equal(t, uint8(0), machine.sp)
}

func TestStackOverflow(t *testing.T) {
	machine := New()
	// jsr to the call itself: every step pushes another frame.
	mustLoad(t, machine, 0x2200)

	for i := 0; i < StackSize; i++ {
		mustStep(t, machine)
	}

	err := machine.Step()
	assert.Error(t, err)

	var overflow *StackOverflowError
	assert.True(t, errors.As(err, &overflow))
	assert.Equal(t, uint8(StackSize), overflow.Depth)
	assert.Equal(t, uint16(0x200), overflow.PC)
}

func TestStackUnderflow(t *testing.T) {
	machine := New()
	mustLoad(t, machine, 0x00EE)

	err := machine.Step()
	assert.Error(t, err)

	var underflow *StackUnderflowError
	assert.True(t, errors.As(err, &underflow))
	assert.Equal(t, uint16(0x200), underflow.PC)
}

func TestSkipInstructions(t *testing.T) {
	tests := []struct {
		name    string
		opcode  uint16
		v0, v1  uint8
		skipped bool
	}{
		{"skeq imm taken", 0x3042, 0x42, 0, true},
		{"skeq imm not taken", 0x3042, 0x41, 0, false},
		{"skne imm taken", 0x4042, 0x41, 0, true},
		{"skne imm not taken", 0x4042, 0x42, 0, false},
		{"skeq reg taken", 0x5010, 7, 7, true},
		{"skeq reg not taken", 0x5010, 7, 8, false},
		{"skne reg taken", 0x9010, 7, 8, true},
		{"skne reg not taken", 0x9010, 7, 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := New()
			machine.registers[0] = tt.v0
			machine.registers[1] = tt.v1
			mustLoad(t, machine, tt.opcode)
			mustStep(t, machine)

			want := uint16(0x202)
			if tt.skipped {
				want = 0x204
			}
			assert.Equal(t, want, machine.pc)
		})
	}
}

func TestMoveAndAddImmediate(t *testing.T) {
	machine := New()
	machine.registers[0x0F] = 1
	mustLoad(t, machine, 0x60FE, 0x7003)

	mustStep(t, machine)
	assert.Equal(t, uint8(0xFE), machine.registers[0])

	// 7XNN wraps and leaves VF alone.
	mustStep(t, machine)
	assert.Equal(t, uint8(0x01), machine.registers[0])
	assert.Equal(t, uint8(1), machine.registers[0x0F])
}

func TestRegisterOps(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		v0, v1 uint8
		want   uint8
	}{
		{"mov", 0x8010, 0x00, 0x5A, 0x5A},
		{"or", 0x8011, 0xF0, 0x0F, 0xFF},
		{"and", 0x8012, 0xF1, 0x1F, 0x11},
		{"xor", 0x8013, 0xFF, 0x0F, 0xF0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := New()
			machine.registers[0] = tt.v0
			machine.registers[1] = tt.v1
			mustLoad(t, machine, tt.opcode)
			mustStep(t, machine)

			assert.Equal(t, tt.want, machine.registers[0])
		})
	}
}

func TestAddCarryAllOperands(t *testing.T) {
	machine := New()

	for a := 0; a <= 0xFF; a++ {
		for b := 0; b <= 0xFF; b++ {
			machine.registers[0] = uint8(a)
			machine.registers[1] = uint8(b)

			if err := machine.executeOpcode(0x8014); err != nil {
				t.Fatalf("add v0, v1 failed for %d+%d: %v", a, b, err)
			}

			if got, want := machine.registers[0], uint8(a+b); got != want {
				t.Fatalf("sum of %d+%d: got %d, want %d", a, b, got, want)
			}

			wantCarry := uint8(0)
			if a+b > 0xFF {
				wantCarry = 1
			}
			if machine.registers[0x0F] != wantCarry {
				t.Fatalf("carry of %d+%d: got %d, want %d", a, b, machine.registers[0x0F], wantCarry)
			}
		}
	}
}

func TestSubBorrowAllOperands(t *testing.T) {
	machine := New()

	for a := 0; a <= 0xFF; a++ {
		for b := 0; b <= 0xFF; b++ {
			machine.registers[0] = uint8(a)
			machine.registers[1] = uint8(b)

			if err := machine.executeOpcode(0x8015); err != nil {
				t.Fatalf("sub v0, v1 failed for %d-%d: %v", a, b, err)
			}

			if got, want := machine.registers[0], uint8(a-b); got != want {
				t.Fatalf("difference of %d-%d: got %d, want %d", a, b, got, want)
			}

			// VF=1 means no borrow occurred.
			wantFlag := uint8(0)
			if a >= b {
				wantFlag = 1
			}
			if machine.registers[0x0F] != wantFlag {
				t.Fatalf("borrow flag of %d-%d: got %d, want %d", a, b, machine.registers[0x0F], wantFlag)
			}
		}
	}
}

func TestReverseSubBorrowAllOperands(t *testing.T) {
	machine := New()

	for a := 0; a <= 0xFF; a++ {
		for b := 0; b <= 0xFF; b++ {
			machine.registers[0] = uint8(a)
			machine.registers[1] = uint8(b)

			if err := machine.executeOpcode(0x8017); err != nil {
				t.Fatalf("rsb v0, v1 failed for %d-%d: %v", b, a, err)
			}

			if got, want := machine.registers[0], uint8(b-a); got != want {
				t.Fatalf("difference of %d-%d: got %d, want %d", b, a, got, want)
			}

			wantFlag := uint8(0)
			if b >= a {
				wantFlag = 1
			}
			if machine.registers[0x0F] != wantFlag {
				t.Fatalf("borrow flag of %d-%d: got %d, want %d", b, a, machine.registers[0x0F], wantFlag)
			}
		}
	}
}

func TestFlagWinsWhenTargetIsVF(t *testing.T) {
	// VF is a valid X operand; the flag overwrites the result, never the
	// other way around.
	tests := []struct {
		name   string
		opcode uint16
		vF, v1 uint8
		want   uint8
	}{
		{"add no carry", 0x8F14, 5, 3, 0},
		{"add carry", 0x8F14, 200, 100, 1},
		{"sub no borrow", 0x8F15, 5, 3, 1},
		{"sub borrow", 0x8F15, 3, 5, 0},
		{"shr lsb set", 0x8F16, 0x05, 0, 1},
		{"shr lsb clear", 0x8F16, 0x04, 0, 0},
		{"rsb borrow", 0x8F17, 5, 3, 0},
		{"rsb no borrow", 0x8F17, 3, 5, 1},
		{"shl msb set", 0x8F1E, 0x81, 0, 1},
		{"shl msb clear", 0x8F1E, 0x41, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := New()
			machine.registers[0x0F] = tt.vF
			machine.registers[1] = tt.v1

			assert.NoError(t, machine.executeOpcode(tt.opcode))
			assert.Equal(t, tt.want, machine.registers[0x0F])
		})
	}
}

func TestShiftRight(t *testing.T) {
	machine := New()
	machine.registers[0] = 0x05

	assert.NoError(t, machine.executeOpcode(0x8016))
	assert.Equal(t, uint8(0x02), machine.registers[0])
	assert.Equal(t, uint8(1), machine.registers[0x0F])

	assert.NoError(t, machine.executeOpcode(0x8016))
	assert.Equal(t, uint8(0x01), machine.registers[0])
	assert.Equal(t, uint8(0), machine.registers[0x0F])
}

func TestShiftLeft(t *testing.T) {
	machine := New()
	machine.registers[0] = 0xC1

	assert.NoError(t, machine.executeOpcode(0x801E))
	assert.Equal(t, uint8(0x82), machine.registers[0])
	assert.Equal(t, uint8(1), machine.registers[0x0F])
}

func TestShiftQuirkUsesVY(t *testing.T) {
	machine := New(WithQuirks(CosmacQuirks()))
	machine.registers[0] = 0xFF
	machine.registers[1] = 0x06

	assert.NoError(t, machine.executeOpcode(0x8016))
	assert.Equal(t, uint8(0x03), machine.registers[0])
	assert.Equal(t, uint8(0), machine.registers[0x0F])

	machine.registers[1] = 0x81
	assert.NoError(t, machine.executeOpcode(0x801E))
	assert.Equal(t, uint8(0x02), machine.registers[0])
	assert.Equal(t, uint8(1), machine.registers[0x0F])
}

func TestSetIndex(t *testing.T) {
	machine := New()
	mustLoad(t, machine, 0xA123)
	mustStep(t, machine)

	assert.Equal(t, uint16(0x123), machine.index)
}

func TestRandomMasked(t *testing.T) {
	seed := func() *rand.Rand {
		return rand.New(rand.NewPCG(7, 13))
	}

	machine := New(WithRand(seed()))
	want := seed()

	for _, mask := range []uint8{0xFF, 0x0F, 0x00} {
		opcode := 0xC000 | uint16(mask)
		assert.NoError(t, machine.executeOpcode(opcode))
		assert.Equal(t, uint8(want.IntN(256))&mask, machine.registers[0])
	}
}

func TestSpriteDrawAndCollision(t *testing.T) {
	machine := New()
	machine.registers[0] = 4
	machine.registers[1] = 2
	machine.index = FontStart // glyph 0: 0xF0 0x90 0x90 0x90 0xF0

	assert.NoError(t, machine.executeOpcode(0xD015))
	assert.Equal(t, uint8(0), machine.registers[0x0F])
	assert.True(t, machine.drawFlag)

	// Top row of the glyph: pixels (4..7, 2) lit.
	for x := 4; x < 8; x++ {
		assert.Equal(t, uint8(1), machine.gfx[2*ScreenWidth+x])
	}
	assert.Equal(t, uint8(0), machine.gfx[2*ScreenWidth+8])

	// Drawing the same sprite again erases it and reports the collision.
	assert.NoError(t, machine.executeOpcode(0xD015))
	assert.Equal(t, uint8(1), machine.registers[0x0F])

	for _, pixel := range machine.gfx {
		if pixel != 0 {
			t.Fatal("expected empty screen after redraw")
		}
	}
}

func TestSpriteClipsAtEdges(t *testing.T) {
	machine := New()
	machine.registers[0] = 60
	machine.registers[1] = 30
	machine.memory[0x300] = 0xFF
	machine.memory[0x301] = 0xFF
	machine.memory[0x302] = 0xFF
	machine.index = 0x300

	assert.NoError(t, machine.executeOpcode(0xD013))

	lit := 0
	for _, pixel := range machine.gfx {
		if pixel != 0 {
			lit++
		}
	}

	// Only the 4x2 corner fits: columns 60-63 of rows 30 and 31.
	assert.Equal(t, 8, lit)
	assert.Equal(t, uint8(1), machine.gfx[30*ScreenWidth+63])
	assert.Equal(t, uint8(0), machine.gfx[30*ScreenWidth+0])
	assert.Equal(t, uint8(0), machine.gfx[0*ScreenWidth+60])
}

func TestSpriteWrapQuirk(t *testing.T) {
	machine := New(WithQuirks(Quirks{SpriteWrap: true}))
	machine.registers[0] = 60
	machine.registers[1] = 30
	machine.memory[0x300] = 0xFF
	machine.memory[0x301] = 0xFF
	machine.memory[0x302] = 0xFF
	machine.index = 0x300

	assert.NoError(t, machine.executeOpcode(0xD013))

	lit := 0
	for _, pixel := range machine.gfx {
		if pixel != 0 {
			lit++
		}
	}

	assert.Equal(t, 24, lit)
	assert.Equal(t, uint8(1), machine.gfx[30*ScreenWidth+0])
	assert.Equal(t, uint8(1), machine.gfx[0*ScreenWidth+60])
	assert.Equal(t, uint8(1), machine.gfx[0*ScreenWidth+0])
}

func TestSpriteStartPositionWraps(t *testing.T) {
	machine := New()
	machine.registers[0] = 64 + 4
	machine.registers[1] = 32 + 2
	machine.memory[0x300] = 0x80
	machine.index = 0x300

	assert.NoError(t, machine.executeOpcode(0xD011))
	assert.Equal(t, uint8(1), machine.gfx[2*ScreenWidth+4])
}

func TestSpriteReadPastMemoryEnd(t *testing.T) {
	machine := New()
	machine.index = 0x0FFF

	err := machine.executeOpcode(0xD012)
	assert.Error(t, err)

	var addrErr *AddressError
	assert.True(t, errors.As(err, &addrErr))
	assert.Equal(t, uint16(0x1000), addrErr.Addr)
}

func TestKeySkips(t *testing.T) {
	machine := New()
	machine.registers[0] = 0x0A
	machine.SetKeyState(KeyA, true)
	mustLoad(t, machine, 0xE09E)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x204), machine.pc)

	machine = New()
	machine.registers[0] = 0x0A
	mustLoad(t, machine, 0xE09E)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x202), machine.pc)

	machine = New()
	machine.registers[0] = 0x0A
	mustLoad(t, machine, 0xE0A1)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x204), machine.pc)

	machine = New()
	machine.registers[0] = 0x0A
	machine.SetKeyState(KeyA, true)
	mustLoad(t, machine, 0xE0A1)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x202), machine.pc)
}

func TestKeyWait(t *testing.T) {
	machine := New()
	mustLoad(t, machine, 0xF50A)

	// The program counter stays parked on the instruction while no key
	// arrives.
	mustStep(t, machine)
	assert.Equal(t, uint16(0x200), machine.pc)

	mustStep(t, machine)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x200), machine.pc)

	machine.SetKeyState(Key7, true)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x202), machine.pc)
	assert.Equal(t, uint8(7), machine.registers[5])
}

func TestKeyWaitNeedsTransition(t *testing.T) {
	machine := New()
	machine.SetKeyState(Key3, true)
	mustLoad(t, machine, 0xF00A)

	// The key was already down when the wait began, so it does not count.
	mustStep(t, machine)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x200), machine.pc)

	// Releasing and pressing again is a transition.
	machine.SetKeyState(Key3, false)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x200), machine.pc)

	machine.SetKeyState(Key3, true)
	mustStep(t, machine)
	assert.Equal(t, uint16(0x202), machine.pc)
	assert.Equal(t, uint8(3), machine.registers[0])
}

func TestTimerOpcodes(t *testing.T) {
	machine := New()
	machine.registers[0] = 42
	mustLoad(t, machine, 0xF015, 0xF018, 0xF107)

	mustStep(t, machine)
	assert.Equal(t, uint8(42), machine.delayTimer)

	mustStep(t, machine)
	assert.Equal(t, uint8(42), machine.soundTimer)

	mustStep(t, machine)
	assert.Equal(t, uint8(42), machine.registers[1])
}

func TestAddToIndex(t *testing.T) {
	machine := New()
	machine.index = 0x0FFE
	machine.registers[0] = 0x01

	assert.NoError(t, machine.executeOpcode(0xF01E))
	assert.Equal(t, uint16(0x0FFF), machine.index)
	assert.Equal(t, uint8(0), machine.registers[0x0F])

	assert.NoError(t, machine.executeOpcode(0xF01E))
	assert.Equal(t, uint16(0x1000), machine.index)
	assert.Equal(t, uint8(1), machine.registers[0x0F])
}

func TestAddToIndexQuirkNoFlag(t *testing.T) {
	machine := New(WithQuirks(CosmacQuirks()))
	machine.index = 0x0FFF
	machine.registers[0] = 0x01
	machine.registers[0x0F] = 0

	assert.NoError(t, machine.executeOpcode(0xF01E))
	assert.Equal(t, uint16(0x1000), machine.index)
	assert.Equal(t, uint8(0), machine.registers[0x0F])
}

func TestFontAddress(t *testing.T) {
	machine := New()
	machine.registers[0] = 0x0A

	assert.NoError(t, machine.executeOpcode(0xF029))
	assert.Equal(t, FontStart+10*FontHeight, machine.index)

	// The glyph bytes there are the A glyph.
	assert.Equal(t, uint8(0xF0), machine.memory[machine.index])
	assert.Equal(t, uint8(0x90), machine.memory[machine.index+4])
}

func TestBCD(t *testing.T) {
	machine := New()
	machine.registers[3] = 157
	machine.index = 0x300

	assert.NoError(t, machine.executeOpcode(0xF333))
	assert.Equal(t, uint8(1), machine.memory[0x300])
	assert.Equal(t, uint8(5), machine.memory[0x301])
	assert.Equal(t, uint8(7), machine.memory[0x302])
}

func TestBCDPastMemoryEnd(t *testing.T) {
	machine := New()
	machine.index = 0x0FFE

	err := machine.executeOpcode(0xF033)
	assert.Error(t, err)

	var addrErr *AddressError
	assert.True(t, errors.As(err, &addrErr))
}

func TestStoreLoadRegisters(t *testing.T) {
	machine := New()
	for i := uint8(0); i <= 3; i++ {
		machine.registers[i] = i + 10
	}
	machine.index = 0x300

	assert.NoError(t, machine.executeOpcode(0xF355))
	for i := uint16(0); i <= 3; i++ {
		assert.Equal(t, uint8(i+10), machine.memory[0x300+i])
	}
	// V4 was not stored.
	assert.Equal(t, uint8(0), machine.memory[0x304])
	// The default profile leaves the index register alone.
	assert.Equal(t, uint16(0x300), machine.index)

	for i := uint8(0); i <= 3; i++ {
		machine.registers[i] = 0
	}

	assert.NoError(t, machine.executeOpcode(0xF365))
	for i := uint8(0); i <= 3; i++ {
		assert.Equal(t, i+10, machine.registers[i])
	}
	assert.Equal(t, uint16(0x300), machine.index)
}

func TestStoreLoadIncrementQuirk(t *testing.T) {
	machine := New(WithQuirks(CosmacQuirks()))
	machine.index = 0x300

	assert.NoError(t, machine.executeOpcode(0xF355))
	assert.Equal(t, uint16(0x304), machine.index)

	assert.NoError(t, machine.executeOpcode(0xF265))
	assert.Equal(t, uint16(0x307), machine.index)
}

func TestStoreRegistersPastMemoryEnd(t *testing.T) {
	machine := New()
	machine.index = 0x0FFD

	err := machine.executeOpcode(0xF355)
	assert.Error(t, err)

	var addrErr *AddressError
	assert.True(t, errors.As(err, &addrErr))
}

func TestUnknownOpcode(t *testing.T) {
	machine := New()
	mustLoad(t, machine, 0xE000)

	err := machine.Step()
	assert.Error(t, err)

	var unknown *UnknownOpcodeError
	assert.True(t, errors.As(err, &unknown))
	assert.Equal(t, uint16(0xE000), unknown.Opcode)
	assert.Equal(t, uint16(0x200), unknown.PC)
}

func TestRegisterSkipVariantsUnknown(t *testing.T) {
	// Only a zero low nibble is a valid register-skip encoding.
	for _, opcode := range []uint16{0x5AB3, 0x9AB3} {
		machine := New()
		mustLoad(t, machine, opcode)

		err := machine.Step()
		assert.Error(t, err)

		var unknown *UnknownOpcodeError
		assert.True(t, errors.As(err, &unknown))
		assert.Equal(t, opcode, unknown.Opcode)
	}
}

func TestDecodeNames(t *testing.T) {
	tests := []struct {
		opcode uint16
		name   string
	}{
		{0x00E0, "cls"},
		{0x00EE, "rts"},
		{0x1234, "jmp 0x0234"},
		{0x2234, "jsr 0x0234"},
		{0xA123, "mvi 0x0123"},
		{0xD125, "sprite v1, v2, 5"},
		{0xF50A, "key v5"},
		{0xFFFF, "unknown 0xFFFF"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, decode(tt.opcode).Name(tt.opcode))
	}
}
