package vm

import (
	"context"
	"fmt"
	"log/slog"
)

func (vm *VM) executeOpcode(opcode uint16) error {
	instr := decode(opcode)

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", vm.pc-InstructionSize),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.Name(opcode),
		)
	}

	return instr.Execute(vm, opcode)
}

type instruction struct {
	Name    func(opcode uint16) string
	Execute func(vm *VM, opcode uint16) error
}

// decode selects a handler by the high nibble, with secondary dispatch on
// the low nibble or low byte for the 0x0, 0x8, 0xE and 0xF families.
// The program counter has already been advanced past the instruction when
// a handler runs: skips add one more instruction, jumps assign PC outright.
func decode(opcode uint16) instruction {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode & 0x00FF {
		case 0x00E0:
			// 00E0 - Clear screen
			return clsInstruction

		case 0x00EE:
			// 00EE - Return from subroutine
			return rtsInstruction
		}

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return jmpInstruction

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return jsrInstruction

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return skeq1Instruction

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return skne1Instruction

	case 0x5000:
		// 5XY0 - Skips the next instruction if VX equals VY
		if opcode&0x000F == 0 {
			return skeq2Instruction
		}

	case 0x6000:
		// 6XNN - Sets VX to NN
		return mov1Instruction

	case 0x7000:
		// 7XNN - Adds NN to VX
		return add1Instruction

	case 0x8000:
		// 8XY_
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return mov2Instruction

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return orInstruction

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return andInstruction

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return xorInstruction

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry, and to 0 when there isn't.
			return add2Instruction

		case 0x0005:
			// 8XY5 - VY is subtracted from VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return subInstruction

		case 0x0006:
			// 8XY6 - Shifts VX right by one. VF is set to the value of the least significant bit before the shift.
			return shrInstruction

		case 0x0007:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return rsbInstruction

		case 0x000E:
			// 8XYE - Shifts VX left by one. VF is set to the value of the most significant bit before the shift.
			return shlInstruction
		}

	case 0x9000:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		if opcode&0x000F == 0 {
			return skne2Instruction
		}

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return mviInstruction

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return jmiInstruction

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return randInstruction

	case 0xD000:
		// DXYN - Draws a sprite at coordinate (VX, VY) that has a width of 8
		// pixels and a height of N pixels, XOR-composited from memory at I.
		// VF is set to 1 if any lit pixel is flipped off.
		return spriteInstruction

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return skprInstruction

		case 0x00A1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return skupInstruction
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return gdelayInstruction

		case 0x000A:
			// FX0A - A key press is awaited, and then stored in VX
			return keyInstruction

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return sdelayInstruction

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return ssoundInstruction

		case 0x001E:
			// FX1E - Adds VX to I
			return adiInstruction

		case 0x0029:
			// FX29 - Sets I to the location of the font sprite for the
			// hexadecimal digit in VX
			return fontInstruction

		case 0x0033:
			// FX33 - Stores the binary-coded decimal representation of VX
			// at the addresses I, I plus 1, and I plus 2
			return bcdInstruction

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return strInstruction

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0...VX
			return ldrInstruction
		}
	}

	return unknownInstruction
}

var (
	// 00E0	cls	Clear the screen
	clsInstruction = instruction{
		Name: func(opcode uint16) string {
			return "cls"
		},
		Execute: func(vm *VM, opcode uint16) error {
			for i := range vm.gfx {
				vm.gfx[i] = 0
			}
			vm.drawFlag = true
			return nil
		},
	}

	// 00EE	rts	return from subroutine call
	rtsInstruction = instruction{
		Name: func(opcode uint16) string {
			return "rts"
		},
		Execute: func(vm *VM, opcode uint16) error {
			if vm.sp == 0 {
				return &StackUnderflowError{Opcode: opcode, PC: vm.pc - InstructionSize}
			}

			vm.sp--
			vm.pc = vm.stack[vm.sp]
			return nil
		},
	}

	// 1xxx	jmp xxx	jump to address xxx
	jmpInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("jmp 0x%04x", opcode&0x0FFF)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.pc = opcode & 0x0FFF
			return nil
		},
	}

	// 2xxx	jsr xxx	jump to subroutine at address xxx
	jsrInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("jsr 0x%04x", opcode&0x0FFF)
		},
		Execute: func(vm *VM, opcode uint16) error {
			if int(vm.sp) >= StackSize {
				return &StackOverflowError{Opcode: opcode, PC: vm.pc - InstructionSize, Depth: vm.sp}
			}

			// PC already points at the instruction after the call, which
			// is exactly the return address.
			vm.stack[vm.sp] = vm.pc
			vm.sp++
			vm.pc = opcode & 0x0FFF
			return nil
		},
	}

	// 3rxx	skeq vr,xx	skip if register r = constant
	skeq1Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			y := uint8(opcode & 0x00FF)

			return fmt.Sprintf("skeq v%x, %d", vX, y)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			x := vm.registers[vX]
			y := uint8(opcode & 0x00FF)

			if x == y {
				vm.pc += InstructionSize
			}

			return nil
		},
	}

	// 4rxx	skne vr,xx	skip if register r <> constant
	skne1Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			y := uint8(opcode & 0x00FF)

			return fmt.Sprintf("skne v%x, %d", vX, y)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			x := vm.registers[vX]
			y := uint8(opcode & 0x00FF)

			if x != y {
				vm.pc += InstructionSize
			}

			return nil
		},
	}

	// 5ry0	skeq vr,vy	skip if register r = register y
	skeq2Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("skeq v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			if vm.registers[vX] == vm.registers[vY] {
				vm.pc += InstructionSize
			}

			return nil
		},
	}

	// 6rxx	mov vr,xx	move constant to register r
	mov1Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			y := uint8(opcode & 0x00FF)

			return fmt.Sprintf("mov v%x, %d", vX, y)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			y := uint8(opcode & 0x00FF)

			vm.registers[vX] = y
			return nil
		},
	}

	// 7rxx	add vr,xx	add constant to register r	No carry generated
	add1Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			y := uint8(opcode & 0x00FF)

			return fmt.Sprintf("add v%x, %d", vX, y)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			y := uint8(opcode & 0x00FF)

			vm.registers[vX] += y
			return nil
		},
	}

	// 8ry0	mov vr,vy	move register vy into vr
	mov2Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("mov v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			vm.registers[vX] = vm.registers[vY]
			return nil
		},
	}

	// 8ry1	or rx,ry	or register vy into register vx
	orInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("or v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			vm.registers[vX] |= vm.registers[vY]
			return nil
		},
	}

	// 8ry2	and rx,ry	and register vy into register vx
	andInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("and v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			vm.registers[vX] &= vm.registers[vY]
			return nil
		},
	}

	// 8ry3	xor rx,ry	exclusive or register ry into register rx
	xorInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("xor v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			vm.registers[vX] ^= vm.registers[vY]
			return nil
		},
	}

	// 8ry4	add vr,vy	add register vy to vr, carry in vf
	add2Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("add v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4
			x := vm.registers[vX]
			y := vm.registers[vY]

			vm.registers[vX] = x + y

			// Carry check on the originals: the 8-bit sum wrapped iff
			// y exceeds the headroom above x.
			if y > 0xFF-x {
				vm.registers[0x0F] = 1
			} else {
				vm.registers[0x0F] = 0
			}

			return nil
		},
	}

	// 8ry5	sub vr,vy	subtract register vy from vr, borrow in vf
	subInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("sub v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4
			x := vm.registers[vX]
			y := vm.registers[vY]

			// Result first: when X is F, the flag wins over the result.
			vm.registers[vX] = x - y

			if x >= y {
				vm.registers[0x0F] = 1
			} else {
				vm.registers[0x0F] = 0
			}

			return nil
		},
	}

	// 8ry6	shr vr	shift right by one, bit 0 goes into register vf
	shrInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8

			return fmt.Sprintf("shr v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			x := vm.registers[vX]
			if vm.quirks.ShiftUsesVY {
				x = vm.registers[vY]
			}

			vm.registers[vX] = x >> 1
			vm.registers[0x0F] = x & 0x1
			return nil
		},
	}

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr
	rsbInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("rsb v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4
			x := vm.registers[vX]
			y := vm.registers[vY]

			vm.registers[vX] = y - x

			if y >= x {
				vm.registers[0x0F] = 1
			} else {
				vm.registers[0x0F] = 0
			}

			return nil
		},
	}

	// 8rye	shl vr	shift left by one, bit 7 goes into register vf
	shlInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8

			return fmt.Sprintf("shl v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			x := vm.registers[vX]
			if vm.quirks.ShiftUsesVY {
				x = vm.registers[vY]
			}

			vm.registers[vX] = x << 1
			vm.registers[0x0F] = x >> 7
			return nil
		},
	}

	// 9ry0	skne vr,vy	skip if register r <> register y
	skne2Instruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			return fmt.Sprintf("skne v%x, v%x", vX, vY)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4

			if vm.registers[vX] != vm.registers[vY] {
				vm.pc += InstructionSize
			}

			return nil
		},
	}

	// axxx	mvi xxx	Load index register with constant xxx
	mviInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("mvi 0x%04x", opcode&0x0FFF)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.index = opcode & 0x0FFF
			return nil
		},
	}

	// bxxx	jmi xxx	Jump to address xxx+register v0
	jmiInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("jmi 0x%04x", opcode&0x0FFF)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vm.pc = (opcode & 0x0FFF) + uint16(vm.registers[0])
			return nil
		},
	}

	// crxx	rand vr,xx	vr = random byte masked with xx
	randInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("rand v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			mask := uint8(opcode & 0x00FF)

			vm.registers[vX] = uint8(vm.rng.IntN(256)) & mask
			return nil
		},
	}

	// drys	sprite rx,ry,s	Draw sprite at screen location rx,ry height s
	// Sprites are stored in memory at the index register, 8 bits wide.
	// All drawing is xor drawing (it toggles the screen pixels); vf is set
	// to 1 if the draw clears a pixel, otherwise 0. Pixels past the screen
	// edge are clipped unless the wrap quirk is on.
	spriteInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4
			height := opcode & 0x000F
			return fmt.Sprintf("sprite v%x, v%x, %d", vX, vY, height)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			vY := (opcode & 0x00F0) >> 4
			height := opcode & 0x000F

			// The start position wraps, the drawn pixels need not.
			xLocation := uint16(vm.registers[vX]) % ScreenWidth
			yLocation := uint16(vm.registers[vY]) % ScreenHeight

			hasCollision := uint8(0)
			for y := uint16(0); y < height; y++ {
				rowAddr := vm.index + y
				if int(rowAddr) >= MemorySize {
					return &AddressError{Opcode: opcode, PC: vm.pc - InstructionSize, Addr: rowAddr}
				}

				row := vm.memory[rowAddr]

				yScreen := yLocation + y
				if yScreen >= ScreenHeight {
					if !vm.quirks.SpriteWrap {
						break
					}
					yScreen %= ScreenHeight
				}

				const width = uint16(8)
				for x := uint16(0); x < width; x++ {
					mask := uint8(0x80 >> x)
					if (row & mask) == 0 {
						continue
					}

					xScreen := xLocation + x
					if xScreen >= ScreenWidth {
						if !vm.quirks.SpriteWrap {
							break
						}
						xScreen %= ScreenWidth
					}

					screenAddr := ScreenWidth*yScreen + xScreen
					if vm.gfx[screenAddr] != 0 {
						hasCollision = 1
					}

					vm.gfx[screenAddr] ^= 1
				}
			}

			vm.registers[0x0F] = hasCollision
			vm.drawFlag = true
			return nil
		},
	}

	// er9e	skpr r	skip if key (register r) pressed
	skprInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("skpr v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			x := vm.registers[vX] & 0x0F

			if vm.keypad[x] {
				vm.pc += InstructionSize
			}

			return nil
		},
	}

	// era1	skup r	skip if key (register r) not pressed
	skupInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("skup v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			x := vm.registers[vX] & 0x0F

			if !vm.keypad[x] {
				vm.pc += InstructionSize
			}

			return nil
		},
	}

	// fr07	gdelay vr	get delay timer into vr
	gdelayInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("gdelay v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8

			vm.registers[vX] = vm.delayTimer
			return nil
		},
	}

	// fr0a	key vr	wait for keypress, put key in register vr
	keyInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("key v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8

			// Park the program counter back on this instruction and let
			// Step poll for an up-to-down key transition. Keys already
			// held now do not count.
			vm.waitReg = int(vX)
			copy(vm.waitKeys, vm.keypad)
			vm.pc -= InstructionSize
			return nil
		},
	}

	// fr15	sdelay vr	set the delay timer to vr
	sdelayInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("sdelay v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8

			vm.delayTimer = vm.registers[vX]
			return nil
		},
	}

	// fr18	ssound vr	set the sound timer to vr
	ssoundInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("ssound v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8

			vm.soundTimer = vm.registers[vX]
			return nil
		},
	}

	// fr1e	adi vr	add register vr to the index register
	adiInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("adi v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			x := uint16(vm.registers[vX])

			if vm.quirks.IndexOverflowVF {
				if vm.index+x > 0x0FFF {
					vm.registers[0x0F] = 1
				} else {
					vm.registers[0x0F] = 0
				}
			}

			vm.index += x
			return nil
		},
	}

	// fr29	font vr	point I to the font sprite for the hex digit in vr
	fontInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("font v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			digit := uint16(vm.registers[vX] & 0x0F)

			vm.index = FontStart + digit*FontHeight
			return nil
		},
	}

	// fr33	bcd vr	store the bcd representation of register vr at I,I+1,I+2
	bcdInstruction = instruction{
		Name: func(opcode uint16) string {
			vX := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("bcd v%x", vX)
		},
		Execute: func(vm *VM, opcode uint16) error {
			vX := (opcode & 0x0F00) >> 8
			x := vm.registers[vX]

			if int(vm.index)+2 >= MemorySize {
				return &AddressError{Opcode: opcode, PC: vm.pc - InstructionSize, Addr: vm.index + 2}
			}

			vm.memory[vm.index] = x / 100
			vm.memory[vm.index+1] = (x / 10) % 10
			vm.memory[vm.index+2] = x % 10
			return nil
		},
	}

	// fr55	str v0-vr	store registers v0-vr at location I onwards
	strInstruction = instruction{
		Name: func(opcode uint16) string {
			n := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("str %d", n)
		},
		Execute: func(vm *VM, opcode uint16) error {
			n := (opcode & 0x0F00) >> 8

			if int(vm.index)+int(n) >= MemorySize {
				return &AddressError{Opcode: opcode, PC: vm.pc - InstructionSize, Addr: vm.index + n}
			}

			for i := uint16(0); i <= n; i++ {
				vm.memory[vm.index+i] = vm.registers[i]
			}

			// On the original interpreter, I = I + X + 1 afterwards.
			if vm.quirks.LoadStoreIncrement {
				vm.index += n + 1
			}

			return nil
		},
	}

	// fr65	ldr v0-vr	load registers v0-vr from location I onwards
	ldrInstruction = instruction{
		Name: func(opcode uint16) string {
			n := (opcode & 0x0F00) >> 8
			return fmt.Sprintf("ldr %d", n)
		},
		Execute: func(vm *VM, opcode uint16) error {
			n := (opcode & 0x0F00) >> 8

			if int(vm.index)+int(n) >= MemorySize {
				return &AddressError{Opcode: opcode, PC: vm.pc - InstructionSize, Addr: vm.index + n}
			}

			for i := uint16(0); i <= n; i++ {
				vm.registers[i] = vm.memory[vm.index+i]
			}

			if vm.quirks.LoadStoreIncrement {
				vm.index += n + 1
			}

			return nil
		},
	}

	unknownInstruction = instruction{
		Name: func(opcode uint16) string {
			return fmt.Sprintf("unknown 0x%04X", opcode)
		},
		Execute: func(vm *VM, opcode uint16) error {
			return &UnknownOpcodeError{Opcode: opcode, PC: vm.pc - InstructionSize}
		},
	}
)
