package vm

import "fmt"

// EmptyProgramError is returned by LoadProgram for a zero-length ROM.
type EmptyProgramError struct{}

func (e *EmptyProgramError) Error() string {
	return "program is empty"
}

// ProgramTooLargeError is returned by LoadProgram for a ROM that does not
// fit between the program start address and the end of memory.
type ProgramTooLargeError struct {
	Size int
}

func (e *ProgramTooLargeError) Error() string {
	return fmt.Sprintf("program is too large: %d bytes, limit is %d", e.Size, MaxProgramSize)
}

// UnknownOpcodeError is returned by Step when no handler matches the
// fetched instruction word.
type UnknownOpcodeError struct {
	Opcode uint16
	PC     uint16
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("%04x: unknown op code 0x%04X", e.PC, e.Opcode)
}

// StackOverflowError is returned when a subroutine call would push past
// the 16-entry stack.
type StackOverflowError struct {
	Opcode uint16
	PC     uint16
	Depth  uint8
}

func (e *StackOverflowError) Error() string {
	return fmt.Sprintf("%04x: stack overflow at depth %d", e.PC, e.Depth)
}

// StackUnderflowError is returned when a subroutine return pops an empty
// stack.
type StackUnderflowError struct {
	Opcode uint16
	PC     uint16
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("%04x: stack underflow", e.PC)
}

// AddressError is returned when an instruction accesses memory past the
// 4k address space.
type AddressError struct {
	Opcode uint16
	PC     uint16
	Addr   uint16
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%04x: memory access out of range: 0x%04x", e.PC, e.Addr)
}
