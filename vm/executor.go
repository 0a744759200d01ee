package vm

import (
	"fmt"

	"github.com/lookbusy1344/sbpfasm/parser"
)

// Load installs program as the code the VM executes and positions PC at its
// entry point.
func (v *VM) Load(program *Program) {
	v.Program = program
	v.EntryPoint = program.EntryPoint
	v.PC = program.EntryPoint
}

// Run drives the fetch/decode/execute loop until the program calls `exit`,
// returning r0's final value. Unlike the reference interpreter's run()
// (which guards the PC advance behind an always-true tautology,
// `if pc == pc`), this loop always advances PC by the decoded instruction's
// width after Execute returns; a taken jump has already moved PC by its
// relative offset inside Execute, and the parser's offset formula accounts
// for the trailing +width so the two compose correctly.
func (v *VM) Run() (uint64, error) {
	if v.Program == nil {
		return 0, fmt.Errorf("no program loaded")
	}
	for !v.Exited {
		if err := v.Step(); err != nil {
			return 0, err
		}
	}
	return v.Registers[0].Value, nil
}

// Step fetches, decodes, and executes exactly one instruction. It is the
// debugger's single-step primitive as well as Run's inner loop body,
// grounded on the reference interpreter's separately callable
// step_instruction (which does not carry run()'s tautology).
func (v *VM) Step() error {
	if v.Program == nil {
		return fmt.Errorf("no program loaded")
	}
	if int(v.PC) >= len(v.Program.Bytecode) {
		return fmt.Errorf("program counter 0x%x ran past the end of the program image", v.PC)
	}

	offset := int64(v.PC) - int64(v.EntryPoint)
	d, err := Decode(v.Program.Bytecode[v.PC:])
	if err != nil {
		return err
	}

	if err := v.execute(d, offset); err != nil {
		return err
	}

	v.PC += uint64(d.Width)
	return nil
}

// CurrentLine returns the source line recorded for the instruction at the
// current PC, or 0 if no debug info is attached.
func (v *VM) CurrentLine() int {
	if v.Debug == nil {
		return 0
	}
	line, _, _, ok := v.Debug(int64(v.PC) - int64(v.EntryPoint))
	if !ok {
		return 0
	}
	return line
}

func (v *VM) registerHint(offset int64, register int) RegisterType {
	if v.Debug == nil {
		return RegInt
	}
	_, hintReg, hintIsAddr, ok := v.Debug(offset)
	if !ok || hintReg != register {
		return RegInt
	}
	if hintIsAddr {
		return RegAddr
	}
	return RegInt
}

func (v *VM) execute(d Decoded, offset int64) error {
	switch d.Kind {
	case KindLddw:
		t := v.registerHint(offset, d.Register)
		v.UpdateRegister(d.Register, d.Value, t)

	case KindLdxb:
		baseAddr := v.Registers[d.BaseReg].Value
		b, err := v.Memory.ReadByte(baseAddr + uint64(d.Offset))
		if err != nil {
			return err
		}
		v.UpdateRegister(d.Register, uint64(b), RegInt)

	case KindAddImm:
		cur := v.Registers[d.Register]
		v.UpdateRegister(d.Register, cur.Value+uint64(d.Value32), cur.Type)

	case KindAddReg:
		dest := v.Registers[d.Register]
		src := v.Registers[d.Src]
		v.UpdateRegister(d.Register, dest.Value+src.Value, dest.Type)

	case KindSubImm:
		cur := v.Registers[d.Register]
		v.UpdateRegister(d.Register, cur.Value-uint64(d.Value32), cur.Type)

	case KindSubReg:
		dest := v.Registers[d.Register]
		src := v.Registers[d.Src]
		v.UpdateRegister(d.Register, dest.Value-src.Value, dest.Type)

	case KindMovImm:
		v.UpdateRegister(d.Register, uint64(d.Value32), RegInt)

	case KindMovReg:
		v.UpdateRegister(d.Register, v.Registers[d.Src].Value, RegInt)

	case KindJumpImm:
		if v.jumpImmConditionMet(d) {
			v.PC = uint64(int64(v.PC) + int64(d.Offset)*8)
		}

	case KindJumpReg:
		if v.jumpRegConditionMet(d) {
			v.PC = uint64(int64(v.PC) + int64(d.Offset)*8)
		}

	case KindCall:
		return v.handleCall(d)

	case KindExit:
		v.Exit()

	default:
		return fmt.Errorf("unexecutable decoded kind %v", d.Kind)
	}
	return nil
}

func (v *VM) jumpImmConditionMet(d Decoded) bool {
	if d.Opcode == parser.OpJa {
		return true
	}
	lhs := v.Registers[d.Register].Value
	rhs := uint64(d.Value32)
	return compareUnsigned(d.Opcode, lhs, rhs)
}

func (v *VM) jumpRegConditionMet(d Decoded) bool {
	lhs := v.Registers[d.Register].Value
	rhs := v.Registers[d.Src].Value
	return compareUnsigned(d.Opcode, lhs, rhs)
}

// compareUnsigned evaluates a conditional jump's comparison, per the
// reference interpreter's Jump::execute match arm — all comparisons are
// unsigned 64-bit, regardless of register type.
func compareUnsigned(op parser.Opcode, lhs, rhs uint64) bool {
	switch op {
	case parser.OpJeqImm, parser.OpJeqReg:
		return lhs == rhs
	case parser.OpJneImm, parser.OpJneReg:
		return lhs != rhs
	case parser.OpJgtImm, parser.OpJgtReg:
		return lhs > rhs
	case parser.OpJgeImm, parser.OpJgeReg:
		return lhs >= rhs
	case parser.OpJltImm, parser.OpJltReg:
		return lhs < rhs
	case parser.OpJleImm, parser.OpJleReg:
		return lhs <= rhs
	default:
		return false
	}
}
