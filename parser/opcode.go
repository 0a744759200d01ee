package parser

// Opcode identifies an sBPF mnemonic. Families that take either an
// immediate or a register operand (arithmetic, logic, mov, conditional
// jumps) are represented by a base placeholder plus two concrete forms; the
// first pass promotes a base opcode to one of its forms once it has seen
// the operand pattern. The promotion table (opcodeForms, below) is the
// authority for that relation — nothing in this package relies on the
// enum's numeric ordering, per the adjacency note in SPEC_FULL.md §9.
type Opcode int

const (
	OpInvalid Opcode = iota

	OpLddw
	OpLdxb

	OpAdd64 // base
	OpAdd64Imm
	OpAdd64Reg
	OpAdd32 // base
	OpAdd32Imm
	OpAdd32Reg

	OpSub64 // base
	OpSub64Imm
	OpSub64Reg
	OpSub32 // base
	OpSub32Imm
	OpSub32Reg

	OpMov64 // base
	OpMov64Imm
	OpMov64Reg
	OpMov32 // base
	OpMov32Imm
	OpMov32Reg

	OpJa

	OpJeq // base
	OpJeqImm
	OpJeqReg
	OpJne // base
	OpJneImm
	OpJneReg
	OpJgt // base
	OpJgtImm
	OpJgtReg
	OpJge // base
	OpJgeImm
	OpJgeReg
	OpJlt // base
	OpJltImm
	OpJltReg
	OpJle // base
	OpJleImm
	OpJleReg

	OpCall
	OpExit
)

var opcodeNames = map[string]Opcode{
	"lddw":  OpLddw,
	"ldxb":  OpLdxb,
	"add64": OpAdd64,
	"add32": OpAdd32,
	"sub64": OpSub64,
	"sub32": OpSub32,
	"mov64": OpMov64,
	"mov32": OpMov32,
	"ja":    OpJa,
	"jeq":   OpJeq,
	"jne":   OpJne,
	"jgt":   OpJgt,
	"jge":   OpJge,
	"jlt":   OpJlt,
	"jle":   OpJle,
	"call":  OpCall,
	"exit":  OpExit,
}

// opcodeForm is the (immediate-operand, register-operand) pair a base
// opcode promotes to once the first pass has seen the operand pattern.
type opcodeForm struct {
	Imm Opcode
	Reg Opcode
}

var opcodeForms = map[Opcode]opcodeForm{
	OpAdd64: {Imm: OpAdd64Imm, Reg: OpAdd64Reg},
	OpAdd32: {Imm: OpAdd32Imm, Reg: OpAdd32Reg},
	OpSub64: {Imm: OpSub64Imm, Reg: OpSub64Reg},
	OpSub32: {Imm: OpSub32Imm, Reg: OpSub32Reg},
	OpMov64: {Imm: OpMov64Imm, Reg: OpMov64Reg},
	OpMov32: {Imm: OpMov32Imm, Reg: OpMov32Reg},
	OpJeq:   {Imm: OpJeqImm, Reg: OpJeqReg},
	OpJne:   {Imm: OpJneImm, Reg: OpJneReg},
	OpJgt:   {Imm: OpJgtImm, Reg: OpJgtReg},
	OpJge:   {Imm: OpJgeImm, Reg: OpJgeReg},
	OpJlt:   {Imm: OpJltImm, Reg: OpJltReg},
	OpJle:   {Imm: OpJleImm, Reg: OpJleReg},
}

// IsConditionalJumpFamily reports whether mnemonic names a base opcode that
// takes a trailing label operand during the first pass (§4.2).
func (o Opcode) IsConditionalJumpFamily() bool {
	switch o {
	case OpJeq, OpJne, OpJgt, OpJge, OpJlt, OpJle:
		return true
	default:
		return false
	}
}

// IsArithmeticFamily reports whether mnemonic is a base opcode resolved
// purely from a (reg,imm) or (reg,reg) operand pair with no label operand.
func (o Opcode) IsArithmeticFamily() bool {
	switch o {
	case OpAdd64, OpAdd32, OpSub64, OpSub32, OpMov64, OpMov32:
		return true
	default:
		return false
	}
}

// PromoteImm resolves a base opcode to its (reg, imm[, label]) form.
func (o Opcode) PromoteImm() (Opcode, bool) {
	f, ok := opcodeForms[o]
	if !ok {
		return OpInvalid, false
	}
	return f.Imm, true
}

// PromoteReg resolves a base opcode to its (reg, reg[, label]) form.
func (o Opcode) PromoteReg() (Opcode, bool) {
	f, ok := opcodeForms[o]
	if !ok {
		return OpInvalid, false
	}
	return f.Reg, true
}

// LookupOpcode resolves a lowercase mnemonic to its base Opcode.
func LookupOpcode(mnemonic string) (Opcode, bool) {
	op, ok := opcodeNames[mnemonic]
	return op, ok
}

// wireBytes maps every concrete (non-base) opcode to the byte written at
// offset 0 of its encoded instruction. Values follow the conventional eBPF
// opcode byte layout (class in the low 3 bits, source bit, operation code
// in the high nibble) so that a hex dump of the bytecode reads the way any
// eBPF disassembler would show it.
var wireBytes = map[Opcode]byte{
	OpLddw: 0x18,
	OpLdxb: 0x71,

	OpAdd64Imm: 0x07,
	OpAdd64Reg: 0x0f,
	OpAdd32Imm: 0x04,
	OpAdd32Reg: 0x0c,

	OpSub64Imm: 0x17,
	OpSub64Reg: 0x1f,
	OpSub32Imm: 0x14,
	OpSub32Reg: 0x1c,

	OpMov64Imm: 0xb7,
	OpMov64Reg: 0xbf,
	OpMov32Imm: 0xb4,
	OpMov32Reg: 0xbc,

	OpJa: 0x05,

	OpJeqImm: 0x15,
	OpJeqReg: 0x1d,
	OpJneImm: 0x55,
	OpJneReg: 0x5d,
	OpJgtImm: 0x25,
	OpJgtReg: 0x2d,
	OpJgeImm: 0x35,
	OpJgeReg: 0x3d,
	OpJltImm: 0xa5,
	OpJltReg: 0xad,
	OpJleImm: 0xb5,
	OpJleReg: 0xbd,

	OpCall: 0x85,
	OpExit: 0x95,
}

// WireByte returns the byte this opcode is encoded as at instruction offset
// 0. The second value is false for base (unresolved) opcodes, which must be
// promoted via PromoteImm/PromoteReg before encoding.
func (o Opcode) WireByte() (byte, bool) {
	b, ok := wireBytes[o]
	return b, ok
}

// OpcodeFromWireByte reverses WireByte, used by the interpreter's decoder.
func OpcodeFromWireByte(b byte) (Opcode, bool) {
	for op, wb := range wireBytes {
		if wb == b {
			return op, true
		}
	}
	return OpInvalid, false
}

// Width returns the encoded instruction width in bytes: 16 for lddw, 8 for
// everything else (the only width exception named in SPEC_FULL.md §3).
func (o Opcode) Width() int {
	if o == OpLddw {
		return 16
	}
	return 8
}

func (o Opcode) String() string {
	for name, op := range opcodeNames {
		if op == o {
			return name
		}
	}
	for base, form := range opcodeForms {
		if form.Imm == o {
			return baseName(base) + "_imm"
		}
		if form.Reg == o {
			return baseName(base) + "_reg"
		}
	}
	return "invalid"
}

func baseName(base Opcode) string {
	for name, op := range opcodeNames {
		if op == base {
			return name
		}
	}
	return "op"
}
