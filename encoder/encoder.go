package encoder

import (
	"encoding/binary"

	"github.com/lookbusy1344/sbpfasm/parser"
)

// Encoder converts parsed IR into sBPF bytecode records plus the DebugInfo
// side channel, per SPEC_FULL.md §4.4.
type Encoder struct {
	Bytecode []byte
	Debug    DebugMap
}

// NewEncoder returns an Encoder ready to accept instructions in offset
// order.
func NewEncoder() *Encoder {
	return &Encoder{Debug: make(DebugMap)}
}

// EncodeProgram encodes every InstructionNode in result.Nodes in order,
// appending each instruction's bytes to the Bytecode buffer and recording
// its DebugInfo. Label and directive nodes are skipped; rodata is encoded
// separately via EncodeRodata.
func (e *Encoder) EncodeProgram(result *parser.ParseResult) error {
	for _, n := range result.Nodes {
		inst, ok := n.(*parser.InstructionNode)
		if !ok {
			continue
		}
		bytes, info, err := e.EncodeInstruction(inst)
		if err != nil {
			return err
		}
		e.Bytecode = append(e.Bytecode, bytes...)
		e.Debug[inst.Offset] = info
	}
	return nil
}

// EncodeRodata concatenates every rodata label's string bytes with no
// separator or null terminator, per SPEC_FULL.md §4.4's explicit
// no-terminator rule.
func EncodeRodata(result *parser.ParseResult) []byte {
	var out []byte
	for _, n := range result.RodataNodes {
		out = append(out, n.Data...)
	}
	return out
}

// EncodeInstruction encodes a single instruction to its 8- or 16-byte
// record. Byte layout is grounded on the reference assembler's per-operand-
// pattern switch: a leading opcode byte, then a pattern-specific body,
// zero-padded to the instruction's full width.
func (e *Encoder) EncodeInstruction(inst *parser.InstructionNode) ([]byte, DebugInfo, error) {
	info := DebugInfo{Line: inst.Line}

	wire, ok := inst.Opcode.WireByte()
	if !ok {
		return nil, info, WrapEncodingError(inst, NewEncodingError(inst, "opcode has no concrete wire form; did the parser forget to promote it?"))
	}

	bytes := []byte{wire}
	ops := inst.Operands

	if inst.Opcode == parser.OpCall {
		bytes = append(bytes, 0x10, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF)
	} else {
		switch {
		case len(ops) == 0:
			// no operand body; opcode byte plus zero padding is sufficient.

		case len(ops) == 1 && ops[0].Kind == parser.OperandImmediate:
			bytes = append(bytes, 0)
			if inst.Opcode == parser.OpJa {
				bytes = append(bytes, le16(int16(ops[0].Value))...)
			} else {
				bytes = append(bytes, le32(int32(ops[0].Value))...)
			}

		case len(ops) == 2 && ops[0].Kind == parser.OperandRegister && ops[1].Kind == parser.OperandImmediate:
			bytes = append(bytes, byte(ops[0].Reg))
			bytes = append(bytes, 0, 0)
			bytes = append(bytes, le32(int32(ops[1].Value))...)
			if ops[1].Kind2 == parser.ImmAddr {
				info.RegisterHint = RegisterHint{Register: ops[0].Reg, RegisterType: RegisterHintAddr}
			}

		case len(ops) == 3 && ops[0].Kind == parser.OperandRegister &&
			ops[1].Kind == parser.OperandImmediate && ops[2].Kind == parser.OperandImmediate:
			bytes = append(bytes, byte(ops[0].Reg))
			bytes = append(bytes, le16(int16(ops[2].Value))...)
			bytes = append(bytes, le32(int32(ops[1].Value))...)
			if ops[1].Kind2 == parser.ImmAddr {
				info.RegisterHint = RegisterHint{Register: ops[0].Reg, RegisterType: RegisterHintAddr}
			}

		case len(ops) == 3 && ops[0].Kind == parser.OperandRegister &&
			ops[1].Kind == parser.OperandRegister && ops[2].Kind == parser.OperandImmediate:
			bytes = append(bytes, byte(ops[1].Reg<<4)|byte(ops[0].Reg))
			bytes = append(bytes, le16(int16(ops[2].Value))...)

		case len(ops) == 2 && ops[0].Kind == parser.OperandRegister && ops[1].Kind == parser.OperandRegister:
			bytes = append(bytes, byte(ops[1].Reg<<4)|byte(ops[0].Reg))

		case len(ops) == 2 && ops[0].Kind == parser.OperandRegister && ops[1].Kind == parser.OperandExpression:
			bytes = append(bytes, byte(ops[1].BaseReg<<4)|byte(ops[0].Reg))
			bytes = append(bytes, le16(int16(ops[1].Offset))...)

		default:
			return nil, info, WrapEncodingError(inst, NewEncodingError(inst, "unrecognized operand pattern"))
		}
	}

	targetLen := inst.Opcode.Width()
	for len(bytes) < targetLen {
		bytes = append(bytes, 0)
	}

	// lddw carries the upper 32 bits of its 64-bit immediate in bytes 8-11,
	// so bytes 4-11 read back as one little-endian value.
	if inst.Opcode == parser.OpLddw && len(ops) == 2 && ops[1].Kind == parser.OperandImmediate {
		binary.LittleEndian.PutUint32(bytes[8:12], uint32(uint64(ops[1].Value)>>32))
	}

	return bytes, info, nil
}

func le16(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

func le32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}
