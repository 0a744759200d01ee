package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/lookbusy1344/sbpfasm/parser"
)

// DecodedKind tags which instruction family a Decoded record holds, mapping
// 1:1 onto the reference interpreter's InstructionType variants.
type DecodedKind int

const (
	KindLddw DecodedKind = iota
	KindLdxb
	KindAddImm
	KindAddReg
	KindSubImm
	KindSubReg
	KindMovImm
	KindMovReg
	KindJumpImm
	KindJumpReg
	KindCall
	KindExit
)

// Decoded is the field-extracted form of one fetched instruction, ready for
// Execute.
type Decoded struct {
	Kind       DecodedKind
	Opcode     parser.Opcode
	Register   int
	BaseReg    int
	Src        int
	Offset     int16
	Value      uint64
	Value32    uint32
	FunctionID uint32
	Width      int
}

// Decode extracts a Decoded instruction from the start of bytes, per the
// byte layouts in SPEC_FULL.md §4.4/§4.5.
func Decode(bytes []byte) (Decoded, error) {
	if len(bytes) == 0 {
		return Decoded{}, fmt.Errorf("empty bytecode")
	}
	op, ok := parser.OpcodeFromWireByte(bytes[0])
	if !ok {
		return Decoded{}, fmt.Errorf("unknown opcode: 0x%02x", bytes[0])
	}
	width := op.Width()
	if len(bytes) < width {
		return Decoded{}, fmt.Errorf("not enough bytes for %s instruction: need %d, have %d", op, width, len(bytes))
	}

	switch op {
	case parser.OpLddw:
		value := binary.LittleEndian.Uint64(bytes[4:12])
		return Decoded{Kind: KindLddw, Opcode: op, Register: int(bytes[1]), Value: value, Width: width}, nil

	case parser.OpLdxb:
		reg := int(bytes[1] & 0x0F)
		base := int(bytes[1] >> 4)
		offset := int16(binary.LittleEndian.Uint16(bytes[2:4]))
		return Decoded{Kind: KindLdxb, Opcode: op, Register: reg, BaseReg: base, Offset: offset, Width: width}, nil

	case parser.OpAdd64Imm, parser.OpAdd32Imm, parser.OpSub64Imm, parser.OpSub32Imm, parser.OpMov64Imm, parser.OpMov32Imm:
		reg := int(bytes[1])
		v32 := binary.LittleEndian.Uint32(bytes[4:8])
		kind := kindForImmFamily(op)
		return Decoded{Kind: kind, Opcode: op, Register: reg, Value32: v32, Width: width}, nil

	case parser.OpAdd64Reg, parser.OpAdd32Reg, parser.OpSub64Reg, parser.OpSub32Reg, parser.OpMov64Reg, parser.OpMov32Reg:
		src := int(bytes[1] >> 4)
		dest := int(bytes[1] & 0x0F)
		kind := kindForRegFamily(op)
		return Decoded{Kind: kind, Opcode: op, Register: dest, Src: src, Width: width}, nil

	case parser.OpJa,
		parser.OpJeqImm, parser.OpJneImm, parser.OpJgtImm, parser.OpJgeImm, parser.OpJltImm, parser.OpJleImm:
		reg := int(bytes[1])
		offset := int16(binary.LittleEndian.Uint16(bytes[2:4]))
		v32 := binary.LittleEndian.Uint32(bytes[4:8])
		return Decoded{Kind: KindJumpImm, Opcode: op, Register: reg, Offset: offset, Value32: v32, Width: width}, nil

	case parser.OpJeqReg, parser.OpJneReg, parser.OpJgtReg, parser.OpJgeReg, parser.OpJltReg, parser.OpJleReg:
		reg := int(bytes[1] & 0x0F)
		src := int(bytes[1] >> 4)
		offset := int16(binary.LittleEndian.Uint16(bytes[2:4]))
		return Decoded{Kind: KindJumpReg, Opcode: op, Register: reg, Src: src, Offset: offset, Width: width}, nil

	case parser.OpCall:
		fid := uint32(bytes[1]) | uint32(bytes[2])<<8 | uint32(bytes[3])<<16
		return Decoded{Kind: KindCall, Opcode: op, FunctionID: fid, Width: width}, nil

	case parser.OpExit:
		return Decoded{Kind: KindExit, Opcode: op, Width: width}, nil

	default:
		return Decoded{}, fmt.Errorf("unsupported opcode: %s", op)
	}
}

func kindForImmFamily(op parser.Opcode) DecodedKind {
	switch op {
	case parser.OpAdd64Imm, parser.OpAdd32Imm:
		return KindAddImm
	case parser.OpSub64Imm, parser.OpSub32Imm:
		return KindSubImm
	default:
		return KindMovImm
	}
}

func kindForRegFamily(op parser.Opcode) DecodedKind {
	switch op {
	case parser.OpAdd64Reg, parser.OpAdd32Reg:
		return KindAddReg
	case parser.OpSub64Reg, parser.OpSub32Reg:
		return KindSubReg
	default:
		return KindMovReg
	}
}
