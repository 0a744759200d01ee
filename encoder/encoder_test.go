package encoder

import (
	"bytes"
	"testing"

	"github.com/lookbusy1344/sbpfasm/parser"
)

func TestEncodeInstruction_SingleImmediate(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode:   parser.OpJa,
		Operands: []parser.Operand{{Kind: parser.OperandImmediate, Value: 3}},
		Line:     1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	if len(bs) != 8 {
		t.Fatalf("expected an 8-byte record, got %d", len(bs))
	}
	wire, _ := parser.OpJa.WireByte()
	if bs[0] != wire {
		t.Errorf("expected wire byte 0x%x, got 0x%x", wire, bs[0])
	}
	// ja's immediate is a 16-bit PC-relative offset at bytes 2-3.
	if bs[2] != 3 || bs[3] != 0 {
		t.Errorf("expected the rel-16 offset encoded at bytes 2-3, got % x", bs[2:4])
	}
}

func TestEncodeInstruction_RegisterImmediate(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode: parser.OpMov64Imm,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 1},
			{Kind: parser.OperandImmediate, Value: 5},
		},
		Line: 1,
	}
	e := NewEncoder()
	bs, info, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	if bs[1] != 1 {
		t.Errorf("expected dst register byte 1, got %d", bs[1])
	}
	if bs[4] != 5 {
		t.Errorf("expected immediate 5 at byte 4, got %d", bs[4])
	}
	if info.RegisterHint.RegisterType != RegisterHintNone {
		t.Errorf("a plain immediate move should carry no register hint, got %+v", info.RegisterHint)
	}
}

func TestEncodeInstruction_RegisterImmediateAddrHint(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode: parser.OpMov64Imm,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 2},
			{Kind: parser.OperandImmediate, Value: 144, Kind2: parser.ImmAddr},
		},
		Line: 1,
	}
	e := NewEncoder()
	_, info, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	if info.RegisterHint.Register != 2 || info.RegisterHint.RegisterType != RegisterHintAddr {
		t.Errorf("expected an address hint on r2, got %+v", info.RegisterHint)
	}
}

func TestEncodeInstruction_ConditionalJumpImmediate(t *testing.T) {
	// [Register, Immediate, Immediate]: dst, comparand, rel-offset.
	inst := &parser.InstructionNode{
		Opcode: parser.OpJeqImm,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 3},
			{Kind: parser.OperandImmediate, Value: 10},
			{Kind: parser.OperandImmediate, Value: 2},
		},
		Line: 1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	if bs[1] != 3 {
		t.Errorf("expected dst register byte 3, got %d", bs[1])
	}
	if bs[2] != 2 || bs[3] != 0 {
		t.Errorf("expected rel-offset 2 at bytes 2-3, got % x", bs[2:4])
	}
	if bs[4] != 10 {
		t.Errorf("expected comparand immediate 10 at byte 4, got %d", bs[4])
	}
}

func TestEncodeInstruction_ConditionalJumpRegisterComparand(t *testing.T) {
	// self-invented gap-fill pattern: [Register, Register, Immediate].
	inst := &parser.InstructionNode{
		Opcode: parser.OpJeqReg,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 1},
			{Kind: parser.OperandRegister, Reg: 2},
			{Kind: parser.OperandImmediate, Value: 4},
		},
		Line: 1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	wantByte1 := byte(2<<4) | byte(1)
	if bs[1] != wantByte1 {
		t.Errorf("expected src<<4|dst byte 0x%x, got 0x%x", wantByte1, bs[1])
	}
	if bs[2] != 4 || bs[3] != 0 {
		t.Errorf("expected rel-offset 4 at bytes 2-3, got % x", bs[2:4])
	}
}

func TestEncodeInstruction_RegisterRegister(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode: parser.OpAdd64Reg,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 1},
			{Kind: parser.OperandRegister, Reg: 2},
		},
		Line: 1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	want := byte(2<<4) | byte(1)
	if bs[1] != want {
		t.Errorf("expected src<<4|dst byte 0x%x, got 0x%x", want, bs[1])
	}
}

func TestEncodeInstruction_RegisterExpression(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode: parser.OpLdxb,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 1},
			{Kind: parser.OperandExpression, BaseReg: 2, Offset: 8},
		},
		Line: 1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	want := byte(2<<4) | byte(1)
	if bs[1] != want {
		t.Errorf("expected base<<4|dst byte 0x%x, got 0x%x", want, bs[1])
	}
	if bs[2] != 8 || bs[3] != 0 {
		t.Errorf("expected offset16 8 at bytes 2-3, got % x", bs[2:4])
	}
}

func TestEncodeInstruction_Call(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode:   parser.OpCall,
		Operands: []parser.Operand{{Kind: parser.OperandLabel, Name: "sol_log_"}},
		Line:     1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	want := []byte{0x10, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	wire, _ := parser.OpCall.WireByte()
	if bs[0] != wire || !bytes.Equal(bs[1:], want) {
		t.Errorf("expected call's fixed tail bytes, got % x", bs)
	}
}

func TestEncodeInstruction_LddwWidthPadding(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode: parser.OpLddw,
		Operands: []parser.Operand{
			{Kind: parser.OperandRegister, Reg: 1},
			{Kind: parser.OperandImmediate, Value: 144, Kind2: parser.ImmAddr},
		},
		Line: 1,
	}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	if len(bs) != 16 {
		t.Fatalf("expected lddw to pad to 16 bytes, got %d", len(bs))
	}
	for i := 8; i < 16; i++ {
		if bs[i] != 0 {
			t.Errorf("expected the trailing half of lddw to be zero-padded, got % x", bs[8:])
			break
		}
	}
}

func TestEncodeInstruction_ZeroOperand(t *testing.T) {
	inst := &parser.InstructionNode{Opcode: parser.OpExit, Line: 1}
	e := NewEncoder()
	bs, _, err := e.EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction failed: %v", err)
	}
	wire, _ := parser.OpExit.WireByte()
	want := []byte{wire, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(bs, want) {
		t.Errorf("expected exit to encode as the wire byte plus zero padding, got % x", bs)
	}
}

func TestEncodeInstruction_UnrecognizedPatternErrors(t *testing.T) {
	inst := &parser.InstructionNode{
		Opcode:   parser.OpMov64Imm,
		Operands: []parser.Operand{{Kind: parser.OperandString, Str: "oops"}},
		Line:     1,
	}
	e := NewEncoder()
	if _, _, err := e.EncodeInstruction(inst); err == nil {
		t.Error("expected an error for an unrecognized operand pattern")
	}
}

func TestEncodeProgram_RecordsDebugInfoByOffset(t *testing.T) {
	result := &parser.ParseResult{
		Nodes: []parser.Node{
			&parser.InstructionNode{
				Opcode:   parser.OpMov64Imm,
				Operands: []parser.Operand{{Kind: parser.OperandRegister, Reg: 0}, {Kind: parser.OperandImmediate, Value: 0}},
				Offset:   0,
				Line:     1,
			},
			&parser.LabelNode{Name: "done", Line: 2},
			&parser.InstructionNode{
				Opcode:   parser.OpExit,
				Operands: nil,
				Offset:   8,
				Line:     3,
			},
		},
	}
	e := NewEncoder()
	if err := e.EncodeProgram(result); err != nil {
		t.Fatalf("EncodeProgram failed: %v", err)
	}
	if len(e.Bytecode) != 16 {
		t.Fatalf("expected 16 bytes of bytecode (two 8-byte instructions), got %d", len(e.Bytecode))
	}
	if _, ok := e.Debug[0]; !ok {
		t.Error("expected debug info recorded at offset 0")
	}
	if _, ok := e.Debug[8]; !ok {
		t.Error("expected debug info recorded at offset 8")
	}
}

func TestEncodeRodata_ConcatenatesWithoutSeparatorOrTerminator(t *testing.T) {
	result := &parser.ParseResult{
		RodataNodes: []*parser.RODataNode{
			{Name: "a", Data: []byte("hi")},
			{Name: "b", Data: []byte("bye")},
		},
	}
	got := EncodeRodata(result)
	want := []byte("hibye")
	if !bytes.Equal(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}
