package vm

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/lookbusy1344/sbpfasm/parser"
)

func encodeAt(buf []byte, off int, opcode parser.Opcode, body ...byte) {
	wire, _ := opcode.WireByte()
	buf[off] = wire
	copy(buf[off+1:], body)
}

// newTestVM wraps bytecode in a minimal ELF-shaped header with the entry
// point pointing at the first byte of code, mirroring the layout
// loader.BuildImage produces for a static program.
func newTestVM(bytecode []byte) *VM {
	img := make([]byte, elfMinLength)
	copy(img[:4], elfMagic[:])
	binary.LittleEndian.PutUint64(img[elfEntryOffsetPos:elfEntryOffsetPos+8], uint64(elfMinLength))
	img = append(img, bytecode...)
	p, err := NewProgram(img)
	if err != nil {
		panic(err)
	}
	v := New()
	v.Load(p)
	return v
}

func TestUpdateRegister_NullPromotesToIntUnlessAddrHinted(t *testing.T) {
	v := New()
	if v.Registers[5].Type != RegNull {
		t.Fatal("expected r5 to start Null")
	}
	v.UpdateRegister(6, 7, RegNull)
	if v.Registers[6].Type != RegInt {
		t.Errorf("expected a Null register written without an Addr hint to promote to Int, got %v", v.Registers[6].Type)
	}
	v.UpdateRegister(5, 42, RegAddr)
	if v.Registers[5].Type != RegAddr {
		t.Errorf("expected a Null register written with an Addr hint to become Addr, got %v", v.Registers[5].Type)
	}
	if v.Registers[5].Value != 42 {
		t.Errorf("expected value 42, got %d", v.Registers[5].Value)
	}
}

func TestUpdateRegister_NonNullTakesRequestedType(t *testing.T) {
	v := New()
	v.UpdateRegister(5, 1, RegInt) // promote out of Null first
	v.UpdateRegister(5, 2, RegAddr)
	if v.Registers[5].Type != RegAddr {
		t.Errorf("expected the requested Addr type once r5 is no longer Null, got %v", v.Registers[5].Type)
	}
}

func TestVM_Exit_LogsR0AndSetsExited(t *testing.T) {
	v := New()
	v.Registers[0] = Register{Value: 7, Type: RegInt}
	v.Exit()
	if !v.Exited {
		t.Error("expected Exited to be true")
	}
	if !strings.Contains(v.Log.String(), "7") {
		t.Errorf("expected the log to contain r0's value, got %q", v.Log.String())
	}
}

func TestVM_Run_SimpleExit(t *testing.T) {
	bc := make([]byte, 16)
	encodeAt(bc, 0, parser.OpMov64Imm, 0, 0, 0, 5, 0, 0, 0)
	encodeAt(bc, 8, parser.OpExit)

	v := newTestVM(bc)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != 5 {
		t.Errorf("expected r0 == 5, got %d", result)
	}
	if !v.Exited {
		t.Error("expected the VM to be marked exited")
	}
}

func TestVM_Run_TakenJumpSkipsInstruction(t *testing.T) {
	// ja +1 (rel=1) from offset 0 lands PC at 0 + 1*8 + 8 = 16, skipping the
	// mov64 r0,99 at offset 8 and landing on mov64 r0,1 at offset 16.
	bc := make([]byte, 32)
	jaBody := make([]byte, 7) // byte1 pad, bytes2-3 rel16, bytes4-7 pad
	binary.LittleEndian.PutUint16(jaBody[1:3], 1)
	encodeAt(bc, 0, parser.OpJa, jaBody...)
	encodeAt(bc, 8, parser.OpMov64Imm, 0, 0, 0, 99, 0, 0, 0)
	encodeAt(bc, 16, parser.OpMov64Imm, 0, 0, 0, 1, 0, 0, 0)
	encodeAt(bc, 24, parser.OpExit)

	v := newTestVM(bc)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != 1 {
		t.Errorf("expected the jump to skip the first mov and land r0 == 1, got %d", result)
	}
}

func TestVM_Run_ConditionalJumpRegisterForm(t *testing.T) {
	// jeq r1,r2,+1 at offset 16 with r1==r2==5 lands PC at
	// 16 + 1*8 + 8 = 32, skipping mov64 r0,99 and landing on mov64 r0,1.
	bc := make([]byte, 48)
	encodeAt(bc, 0, parser.OpMov64Imm, 1, 0, 0, 5, 0, 0, 0)
	encodeAt(bc, 8, parser.OpMov64Imm, 2, 0, 0, 5, 0, 0, 0)
	jeqBody := make([]byte, 3)
	jeqBody[0] = byte(2<<4) | byte(1) // src=r2, dst=r1
	binary.LittleEndian.PutUint16(jeqBody[1:3], 1)
	encodeAt(bc, 16, parser.OpJeqReg, jeqBody...)
	encodeAt(bc, 24, parser.OpMov64Imm, 0, 0, 0, 99, 0, 0, 0)
	encodeAt(bc, 32, parser.OpMov64Imm, 0, 0, 0, 1, 0, 0, 0)
	encodeAt(bc, 40, parser.OpExit)

	v := newTestVM(bc)
	result, err := v.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != 1 {
		t.Errorf("expected jeq r1,r2 (both 5) to take the branch, got r0=%d", result)
	}
}

func TestVM_Ldxb_ReadsMemory(t *testing.T) {
	bc := make([]byte, 16)
	// base register r1 points at address 0; use a register already non-Null
	// (r1 defaults to Addr/MemoryInputDataStart) repointed at a small,
	// in-bounds address for this test.
	encodeAt(bc, 0, parser.OpLdxb, byte(1<<4)|byte(0), 4, 0) // dst=r0, base=r1, offset=4
	encodeAt(bc, 8, parser.OpExit)

	v := newTestVM(bc)
	v.Registers[1] = Register{Value: 0, Type: RegAddr}
	if err := v.Memory.WriteByte(4, 0x2A); err != nil {
		t.Fatalf("WriteByte failed: %v", err)
	}

	result, err := v.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != 0x2A {
		t.Errorf("expected r0 == 0x2A, got 0x%x", result)
	}
}

func TestVM_ArithmeticWraparound(t *testing.T) {
	v := New()
	v.Registers[1] = Register{Value: 0, Type: RegInt}
	v.UpdateRegister(1, v.Registers[1].Value-1, v.Registers[1].Type)
	if v.Registers[1].Value != ^uint64(0) {
		t.Errorf("expected unsigned wraparound to max uint64, got %d", v.Registers[1].Value)
	}
}

func TestRegisterHint_AppliesLddwAddrHint(t *testing.T) {
	bc := make([]byte, 24)
	encodeAt(bc, 0, parser.OpLddw, 1, 0, 0, 144, 0, 0, 0, 0, 0, 0, 0)
	encodeAt(bc, 16, parser.OpExit)

	v := newTestVM(bc)
	v.Debug = func(offset int64) (int, int, bool, bool) {
		if offset == 0 {
			return 1, 1, true, true
		}
		return 0, 0, false, false
	}
	if _, err := v.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if v.Registers[1].Type != RegAddr {
		t.Errorf("expected r1 to carry the Addr hint after lddw, got %v", v.Registers[1].Type)
	}
	if v.Registers[1].Value != 144 {
		t.Errorf("expected r1 == 144, got %d", v.Registers[1].Value)
	}
}

func TestSysLog_ReadsAndLogsMessage(t *testing.T) {
	msg := "hi"
	bc := make([]byte, 8)
	encodeAt(bc, 0, parser.OpExit)
	img := make([]byte, elfMinLength)
	copy(img[:4], elfMagic[:])
	img = append(img, bc...)
	img = append(img, []byte(msg)...)

	p, err := NewProgram(img)
	if err != nil {
		t.Fatalf("NewProgram failed: %v", err)
	}
	v := New()
	v.Load(p)
	v.Registers[1] = Register{Value: uint64(elfMinLength + len(bc)), Type: RegAddr}
	v.Registers[2] = Register{Value: uint64(len(msg)), Type: RegInt}

	if err := v.sysLog(); err != nil {
		t.Fatalf("sysLog failed: %v", err)
	}
	if !strings.Contains(v.Log.String(), "sol_log_: hi") {
		t.Errorf("expected the log to contain the decoded message, got %q", v.Log.String())
	}
}

func TestSysLog_ZeroLengthLogsR1AsDecimal(t *testing.T) {
	v := New()
	v.Registers[1] = Register{Value: 12345, Type: RegInt}
	v.Registers[2] = Register{Value: 0, Type: RegInt}

	if err := v.sysLog(); err != nil {
		t.Fatalf("sysLog failed: %v", err)
	}
	if !strings.Contains(v.Log.String(), "sol_log_64_: 12345") {
		t.Errorf("expected the log to contain the decimal r1 value, got %q", v.Log.String())
	}
}

func TestHandleCall_UnknownSyscallErrors(t *testing.T) {
	v := New()
	if err := v.handleCall(Decoded{Kind: KindCall, FunctionID: 0xFF}); err == nil {
		t.Error("expected an error for an unrecognized syscall function id")
	}
}
