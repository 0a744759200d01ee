package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/lookbusy1344/sbpfasm/encoder"
	"github.com/lookbusy1344/sbpfasm/parser"
	"github.com/lookbusy1344/sbpfasm/vm"
)

// Header sizing the assembler's lddw absolute-address formula assumes
// (SPEC_FULL.md §4.3): 64 (ELF header) plus ph_count * 56 (one program
// header per entry, 56 bytes each).
const (
	elfHeaderSize     = 64
	programHeaderSize = 56
)

// phCount returns the program-header count the lddw absolute-address
// formula uses: 1 for a static program, 3 once any relocation exists.
func phCount(progIsStatic bool) int64 {
	if progIsStatic {
		return 1
	}
	return 3
}

// BuildImage assembles source into the full ELF-shaped byte image the
// interpreter loads: a zero-filled header region sized per phCount, the
// encoded code section, then the concatenated rodata section. The code
// section's position inside the image is exactly what the parser's lddw
// formula already assumed when resolving label operands, so no further
// relocation happens here.
func BuildImage(source, filename string) ([]byte, encoder.DebugMap, *parser.ParseResult, error) {
	p := parser.NewParser(source, filename)
	result, err := p.Parse()
	if err != nil {
		return nil, nil, nil, err
	}

	enc := encoder.NewEncoder()
	if err := enc.EncodeProgram(result); err != nil {
		return nil, nil, nil, err
	}
	rodata := encoder.EncodeRodata(result)

	headerSize := elfHeaderSize + phCount(result.ProgIsStatic)*programHeaderSize
	image := make([]byte, headerSize)
	copy(image[:4], []byte{0x7F, 0x45, 0x4C, 0x46})
	entryOffset := uint64(headerSize) + uint64(result.EntryOffset)
	binary.LittleEndian.PutUint64(image[24:32], entryOffset)

	image = append(image, enc.Bytecode...)
	image = append(image, rodata...)

	return image, enc.Debug, result, nil
}

// LoadProgramIntoVM assembles source and installs the resulting image into
// machine, wiring up machine.Debug so the interpreter can resolve lddw
// register-type hints and a debugger can resolve source lines.
func LoadProgramIntoVM(machine *vm.VM, source, filename string) (*parser.ParseResult, error) {
	image, debug, result, err := BuildImage(source, filename)
	if err != nil {
		return nil, err
	}

	program, err := vm.NewProgram(image)
	if err != nil {
		return nil, fmt.Errorf("failed to load program image: %w", err)
	}

	machine.Load(program)
	machine.Debug = debugLookup(debug, result.EntryOffset)
	machine.Reset()
	machine.PC = program.EntryPoint

	return result, nil
}

// debugLookup adapts an encoder.DebugMap to the vm package's DebugLookup
// function signature, keeping vm free of a dependency on the encoder
// package's concrete types. The VM passes offsets measured from the entry
// point; adding entryOffset turns them into the code-relative offsets the
// DebugMap is keyed by.
func debugLookup(debug encoder.DebugMap, entryOffset int64) vm.DebugLookup {
	return func(offset int64) (line int, hintReg int, hintIsAddr bool, ok bool) {
		info, found := debug[offset+entryOffset]
		if !found {
			return 0, 0, false, false
		}
		return info.Line, info.RegisterHint.Register, info.RegisterHint.RegisterType == encoder.RegisterHintAddr, true
	}
}
