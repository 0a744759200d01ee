package vm

import (
	"encoding/binary"
	"fmt"
)

// elfMagic is the four-byte magic every loaded image must begin with, per
// SPEC_FULL.md §6's ELF-shaped image contract.
var elfMagic = [4]byte{0x7F, 0x45, 0x4C, 0x46}

const (
	elfMinLength      = 64
	elfEntryOffsetPos = 24
)

// Program is the fully assembled, ELF-shaped byte image the loader hands to
// the interpreter: header, code, and rodata concatenated into one buffer,
// with an entry point recorded at a fixed header offset.
type Program struct {
	Bytecode   []byte
	EntryPoint uint64
}

// NewProgram validates bytecode's ELF magic and minimum length, then
// extracts its entry point from the little-endian 64-bit field at byte 24.
func NewProgram(bytecode []byte) (*Program, error) {
	if len(bytecode) < elfMinLength {
		return nil, fmt.Errorf("program image of %d bytes is too short to be an ELF file", len(bytecode))
	}
	var magic [4]byte
	copy(magic[:], bytecode[:4])
	if magic != elfMagic {
		return nil, fmt.Errorf("program image does not start with the ELF magic bytes")
	}
	entry := binary.LittleEndian.Uint64(bytecode[elfEntryOffsetPos : elfEntryOffsetPos+8])
	return &Program{Bytecode: bytecode, EntryPoint: entry}, nil
}

// Read returns a bounds-checked slice of length bytes starting at address
// within the whole program image — used by the `log` syscall to read a
// rodata string by its absolute, already-relocated address.
func (p *Program) Read(address, length uint64) ([]byte, error) {
	end := address + length
	if address > uint64(len(p.Bytecode)) || end > uint64(len(p.Bytecode)) || end < address {
		return nil, fmt.Errorf("program read out of bounds: address 0x%x length %d exceeds image size %d", address, length, len(p.Bytecode))
	}
	return p.Bytecode[address:end], nil
}
