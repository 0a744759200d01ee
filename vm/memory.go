package vm

import "fmt"

// Input-data region byte offsets inside Memory, per SPEC_FULL.md §9's
// decision to keep the reference VM's ad-hoc deposit contract but name the
// magic numbers: byte 8 holds a one-byte payload length, the payload itself
// starts at byte 16.
const (
	inputDataLengthOffset  = 8
	inputDataPayloadOffset = 16
)

// Memory is the interpreter's flat byte buffer. Unlike the teacher's
// segmented, permission-checked ARM memory, sBPF's in-process interpreter
// has a single writable region with no segment boundaries to enforce — the
// only check that survives is a bounds check against the buffer length.
type Memory struct {
	data []byte
}

// NewMemory allocates a zeroed buffer of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Reset zeroes the buffer without reallocating it.
func (m *Memory) Reset() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// Len returns the buffer's size in bytes.
func (m *Memory) Len() int {
	return len(m.data)
}

func (m *Memory) checkBounds(address uint64, length int) error {
	if length < 0 {
		return fmt.Errorf("negative length %d", length)
	}
	end := address + uint64(length)
	if address > uint64(len(m.data)) || end > uint64(len(m.data)) || end < address {
		return fmt.Errorf("memory access out of bounds: address 0x%x length %d exceeds buffer size %d", address, length, len(m.data))
	}
	return nil
}

// ReadByte reads the single byte at address.
func (m *Memory) ReadByte(address uint64) (byte, error) {
	if err := m.checkBounds(address, 1); err != nil {
		return 0, err
	}
	return m.data[address], nil
}

// WriteByte writes v at address.
func (m *Memory) WriteByte(address uint64, v byte) error {
	if err := m.checkBounds(address, 1); err != nil {
		return err
	}
	m.data[address] = v
	return nil
}

// Read returns a copy of length bytes starting at address.
func (m *Memory) Read(address uint64, length int) ([]byte, error) {
	if err := m.checkBounds(address, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[address:int(address)+length])
	return out, nil
}

// Write copies data into the buffer starting at address.
func (m *Memory) Write(address uint64, data []byte) error {
	if err := m.checkBounds(address, len(data)); err != nil {
		return err
	}
	copy(m.data[address:], data)
	return nil
}

// LoadInputData deposits data at the fixed input-data layout: a one-byte
// length prefix at inputDataLengthOffset and the payload itself at
// inputDataPayloadOffset, per SPEC_FULL.md §9.
func (m *Memory) LoadInputData(data []byte) error {
	if len(data) > 255 {
		return fmt.Errorf("input data of %d bytes exceeds the one-byte length prefix", len(data))
	}
	if err := m.WriteByte(inputDataLengthOffset, byte(len(data))); err != nil {
		return err
	}
	return m.Write(inputDataPayloadOffset, data)
}

// InstructionData returns the payload previously deposited by LoadInputData.
func (m *Memory) InstructionData() ([]byte, error) {
	length, err := m.ReadByte(inputDataLengthOffset)
	if err != nil {
		return nil, err
	}
	return m.Read(inputDataPayloadOffset, int(length))
}
