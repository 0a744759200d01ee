package vm

import (
	"fmt"
	"strings"
)

// logSyscallID is the `call` function id wired to the `log` syscall
// (SPEC_FULL.md §4.6); sBPF reserves 0x10 for it.
const logSyscallID = 0x10

// handleCall dispatches a decoded Call instruction. Only the log syscall is
// implemented; any other function id is a runtime error.
func (v *VM) handleCall(d Decoded) error {
	switch d.FunctionID {
	case logSyscallID:
		return v.sysLog()
	default:
		return fmt.Errorf("unsupported syscall function id: 0x%x", d.FunctionID)
	}
}

// sysLog implements `call 0x10`: if r2 (length) is nonzero, read r2 bytes
// from the address in r1 and log them, lossily decoded as UTF-8, prefixed
// "sol_log_: "; otherwise log "sol_log_64_: " followed by r1's decimal
// value. Grounded on the reference interpreter's Call::execute.
func (v *VM) sysLog() error {
	r1 := v.Registers[1].Value
	r2 := v.Registers[2].Value

	if r2 > 0 {
		buffer, err := v.Program.Read(r1, r2)
		if err != nil {
			return fmt.Errorf("failed to read memory: %w", err)
		}
		message := strings.ToValidUTF8(string(buffer), "�")
		v.Log.Logf("sol_log_: %s", message)
		return nil
	}

	v.Log.Logf("sol_log_64_: %d", r1)
	return nil
}
