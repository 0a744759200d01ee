package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lookbusy1344/sbpfasm/vm"
)

// Debugger wraps a VM with breakpoints, step control, and a command
// interpreter, adapted from the teacher's ARM debugger onto sBPF's flat
// register/memory model.
type Debugger struct {
	VM *vm.VM

	Breakpoints *BreakpointManager
	History     *CommandHistory

	Running  bool
	StepMode StepMode

	LastCommand string

	Output strings.Builder
}

// StepMode represents different stepping modes.
type StepMode int

const (
	StepNone   StepMode = iota // Not stepping
	StepSingle                 // Step one instruction
)

// New creates a new debugger instance wrapping machine, with its command
// history capped at historySize entries (the session's [debugger]
// history_size config value).
func New(machine *vm.VM, historySize int) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		History:     NewCommandHistory(historySize),
		Running:     false,
		StepMode:    StepNone,
	}
}

// ResolveAddress parses a hex or decimal program offset.
func ResolveAddress(addrStr string) (uint64, error) {
	addrStr = strings.TrimSpace(addrStr)
	if strings.HasPrefix(addrStr, "0x") || strings.HasPrefix(addrStr, "0X") {
		v, err := strconv.ParseUint(addrStr[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(addrStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", addrStr)
	}
	return v, nil
}

// resolveRegister parses "r0".."r10" into a register index.
func resolveRegister(name string) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "r") {
		return 0, fmt.Errorf("not a register: %s", name)
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 || n >= vm.NumRegisters {
		return 0, fmt.Errorf("invalid register: %s", name)
	}
	return n, nil
}

// ExecuteCommand processes and executes a single debugger command line.
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)

	if cmdLine == "" {
		cmdLine = d.LastCommand
	}

	if cmdLine != "" {
		d.History.Add(cmdLine)
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	return d.handleCommand(cmd, args)
}

func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s", "si":
		return d.cmdStep(args)

	case "break", "b":
		return d.cmdBreak(args)
	case "tbreak", "tb":
		return d.cmdTBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "list", "l":
		return d.cmdList(args)
	case "log":
		return d.cmdLog(args)

	case "reset":
		return d.cmdReset(args)

	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak checks whether execution should pause at the current PC.
func (d *Debugger) ShouldBreak() (bool, string) {
	pc := d.VM.PC

	if d.StepMode == StepSingle {
		d.StepMode = StepNone
		return true, "single step"
	}

	if bp := d.Breakpoints.GetBreakpoint(pc); bp != nil {
		if !bp.Enabled {
			return false, ""
		}
		hit := d.Breakpoints.ProcessHit(pc)
		return true, fmt.Sprintf("breakpoint %d", hit.ID)
	}

	return false, ""
}

// GetOutput returns and clears the output buffer.
func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

// Printf writes formatted output to the output buffer.
func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

// Println writes a line to the output buffer.
func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}
