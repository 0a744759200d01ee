package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lookbusy1344/sbpfasm/vm"
)

// cmdRun resets and starts program execution under debugger control.
func (d *Debugger) cmdRun(args []string) error {
	d.VM.Reset()
	d.Running = true
	d.StepMode = StepNone

	d.Println("Starting program execution...")
	return nil
}

// cmdContinue resumes execution from the current point.
func (d *Debugger) cmdContinue(args []string) error {
	if d.VM.Exited {
		return fmt.Errorf("program is not running")
	}

	// Execute the instruction under a breakpoint at the current pc first, so
	// that breakpoint does not stop execution again before any progress.
	if bp := d.Breakpoints.GetBreakpoint(d.VM.PC); bp != nil && bp.Enabled {
		if err := d.VM.Step(); err != nil {
			return err
		}
		if d.VM.Exited {
			d.Printf("Program exited with r0=%d\n", d.VM.Registers[0].Value)
			return nil
		}
	}

	d.Running = true
	d.StepMode = StepNone

	d.Println("Continuing...")
	return nil
}

// cmdStep executes a single instruction, then stops.
func (d *Debugger) cmdStep(args []string) error {
	if d.VM.Exited {
		return fmt.Errorf("program is not running")
	}
	if err := d.VM.Step(); err != nil {
		return err
	}
	if d.VM.Exited {
		d.Printf("Program exited with r0=%d\n", d.VM.Registers[0].Value)
		return nil
	}
	d.StepMode = StepSingle
	d.Running = true
	return nil
}

// cmdBreak sets a breakpoint at an address.
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <address>")
	}

	address, err := ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, false)
	d.Printf("Breakpoint %d at 0x%x\n", bp.ID, address)
	return nil
}

// cmdTBreak sets a temporary breakpoint (auto-delete after first hit).
func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <address>")
	}

	address, err := ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, true)
	d.Printf("Temporary breakpoint %d at 0x%x\n", bp.ID, address)
	return nil
}

// cmdDelete deletes breakpoint(s).
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

// cmdEnable enables a breakpoint.
func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

// cmdDisable disables a breakpoint.
func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

// cmdPrint prints a register's value and type, or evaluates a "[rX+N]"
// memory expression via parseExpression below.
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <rN|[rN+off]>")
	}

	expr := strings.Join(args, "")
	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		return d.printMemoryExpr(expr[1 : len(expr)-1])
	}

	reg, err := resolveRegister(expr)
	if err != nil {
		return err
	}

	r := d.VM.Registers[reg]
	d.Printf("r%d = %d (0x%x) [%s]\n", reg, r.Value, r.Value, r.Type)
	return nil
}

func (d *Debugger) printMemoryExpr(raw string) error {
	base, offset, err := parseExpression(raw)
	if err != nil {
		return err
	}

	addr := d.VM.Registers[base].Value + uint64(offset)
	b, err := d.VM.Memory.ReadByte(addr)
	if err != nil {
		return err
	}
	d.Printf("[r%d+%d] = 0x%x (addr 0x%x)\n", base, offset, b, addr)
	return nil
}

// cmdExamine dumps a region of VM memory as a hex table.
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x <address> [length]")
	}

	addr, err := ResolveAddress(args[0])
	if err != nil {
		return err
	}

	length := MemoryDisplayRows
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid length: %s", args[1])
		}
		length = n
	}

	data, err := d.VM.Memory.Read(addr, length)
	if err != nil {
		return err
	}

	for i := 0; i < len(data); i += MemoryDisplayRows {
		end := i + MemoryDisplayRows
		if end > len(data) {
			end = len(data)
		}
		d.Printf("0x%08x: % x\n", addr+uint64(i), data[i:end])
	}
	return nil
}

// cmdInfo prints register, breakpoint, or log state.
func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <registers|breakpoints|log>")
	}

	switch args[0] {
	case "registers", "regs", "r":
		return d.printRegisters()
	case "breakpoints", "break", "b":
		return d.printBreakpoints()
	case "log":
		d.Println(d.VM.Log.String())
		return nil
	default:
		return fmt.Errorf("unknown info topic: %s", args[0])
	}
}

func (d *Debugger) printRegisters() error {
	for i := 0; i < vm.NumRegisters; i++ {
		r := d.VM.Registers[i]
		d.Printf("r%-2d = %-20d [%s]", i, r.Value, r.Type)
		if (i+1)%RegisterGroupSize == 0 {
			d.Println()
		} else {
			d.Printf("  ")
		}
	}
	d.Println()
	d.Printf("pc = 0x%x\n", d.VM.PC)
	return nil
}

func (d *Debugger) printBreakpoints() error {
	all := d.Breakpoints.GetAllBreakpoints()
	if len(all) == 0 {
		d.Println("No breakpoints set")
		return nil
	}
	for _, bp := range all {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}
		d.Printf("%d: 0x%x (%s, hits=%d)\n", bp.ID, bp.Address, status, bp.HitCount)
	}
	return nil
}

// cmdList prints source-line context around the current PC using the
// VM's debug-line map.
func (d *Debugger) cmdList(args []string) error {
	line := d.VM.CurrentLine()
	if line == 0 {
		d.Println("No debug information for current instruction")
		return nil
	}
	d.Printf("Current line: %d (pc=0x%x)\n", line, d.VM.PC)
	return nil
}

// cmdLog prints the VM's accumulated log buffer.
func (d *Debugger) cmdLog(args []string) error {
	d.Println(d.VM.Log.String())
	return nil
}

// cmdReset resets the VM to its entry point without reloading the program.
func (d *Debugger) cmdReset(args []string) error {
	d.VM.Reset()
	d.Running = false
	d.StepMode = StepNone
	d.Println("VM reset")
	return nil
}

// cmdHelp prints the command summary.
func (d *Debugger) cmdHelp(args []string) error {
	d.Println(`Commands:
  run, r                  reset and start execution
  continue, c             resume execution
  step, s                 execute a single instruction
  break, b <addr>         set a breakpoint
  tbreak, tb <addr>       set a temporary breakpoint
  delete, d [id]          delete a breakpoint, or all if no id given
  enable/disable <id>     enable or disable a breakpoint
  print, p <rN|[rN+off]>  print a register or a memory byte
  x <addr> [len]          hex-dump memory
  info registers|breakpoints|log
  list, l                 show the source line at the current pc
  log                     print the log buffer
  reset                   reset the vm
  help, h, ?              show this text
  quit, q                 exit the debugger`)
	return nil
}

// parseExpression parses an "rX+N" or "rX-N" operand, the same grammar the
// parser accepts for memory operands, so the print command can resolve the
// operands the assembler accepts.
func parseExpression(raw string) (baseReg int, offset int64, err error) {
	raw = strings.TrimSpace(raw)
	sign := int64(1)
	splitAt := -1
	for i := 1; i < len(raw); i++ {
		if raw[i] == '+' || raw[i] == '-' {
			splitAt = i
			if raw[i] == '-' {
				sign = -1
			}
			break
		}
	}
	if splitAt == -1 {
		base, err := resolveRegister(raw)
		return base, 0, err
	}

	base, err := resolveRegister(raw[:splitAt])
	if err != nil {
		return 0, 0, err
	}

	n, err := strconv.ParseInt(raw[splitAt+1:], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset in expression %q", raw)
	}

	return base, sign * n, nil
}
