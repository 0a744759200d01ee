package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RunCLI runs the line-oriented command-line debugger interface.
func (d *Debugger) RunCLI() error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("(sbpf-dbg) ")

		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		if err := d.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		if output := d.GetOutput(); output != "" {
			fmt.Print(output)
		}

		if d.Running {
			for d.Running {
				if shouldBreak, reason := d.ShouldBreak(); shouldBreak {
					d.Running = false
					fmt.Printf("Stopped: %s at pc=0x%x\n", reason, d.VM.PC)
					break
				}

				if err := d.VM.Step(); err != nil {
					d.Running = false
					fmt.Printf("Runtime error: %v\n", err)
					break
				}

				if d.VM.Exited {
					d.Running = false
					fmt.Printf("Program exited with r0=%d\n", d.VM.Registers[0].Value)
					break
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	return nil
}

// RunTUI runs the TUI (Text User Interface) debugger.
func (d *Debugger) RunTUI() error {
	tui := NewTUI(d)
	return tui.Run()
}
