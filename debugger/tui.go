package debugger

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TUI is the text user interface for the debugger: a register pane, a log
// pane, a breakpoints pane, and a command line, adapted from the teacher's
// multi-panel ARM debugger onto sBPF's simpler register/memory model.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application

	RegisterView    *tview.TextView
	SourceView      *tview.TextView
	MemoryView      *tview.TextView
	BreakpointsView *tview.TextView
	LogView         *tview.TextView
	CommandInput    *tview.InputField

	loggedBytes int
}

// NewTUI creates a new text user interface for dbg.
func NewTUI(dbg *Debugger) *TUI {
	t := &TUI{Debugger: dbg, App: tview.NewApplication()}
	t.initializeViews()
	return t
}

func (t *TUI) initializeViews() {
	t.RegisterView = tview.NewTextView().SetDynamicColors(true)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.SourceView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	t.SourceView.SetBorder(true).SetTitle(" Source ")

	t.MemoryView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.BreakpointsView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints ")

	t.LogView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true).SetWrap(true)
	t.LogView.SetBorder(true).SetTitle(" Log ")

	t.CommandInput = tview.NewInputField().SetLabel("> ").SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

func (t *TUI) buildLayout() *tview.Flex {
	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, 0, 1, false).
		AddItem(t.BreakpointsView, 0, 1, false)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.SourceView, 0, 2, false).
		AddItem(t.MemoryView, 0, 1, false).
		AddItem(t.LogView, 0, 1, false)

	top := tview.NewFlex().
		AddItem(left, 0, 1, false).
		AddItem(right, 0, 2, false)

	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 1, false).
		AddItem(t.CommandInput, 3, 0, true)
}

func (t *TUI) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}

	cmdLine := t.CommandInput.GetText()
	t.CommandInput.SetText("")

	if cmdLine == "quit" || cmdLine == "q" {
		t.App.Stop()
		return
	}

	if err := t.Debugger.ExecuteCommand(cmdLine); err != nil {
		fmt.Fprintf(t.LogView, "[red]Error: %v[white]\n", err)
	}
	if output := t.Debugger.GetOutput(); output != "" {
		fmt.Fprint(t.LogView, output)
	}

	if t.Debugger.Running {
		for t.Debugger.Running {
			if shouldBreak, reason := t.Debugger.ShouldBreak(); shouldBreak {
				t.Debugger.Running = false
				fmt.Fprintf(t.LogView, "Stopped: %s at pc=0x%x\n", reason, t.Debugger.VM.PC)
				break
			}
			if err := t.Debugger.VM.Step(); err != nil {
				t.Debugger.Running = false
				fmt.Fprintf(t.LogView, "Runtime error: %v\n", err)
				break
			}
			if t.Debugger.VM.Exited {
				t.Debugger.Running = false
				fmt.Fprintf(t.LogView, "Program exited with r0=%d\n", t.Debugger.VM.Registers[0].Value)
				break
			}
		}
	}

	t.refresh()
}

func (t *TUI) refresh() {
	t.RegisterView.Clear()
	for i := 0; i < len(t.Debugger.VM.Registers); i++ {
		r := t.Debugger.VM.Registers[i]
		fmt.Fprintf(t.RegisterView, "r%-2d = %-20d [%s]\n", i, r.Value, r.Type)
	}
	fmt.Fprintf(t.RegisterView, "pc  = 0x%x\n", t.Debugger.VM.PC)

	t.BreakpointsView.Clear()
	for _, bp := range t.Debugger.Breakpoints.GetAllBreakpoints() {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(t.BreakpointsView, "%d: 0x%x (%s)\n", bp.ID, bp.Address, status)
	}

	t.SourceView.Clear()
	fmt.Fprintf(t.SourceView, "line %d\n", t.Debugger.VM.CurrentLine())

	// Append only newly written log bytes so earlier command output and
	// error messages already printed to LogView this session are preserved.
	full := t.Debugger.VM.Log.String()
	if len(full) > t.loggedBytes {
		fmt.Fprint(t.LogView, full[t.loggedBytes:])
		t.loggedBytes = len(full)
	}
}

// Run starts the TUI event loop.
func (t *TUI) Run() error {
	t.refresh()
	root := t.buildLayout()
	t.App.SetRoot(root, true).SetFocus(t.CommandInput)
	return t.App.Run()
}
