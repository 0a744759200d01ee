package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lookbusy1344/sbpfasm/config"
	"github.com/lookbusy1344/sbpfasm/debugger"
	"github.com/lookbusy1344/sbpfasm/loader"
	"github.com/lookbusy1344/sbpfasm/parser"
	"github.com/lookbusy1344/sbpfasm/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(exitUsage)
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "tokenize":
		err = runTokenize(rest)
	case "assemble", "asm":
		err = runAssemble(rest)
	case "run":
		err = runRun(rest)
	case "version":
		printVersion()
		return
	case "completions":
		err = runCompletions(rest)
	case "-h", "-help", "--help", "help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "sbpfasm: unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(exitUsage)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

const exitUsage = 64

// exitCodeFor maps a pipeline error to the error taxonomy's exit code
// contract: an IOError maps to IOERR, everything else to DATAERR.
func exitCodeFor(err error) int {
	if pe, ok := err.(*parser.Error); ok {
		return pe.Kind.ExitCode()
	}
	if el, ok := err.(*parser.ErrorList); ok && len(el.Errors) > 0 {
		return el.Errors[0].Kind.ExitCode()
	}
	if os.IsNotExist(err) || os.IsPermission(err) {
		return parser.IOError.ExitCode()
	}
	return parser.RuntimeError.ExitCode()
}

func runTokenize(args []string) error {
	fs := flag.NewFlagSet("tokenize", flag.ExitOnError)
	configPath := fs.String("config", "", "override the config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := loadConfigOrDefault(*configPath); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("tokenize: missing source file")
	}
	path := fs.Arg(0)

	source, err := readSource(path)
	if err != nil {
		return err
	}

	tokens, err := parser.Tokenize(source, path)
	if err != nil {
		return err
	}

	printTokensByLine(tokens)
	return nil
}

// printTokensByLine prints tokens grouped by source line, inserting a blank
// line whenever the line number changes.
func printTokensByLine(tokens []parser.Token) {
	prevLine := 0
	for _, tok := range tokens {
		if tok.Type == parser.TokenEOF {
			continue
		}
		if tok.Pos.Line != prevLine {
			fmt.Println()
			prevLine = tok.Pos.Line
		}
		fmt.Println(tok.String())
	}
}

func runAssemble(args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	output := fs.String("o", "", "output file path (default: input with .so extension)")
	configPath := fs.String("config", "", "override the config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := loadConfigOrDefault(*configPath); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("assemble: missing source file")
	}
	path := fs.Arg(0)

	source, err := readSource(path)
	if err != nil {
		return err
	}

	image, _, _, err := loader.BuildImage(source, path)
	if err != nil {
		return err
	}

	outPath := *output
	if outPath == "" {
		ext := filepath.Ext(path)
		outPath = strings.TrimSuffix(path, ext) + ".so"
	}
	if err := os.WriteFile(outPath, image, 0o644); err != nil {
		return parser.NewError(parser.IOError, parser.Position{}, "failed to write %s: %v", outPath, err)
	}
	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	debugMode := fs.Bool("debug", false, "drop into the interactive line-oriented debugger instead of running to completion")
	tuiMode := fs.Bool("tui", false, "drop into the full-screen tview debugger instead of running to completion")
	configPath := fs.String("config", "", "override the config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfigOrDefault(*configPath)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("run: missing source file")
	}
	path := fs.Arg(0)

	source, err := readSource(path)
	if err != nil {
		return err
	}

	machine := vm.New()
	machine.Memory = vm.NewMemory(cfg.VM.MemorySize)
	if _, err := loader.LoadProgramIntoVM(machine, source, path); err != nil {
		return err
	}

	if *tuiMode {
		dbg := debugger.New(machine, cfg.Debugger.HistorySize)
		return dbg.RunTUI()
	}
	if *debugMode {
		dbg := debugger.New(machine, cfg.Debugger.HistorySize)
		return dbg.RunCLI()
	}

	result, err := machine.Run()
	if err != nil {
		return err
	}
	fmt.Printf("Return value: %d\n", result)
	if cfg.Log.PrintOnRun {
		fmt.Print(machine.Log.String())
	}
	return nil
}

func runCompletions(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("completions: missing shell name (bash, zsh, fish)")
	}
	shell := args[0]
	switch shell {
	case "bash", "zsh", "fish":
		fmt.Printf("# completions for %s are not yet implemented\n", shell)
		return nil
	default:
		return fmt.Errorf("completions: unsupported shell %q", shell)
	}
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", parser.NewError(parser.IOError, parser.Position{Filename: path}, "failed to read source file: %v", err)
	}
	return string(data), nil
}

func loadConfigOrDefault(override string) (*config.Config, error) {
	if override != "" {
		return config.LoadFrom(override)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, parser.NewError(parser.IOError, parser.Position{}, "failed to load config: %v", err)
	}
	return cfg, nil
}

func printVersion() {
	fmt.Printf("sbpfasm %s", Version)
	if Commit != "unknown" {
		fmt.Printf(" (%s)", Commit)
	}
	fmt.Println()
}

func printHelp() {
	fmt.Print(`sbpfasm - an sBPF assembler, encoder, and interpreter

Usage:
  sbpfasm tokenize  [-config FILE] <file.s>
  sbpfasm assemble  [-o out.so] [-config FILE] <file.s>
  sbpfasm asm       [-o out.so] [-config FILE] <file.s>
  sbpfasm run       [-debug|-tui] [-config FILE] <file.s>
  sbpfasm version
  sbpfasm completions <bash|zsh|fish>

Commands:
  tokenize    Lex a source file and print its token stream, grouped by line
  assemble    Assemble a source file into an sBPF bytecode image (alias: asm)
  run         Assemble and execute a source file, printing r0 on exit
  version     Print version information
  completions Print a shell completion script

Flags:
  -o FILE       assemble: output path (default: input file with .so extension)
  -debug        run: start the line-oriented debugger instead of running to completion
  -tui          run: start the full-screen debugger instead of running to completion
  -config FILE  override the config file search path
`)
}
