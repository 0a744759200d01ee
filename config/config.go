package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the assembler/interpreter configuration.
type Config struct {
	// VM settings
	VM struct {
		MemorySize      int    `toml:"memory_size"`
		DefaultInput    string `toml:"default_input"`
		MaxStepsPerCycle uint64 `toml:"max_steps_per_cycle"`
	} `toml:"vm"`

	// Log settings
	Log struct {
		BufferCap    int  `toml:"buffer_cap"`
		EchoToStderr bool `toml:"echo_to_stderr"`
		PrintOnRun   bool `toml:"print_on_run"`
	} `toml:"log"`

	// Debugger settings
	Debugger struct {
		HistorySize       int  `toml:"history_size"`
		ShowRegisters     bool `toml:"show_registers_by_default"`
		AutoSaveBreaks    bool `toml:"auto_save_breakpoints"`
	} `toml:"debugger"`

	// Display settings
	Display struct {
		NumberFormat  string `toml:"number_format"` // hex, dec
		BytesPerLine  int    `toml:"bytes_per_line"`
	} `toml:"display"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.VM.MemorySize = 20000
	cfg.VM.DefaultInput = ""
	cfg.VM.MaxStepsPerCycle = 1000000

	cfg.Log.BufferCap = 1 << 20 // 1MiB
	cfg.Log.EchoToStderr = false
	cfg.Log.PrintOnRun = true

	cfg.Debugger.HistorySize = 1000
	cfg.Debugger.ShowRegisters = true
	cfg.Debugger.AutoSaveBreaks = true

	cfg.Display.NumberFormat = "hex"
	cfg.Display.BytesPerLine = 16

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "sbpfasm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "sbpfasm")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "sbpfasm", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "sbpfasm", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, returning defaults
// if the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
