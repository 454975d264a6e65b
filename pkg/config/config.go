package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/cli"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatFold Feature = iota
	FeatStrictDecl
	FeatZeroArrays
	FeatCount
)

type Warning int

const (
	WarnUnrecognizedEscape Warning = iota
	WarnDivZero
	WarnUnused
	WarnImplicitZero
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Mode selects which consumer of the optimized IR produces the artifact.
type Mode string

const (
	ModeAsm    Mode = "asm"
	ModeLLVM   Mode = "llvm"
	ModeIRVM   Mode = "irvm"
	ModeNative Mode = "native"
)

var Modes = []Mode{ModeAsm, ModeLLVM, ModeIRVM, ModeNative}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported mode '%s'. Supported: asm, llvm, irvm, native", s)
}

type Config struct {
	Features    map[Feature]Info
	Warnings    map[Warning]Info
	FeatureMap  map[string]Feature
	WarningMap  map[string]Warning
	QbeTarget   string
	Listen      string
	DefaultMode Mode
}

func NewConfig() *Config {
	cfg := &Config{
		Features:    make(map[Feature]Info),
		Warnings:    make(map[Warning]Info),
		FeatureMap:  make(map[string]Feature),
		WarningMap:  make(map[string]Warning),
		Listen:      "127.0.0.1:8000",
		DefaultMode: ModeIRVM,
	}

	features := map[Feature]Info{
		FeatFold:       {"fold", true, "Fold constant arithmetic in the IR before code generation."},
		FeatStrictDecl: {"strict-decl", false, "Require all scalar declarations to be initialized."},
		FeatZeroArrays: {"zero-arrays", true, "Zero-fill arrays in the LLVM and native backends."},
	}

	warnings := map[Warning]Info{
		WarnUnrecognizedEscape: {"u-esc", true, "Warn on unrecognized escape sequences in string literals."},
		WarnDivZero:            {"div-zero", true, "Warn when a constant division by zero is left for runtime."},
		WarnUnused:             {"unused", false, "Warn about variables that are declared but never read."},
		WarnImplicitZero:       {"implicit-zero", false, "Warn about scalars declared without an initializer."},
		WarnExtra:              {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget configures the QBE target used by the native backend.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		return
	}
	c.QbeTarget = qbeTarget
}

// Target returns the configured QBE target, defaulting to the host.
func (c *Config) Target() string {
	if c.QbeTarget == "" {
		c.SetTarget(runtime.GOOS, runtime.GOARCH, "")
	}
	return c.QbeTarget
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag applies a single -W/-F style switch such as "-Wno-unused" or "Ffold".
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// SetupFlagGroups registers the -W<name> and -F<name> switch families on fs.
// Entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings = append(warnings, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description, Default: info.Enabled,
			Enabled: new(bool), Disabled: new(bool),
		})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		features = append(features, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description, Default: info.Enabled,
			Enabled: new(bool), Disabled: new(bool),
		})
	}
	fs.AddFlagGroup("Warning Flags", "warning", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "feature", "Available Features:", features)
	return warnings, features
}

// ApplyFlagGroups applies the switches that were passed on the command line.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for i, e := range warnings {
		if *e.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *e.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, e := range features {
		if *e.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *e.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// File is the on-disk shape of minic.toml.
type File struct {
	Server struct {
		Listen      string `toml:"listen"`
		DefaultMode string `toml:"default_mode"`
	} `toml:"server"`
	Compiler struct {
		Features  []string `toml:"features"`
		Warnings  []string `toml:"warnings"`
		QbeTarget string   `toml:"qbe_target"`
	} `toml:"compiler"`
}

// Load reads a TOML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML configuration on top of the defaults. Every invalid
// entry is reported, not just the first.
func Parse(data []byte) (*Config, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := NewConfig()
	var errs error
	if f.Server.Listen != "" {
		cfg.Listen = f.Server.Listen
	}
	if f.Server.DefaultMode != "" {
		m, err := ParseMode(f.Server.DefaultMode)
		errs = multierr.Append(errs, err)
		if err == nil {
			cfg.DefaultMode = m
		}
	}
	for _, name := range f.Compiler.Features {
		errs = multierr.Append(errs, cfg.ApplyFlag("F"+name))
	}
	for _, name := range f.Compiler.Warnings {
		errs = multierr.Append(errs, cfg.ApplyFlag("W"+name))
	}
	if f.Compiler.QbeTarget != "" {
		cfg.QbeTarget = f.Compiler.QbeTarget
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}
