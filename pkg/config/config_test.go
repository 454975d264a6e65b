package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/cli"
	"go.uber.org/multierr"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	if !cfg.IsFeatureEnabled(FeatFold) || cfg.IsFeatureEnabled(FeatStrictDecl) {
		t.Error("unexpected feature defaults")
	}
	if !cfg.IsWarningEnabled(WarnDivZero) || cfg.IsWarningEnabled(WarnUnused) {
		t.Error("unexpected warning defaults")
	}
	if cfg.DefaultMode != ModeIRVM || cfg.Listen != "127.0.0.1:8000" {
		t.Errorf("got mode %s listen %s", cfg.DefaultMode, cfg.Listen)
	}
}

func TestApplyFlag(t *testing.T) {
	tests := []struct {
		flag  string
		check func(*Config) bool
	}{
		{"-Wunused", func(c *Config) bool { return c.IsWarningEnabled(WarnUnused) }},
		{"Wno-div-zero", func(c *Config) bool { return !c.IsWarningEnabled(WarnDivZero) }},
		{"-Fno-fold", func(c *Config) bool { return !c.IsFeatureEnabled(FeatFold) }},
		{"-Fstrict-decl", func(c *Config) bool { return c.IsFeatureEnabled(FeatStrictDecl) }},
		{"-Wall", func(c *Config) bool {
			for i := Warning(0); i < WarnCount; i++ {
				if !c.IsWarningEnabled(i) {
					return false
				}
			}
			return true
		}},
		{"-Wno-all", func(c *Config) bool {
			return !c.IsWarningEnabled(WarnExtra) && !c.IsWarningEnabled(WarnUnrecognizedEscape)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg := NewConfig()
			if err := cfg.ApplyFlag(tt.flag); err != nil {
				t.Fatalf("ApplyFlag failed: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("%s had no effect", tt.flag)
			}
		})
	}

	for _, bad := range []string{"-Wbogus", "-Fall", "-Xfold"} {
		if err := NewConfig().ApplyFlag(bad); err == nil {
			t.Errorf("%s accepted", bad)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Errorf("ParseMode(%s) = %s, %v", m, got, err)
		}
	}
	if _, err := ParseMode("exe"); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
[server]
listen = "0.0.0.0:9000"
default_mode = "llvm"

[compiler]
features = ["no-fold", "strict-decl"]
warnings = ["unused", "no-u-esc"]
qbe_target = "arm64"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" || cfg.DefaultMode != ModeLLVM || cfg.Target() != "arm64" {
		t.Errorf("server settings not applied: %+v", cfg)
	}
	if cfg.IsFeatureEnabled(FeatFold) || !cfg.IsFeatureEnabled(FeatStrictDecl) {
		t.Error("features not applied")
	}
	if !cfg.IsWarningEnabled(WarnUnused) || cfg.IsWarningEnabled(WarnUnrecognizedEscape) {
		t.Error("warnings not applied")
	}
}

func TestParseReportsEveryError(t *testing.T) {
	_, err := Parse([]byte(`
[server]
default_mode = "exe"

[compiler]
features = ["turbo"]
warnings = ["loud"]
`))
	if err == nil {
		t.Fatal("expected errors")
	}
	if n := len(multierr.Errors(err)); n != 3 {
		t.Errorf("got %d errors, want 3: %v", n, err)
	}
}

func TestParseRejectsBadTOML(t *testing.T) {
	if _, err := Parse([]byte("[server\nlisten = ")); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minic.toml")
	if err := os.WriteFile(path, []byte("[server]\ndefault_mode = \"asm\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DefaultMode != ModeAsm {
		t.Errorf("mode = %s", cfg.DefaultMode)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("minic")
	warnings, features := cfg.SetupFlagGroups(fs)
	if err := fs.Parse([]string{"-Wunused", "-Wno-extra", "-Fno-fold", "prog.mc"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg.ApplyFlagGroups(warnings, features)

	if !cfg.IsWarningEnabled(WarnUnused) || cfg.IsWarningEnabled(WarnExtra) || cfg.IsFeatureEnabled(FeatFold) {
		t.Error("switches not applied")
	}
	if !cfg.IsWarningEnabled(WarnDivZero) || !cfg.IsFeatureEnabled(FeatZeroArrays) {
		t.Error("untouched switches changed")
	}
	if args := fs.Args(); len(args) != 1 || args[0] != "prog.mc" {
		t.Errorf("args = %v", args)
	}
}
