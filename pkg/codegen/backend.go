package codegen

import (
	"bytes"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an optimized IR program and a configuration, and produces
	// the target text as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// NewBackend returns the static backend for mode, or nil for modes that do
// not emit text.
func NewBackend(mode config.Mode) Backend {
	switch mode {
	case config.ModeAsm:
		return NewAsmBackend()
	case config.ModeLLVM:
		return NewLLVMBackend()
	case config.ModeNative:
		return NewQBEBackend()
	}
	return nil
}
