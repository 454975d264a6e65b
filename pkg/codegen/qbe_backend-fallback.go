//go:build windows

package codegen

import (
	"bytes"
	"io"
	"os"
	"os/exec"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
)

// Generate shells out to the system's qbe; libqbe does not build on Windows.
func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, genErr("QBE not found in PATH: %v", err)
	}

	qbeIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "minic-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	defer inputFile.Close()

	if _, err = inputFile.WriteString(qbeIR); err != nil {
		return nil, err
	}

	outputName := inputFile.Name() + ".s"
	cmd := exec.Command("qbe", "-o", outputName, "-t", cfg.Target(), inputFile.Name())
	if err = cmd.Run(); err != nil {
		return nil, genErr("QBE compilation failed: %v\n--- Generated IR ---\n%s", err, qbeIR)
	}

	outputFile, err := os.Open(outputName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(outputName)
	defer outputFile.Close()

	var asmBuf bytes.Buffer
	if _, err = io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
