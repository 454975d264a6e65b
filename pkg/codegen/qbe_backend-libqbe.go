//go:build !windows

package codegen

import (
	"bytes"
	"strings"
	"sync"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"modernc.org/libqbe"
)

// libqbe keeps its state in globals; the compiler and server may call it from
// several goroutines.
var libqbeMu sync.Mutex

func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	qbeIR, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}

	var asmBuf bytes.Buffer
	libqbeMu.Lock()
	defer libqbeMu.Unlock()
	err = libqbe.Main(cfg.Target(), "input.ssa", strings.NewReader(qbeIR), &asmBuf, nil)
	if err != nil {
		return nil, genErr("QBE compilation failed: %v\n--- Generated IR ---\n%s", err, qbeIR)
	}
	return &asmBuf, nil
}
