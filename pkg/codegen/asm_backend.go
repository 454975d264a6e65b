package codegen

import (
	"bytes"
	"fmt"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

var asmMnemonics = map[ir.Operator]string{
	ir.Add: "ADD",
	ir.Sub: "SUB",
	ir.Mul: "MUL",
	ir.Div: "DIV",
}

// asmBackend lowers IR one instruction at a time into pseudo-assembly. It has
// no registers or memory model; operands are printed as the IR carries them.
type asmBackend struct{}

func NewAsmBackend() Backend { return &asmBackend{} }

func (b *asmBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	lines, err := AsmLines(prog)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return &buf, nil
}

// AsmLines returns the pseudo-assembly for prog, one line per element.
func AsmLines(prog *ir.Program) ([]string, error) {
	var lines []string
	for _, instr := range prog.Instrs {
		switch in := instr.(type) {
		case *ir.Store:
			lines = append(lines, fmt.Sprintf("MOV %s, %s", in.Dest, in.Src))
		case *ir.BinOp:
			mnemonic, ok := asmMnemonics[in.Op]
			if !ok {
				return nil, util.Internalf(util.PhaseCodegen, "unknown operator '%s'", in.Op)
			}
			lines = append(lines,
				fmt.Sprintf("MOV %s, %s", in.Dest, in.Left),
				fmt.Sprintf("%s %s, %s", mnemonic, in.Dest, in.Right))
		case *ir.Print:
			lines = append(lines, fmt.Sprintf("PRINT %s", in.Src))
		case *ir.DeclArray:
			lines = append(lines, fmt.Sprintf("ARRAY %s, %s, %d", in.Name, in.Elem, in.Size))
		case *ir.LoadIndex:
			lines = append(lines, fmt.Sprintf("LOAD %s, %s[%s]", in.Dest, in.Array, in.Index))
		case *ir.StoreIndex:
			lines = append(lines, fmt.Sprintf("STORE %s[%s], %s", in.Array, in.Index, in.Src))
		default:
			return nil, util.Internalf(util.PhaseCodegen, "unknown instruction %s", instr.Opcode())
		}
	}
	return lines, nil
}
