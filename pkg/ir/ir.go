package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
)

// Opcode tags an instruction variant.
type Opcode int

const (
	OpStore Opcode = iota
	OpStoreIndex
	OpLoadIndex
	OpDeclArray
	OpBinOp
	OpPrint
)

var opcodeNames = [...]string{
	OpStore: "STORE", OpStoreIndex: "STORE_INDEX", OpLoadIndex: "LOAD_INDEX",
	OpDeclArray: "DECL_ARRAY", OpBinOp: "BINOP", OpPrint: "PRINT",
}

func (o Opcode) String() string {
	if o >= 0 && int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("OP(%d)", int(o))
}

// Operator is the arithmetic operator of a BINOP, spelled as in source.
type Operator string

const (
	Add Operator = "+"
	Sub Operator = "-"
	Mul Operator = "*"
	Div Operator = "/"
)

type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }
type FloatConst struct{ Value float64 }
type Str struct{ Value string }
type Var struct{ Name string }
type Temp struct{ ID int }

func (c *Const) isValue()      {}
func (f *FloatConst) isValue() {}
func (s *Str) isValue()        {}
func (v *Var) isValue()        {}
func (t *Temp) isValue()       {}

func (c *Const) String() string      { return strconv.FormatInt(c.Value, 10) }
func (f *FloatConst) String() string { return FormatFloat(f.Value) }
func (s *Str) String() string        { return strconv.Quote(s.Value) }
func (v *Var) String() string        { return v.Name }
func (t *Temp) String() string       { return "t" + strconv.Itoa(t.ID) }

// IsConst reports whether v is a numeric literal.
func IsConst(v Value) bool {
	switch v.(type) {
	case *Const, *FloatConst:
		return true
	}
	return false
}

// FormatFloat renders a float the way MiniC prints it. Integral values below
// 1e16 get one decimal place; anything else takes the fewest %g digits that
// parse back to the same value. The compiled backends emit the same search
// over C's "%.1f" and "%.*g", so all consumers print identical text.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if math.Trunc(f) == f && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	for prec := 1; prec < MaxFloatDigits; prec++ {
		s := strconv.FormatFloat(f, 'g', prec, 64)
		if back, err := strconv.ParseFloat(s, 64); err == nil && back == f {
			return s
		}
	}
	return strconv.FormatFloat(f, 'g', MaxFloatDigits, 64)
}

// MaxFloatDigits is enough %g precision to round-trip any float64.
const MaxFloatDigits = 17

type Instr interface {
	isInstr()
	Opcode() Opcode
	String() string
}

// Store writes Src into a named variable or a temporary.
type Store struct {
	Dest Value
	Src  Value
}

type StoreIndex struct {
	Array string
	Index Value
	Src   Value
}

type LoadIndex struct {
	Dest  *Temp
	Array string
	Index Value
}

type DeclArray struct {
	Name string
	Elem ast.Type
	Size int64
}

type BinOp struct {
	Dest  *Temp
	Op    Operator
	Left  Value
	Right Value
}

type Print struct{ Src Value }

func (*Store) isInstr()      {}
func (*StoreIndex) isInstr() {}
func (*LoadIndex) isInstr()  {}
func (*DeclArray) isInstr()  {}
func (*BinOp) isInstr()      {}
func (*Print) isInstr()      {}

func (*Store) Opcode() Opcode      { return OpStore }
func (*StoreIndex) Opcode() Opcode { return OpStoreIndex }
func (*LoadIndex) Opcode() Opcode  { return OpLoadIndex }
func (*DeclArray) Opcode() Opcode  { return OpDeclArray }
func (*BinOp) Opcode() Opcode      { return OpBinOp }
func (*Print) Opcode() Opcode      { return OpPrint }

func (i *Store) String() string { return fmt.Sprintf("STORE(%s, %s)", i.Dest, i.Src) }
func (i *StoreIndex) String() string {
	return fmt.Sprintf("STORE_INDEX(%s, %s, %s)", i.Array, i.Index, i.Src)
}
func (i *LoadIndex) String() string {
	return fmt.Sprintf("LOAD_INDEX(%s, %s, %s)", i.Dest, i.Array, i.Index)
}
func (i *DeclArray) String() string {
	return fmt.Sprintf("DECL_ARRAY(%s, %s, %d)", i.Name, i.Elem, i.Size)
}
func (i *BinOp) String() string {
	return fmt.Sprintf("BINOP(%s, %s, %s, %s)", i.Dest, i.Op, i.Left, i.Right)
}
func (i *Print) String() string { return fmt.Sprintf("PRINT(%s)", i.Src) }

type ArrayInfo struct {
	Elem ast.Type
	Size int64
}

// Program is the flat instruction list of one compilation together with the
// declared types the typed backends and the interpreter need.
type Program struct {
	Instrs    []Instr
	Vars      map[string]ast.Type
	Arrays    map[string]ArrayInfo
	Temps     map[int]ast.Type
	TempCount int
}

func NewProgram() *Program {
	return &Program{
		Vars:   make(map[string]ast.Type),
		Arrays: make(map[string]ArrayInfo),
		Temps:  make(map[int]ast.Type),
	}
}

// TypeOf returns the static type of an operand.
func (p *Program) TypeOf(v Value) ast.Type {
	switch v := v.(type) {
	case *Const:
		return ast.TypeInt
	case *FloatConst:
		return ast.TypeFloat
	case *Str:
		return ast.TypeString
	case *Var:
		return p.Vars[v.Name]
	case *Temp:
		return p.Temps[v.ID]
	}
	return ast.TypeNone
}

// Lines renders every instruction, one per element.
func (p *Program) Lines() []string {
	lines := make([]string, len(p.Instrs))
	for i, instr := range p.Instrs {
		lines[i] = instr.String()
	}
	return lines
}

func (p *Program) String() string { return strings.Join(p.Lines(), "\n") }

// withInstrs returns a program sharing p's declarations with a new body.
func (p *Program) withInstrs(instrs []Instr) *Program {
	cp := *p
	cp.Instrs = instrs
	return &cp
}
