package codegen

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

type llvmValue struct {
	text string
	typ  ast.Type
}

type llvmSlot struct {
	ptr  string
	typ  ast.Type
	size int64 // element count for arrays, 0 for scalars
}

// llvmBackend lowers IR into LLVM textual IR for a single @main function.
// Named variables live in stack slots; temporaries map directly to registers.
type llvmBackend struct {
	out     *strings.Builder
	prog    *ir.Program
	cfg     *config.Config
	reg     int
	slots   map[string]llvmSlot
	temps   map[int]llvmValue
	strings map[string]string
	strList []string
	doubles bool // a floating value is printed; emit @minic.print_double
}

func NewLLVMBackend() Backend { return &llvmBackend{} }

func (b *llvmBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(text), nil
}

// GenerateIR returns the complete LLVM module text for prog.
func (b *llvmBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var body strings.Builder
	b.out = &body
	b.prog = prog
	b.cfg = cfg
	b.reg = 0
	b.slots = make(map[string]llvmSlot)
	b.temps = make(map[int]llvmValue)
	b.strings = make(map[string]string)
	b.strList = nil
	b.doubles = false

	for _, instr := range prog.Instrs {
		if err := b.genInstr(instr); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	sb.WriteString("; --- MiniC LLVM IR ---\n")
	sb.WriteString("declare i32 @printf(i8*, ...)\n\n")
	for _, f := range printFormats {
		fmt.Fprintf(&sb, "%s = private unnamed_addr constant [%d x i8] c\"%s\"\n", f.name, len(f.text)+1, llvmEscape(f.text))
	}
	for _, s := range b.strList {
		fmt.Fprintf(&sb, "%s = private unnamed_addr constant [%d x i8] c\"%s\"\n", b.strings[s], len(s)+1, llvmEscape(s))
	}
	if b.doubles {
		sb.WriteString(llvmPrintDouble)
	}
	sb.WriteString("\ndefine i32 @main() {\nentry:\n")
	sb.WriteString(body.String())
	sb.WriteString("  ret i32 0\n}\n")
	return sb.String(), nil
}

var printFormats = []struct{ name, text string }{
	{"@.fmt.int", "%lld\n"},
	{"@.fmt.str", "%s\n"},
}

// llvmPrintDouble prints a double exactly as ir.FormatFloat renders it:
// integral values below 1e16 through "%.1f", everything else through the
// smallest "%.*g" precision that strtod reads back unchanged.
const llvmPrintDouble = `
declare i32 @snprintf(i8*, i64, i8*, ...)
declare double @strtod(i8*, i8**)
declare i32 @puts(i8*)
declare double @llvm.trunc.f64(double)
declare double @llvm.fabs.f64(double)

@.fmt.whole = private unnamed_addr constant [6 x i8] c"%.1f\0A\00"
@.fmt.prec = private unnamed_addr constant [5 x i8] c"%.*g\00"

define private void @minic.print_double(double %x) {
entry:
  %buf = alloca [32 x i8]
  %p = getelementptr inbounds [32 x i8], [32 x i8]* %buf, i64 0, i64 0
  %t = call double @llvm.trunc.f64(double %x)
  %integral = fcmp oeq double %t, %x
  %abs = call double @llvm.fabs.f64(double %x)
  %small = fcmp olt double %abs, 0x4341C37937E08000
  %whole = and i1 %integral, %small
  br i1 %whole, label %fixed, label %search
fixed:
  %w = call i32 (i8*, ...) @printf(i8* getelementptr inbounds ([6 x i8], [6 x i8]* @.fmt.whole, i64 0, i64 0), double %x)
  ret void
search:
  %prec = phi i32 [ 1, %entry ], [ %next, %retry ]
  %n = call i32 (i8*, i64, i8*, ...) @snprintf(i8* %p, i64 32, i8* getelementptr inbounds ([5 x i8], [5 x i8]* @.fmt.prec, i64 0, i64 0), i32 %prec, double %x)
  %back = call double @strtod(i8* %p, i8** null)
  %same = fcmp oeq double %back, %x
  %last = icmp sge i32 %prec, 17
  %done = or i1 %same, %last
  br i1 %done, label %emit, label %retry
retry:
  %next = add i32 %prec, 1
  br label %search
emit:
  %s = call i32 @puts(i8* %p)
  ret void
}
`

func (b *llvmBackend) newReg() string {
	b.reg++
	return fmt.Sprintf("%%r%d", b.reg)
}

func (b *llvmBackend) emit(format string, args ...interface{}) {
	b.out.WriteString("  ")
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *llvmBackend) formatType(t ast.Type) string {
	switch t {
	case ast.TypeFloat, ast.TypeDouble:
		return "double"
	case ast.TypeString:
		return "i8*"
	}
	return "i64"
}

func genErr(format string, args ...interface{}) error {
	return util.Internalf(util.PhaseCodegen, format, args...)
}

// slotName quotes names LLVM would not accept bare.
func slotName(name string) string {
	for i, r := range name {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if !ok {
			return fmt.Sprintf("%%\"%s.addr\"", name)
		}
	}
	return "%" + name + ".addr"
}

func (b *llvmBackend) stringRef(s string) string {
	name, ok := b.strings[s]
	if !ok {
		name = fmt.Sprintf("@.str.%d", len(b.strList))
		b.strings[s] = name
		b.strList = append(b.strList, s)
	}
	n := len(s) + 1
	return fmt.Sprintf("getelementptr inbounds ([%d x i8], [%d x i8]* %s, i64 0, i64 0)", n, n, name)
}

func formatDouble(f float64) string {
	return fmt.Sprintf("0x%016X", math.Float64bits(f))
}

// llvmVal resolves an operand to something usable as an instruction argument.
// Variables are loaded into a fresh register on every use.
func (b *llvmBackend) llvmVal(v ir.Value) (llvmValue, error) {
	switch v := v.(type) {
	case *ir.Const:
		return llvmValue{fmt.Sprintf("%d", v.Value), ast.TypeInt}, nil
	case *ir.FloatConst:
		return llvmValue{formatDouble(v.Value), ast.TypeDouble}, nil
	case *ir.Str:
		return llvmValue{b.stringRef(v.Value), ast.TypeString}, nil
	case *ir.Temp:
		val, ok := b.temps[v.ID]
		if !ok {
			return llvmValue{}, genErr("LLVM: temp '%s' used before definition", v)
		}
		return val, nil
	case *ir.Var:
		slot, ok := b.slots[v.Name]
		if !ok || slot.size > 0 {
			return llvmValue{}, genErr("LLVM: variable '%s' used before definition", v.Name)
		}
		r := b.newReg()
		t := b.formatType(slot.typ)
		b.emit("%s = load %s, %s* %s", r, t, t, slot.ptr)
		return llvmValue{r, slot.typ}, nil
	}
	return llvmValue{}, genErr("LLVM: unsupported value %v", v)
}

// convert widens an integer value when the destination is floating.
func (b *llvmBackend) convert(val llvmValue, to ast.Type) (llvmValue, error) {
	switch {
	case b.formatType(val.typ) == b.formatType(to):
		return llvmValue{val.text, to}, nil
	case val.typ == ast.TypeInt && to.IsFloating():
		r := b.newReg()
		b.emit("%s = sitofp i64 %s to double", r, val.text)
		return llvmValue{r, to}, nil
	}
	return llvmValue{}, genErr("LLVM: cannot convert %s to %s", val.typ, to)
}

func (b *llvmBackend) ensureVar(name string, typ ast.Type) llvmSlot {
	slot, ok := b.slots[name]
	if !ok {
		if declared, found := b.prog.Vars[name]; found {
			typ = declared
		}
		slot = llvmSlot{ptr: slotName(name), typ: typ}
		b.slots[name] = slot
		b.emit("%s = alloca %s", slot.ptr, b.formatType(typ))
	}
	return slot
}

func (b *llvmBackend) genInstr(instr ir.Instr) error {
	switch in := instr.(type) {
	case *ir.Store:
		val, err := b.llvmVal(in.Src)
		if err != nil {
			return err
		}
		switch dest := in.Dest.(type) {
		case *ir.Temp:
			b.temps[dest.ID] = val
			return nil
		case *ir.Var:
			slot := b.ensureVar(dest.Name, val.typ)
			if slot.size > 0 {
				return genErr("LLVM: cannot store a scalar into array '%s'", dest.Name)
			}
			if val, err = b.convert(val, slot.typ); err != nil {
				return err
			}
			t := b.formatType(slot.typ)
			b.emit("store %s %s, %s* %s", t, val.text, t, slot.ptr)
			return nil
		}
		return genErr("LLVM: invalid store destination %v", in.Dest)

	case *ir.BinOp:
		return b.genBinOp(in)

	case *ir.Print:
		val, err := b.llvmVal(in.Src)
		if err != nil {
			return err
		}
		if val.typ.IsFloating() {
			b.doubles = true
			b.emit("call void @minic.print_double(double %s)", val.text)
			return nil
		}
		format := printFormats[0]
		if val.typ == ast.TypeString {
			format = printFormats[1]
		}
		n := len(format.text) + 1
		r := b.newReg()
		b.emit("%s = call i32 (i8*, ...) @printf(i8* getelementptr inbounds ([%d x i8], [%d x i8]* %s, i64 0, i64 0), %s %s)",
			r, n, n, format.name, b.formatType(val.typ), val.text)
		return nil

	case *ir.DeclArray:
		return b.genDeclArray(in)

	case *ir.LoadIndex:
		slot, ptr, err := b.elementPtr(in.Array, in.Index)
		if err != nil {
			return err
		}
		r := b.newReg()
		t := b.formatType(slot.typ)
		b.emit("%s = load %s, %s* %s", r, t, t, ptr)
		b.temps[in.Dest.ID] = llvmValue{r, slot.typ}
		return nil

	case *ir.StoreIndex:
		slot, ptr, err := b.elementPtr(in.Array, in.Index)
		if err != nil {
			return err
		}
		val, err := b.llvmVal(in.Src)
		if err != nil {
			return err
		}
		if val, err = b.convert(val, slot.typ); err != nil {
			return err
		}
		t := b.formatType(slot.typ)
		b.emit("store %s %s, %s* %s", t, val.text, t, ptr)
		return nil
	}
	return genErr("LLVM: unknown instruction %s", instr.Opcode())
}

func (b *llvmBackend) genBinOp(in *ir.BinOp) error {
	l, err := b.llvmVal(in.Left)
	if err != nil {
		return err
	}
	r, err := b.llvmVal(in.Right)
	if err != nil {
		return err
	}
	if !l.typ.IsNumeric() || !r.typ.IsNumeric() {
		return genErr("LLVM: operator '%s' on %s and %s", in.Op, l.typ, r.typ)
	}

	if l.typ.IsFloating() || r.typ.IsFloating() {
		if l, err = b.convert(l, ast.TypeDouble); err != nil {
			return err
		}
		if r, err = b.convert(r, ast.TypeDouble); err != nil {
			return err
		}
		var inst string
		switch in.Op {
		case ir.Add:
			inst = "fadd"
		case ir.Sub:
			inst = "fsub"
		case ir.Mul:
			inst = "fmul"
		case ir.Div:
			inst = "fdiv"
		default:
			return genErr("LLVM: unknown operator %s", in.Op)
		}
		out := b.newReg()
		b.emit("%s = %s double %s, %s", out, inst, l.text, r.text)
		b.temps[in.Dest.ID] = llvmValue{out, ast.TypeDouble}
		return nil
	}

	out := b.newReg()
	switch in.Op {
	case ir.Add:
		b.emit("%s = add i64 %s, %s", out, l.text, r.text)
	case ir.Sub:
		b.emit("%s = sub i64 %s, %s", out, l.text, r.text)
	case ir.Mul:
		b.emit("%s = mul i64 %s, %s", out, l.text, r.text)
	case ir.Div:
		out = b.genFloorDiv(out, l.text, r.text)
	default:
		return genErr("LLVM: unknown operator %s", in.Op)
	}
	b.temps[in.Dest.ID] = llvmValue{out, ast.TypeInt}
	return nil
}

// genFloorDiv lowers integer '/' so that it rounds toward negative infinity,
// matching the interpreter: sdiv, then subtract one when the remainder is
// nonzero and its sign differs from the divisor's.
func (b *llvmBackend) genFloorDiv(quot, l, r string) string {
	rem, ne, xor, neg, adj, ext, res := b.newReg(), b.newReg(), b.newReg(), b.newReg(), b.newReg(), b.newReg(), b.newReg()
	b.emit("%s = sdiv i64 %s, %s", quot, l, r)
	b.emit("%s = srem i64 %s, %s", rem, l, r)
	b.emit("%s = icmp ne i64 %s, 0", ne, rem)
	b.emit("%s = xor i64 %s, %s", xor, rem, r)
	b.emit("%s = icmp slt i64 %s, 0", neg, xor)
	b.emit("%s = and i1 %s, %s", adj, ne, neg)
	b.emit("%s = zext i1 %s to i64", ext, adj)
	b.emit("%s = sub i64 %s, %s", res, quot, ext)
	return res
}

func (b *llvmBackend) genDeclArray(in *ir.DeclArray) error {
	if in.Size <= 0 {
		return genErr("LLVM: array '%s' has non-positive size %d", in.Name, in.Size)
	}
	if _, exists := b.slots[in.Name]; exists {
		return genErr("LLVM: array '%s' declared twice", in.Name)
	}
	slot := llvmSlot{ptr: slotName(in.Name), typ: in.Elem, size: in.Size}
	b.slots[in.Name] = slot
	arrType := fmt.Sprintf("[%d x %s]", in.Size, b.formatType(in.Elem))
	b.emit("%s = alloca %s", slot.ptr, arrType)

	if b.cfg == nil || !b.cfg.IsFeatureEnabled(config.FeatZeroArrays) {
		return nil
	}
	if in.Elem != ast.TypeString {
		b.emit("store %s zeroinitializer, %s* %s", arrType, arrType, slot.ptr)
		return nil
	}
	empty := b.stringRef("")
	for i := int64(0); i < in.Size; i++ {
		p := b.newReg()
		b.emit("%s = getelementptr inbounds %s, %s* %s, i64 0, i64 %d", p, arrType, arrType, slot.ptr, i)
		b.emit("store i8* %s, i8** %s", empty, p)
	}
	return nil
}

func (b *llvmBackend) elementPtr(name string, index ir.Value) (llvmSlot, string, error) {
	slot, ok := b.slots[name]
	if !ok || slot.size == 0 {
		return slot, "", genErr("LLVM: array '%s' used before definition", name)
	}
	idx, err := b.llvmVal(index)
	if err != nil {
		return slot, "", err
	}
	if idx.typ != ast.TypeInt {
		return slot, "", genErr("LLVM: index of '%s' is %s, not int", name, idx.typ)
	}
	arrType := fmt.Sprintf("[%d x %s]", slot.size, b.formatType(slot.typ))
	p := b.newReg()
	b.emit("%s = getelementptr inbounds %s, %s* %s, i64 0, i64 %s", p, arrType, arrType, slot.ptr, idx.text)
	return slot, p, nil
}

// llvmEscape renders s as the body of an LLVM c"..." string with a trailing NUL.
func llvmEscape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "\\%02X", c)
	}
	sb.WriteString("\\00")
	return sb.String()
}
