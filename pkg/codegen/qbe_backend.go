package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
)

type qbeValue struct {
	text string
	typ  ast.Type
}

type qbeSlot struct {
	addr string
	typ  ast.Type
	size int64 // element count for arrays, 0 for scalars
}

// qbeBackend lowers IR into QBE SSA for a single exported $main. Every value
// is eight bytes wide: integers are l, floating values d, strings pointers.
type qbeBackend struct {
	out     *strings.Builder
	prog    *ir.Program
	cfg     *config.Config
	tmp     int
	slots   map[string]qbeSlot
	temps   map[int]qbeValue
	strings map[string]string
	strList []string
	doubles bool
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR returns the QBE SSA text for prog.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var body strings.Builder
	b.out = &body
	b.prog = prog
	b.cfg = cfg
	b.tmp = 0
	b.slots = make(map[string]qbeSlot)
	b.temps = make(map[int]qbeValue)
	b.strings = make(map[string]string)
	b.strList = nil
	b.doubles = false

	for _, instr := range prog.Instrs {
		if err := b.genInstr(instr); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	formats := qbeFormats
	if b.doubles {
		formats = append(formats[:len(formats):len(formats)], qbeDoubleFormats...)
	}
	for _, f := range formats {
		fmt.Fprintf(&sb, "data $%s = { b %s, b 0 }\n", f.name, strconv.Quote(f.text))
	}
	for _, s := range b.strList {
		if s == "" {
			fmt.Fprintf(&sb, "data $%s = { b 0 }\n", b.strings[s])
			continue
		}
		fmt.Fprintf(&sb, "data $%s = { b %s, b 0 }\n", b.strings[s], strconv.Quote(s))
	}
	sb.WriteString("\nexport function w $main() {\n@start\n")
	sb.WriteString(body.String())
	sb.WriteString("\tret 0\n}\n")
	if b.doubles {
		sb.WriteString(qbePrintDouble)
	}
	return sb.String(), nil
}

var qbeFormats = []struct{ name, text string }{
	{"fmt_int", "%lld\n"},
	{"fmt_str", "%s\n"},
}

var qbeDoubleFormats = []struct{ name, text string }{
	{"fmt_whole", "%.1f\n"},
	{"fmt_prec", "%.*g"},
}

// qbePrintDouble is the QBE twin of llvmPrintDouble. QBE has no trunc, so
// integrality is tested by a round trip through l for values below 1e16.
const qbePrintDouble = `
function $minic_print_double(d %x) {
@start
	%buf =l alloc8 32
	%prec =l alloc4 4
	storew 1, %prec
	%lo =w cgtd %x, d_-1e+16
	%hi =w cltd %x, d_1e+16
	%inrange =w and %lo, %hi
	jnz %inrange, @convert, @search
@convert
	%i =l dtosi %x
	%back =d sltof %i
	%whole =w ceqd %back, %x
	jnz %whole, @fixed, @search
@fixed
	%w =w call $printf(l $fmt_whole, ..., d %x)
	ret
@search
	%p =w loadw %prec
	%n =w call $snprintf(l %buf, l 32, l $fmt_prec, ..., w %p, d %x)
	%got =d call $strtod(l %buf, l 0)
	%same =w ceqd %got, %x
	%last =w csgew %p, 17
	%done =w or %same, %last
	jnz %done, @emit, @retry
@retry
	%next =w add %p, 1
	storew %next, %prec
	jmp @search
@emit
	%s =w call $puts(l %buf)
	ret
}
`

func (b *qbeBackend) newTemp() string {
	b.tmp++
	return fmt.Sprintf("%%.t%d", b.tmp)
}

func (b *qbeBackend) emit(format string, args ...interface{}) {
	b.out.WriteString("\t")
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *qbeBackend) formatType(t ast.Type) string {
	if t.IsFloating() { return "d" }
	return "l"
}

func (b *qbeBackend) addrName(name string) string {
	for i, r := range name {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if !ok { return fmt.Sprintf("%%.v%d", len(b.slots)) }
	}
	return "%" + name + ".addr"
}

func (b *qbeBackend) stringRef(s string) string {
	name, ok := b.strings[s]
	if !ok {
		name = fmt.Sprintf("str%d", len(b.strList))
		b.strings[s] = name
		b.strList = append(b.strList, s)
	}
	return "$" + name
}

func (b *qbeBackend) formatValue(v ir.Value) (qbeValue, error) {
	switch val := v.(type) {
	case *ir.Const: return qbeValue{strconv.FormatInt(val.Value, 10), ast.TypeInt}, nil
	case *ir.FloatConst: return qbeValue{"d_" + strconv.FormatFloat(val.Value, 'g', -1, 64), ast.TypeDouble}, nil
	case *ir.Str: return qbeValue{b.stringRef(val.Value), ast.TypeString}, nil
	case *ir.Temp:
		q, ok := b.temps[val.ID]
		if !ok { return qbeValue{}, genErr("QBE: temp '%s' used before definition", val) }
		return q, nil
	case *ir.Var:
		slot, ok := b.slots[val.Name]
		if !ok || slot.size > 0 { return qbeValue{}, genErr("QBE: variable '%s' used before definition", val.Name) }
		t := b.newTemp()
		b.emit("%s =%s load%s %s", t, b.formatType(slot.typ), b.formatType(slot.typ), slot.addr)
		return qbeValue{t, slot.typ}, nil
	}
	return qbeValue{}, genErr("QBE: unsupported value %v", v)
}

func (b *qbeBackend) convert(val qbeValue, to ast.Type) (qbeValue, error) {
	switch {
	case b.formatType(val.typ) == b.formatType(to) && (val.typ == ast.TypeString) == (to == ast.TypeString):
		return qbeValue{val.text, to}, nil
	case val.typ == ast.TypeInt && to.IsFloating():
		t := b.newTemp()
		b.emit("%s =d sltof %s", t, val.text)
		return qbeValue{t, to}, nil
	}
	return qbeValue{}, genErr("QBE: cannot convert %s to %s", val.typ, to)
}

func (b *qbeBackend) genInstr(instr ir.Instr) error {
	switch in := instr.(type) {
	case *ir.Store:
		val, err := b.formatValue(in.Src)
		if err != nil { return err }
		switch dest := in.Dest.(type) {
		case *ir.Temp:
			b.temps[dest.ID] = val
			return nil
		case *ir.Var:
			slot, ok := b.slots[dest.Name]
			if !ok {
				typ := val.typ
				if declared, found := b.prog.Vars[dest.Name]; found { typ = declared }
				slot = qbeSlot{addr: b.addrName(dest.Name), typ: typ}
				b.slots[dest.Name] = slot
				b.emit("%s =l alloc8 8", slot.addr)
			}
			if slot.size > 0 { return genErr("QBE: cannot store a scalar into array '%s'", dest.Name) }
			if val, err = b.convert(val, slot.typ); err != nil { return err }
			b.emit("store%s %s, %s", b.formatType(slot.typ), val.text, slot.addr)
			return nil
		}
		return genErr("QBE: invalid store destination %v", in.Dest)

	case *ir.BinOp:
		return b.genBinOp(in)

	case *ir.Print:
		val, err := b.formatValue(in.Src)
		if err != nil { return err }
		if val.typ.IsFloating() {
			b.doubles = true
			b.emit("call $minic_print_double(d %s)", val.text)
			return nil
		}
		format := qbeFormats[0].name
		if val.typ == ast.TypeString { format = qbeFormats[1].name }
		b.emit("%s =w call $printf(l $%s, ..., %s %s)", b.newTemp(), format, b.formatType(val.typ), val.text)
		return nil

	case *ir.DeclArray:
		if in.Size <= 0 { return genErr("QBE: array '%s' has non-positive size %d", in.Name, in.Size) }
		if _, exists := b.slots[in.Name]; exists { return genErr("QBE: array '%s' declared twice", in.Name) }
		slot := qbeSlot{addr: b.addrName(in.Name), typ: in.Elem, size: in.Size}
		b.slots[in.Name] = slot
		b.emit("%s =l alloc8 %d", slot.addr, in.Size*8)
		if b.cfg == nil || !b.cfg.IsFeatureEnabled(config.FeatZeroArrays) { return nil }
		if in.Elem != ast.TypeString {
			b.emit("call $memset(l %s, w 0, l %d)", slot.addr, in.Size*8)
			return nil
		}
		empty := b.stringRef("")
		for i := int64(0); i < in.Size; i++ {
			p := b.newTemp()
			b.emit("%s =l add %s, %d", p, slot.addr, i*8)
			b.emit("storel %s, %s", empty, p)
		}
		return nil

	case *ir.LoadIndex:
		slot, p, err := b.elementAddr(in.Array, in.Index)
		if err != nil { return err }
		t := b.newTemp()
		b.emit("%s =%s load%s %s", t, b.formatType(slot.typ), b.formatType(slot.typ), p)
		b.temps[in.Dest.ID] = qbeValue{t, slot.typ}
		return nil

	case *ir.StoreIndex:
		slot, p, err := b.elementAddr(in.Array, in.Index)
		if err != nil { return err }
		val, err := b.formatValue(in.Src)
		if err != nil { return err }
		if val, err = b.convert(val, slot.typ); err != nil { return err }
		b.emit("store%s %s, %s", b.formatType(slot.typ), val.text, p)
		return nil
	}
	return genErr("QBE: unknown instruction %s", instr.Opcode())
}

func (b *qbeBackend) genBinOp(in *ir.BinOp) error {
	l, err := b.formatValue(in.Left)
	if err != nil { return err }
	r, err := b.formatValue(in.Right)
	if err != nil { return err }
	if !l.typ.IsNumeric() || !r.typ.IsNumeric() {
		return genErr("QBE: operator '%s' on %s and %s", in.Op, l.typ, r.typ)
	}

	resType := ast.TypeInt
	if l.typ.IsFloating() || r.typ.IsFloating() {
		resType = ast.TypeDouble
		if l, err = b.convert(l, resType); err != nil { return err }
		if r, err = b.convert(r, resType); err != nil { return err }
	}

	var op string
	switch in.Op {
	case ir.Add: op = "add"
	case ir.Sub: op = "sub"
	case ir.Mul: op = "mul"
	case ir.Div: op = "div"
	default: return genErr("QBE: unknown operator %s", in.Op)
	}

	t := b.newTemp()
	b.emit("%s =%s %s %s, %s", t, b.formatType(resType), op, l.text, r.text)
	if in.Op == ir.Div && resType == ast.TypeInt {
		t = b.genFloorAdjust(t, l.text, r.text)
	}
	b.temps[in.Dest.ID] = qbeValue{t, resType}
	return nil
}

// genFloorAdjust turns the truncated quotient q of l/r into a floored one.
func (b *qbeBackend) genFloorAdjust(q, l, r string) string {
	rem, nz, x, neg, adj, res := b.newTemp(), b.newTemp(), b.newTemp(), b.newTemp(), b.newTemp(), b.newTemp()
	b.emit("%s =l rem %s, %s", rem, l, r)
	b.emit("%s =l cnel %s, 0", nz, rem)
	b.emit("%s =l xor %s, %s", x, rem, r)
	b.emit("%s =l csltl %s, 0", neg, x)
	b.emit("%s =l and %s, %s", adj, nz, neg)
	b.emit("%s =l sub %s, %s", res, q, adj)
	return res
}

func (b *qbeBackend) elementAddr(name string, index ir.Value) (qbeSlot, string, error) {
	slot, ok := b.slots[name]
	if !ok || slot.size == 0 { return slot, "", genErr("QBE: array '%s' used before definition", name) }
	idx, err := b.formatValue(index)
	if err != nil { return slot, "", err }
	if idx.typ != ast.TypeInt { return slot, "", genErr("QBE: index of '%s' is %s, not int", name, idx.typ) }
	off, p := b.newTemp(), b.newTemp()
	b.emit("%s =l mul %s, 8", off, idx.text)
	b.emit("%s =l add %s, %s", p, slot.addr, off)
	return slot, p, nil
}
