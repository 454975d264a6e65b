package ir

import (
	"errors"
	"fmt"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

var ErrDivisionByZero = errors.New("division by zero")

// Arith applies op to two numeric literals. Two integers produce an integer,
// with '/' rounding toward negative infinity; any floating operand makes the
// whole operation floating, '/' included.
func Arith(op Operator, left, right Value) (Value, error) {
	if l, ok := left.(*Const); ok {
		if r, ok := right.(*Const); ok {
			return intArith(op, l.Value, r.Value)
		}
	}
	l, lok := toFloat(left)
	r, rok := toFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("operator '%s' needs numeric operands, got %s and %s", op, left, right)
	}
	switch op {
	case Add:
		return &FloatConst{Value: l + r}, nil
	case Sub:
		return &FloatConst{Value: l - r}, nil
	case Mul:
		return &FloatConst{Value: l * r}, nil
	case Div:
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return &FloatConst{Value: l / r}, nil
	}
	return nil, fmt.Errorf("unknown operator '%s'", op)
}

func intArith(op Operator, l, r int64) (Value, error) {
	switch op {
	case Add:
		return &Const{Value: l + r}, nil
	case Sub:
		return &Const{Value: l - r}, nil
	case Mul:
		return &Const{Value: l * r}, nil
	case Div:
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return &Const{Value: FloorDiv(l, r)}, nil
	}
	return nil, fmt.Errorf("unknown operator '%s'", op)
}

// FloorDiv is integer division rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case *Const:
		return float64(v.Value), true
	case *FloatConst:
		return v.Value, true
	}
	return 0, false
}

func isZero(v Value) bool {
	f, ok := toFloat(v)
	return ok && f == 0
}

// FoldConstants replaces every BINOP whose operands are both numeric literals
// with a STORE of the computed value. A folded temporary is substituted into
// the operands of later instructions, so chains of literal arithmetic collapse
// in one pass. Division by a literal zero is left for runtime. The input
// program is not modified.
func FoldConstants(prog *Program, diags *util.Diagnostics) *Program {
	known := make(map[int]Value)
	subst := func(v Value) Value {
		if t, ok := v.(*Temp); ok {
			if c, ok := known[t.ID]; ok {
				return c
			}
		}
		return v
	}

	out := make([]Instr, 0, len(prog.Instrs))
	for _, instr := range prog.Instrs {
		switch in := instr.(type) {
		case *BinOp:
			left, right := subst(in.Left), subst(in.Right)
			if IsConst(left) && IsConst(right) {
				if in.Op == Div && isZero(right) {
					diags.Warn(config.WarnDivZero, token.Token{}, "Division by zero in %s is left for runtime", in.Dest)
				} else if c, err := Arith(in.Op, left, right); err == nil {
					known[in.Dest.ID] = c
					out = append(out, &Store{Dest: in.Dest, Src: c})
					continue
				}
			}
			out = append(out, &BinOp{Dest: in.Dest, Op: in.Op, Left: left, Right: right})
		case *Store:
			src := subst(in.Src)
			if t, ok := in.Dest.(*Temp); ok && IsConst(src) {
				known[t.ID] = src
			}
			out = append(out, &Store{Dest: in.Dest, Src: src})
		case *StoreIndex:
			out = append(out, &StoreIndex{Array: in.Array, Index: subst(in.Index), Src: subst(in.Src)})
		case *LoadIndex:
			out = append(out, &LoadIndex{Dest: in.Dest, Array: in.Array, Index: subst(in.Index)})
		case *Print:
			out = append(out, &Print{Src: subst(in.Src)})
		default:
			out = append(out, instr)
		}
	}
	return prog.withInstrs(out)
}
