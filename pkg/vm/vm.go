// Package vm executes IR directly. It is the reference semantics the static
// backends are checked against.
package vm

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/codegen"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

// VM holds the state of one program run. Scalars, temporaries and arrays
// live in separate stores, so a variable named t1 never aliases temporary t1.
type VM struct {
	out    io.Writer
	prog   *ir.Program
	vars   map[string]ir.Value
	temps  map[int]ir.Value
	arrays map[string][]ir.Value
	elems  map[string]ast.Type
}

func New(out io.Writer) *VM {
	return &VM{out: out}
}

func runtimeErr(format string, args ...interface{}) error {
	return util.Internalf(util.PhaseRuntime, format, args...)
}

// Run executes prog from a fresh store, writing one line per PRINT.
func (vm *VM) Run(prog *ir.Program) error {
	vm.prog = prog
	vm.vars = make(map[string]ir.Value)
	vm.temps = make(map[int]ir.Value)
	vm.arrays = make(map[string][]ir.Value)
	vm.elems = make(map[string]ast.Type)

	for _, instr := range prog.Instrs {
		if err := vm.exec(instr); err != nil {
			return err
		}
	}
	return nil
}

// Var returns the current value of a scalar variable.
func (vm *VM) Var(name string) (ir.Value, bool) {
	v, ok := vm.vars[name]
	return v, ok
}

func (vm *VM) exec(instr ir.Instr) error {
	switch in := instr.(type) {
	case *ir.Store:
		val, err := vm.resolve(in.Src)
		if err != nil {
			return err
		}
		switch dest := in.Dest.(type) {
		case *ir.Temp:
			vm.temps[dest.ID] = val
		case *ir.Var:
			if _, isArray := vm.arrays[dest.Name]; isArray {
				return runtimeErr("cannot assign a scalar to array '%s'", dest.Name)
			}
			vm.vars[dest.Name] = coerce(val, vm.prog.Vars[dest.Name])
		default:
			return runtimeErr("invalid store destination %v", in.Dest)
		}

	case *ir.DeclArray:
		if in.Size <= 0 {
			return runtimeErr("array '%s' has non-positive size %d", in.Name, in.Size)
		}
		arr := make([]ir.Value, in.Size)
		zero := codegen.ZeroValue(in.Elem)
		for i := range arr {
			arr[i] = zero
		}
		vm.arrays[in.Name] = arr
		vm.elems[in.Name] = in.Elem

	case *ir.StoreIndex:
		arr, i, err := vm.element(in.Array, in.Index)
		if err != nil {
			return err
		}
		val, err := vm.resolve(in.Src)
		if err != nil {
			return err
		}
		arr[i] = coerce(val, vm.elems[in.Array])

	case *ir.LoadIndex:
		arr, i, err := vm.element(in.Array, in.Index)
		if err != nil {
			return err
		}
		vm.temps[in.Dest.ID] = arr[i]

	case *ir.BinOp:
		left, err := vm.resolve(in.Left)
		if err != nil {
			return err
		}
		right, err := vm.resolve(in.Right)
		if err != nil {
			return err
		}
		res, err := ir.Arith(in.Op, left, right)
		if errors.Is(err, ir.ErrDivisionByZero) {
			return runtimeErr("division by zero")
		}
		if err != nil {
			return runtimeErr("%v", err)
		}
		vm.temps[in.Dest.ID] = res

	case *ir.Print:
		val, err := vm.resolve(in.Src)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(vm.out, Format(val)+"\n"); err != nil {
			return runtimeErr("write failed: %v", err)
		}

	default:
		return runtimeErr("unknown instruction %s", instr.Opcode())
	}
	return nil
}

func (vm *VM) resolve(v ir.Value) (ir.Value, error) {
	switch val := v.(type) {
	case *ir.Const, *ir.FloatConst, *ir.Str:
		return val, nil
	case *ir.Var:
		if x, ok := vm.vars[val.Name]; ok {
			return x, nil
		}
		return nil, runtimeErr("variable '%s' used before definition", val.Name)
	case *ir.Temp:
		if x, ok := vm.temps[val.ID]; ok {
			return x, nil
		}
		return nil, runtimeErr("temp '%s' used before definition", val)
	}
	return nil, runtimeErr("unsupported value %v", v)
}

func (vm *VM) element(name string, index ir.Value) ([]ir.Value, int64, error) {
	arr, ok := vm.arrays[name]
	if !ok {
		return nil, 0, runtimeErr("array '%s' used before definition", name)
	}
	idx, err := vm.resolve(index)
	if err != nil {
		return nil, 0, err
	}
	c, ok := idx.(*ir.Const)
	if !ok {
		return nil, 0, runtimeErr("index of '%s' is not an integer: %s", name, idx)
	}
	if c.Value < 0 || c.Value >= int64(len(arr)) {
		return nil, 0, runtimeErr("array index %d out of bounds for '%s' of size %d", c.Value, name, len(arr))
	}
	return arr, c.Value, nil
}

// coerce converts an integer stored into a floating location.
func coerce(v ir.Value, to ast.Type) ir.Value {
	if c, ok := v.(*ir.Const); ok && to.IsFloating() {
		return &ir.FloatConst{Value: float64(c.Value)}
	}
	return v
}

// Format renders a value as PRINT shows it: integers bare, floating values
// with a decimal point, strings unquoted.
func Format(v ir.Value) string {
	switch val := v.(type) {
	case *ir.Const:
		return strconv.FormatInt(val.Value, 10)
	case *ir.FloatConst:
		return ir.FormatFloat(val.Value)
	case *ir.Str:
		return val.Value
	}
	return fmt.Sprint(v)
}
