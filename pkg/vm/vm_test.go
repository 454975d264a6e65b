package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"github.com/google/go-cmp/cmp"
)

func run(prog *ir.Program) (string, error) {
	var out bytes.Buffer
	err := New(&out).Run(prog)
	return out.String(), err
}

func program(instrs ...ir.Instr) *ir.Program {
	p := ir.NewProgram()
	p.Instrs = instrs
	return p
}

func TestRun(t *testing.T) {
	t1, t2, t3 := &ir.Temp{ID: 1}, &ir.Temp{ID: 2}, &ir.Temp{ID: 3}
	prog := program(
		&ir.BinOp{Dest: t1, Op: ir.Mul, Left: &ir.Const{Value: 3}, Right: &ir.Const{Value: 2}},
		&ir.BinOp{Dest: t2, Op: ir.Add, Left: &ir.Const{Value: 5}, Right: t1},
		&ir.Store{Dest: &ir.Var{Name: "a"}, Src: t2},
		&ir.Print{Src: &ir.Var{Name: "a"}},
		&ir.BinOp{Dest: t3, Op: ir.Div, Left: &ir.Var{Name: "a"}, Right: &ir.FloatConst{Value: 2}},
		&ir.Print{Src: t3},
		&ir.Print{Src: &ir.Str{Value: "done"}},
	)
	got, err := run(prog)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff("11\n5.5\ndone\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestArrays(t *testing.T) {
	prog := program(
		&ir.DeclArray{Name: "xs", Elem: ast.TypeFloat, Size: 3},
		&ir.DeclArray{Name: "ss", Elem: ast.TypeString, Size: 2},
		&ir.StoreIndex{Array: "xs", Index: &ir.Const{Value: 1}, Src: &ir.Const{Value: 4}},
		&ir.LoadIndex{Dest: &ir.Temp{ID: 1}, Array: "xs", Index: &ir.Const{Value: 1}},
		&ir.Print{Src: &ir.Temp{ID: 1}},
		&ir.LoadIndex{Dest: &ir.Temp{ID: 2}, Array: "xs", Index: &ir.Const{Value: 0}},
		&ir.Print{Src: &ir.Temp{ID: 2}},
		&ir.LoadIndex{Dest: &ir.Temp{ID: 3}, Array: "ss", Index: &ir.Const{Value: 1}},
		&ir.Print{Src: &ir.Temp{ID: 3}},
	)
	got, err := run(prog)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff("4.0\n0.0\n\n", got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestFloatVariablesHoldFloats(t *testing.T) {
	prog := program(
		&ir.Store{Dest: &ir.Var{Name: "f"}, Src: &ir.Const{Value: 3}},
		&ir.Print{Src: &ir.Var{Name: "f"}},
	)
	prog.Vars["f"] = ast.TypeFloat

	vm := New(&bytes.Buffer{})
	if err := vm.Run(prog); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	v, ok := vm.Var("f")
	if !ok {
		t.Fatal("f not stored")
	}
	if diff := cmp.Diff(ir.Value(&ir.FloatConst{Value: 3}), v); diff != "" {
		t.Errorf("f mismatch (-want +got):\n%s", diff)
	}
}

func TestVariablesAndTempsDoNotAlias(t *testing.T) {
	prog := program(
		&ir.Store{Dest: &ir.Var{Name: "t1"}, Src: &ir.Const{Value: 10}},
		&ir.BinOp{Dest: &ir.Temp{ID: 1}, Op: ir.Add, Left: &ir.Var{Name: "t1"}, Right: &ir.Const{Value: 1}},
		&ir.Print{Src: &ir.Var{Name: "t1"}},
		&ir.Print{Src: &ir.Temp{ID: 1}},
	)
	got, err := run(prog)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got != "10\n11\n" {
		t.Errorf("got %q", got)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		prog    *ir.Program
		wantMsg string
		wantOut string
	}{
		{
			name: "division by zero",
			prog: program(
				&ir.Print{Src: &ir.Const{Value: 1}},
				&ir.BinOp{Dest: &ir.Temp{ID: 1}, Op: ir.Div, Left: &ir.Const{Value: 1}, Right: &ir.Const{Value: 0}},
				&ir.Print{Src: &ir.Temp{ID: 1}},
			),
			wantMsg: "division by zero",
			wantOut: "1\n",
		},
		{
			name: "float division by zero",
			prog: program(
				&ir.BinOp{Dest: &ir.Temp{ID: 1}, Op: ir.Div, Left: &ir.FloatConst{Value: 1}, Right: &ir.FloatConst{Value: 0}},
			),
			wantMsg: "division by zero",
		},
		{
			name: "index past the end",
			prog: program(
				&ir.DeclArray{Name: "xs", Elem: ast.TypeInt, Size: 2},
				&ir.StoreIndex{Array: "xs", Index: &ir.Const{Value: 2}, Src: &ir.Const{Value: 1}},
			),
			wantMsg: "array index 2 out of bounds for 'xs' of size 2",
		},
		{
			name: "negative index",
			prog: program(
				&ir.DeclArray{Name: "xs", Elem: ast.TypeInt, Size: 2},
				&ir.LoadIndex{Dest: &ir.Temp{ID: 1}, Array: "xs", Index: &ir.Const{Value: -1}},
			),
			wantMsg: "array index -1 out of bounds for 'xs' of size 2",
		},
		{
			name:    "undefined variable",
			prog:    program(&ir.Print{Src: &ir.Var{Name: "x"}}),
			wantMsg: "variable 'x' used before definition",
		},
		{
			name:    "undefined temp",
			prog:    program(&ir.Print{Src: &ir.Temp{ID: 7}}),
			wantMsg: "temp 't7' used before definition",
		},
		{
			name:    "undeclared array",
			prog:    program(&ir.LoadIndex{Dest: &ir.Temp{ID: 1}, Array: "xs", Index: &ir.Const{Value: 0}}),
			wantMsg: "array 'xs' used before definition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(tt.prog)
			ue, ok := err.(*util.Error)
			if !ok {
				t.Fatalf("expected *util.Error, got %v", err)
			}
			if ue.Phase != util.PhaseRuntime || ue.Msg != tt.wantMsg {
				t.Errorf("got %s error %q, want runtime %q", ue.Phase, ue.Msg, tt.wantMsg)
			}
			if out != tt.wantOut {
				t.Errorf("output before failure = %q, want %q", out, tt.wantOut)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	got := []string{
		Format(&ir.Const{Value: -3}),
		Format(&ir.FloatConst{Value: 2}),
		Format(&ir.FloatConst{Value: 0.1}),
		Format(&ir.Str{Value: `say "hi"`}),
	}
	want := []string{"-3", "2.0", "0.1", `say "hi"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRunResetsState(t *testing.T) {
	vm := New(&strings.Builder{})
	if err := vm.Run(program(&ir.Store{Dest: &ir.Var{Name: "a"}, Src: &ir.Const{Value: 1}})); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := vm.Run(program(&ir.Print{Src: &ir.Var{Name: "a"}})); err == nil {
		t.Error("second run saw the first run's variables")
	}
}
