package codegen

import (
	"strings"
	"testing"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"github.com/google/go-cmp/cmp"
)

func TestLLVMGenerateIR(t *testing.T) {
	prog := ir.FoldConstants(lower(t, "int a = 5 + 3 * 2; print(a);"), nil)
	got, err := (&llvmBackend{}).GenerateIR(prog, config.NewConfig())
	if err != nil {
		t.Fatalf("GenerateIR failed: %v", err)
	}
	want := `; --- MiniC LLVM IR ---
declare i32 @printf(i8*, ...)

@.fmt.int = private unnamed_addr constant [6 x i8] c"%lld\0A\00"
@.fmt.str = private unnamed_addr constant [4 x i8] c"%s\0A\00"

define i32 @main() {
entry:
  %a.addr = alloca i64
  store i64 11, i64* %a.addr
  %r1 = load i64, i64* %a.addr
  %r2 = call i32 (i8*, ...) @printf(i8* getelementptr inbounds ([6 x i8], [6 x i8]* @.fmt.int, i64 0, i64 0), i64 %r1)
  ret i32 0
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LLVM mismatch (-want +got):\n%s", diff)
	}
}

func TestLLVMLowering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "int division floors",
			src:  "int a = 7; print(a / 2);",
			want: []string{"sdiv i64", "srem i64", "icmp slt i64", "zext i1"},
		},
		{
			name: "mixed arithmetic widens",
			src:  "int a = 7; double d = 2; print(a / d);",
			want: []string{"%d.addr = alloca double", "sitofp i64 2 to double", "sitofp i64 %r", "fdiv double", "call void @minic.print_double(double %r"},
		},
		{
			name: "int stored into float",
			src:  "float f = 3;",
			want: []string{"%f.addr = alloca double", "sitofp i64 3 to double", "store double %r1, double* %f.addr"},
		},
		{
			name: "strings become globals",
			src:  `string s = "hi"; print(s); print("hi");`,
			want: []string{`@.str.0 = private unnamed_addr constant [3 x i8] c"hi\00"`, "%s.addr = alloca i8*", "@.fmt.str"},
		},
		{
			name: "arrays",
			src:  "int xs[3]; xs[1] = 4; print(xs[1]);",
			want: []string{
				"%xs.addr = alloca [3 x i64]",
				"store [3 x i64] zeroinitializer, [3 x i64]* %xs.addr",
				"getelementptr inbounds [3 x i64], [3 x i64]* %xs.addr, i64 0, i64 1",
			},
		},
		{
			name: "string arrays hold empty strings",
			src:  "string xs[2];",
			want: []string{`c"\00"`, "store i8* getelementptr"},
		},
		{
			name: "non-ascii names are quoted",
			src:  "int é = 1;",
			want: []string{`%"é.addr" = alloca i64`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (&llvmBackend{}).GenerateIR(lower(t, tt.src), config.NewConfig())
			if err != nil {
				t.Fatalf("GenerateIR failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output lacks %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestPrintDoubleHelperOnlyWhenNeeded(t *testing.T) {
	tests := []struct {
		src     string
		doubles bool
	}{
		{"int a = 1; print(a);", false},
		{`print("x");`, false},
		{"double d; d = 1;", false},
		{"float f = 1.5; print(f);", true},
		{"print(1 + 0.5);", true},
		{"double ds[2]; print(ds[0]);", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := lower(t, tt.src)
			llvm, err := (&llvmBackend{}).GenerateIR(prog, config.NewConfig())
			if err != nil {
				t.Fatalf("llvm: %v", err)
			}
			qbe, err := (&qbeBackend{}).GenerateIR(prog, config.NewConfig())
			if err != nil {
				t.Fatalf("qbe: %v", err)
			}
			checks := map[string]bool{
				"define private void @minic.print_double": strings.Contains(llvm, "define private void @minic.print_double"),
				"@.fmt.prec":                              strings.Contains(llvm, "@.fmt.prec = "),
				"function $minic_print_double":            strings.Contains(qbe, "function $minic_print_double"),
				"$fmt_prec":                               strings.Contains(qbe, "data $fmt_prec = "),
			}
			for what, found := range checks {
				if found != tt.doubles {
					t.Errorf("%s present = %v, want %v", what, found, tt.doubles)
				}
			}
			if tt.doubles && strings.Contains(llvm, "%g") {
				t.Errorf("llvm still prints with %%g:\n%s", llvm)
			}
		})
	}
}

func TestLLVMSingleStringGlobal(t *testing.T) {
	got, err := (&llvmBackend{}).GenerateIR(lower(t, `print("a"); print("a"); print("b");`), config.NewConfig())
	if err != nil {
		t.Fatalf("GenerateIR failed: %v", err)
	}
	if n := strings.Count(got, "@.str.0 = "); n != 1 {
		t.Errorf("@.str.0 defined %d times", n)
	}
	if !strings.Contains(got, "@.str.1 = ") || strings.Contains(got, "@.str.2 = ") {
		t.Errorf("expected exactly two string globals:\n%s", got)
	}
}

func TestBackendUseBeforeDefinition(t *testing.T) {
	tests := []struct {
		name  string
		instr ir.Instr
		want  string
	}{
		{"temp", &ir.Print{Src: &ir.Temp{ID: 4}}, "temp 't4' used before definition"},
		{"variable", &ir.Print{Src: &ir.Var{Name: "ghost"}}, "variable 'ghost' used before definition"},
		{"array", &ir.LoadIndex{Dest: &ir.Temp{ID: 1}, Array: "xs", Index: &ir.Const{Value: 0}}, "array 'xs' used before definition"},
	}

	backends := map[string]func(*ir.Program) error{
		"llvm": func(p *ir.Program) error { _, err := (&llvmBackend{}).GenerateIR(p, config.NewConfig()); return err },
		"qbe":  func(p *ir.Program) error { _, err := (&qbeBackend{}).GenerateIR(p, config.NewConfig()); return err },
	}

	for name, gen := range backends {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				prog := ir.NewProgram()
				prog.Instrs = []ir.Instr{tt.instr}
				err := gen(prog)
				ue, ok := err.(*util.Error)
				if !ok || ue.Phase != util.PhaseCodegen || !strings.Contains(ue.Msg, tt.want) {
					t.Errorf("got %v, want codegen error containing %q", err, tt.want)
				}
			})
		}
	}
}

func TestBackendUnknownOperator(t *testing.T) {
	prog := ir.NewProgram()
	prog.Instrs = []ir.Instr{&ir.BinOp{Dest: &ir.Temp{ID: 1}, Op: "%", Left: &ir.Const{Value: 1}, Right: &ir.Const{Value: 2}}}
	if _, err := (&llvmBackend{}).GenerateIR(prog, config.NewConfig()); err == nil {
		t.Error("llvm accepted an unknown operator")
	}
	if _, err := (&qbeBackend{}).GenerateIR(prog, config.NewConfig()); err == nil {
		t.Error("qbe accepted an unknown operator")
	}
}

func TestQBEGenerateIR(t *testing.T) {
	prog := ir.FoldConstants(lower(t, "int a = 5 + 3 * 2; print(a);"), nil)
	got, err := (&qbeBackend{}).GenerateIR(prog, config.NewConfig())
	if err != nil {
		t.Fatalf("GenerateIR failed: %v", err)
	}
	want := `data $fmt_int = { b "%lld\n", b 0 }
data $fmt_str = { b "%s\n", b 0 }

export function w $main() {
@start
	%a.addr =l alloc8 8
	storel 11, %a.addr
	%.t1 =l loadl %a.addr
	%.t2 =w call $printf(l $fmt_int, ..., l %.t1)
	ret 0
}
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("QBE mismatch (-want +got):\n%s", diff)
	}
}

func TestQBELowering(t *testing.T) {
	tests := []struct {
		name string
		src  string
		cfg  func(*config.Config)
		want []string
		not  []string
	}{
		{
			name: "floor division",
			src:  "int a = 7; print(a / 2);",
			want: []string{"div %", "rem %", "csltl", "and %"},
		},
		{
			name: "floating arithmetic",
			src:  "double d = 1.5; print(d * 2);",
			want: []string{"stored d_1.5", "sltof 2", "=d mul", "call $minic_print_double(d %.t"},
		},
		{
			name: "zeroed array",
			src:  "float xs[3]; xs[2] = 1;",
			want: []string{"%xs.addr =l alloc8 24", "call $memset(l %xs.addr, w 0, l 24)", "sltof 1"},
		},
		{
			name: "uninitialized array",
			src:  "int xs[3];",
			cfg:  func(c *config.Config) { c.SetFeature(config.FeatZeroArrays, false) },
			want: []string{"alloc8 24"},
			not:  []string{"memset"},
		},
		{
			name: "strings",
			src:  `print("a\"b");`,
			want: []string{`data $str0 = { b "a\"b", b 0 }`, "$fmt_str, ..., l $str0"},
		},
		{
			name: "non-ascii names get synthetic slots",
			src:  "int é = 1; print(é);",
			want: []string{"%.v0 =l alloc8 8", "storel 1, %.v0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			got, err := (&qbeBackend{}).GenerateIR(lower(t, tt.src), cfg)
			if err != nil {
				t.Fatalf("GenerateIR failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output lacks %q:\n%s", w, got)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Errorf("output contains %q:\n%s", n, got)
				}
			}
		})
	}
}

func TestDeclaredTypeWinsOverValue(t *testing.T) {
	prog := ir.NewProgram()
	prog.Vars["x"] = ast.TypeDouble
	prog.Instrs = []ir.Instr{&ir.Store{Dest: &ir.Var{Name: "x"}, Src: &ir.Const{Value: 2}}}

	got, err := (&llvmBackend{}).GenerateIR(prog, config.NewConfig())
	if err != nil {
		t.Fatalf("GenerateIR failed: %v", err)
	}
	if !strings.Contains(got, "%x.addr = alloca double") || !strings.Contains(got, "sitofp i64 2 to double") {
		t.Errorf("int literal not widened into double slot:\n%s", got)
	}
}
