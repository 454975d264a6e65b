package parser

import (
	"strconv"
	"testing"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/lexer"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
	"github.com/google/go-cmp/cmp"
)

func parse(t *testing.T, src string) ([]*ast.Node, error) {
	t.Helper()
	toks, err := lexer.Tokenize(src, nil)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	return NewParser(toks).Parse()
}

// sexpr renders an expression tree with explicit grouping.
func sexpr(n *ast.Node) string {
	switch d := n.Data.(type) {
	case ast.NumberNode:
		if d.ValueType == ast.TypeInt {
			return strconv.FormatInt(d.Int, 10)
		}
		return "f"
	case ast.StringNode:
		return "'" + d.Value + "'"
	case ast.VariableNode:
		return d.Name
	case ast.ArrayAccessNode:
		return d.Name + "[" + sexpr(d.Index) + "]"
	case ast.BinOpNode:
		return "(" + sexpr(d.Left) + " " + ast.OpString(d.Op) + " " + sexpr(d.Right) + ")"
	}
	return "?"
}

func TestExpressionPrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"5 + 3 * 2", "(5 + (3 * 2))"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"8 / 4 / 2", "((8 / 4) / 2)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"a * b + c / d - e", "(((a * b) + (c / d)) - e)"},
		{"xs[i + 1] * 2", "(xs[(i + 1)] * 2)"},
		{"((7))", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			stmts, err := parse(t, "print("+tt.expr+");")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			got := sexpr(stmts[0].Data.(ast.PrintNode).Expr)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	stmts, err := parse(t, `int a = 1; float b; string s = "x"; double xs[4]; xs[2] = a; a = 3; print(s);`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var got []string
	for _, s := range stmts {
		got = append(got, s.Type.String())
	}
	want := []string{"VarDecl", "VarDecl", "VarDecl", "VarDecl", "Assign", "Assign", "Print"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statement kinds mismatch (-want +got):\n%s", diff)
	}

	arr := stmts[3].Data.(ast.VarDeclNode)
	if diff := cmp.Diff(ast.VarDeclNode{Name: "xs", Type: ast.TypeDouble, IsArray: true, ArraySize: 4, HasSize: true}, arr); diff != "" {
		t.Errorf("array declaration mismatch (-want +got):\n%s", diff)
	}
	if b := stmts[1].Data.(ast.VarDeclNode); b.Init != nil || b.Type != ast.TypeFloat {
		t.Errorf("float b parsed as %+v", b)
	}
	if target := stmts[4].Data.(ast.AssignNode).Target; target.Type != ast.ArrayAccess {
		t.Errorf("xs[2] = a targets %s", target.Type)
	}
	if stmts[0].Pos() != 0 || stmts[1].Pos() != 11 {
		t.Errorf("declarations reported at %d and %d", stmts[0].Pos(), stmts[1].Pos())
	}
}

func TestFloatLiteral(t *testing.T) {
	stmts, err := parse(t, "double d = 2.5;")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	num := stmts[0].Data.(ast.VarDeclNode).Init.Data.(ast.NumberNode)
	if num.ValueType != ast.TypeFloat || num.Float != 2.5 {
		t.Errorf("got %+v", num)
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name         string
		src          string
		wantPos      int
		wantExpected string
		wantMsg      string
	}{
		{"missing semicolon", "int a = 1", 9, "SEMI", "expected SEMI, got EOF"},
		{"missing name", "int = 1;", 4, "ID", "expected ID, got EQUALS"},
		{"array initializer", "int xs[3] = 1;", 0, "", "array initialization not supported"},
		{"array size must be a literal", "int xs[n];", 7, "NUM", "expected NUM, got ID"},
		{"float array size", "int xs[2.0];", 7, "NUM", "expected NUM, got FLOAT_NUM"},
		{"bad statement", "5 = a;", 0, "", "invalid statement starting with NUM"},
		{"print without parens", "print a;", 6, "LPAREN", "expected LPAREN, got ID"},
		{"unbalanced paren", "print((1 + 2);", 13, "RPAREN", "expected RPAREN, got SEMI"},
		{"dangling operator", "print(1 + );", 10, "", "invalid factor RPAREN"},
		{"assignment without equals", "a 1;", 2, "EQUALS", "expected EQUALS, got NUM"},
		{"integer overflow", "int a = 99999999999999999999;", 8, "", "integer literal '99999999999999999999' out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.src)
			ue, ok := err.(*util.Error)
			if !ok {
				t.Fatalf("expected *util.Error, got %v", err)
			}
			got := [...]interface{}{ue.Phase, ue.Pos, ue.Expected, ue.Msg}
			want := [...]interface{}{util.PhaseParsing, tt.wantPos, tt.wantExpected, tt.wantMsg}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("error mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewParserAddsEOF(t *testing.T) {
	toks := []token.Token{
		{Type: token.Print, Value: "print", Pos: 0, Len: 5},
		{Type: token.LParen, Pos: 5, Len: 1},
		{Type: token.Number, Value: "1", Pos: 6, Len: 1},
		{Type: token.RParen, Pos: 7, Len: 1},
		{Type: token.Semi, Pos: 8, Len: 1},
	}
	stmts, err := NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(stmts) != 1 {
		t.Errorf("got %d statements, want 1", len(stmts))
	}

	if stmts, err := NewParser(nil).Parse(); err != nil || len(stmts) != 0 {
		t.Errorf("empty stream: %v, %v", stmts, err)
	}
}
