package codegen

import (
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ir"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

// Context lowers a type-checked AST into IR. Each compilation needs its own
// Context; the temporary counter is never shared.
type Context struct {
	prog      *ir.Program
	tempCount int
	cfg       *config.Config
}

func NewContext(cfg *config.Config) *Context {
	return &Context{prog: ir.NewProgram(), cfg: cfg}
}

func (ctx *Context) newTemp(typ ast.Type) *ir.Temp {
	ctx.tempCount++
	ctx.prog.Temps[ctx.tempCount] = typ
	return &ir.Temp{ID: ctx.tempCount}
}

func (ctx *Context) addInstr(instr ir.Instr) {
	ctx.prog.Instrs = append(ctx.prog.Instrs, instr)
}

// GenerateIR lowers the statements in program order.
func (ctx *Context) GenerateIR(stmts []*ast.Node) (*ir.Program, error) {
	for _, stmt := range stmts {
		if err := ctx.codegenStmt(stmt); err != nil {
			return nil, err
		}
	}
	ctx.prog.TempCount = ctx.tempCount
	return ctx.prog, nil
}

// ZeroValue is the value an uninitialized scalar of typ starts with.
func ZeroValue(typ ast.Type) ir.Value {
	switch typ {
	case ast.TypeFloat, ast.TypeDouble:
		return &ir.FloatConst{Value: 0}
	case ast.TypeString:
		return &ir.Str{Value: ""}
	}
	return &ir.Const{Value: 0}
}

func (ctx *Context) codegenStmt(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.VarDeclNode:
		return ctx.codegenVarDecl(d)

	case ast.AssignNode:
		switch t := d.Target.Data.(type) {
		case ast.VariableNode:
			val, err := ctx.codegenExpr(d.Expr)
			if err != nil {
				return err
			}
			ctx.addInstr(&ir.Store{Dest: &ir.Var{Name: t.Name}, Src: val})
			return nil
		case ast.ArrayAccessNode:
			index, err := ctx.codegenExpr(t.Index)
			if err != nil {
				return err
			}
			val, err := ctx.codegenExpr(d.Expr)
			if err != nil {
				return err
			}
			ctx.addInstr(&ir.StoreIndex{Array: t.Name, Index: index, Src: val})
			return nil
		}
		return util.Errorf(util.PhaseIR, d.Target.Tok, "invalid assignment target %s", d.Target.Type)

	case ast.PrintNode:
		val, err := ctx.codegenExpr(d.Expr)
		if err != nil {
			return err
		}
		ctx.addInstr(&ir.Print{Src: val})
		return nil
	}
	return util.Errorf(util.PhaseIR, node.Tok, "unexpected statement %s", node.Type)
}

func (ctx *Context) codegenVarDecl(d ast.VarDeclNode) error {
	if d.IsArray {
		ctx.prog.Arrays[d.Name] = ir.ArrayInfo{Elem: d.Type, Size: d.ArraySize}
		ctx.addInstr(&ir.DeclArray{Name: d.Name, Elem: d.Type, Size: d.ArraySize})
		return nil
	}

	ctx.prog.Vars[d.Name] = d.Type
	val := ZeroValue(d.Type)
	if d.Init != nil {
		var err error
		if val, err = ctx.codegenExpr(d.Init); err != nil {
			return err
		}
	}
	ctx.addInstr(&ir.Store{Dest: &ir.Var{Name: d.Name}, Src: val})
	return nil
}

var binaryOps = map[token.Type]ir.Operator{
	token.Plus:  ir.Add,
	token.Minus: ir.Sub,
	token.Star:  ir.Mul,
	token.Slash: ir.Div,
}

// codegenExpr returns a literal, a variable or a fresh temporary holding the
// value of node. Subexpressions are lowered left before right.
func (ctx *Context) codegenExpr(node *ast.Node) (ir.Value, error) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		if d.ValueType == ast.TypeInt {
			return &ir.Const{Value: d.Int}, nil
		}
		return &ir.FloatConst{Value: d.Float}, nil

	case ast.StringNode:
		return &ir.Str{Value: d.Value}, nil

	case ast.VariableNode:
		return &ir.Var{Name: d.Name}, nil

	case ast.ArrayAccessNode:
		index, err := ctx.codegenExpr(d.Index)
		if err != nil {
			return nil, err
		}
		res := ctx.newTemp(ctx.elemType(d.Name, node))
		ctx.addInstr(&ir.LoadIndex{Dest: res, Array: d.Name, Index: index})
		return res, nil

	case ast.BinOpNode:
		op, ok := binaryOps[d.Op]
		if !ok {
			return nil, util.Errorf(util.PhaseIR, node.Tok, "unknown operator %s", d.Op)
		}
		left, err := ctx.codegenExpr(d.Left)
		if err != nil {
			return nil, err
		}
		right, err := ctx.codegenExpr(d.Right)
		if err != nil {
			return nil, err
		}
		typ := node.Typ
		if typ == ast.TypeNone {
			typ = ctx.widen(left, right)
		}
		res := ctx.newTemp(typ)
		ctx.addInstr(&ir.BinOp{Dest: res, Op: op, Left: left, Right: right})
		return res, nil
	}
	return nil, util.Errorf(util.PhaseIR, node.Tok, "unexpected expression %s", node.Type)
}

func (ctx *Context) elemType(name string, node *ast.Node) ast.Type {
	if node.Typ != ast.TypeNone {
		return node.Typ
	}
	return ctx.prog.Arrays[name].Elem
}

// widen recovers a result type for trees that skipped the type checker.
func (ctx *Context) widen(left, right ir.Value) ast.Type {
	l, r := ctx.prog.TypeOf(left), ctx.prog.TypeOf(right)
	switch {
	case l == ast.TypeDouble || r == ast.TypeDouble:
		return ast.TypeDouble
	case l == ast.TypeFloat || r == ast.TypeFloat:
		return ast.TypeFloat
	}
	return ast.TypeInt
}
