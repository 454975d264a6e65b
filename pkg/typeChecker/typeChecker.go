package typeChecker

import (
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

// Symbol is one entry of the global symbol table. Size is only meaningful
// when IsArray is set.
type Symbol struct {
	Name    string
	Type    ast.Type
	IsArray bool
	Size    int64
	Node    *ast.Node
	used    bool
}

// TypeChecker walks the AST once, top to bottom, building a single flat
// symbol table and annotating every expression node with its type.
type TypeChecker struct {
	symbols map[string]*Symbol
	order   []*Symbol
	cfg     *config.Config
	diags   *util.Diagnostics
}

func NewTypeChecker(cfg *config.Config, diags *util.Diagnostics) *TypeChecker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &TypeChecker{symbols: make(map[string]*Symbol), cfg: cfg, diags: diags}
}

func (tc *TypeChecker) semError(node *ast.Node, format string, args ...interface{}) error {
	return util.Errorf(util.PhaseSemantic, node.Tok, format, args...)
}

// Lookup returns the symbol declared under name, or nil.
func (tc *TypeChecker) Lookup(name string) *Symbol { return tc.symbols[name] }

// Symbols returns the table in declaration order.
func (tc *TypeChecker) Symbols() []*Symbol { return tc.order }

// Check validates the program, stopping at the first semantic error.
func (tc *TypeChecker) Check(stmts []*ast.Node) error {
	for _, stmt := range stmts {
		if err := tc.checkNode(stmt); err != nil {
			return err
		}
	}
	for _, sym := range tc.order {
		if !sym.used {
			tc.diags.Warn(config.WarnUnused, sym.Node.Tok, "Variable '%s' declared but never read", sym.Name)
		}
	}
	return nil
}

func (tc *TypeChecker) checkNode(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.VarDeclNode:
		return tc.checkVarDecl(node, d)
	case ast.AssignNode:
		return tc.checkAssign(node, d)
	case ast.PrintNode:
		_, err := tc.checkExpr(d.Expr)
		return err
	}
	return tc.semError(node, "Unexpected statement %s", node.Type)
}

func (tc *TypeChecker) checkVarDecl(node *ast.Node, d ast.VarDeclNode) error {
	if _, exists := tc.symbols[d.Name]; exists {
		return tc.semError(node, "Variable '%s' already declared", d.Name)
	}
	if d.Type == ast.TypeNone {
		return tc.semError(node, "Variable '%s' has no type", d.Name)
	}

	if d.IsArray {
		if !d.HasSize || d.ArraySize <= 0 {
			return tc.semError(node, "Array '%s' must have a positive size", d.Name)
		}
		if d.Init != nil {
			return tc.semError(node, "Array '%s' cannot have an initializer", d.Name)
		}
	}

	// The initializer is checked before the name is registered, so a
	// declaration cannot read its own variable.
	if d.Init != nil {
		exprType, err := tc.checkExpr(d.Init)
		if err != nil {
			return err
		}
		if !isAssignable(exprType, d.Type) {
			return tc.semError(d.Init, "Type mismatch: cannot assign %s to %s variable '%s'", exprType, d.Type, d.Name)
		}
	} else if !d.IsArray {
		if tc.cfg.IsFeatureEnabled(config.FeatStrictDecl) {
			return tc.semError(node, "Variable '%s' must be initialized", d.Name)
		}
		tc.diags.Warn(config.WarnImplicitZero, node.Tok, "Variable '%s' is implicitly initialized to zero", d.Name)
	}

	sym := &Symbol{Name: d.Name, Type: d.Type, IsArray: d.IsArray, Size: d.ArraySize, Node: node}
	tc.symbols[d.Name] = sym
	tc.order = append(tc.order, sym)
	return nil
}

func (tc *TypeChecker) checkAssign(node *ast.Node, d ast.AssignNode) error {
	var targetType ast.Type
	var name string

	switch t := d.Target.Data.(type) {
	case ast.VariableNode:
		name = t.Name
		sym, ok := tc.symbols[name]
		if !ok {
			return tc.semError(d.Target, "Variable '%s' not declared", name)
		}
		if sym.IsArray {
			return tc.semError(d.Target, "Cannot assign to array '%s' without an index", name)
		}
		targetType = sym.Type
	case ast.ArrayAccessNode:
		name = t.Name
		sym, err := tc.resolveArray(d.Target, t)
		if err != nil {
			return err
		}
		targetType = sym.Type
	default:
		return tc.semError(d.Target, "Invalid assignment target")
	}
	d.Target.Typ = targetType

	exprType, err := tc.checkExpr(d.Expr)
	if err != nil {
		return err
	}
	if !isAssignable(exprType, targetType) {
		return tc.semError(d.Expr, "Type mismatch: cannot assign %s to %s variable '%s'", exprType, targetType, name)
	}

	if v, ok := d.Expr.Data.(ast.VariableNode); ok && d.Target.Type == ast.Variable && v.Name == name {
		tc.diags.Warn(config.WarnExtra, node.Tok, "Self-assignment of '%s'", name)
	}
	return nil
}

// resolveArray checks an indexed reference and its index expression.
func (tc *TypeChecker) resolveArray(node *ast.Node, d ast.ArrayAccessNode) (*Symbol, error) {
	sym, ok := tc.symbols[d.Name]
	if !ok {
		return nil, tc.semError(node, "Variable '%s' not declared", d.Name)
	}
	if !sym.IsArray {
		return nil, tc.semError(node, "Variable '%s' is not an array", d.Name)
	}
	indexType, err := tc.checkExpr(d.Index)
	if err != nil {
		return nil, err
	}
	if indexType != ast.TypeInt {
		return nil, tc.semError(d.Index, "Array index must be int, got %s", indexType)
	}
	return sym, nil
}

func (tc *TypeChecker) checkExpr(node *ast.Node) (ast.Type, error) {
	typ, err := tc.exprType(node)
	if err != nil {
		return ast.TypeNone, err
	}
	node.Typ = typ
	return typ, nil
}

func (tc *TypeChecker) exprType(node *ast.Node) (ast.Type, error) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return d.ValueType, nil
	case ast.StringNode:
		return ast.TypeString, nil
	case ast.VariableNode:
		sym, ok := tc.symbols[d.Name]
		if !ok {
			return ast.TypeNone, tc.semError(node, "Variable '%s' not declared", d.Name)
		}
		if sym.IsArray {
			return ast.TypeNone, tc.semError(node, "Array '%s' used without an index", d.Name)
		}
		sym.used = true
		return sym.Type, nil
	case ast.ArrayAccessNode:
		sym, err := tc.resolveArray(node, d)
		if err != nil {
			return ast.TypeNone, err
		}
		sym.used = true
		return sym.Type, nil
	case ast.BinOpNode:
		left, err := tc.checkExpr(d.Left)
		if err != nil {
			return ast.TypeNone, err
		}
		right, err := tc.checkExpr(d.Right)
		if err != nil {
			return ast.TypeNone, err
		}
		if !left.IsNumeric() || !right.IsNumeric() {
			return ast.TypeNone, tc.semError(node, "Operator '%s' requires numeric operands, got %s and %s",
				ast.OpString(d.Op), left, right)
		}
		return Widen(left, right), nil
	}
	return ast.TypeNone, tc.semError(node, "Unexpected expression %s", node.Type)
}

// Widen returns the result type of arithmetic on two numeric types, following
// int < float < double.
func Widen(a, b ast.Type) ast.Type {
	if a == ast.TypeDouble || b == ast.TypeDouble {
		return ast.TypeDouble
	}
	if a == ast.TypeFloat || b == ast.TypeFloat {
		return ast.TypeFloat
	}
	return ast.TypeInt
}

// isAssignable reports whether a value of type src may be stored into dst.
// Widening conversions are accepted, narrowing ones are not.
func isAssignable(src, dst ast.Type) bool {
	if src == dst {
		return true
	}
	switch dst {
	case ast.TypeFloat:
		return src == ast.TypeInt
	case ast.TypeDouble:
		return src == ast.TypeInt || src == ast.TypeFloat
	}
	return false
}
