// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"fmt"
	"io"
	"reflect"
	"regexp"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/sanity-io/litter"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	String
	Variable
	ArrayAccess
	BinOp

	// Statements
	VarDecl
	Assign
	Print
)

var nodeTypeNames = [...]string{
	Number: "Number", String: "StringLiteral", Variable: "Variable", ArrayAccess: "ArrayAccess",
	BinOp: "BinOp", VarDecl: "VarDecl", Assign: "Assign", Print: "Print",
}

func (t NodeType) String() string { return nodeTypeNames[t] }

// Node represents a node in the Abstract Syntax Tree. Data holds exactly one
// of the *Node data structs below, selected by Type.
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
	Typ  Type // Set by the type checker on expressions
}

// Pos is the source offset the node is reported at.
func (n *Node) Pos() int { return n.Tok.Pos }

// Type is a MiniC value type.
type Type int

const (
	TypeNone Type = iota
	TypeInt
	TypeFloat
	TypeDouble
	TypeString
)

var typeNames = [...]string{TypeNone: "none", TypeInt: "int", TypeFloat: "float", TypeDouble: "double", TypeString: "string"}

func (t Type) String() string { return typeNames[t] }

// IsNumeric reports whether t takes part in arithmetic.
func (t Type) IsNumeric() bool { return t == TypeInt || t == TypeFloat || t == TypeDouble }

// IsFloating reports whether values of t are stored as floating point.
func (t Type) IsFloating() bool { return t == TypeFloat || t == TypeDouble }

// TypeFromKeyword maps a declaration keyword to its type.
func TypeFromKeyword(t token.Type) Type {
	switch t {
	case token.Int:
		return TypeInt
	case token.Float:
		return TypeFloat
	case token.Double:
		return TypeDouble
	case token.StringKeyword:
		return TypeString
	}
	return TypeNone
}

// --- Node Data Structs ---

// NumberNode holds an integer literal in Int or a floating literal in Float,
// depending on ValueType.
type NumberNode struct {
	Int       int64
	Float     float64
	ValueType Type
}
type StringNode struct{ Value string }
type VariableNode struct{ Name string }
type ArrayAccessNode struct {
	Name  string
	Index *Node
}
type BinOpNode struct {
	Op    token.Type
	Left  *Node
	Right *Node
}
type VarDeclNode struct {
	Name      string
	Type      Type
	Init      *Node
	IsArray   bool
	ArraySize int64
	HasSize   bool
}

// AssignNode targets either a Variable or an ArrayAccess node.
type AssignNode struct {
	Target *Node
	Expr   *Node
}
type PrintNode struct{ Expr *Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewInt(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Int: value, ValueType: TypeInt})
}
func NewFloat(tok token.Token, value float64) *Node {
	return newNode(tok, Number, NumberNode{Float: value, ValueType: TypeFloat})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewVariable(tok token.Token, name string) *Node {
	return newNode(tok, Variable, VariableNode{Name: name})
}
func NewArrayAccess(tok token.Token, name string, index *Node) *Node {
	return newNode(tok, ArrayAccess, ArrayAccessNode{Name: name, Index: index})
}
func NewBinOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinOp, BinOpNode{Op: op, Left: left, Right: right})
}
func NewVarDecl(tok token.Token, name string, typ Type, init *Node, isArray bool, size int64, hasSize bool) *Node {
	return newNode(tok, VarDecl, VarDeclNode{
		Name: name, Type: typ, Init: init, IsArray: isArray, ArraySize: size, HasSize: hasSize,
	})
}
func NewAssign(tok token.Token, target, expr *Node) *Node {
	return newNode(tok, Assign, AssignNode{Target: target, Expr: expr})
}
func NewPrint(tok token.Token, expr *Node) *Node {
	return newNode(tok, Print, PrintNode{Expr: expr})
}

// OpString renders a binary operator token as its source spelling.
func OpString(op token.Type) string {
	switch op {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	}
	return "?"
}

var dumpOptions = litter.Options{
	StripPackageNames: true,
	HidePrivateFields: true,
	HideZeroValues:    true,
	FieldExclusions:   regexp.MustCompile(`^Tok$`),
	Separator:         " ",
	DumpFunc: func(v reflect.Value, w io.Writer) bool {
		if v.Kind() != reflect.Int || !v.CanInterface() {
			return false
		}
		s, ok := v.Interface().(fmt.Stringer)
		if !ok {
			return false
		}
		io.WriteString(w, s.String())
		return true
	},
}

// Dump renders statements for diagnostic display.
func Dump(stmts []*Node) string {
	return dumpOptions.Sdump(stmts)
}
