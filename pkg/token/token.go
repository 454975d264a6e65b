package token

import "strconv"

type Type int

const (
	EOF Type = iota
	Ident
	Number
	FloatNumber
	String
	Int
	Float
	Double
	StringKeyword
	Print
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Plus
	Minus
	Star
	Slash
	Eq
)

var KeywordMap = map[string]Type{
	"int":    Int,
	"float":  Float,
	"double": Double,
	"string": StringKeyword,
	"print":  Print,
}

// PunctMap maps every single-character punctuation rune to its token type.
var PunctMap = map[rune]Type{
	'(': LParen,
	')': RParen,
	'{': LBrace,
	'}': RBrace,
	'[': LBracket,
	']': RBracket,
	';': Semi,
	',': Comma,
	'+': Plus,
	'-': Minus,
	'*': Star,
	'/': Slash,
	'=': Eq,
}

var typeNames = [...]string{
	EOF:           "EOF",
	Ident:         "ID",
	Number:        "NUM",
	FloatNumber:   "FLOAT_NUM",
	String:        "STRING",
	Int:           "INT",
	Float:         "FLOAT",
	Double:        "DOUBLE",
	StringKeyword: "STRING_TYPE",
	Print:         "PRINT",
	LParen:        "LPAREN",
	RParen:        "RPAREN",
	LBrace:        "LBRACE",
	RBrace:        "RBRACE",
	LBracket:      "LBRACKET",
	RBracket:      "RBRACKET",
	Semi:          "SEMI",
	Comma:         "COMMA",
	Plus:          "PLUS",
	Minus:         "MINUS",
	Star:          "STAR",
	Slash:         "SLASH",
	Eq:            "EQUALS",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// IsTypeKeyword reports whether t starts a declaration.
func (t Type) IsTypeKeyword() bool {
	return t == Int || t == Float || t == Double || t == StringKeyword
}

// Token is a lexeme with its source position. Pos is a rune offset into the
// source; Line and Column are 1-based and only used for diagnostics.
type Token struct {
	Type   Type
	Value  string
	Pos    int
	Line   int
	Column int
	Len    int
}

func (t Token) String() string {
	switch t.Type {
	case Ident, Number, FloatNumber:
		return t.Type.String() + "(" + t.Value + ")"
	case String:
		return t.Type.String() + "(" + strconv.Quote(t.Value) + ")"
	}
	return t.Type.String()
}
