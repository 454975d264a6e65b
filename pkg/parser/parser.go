package parser

import (
	"strconv"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/ast"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens  []token.Token
	pos     int
	current token.Token
}

// NewParser creates and initializes a new Parser from a token stream. The
// stream must end with an EOF token, as produced by the lexer.
func NewParser(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		end := 0
		if len(tokens) > 0 {
			last := tokens[len(tokens)-1]
			end = last.Pos + last.Len
		}
		tokens = append(tokens, token.Token{Type: token.EOF, Pos: end})
	}
	return &Parser{tokens: tokens, current: tokens[0]}
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

// eat consumes the current token if it has the given kind and returns it.
// Every syntax error surfaces here.
func (p *Parser) eat(tokType token.Type) (token.Token, error) {
	tok := p.current
	if tok.Type != tokType {
		err := util.Errorf(util.PhaseParsing, tok, "expected %s, got %s", tokType, tok.Type)
		err.Expected = tokType.String()
		return tok, err
	}
	p.advance()
	return tok, nil
}

// Parse parses statements until EOF.
func (p *Parser) Parse() ([]*ast.Node, error) {
	var stmts []*ast.Node
	for !p.check(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Statement Parsing
func (p *Parser) parseStatement() (*ast.Node, error) {
	switch {
	case p.current.Type.IsTypeKeyword():
		return p.parseDeclaration()
	case p.check(token.Ident):
		return p.parseAssignment()
	case p.check(token.Print):
		return p.parsePrint()
	}
	return nil, util.Errorf(util.PhaseParsing, p.current, "invalid statement starting with %s", p.current.Type)
}

func (p *Parser) parseDeclaration() (*ast.Node, error) {
	typeTok := p.current
	p.advance()
	nameTok, err := p.eat(token.Ident)
	if err != nil {
		return nil, err
	}

	var isArray, hasSize bool
	var size int64
	if p.check(token.LBracket) {
		p.advance()
		sizeTok, err := p.eat(token.Number)
		if err != nil {
			return nil, err
		}
		if size, err = parseIntLiteral(sizeTok); err != nil {
			return nil, err
		}
		if _, err := p.eat(token.RBracket); err != nil {
			return nil, err
		}
		isArray, hasSize = true, true
	}

	var init *ast.Node
	if p.check(token.Eq) {
		if isArray {
			return nil, util.Errorf(util.PhaseParsing, typeTok, "array initialization not supported")
		}
		p.advance()
		if init, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}

	if _, err := p.eat(token.Semi); err != nil {
		return nil, err
	}
	return ast.NewVarDecl(typeTok, nameTok.Value, ast.TypeFromKeyword(typeTok.Type), init, isArray, size, hasSize), nil
}

func (p *Parser) parseAssignment() (*ast.Node, error) {
	nameTok, err := p.eat(token.Ident)
	if err != nil {
		return nil, err
	}
	target := ast.NewVariable(nameTok, nameTok.Value)
	if p.check(token.LBracket) {
		index, err := p.parseIndex()
		if err != nil {
			return nil, err
		}
		target = ast.NewArrayAccess(nameTok, nameTok.Value, index)
	}

	if _, err := p.eat(token.Eq); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(token.Semi); err != nil {
		return nil, err
	}
	return ast.NewAssign(nameTok, target, expr), nil
}

func (p *Parser) parsePrint() (*ast.Node, error) {
	printTok, err := p.eat(token.Print)
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(token.LParen); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(token.RParen); err != nil {
		return nil, err
	}
	if _, err := p.eat(token.Semi); err != nil {
		return nil, err
	}
	return ast.NewPrint(printTok, expr), nil
}

// Expression Parsing

// parseExpr handles '+' and '-', the loosest binding level. Both levels are
// left-associative.
func (p *Parser) parseExpr() (*ast.Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.check(token.Plus) || p.check(token.Minus) {
		op := p.current
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinOp(op, op.Type, left, right)
	}
	return left, nil
}

func (p *Parser) parseTerm() (*ast.Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.check(token.Star) || p.check(token.Slash) {
		op := p.current
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinOp(op, op.Type, left, right)
	}
	return left, nil
}

func (p *Parser) parseFactor() (*ast.Node, error) {
	tok := p.current
	switch tok.Type {
	case token.Number:
		p.advance()
		val, err := parseIntLiteral(tok)
		if err != nil {
			return nil, err
		}
		return ast.NewInt(tok, val), nil
	case token.FloatNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, util.Errorf(util.PhaseParsing, tok, "invalid float literal '%s'", tok.Value)
		}
		return ast.NewFloat(tok, val), nil
	case token.String:
		p.advance()
		return ast.NewString(tok, tok.Value), nil
	case token.Ident:
		p.advance()
		if p.check(token.LBracket) {
			index, err := p.parseIndex()
			if err != nil {
				return nil, err
			}
			return ast.NewArrayAccess(tok, tok.Value, index), nil
		}
		return ast.NewVariable(tok, tok.Value), nil
	case token.LParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.eat(token.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, util.Errorf(util.PhaseParsing, tok, "invalid factor %s", tok.Type)
}

// parseIndex parses '[' expr ']'.
func (p *Parser) parseIndex() (*ast.Node, error) {
	if _, err := p.eat(token.LBracket); err != nil {
		return nil, err
	}
	index, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.eat(token.RBracket); err != nil {
		return nil, err
	}
	return index, nil
}

func parseIntLiteral(tok token.Token) (int64, error) {
	val, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		return 0, util.Errorf(util.PhaseParsing, tok, "integer literal '%s' out of range", tok.Value)
	}
	return val, nil
}
