package lexer

import (
	"strings"
	"unicode"

	"github.com/AfzalSurti/Mini-C-Compiler/pkg/config"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/token"
	"github.com/AfzalSurti/Mini-C-Compiler/pkg/util"
)

type Lexer struct {
	source []rune
	pos    int
	line   int
	column int
	diags  *util.Diagnostics
}

func NewLexer(source []rune, diags *util.Diagnostics) *Lexer {
	return &Lexer{source: source, line: 1, column: 1, diags: diags}
}

// Tokenize lexes the whole source. The result always ends with an EOF token
// whose position equals the source length in runes.
func Tokenize(src string, diags *util.Diagnostics) ([]token.Token, error) {
	l := NewLexer([]rune(src), diags)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if unicode.IsLetter(ch) {
		l.advance()
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if isDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine), nil
	}

	l.advance()
	if ch == '"' {
		return l.stringLiteral(startPos, startCol, startLine)
	}
	if typ, ok := token.PunctMap[ch]; ok {
		return l.makeToken(typ, string(ch), startPos, startCol, startLine), nil
	}

	tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
	return tok, util.Errorf(util.PhaseLexing, tok, "Unexpected character '%c'", ch)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, Pos: startPos,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, value, startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

// numberLiteral reads a digit run, optionally followed by '.' and at least one
// more digit. "1." lexes as NUM(1) and leaves the dot behind.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}

	tokType := token.Number
	if l.peek() == '.' && isDigit(l.peekNext()) {
		tokType = token.FloatNumber
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	return l.makeToken(tokType, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var sb strings.Builder
	for !l.isAtEnd() {
		c := l.advance()
		if c == '"' {
			return l.makeToken(token.String, sb.String(), startPos, startCol, startLine), nil
		}
		if c == '\\' && !l.isAtEnd() {
			sb.WriteRune(l.decodeEscape(startPos, startCol, startLine))
			continue
		}
		sb.WriteRune(c)
	}
	tok := l.makeToken(token.String, "", startPos, startCol, startLine)
	return tok, util.Errorf(util.PhaseLexing, tok, "Unterminated string literal")
}

func (l *Lexer) decodeEscape(startPos, startCol, startLine int) rune {
	c := l.advance()
	escapes := map[rune]rune{'n': '\n', 't': '\t', '\\': '\\', '"': '"'}
	if val, ok := escapes[c]; ok {
		return val
	}
	l.diags.Warn(config.WarnUnrecognizedEscape, l.makeToken(token.String, "", startPos, startCol, startLine),
		"Unrecognized escape sequence '\\%c', using '%c'", c, c)
	return c
}
