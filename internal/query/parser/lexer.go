// Package parser reads OData-style query option strings into query.Query values.
package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of a token
type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF

	TOKEN_IDENTIFIER
	TOKEN_INTEGER
	TOKEN_DOUBLE
	TOKEN_STRING
	TOKEN_DATETIME

	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_COMMA
	TOKEN_SLASH
	TOKEN_MINUS
)

var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL:    "ILLEGAL",
	TOKEN_EOF:        "EOF",
	TOKEN_IDENTIFIER: "IDENTIFIER",
	TOKEN_INTEGER:    "INTEGER",
	TOKEN_DOUBLE:     "DOUBLE",
	TOKEN_STRING:     "STRING",
	TOKEN_DATETIME:   "DATETIME",
	TOKEN_LPAREN:     "(",
	TOKEN_RPAREN:     ")",
	TOKEN_COMMA:      ",",
	TOKEN_SLASH:      "/",
	TOKEN_MINUS:      "-",
}

// Token represents a lexical token
type Token struct {
	Type   TokenType
	Value  string
	Offset int
}

// String returns a string representation of the token
func (t Token) String() string {
	name := tokenNames[t.Type]
	if name == "" {
		name = fmt.Sprintf("UNKNOWN(%d)", t.Type)
	}
	return fmt.Sprintf("%s(%s) at %d", name, t.Value, t.Offset)
}

// Lexer tokenizes filter and orderby expressions
type Lexer struct {
	input []rune
	pos   int
}

// NewLexer creates a lexer over the input
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Tokenize returns all tokens, ending with TOKEN_EOF
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			return tokens, nil
		}
	}
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Offset: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return Token{Type: TOKEN_LPAREN, Value: "(", Offset: start}, nil
	case ch == ')':
		l.pos++
		return Token{Type: TOKEN_RPAREN, Value: ")", Offset: start}, nil
	case ch == ',':
		l.pos++
		return Token{Type: TOKEN_COMMA, Value: ",", Offset: start}, nil
	case ch == '/':
		l.pos++
		return Token{Type: TOKEN_SLASH, Value: "/", Offset: start}, nil
	case ch == '\'':
		return l.readString()
	case ch == '-':
		if l.pos+1 < len(l.input) && unicode.IsDigit(l.input[l.pos+1]) {
			l.pos++
			tok := l.readNumber(start)
			tok.Value = "-" + tok.Value
			return tok, nil
		}
		l.pos++
		return Token{Type: TOKEN_MINUS, Value: "-", Offset: start}, nil
	case unicode.IsDigit(ch):
		return l.readNumber(start), nil
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return Token{Type: TOKEN_IDENTIFIER, Value: string(l.input[start:l.pos]), Offset: start}, nil
	}
	return Token{Type: TOKEN_ILLEGAL, Value: string(ch), Offset: start},
		fmt.Errorf("unexpected character %q at %d", ch, start)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

// readString reads a single-quoted literal; a doubled quote escapes a quote.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteRune('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TOKEN_STRING, Value: sb.String(), Offset: start}, nil
		}
		sb.WriteRune(ch)
		l.pos++
	}
	return Token{Type: TOKEN_ILLEGAL, Offset: start}, fmt.Errorf("unterminated string at %d", start)
}

// readNumber reads an integer, a double or an ISO 8601 date-time. A run of
// four digits followed by '-' starts a date-time.
func (l *Lexer) readNumber(start int) Token {
	digitsStart := l.pos
	for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos-digitsStart == 4 && l.pos < len(l.input) && l.input[l.pos] == '-' {
		for l.pos < len(l.input) && isDateTimePart(l.input[l.pos]) {
			l.pos++
		}
		return Token{Type: TOKEN_DATETIME, Value: string(l.input[digitsStart:l.pos]), Offset: start}
	}
	typ := TOKEN_INTEGER
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		typ = TOKEN_DOUBLE
		l.pos++
		for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		typ = TOKEN_DOUBLE
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: typ, Value: string(l.input[digitsStart:l.pos]), Offset: start}
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_' || ch == '@' || ch == '$'
}

func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '.' || ch == '@' || ch == '[' || ch == ']'
}

func isDateTimePart(ch rune) bool {
	return unicode.IsDigit(ch) || strings.ContainsRune("-:.TZ+", ch)
}
