package tablelit

import (
	"strings"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenString
	TokenNumber
	TokenIdent
	TokenLeftBrace
	TokenRightBrace
	TokenLeftBracket
	TokenRightBracket
	TokenAssign
	TokenComma
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenIdent:
		return "identifier"
	case TokenLeftBrace:
		return "'{'"
	case TokenRightBrace:
		return "'}'"
	case TokenLeftBracket:
		return "'['"
	case TokenRightBracket:
		return "']'"
	case TokenAssign:
		return "'='"
	case TokenComma:
		return "','"
	default:
		return "unknown"
	}
}

type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

type Lexer struct {
	src string
	pos int
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.src)
}

func (l *Lexer) ch() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) skipWhitespace() {
	for !l.eof() {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) readString() (string, error) {
	start := l.pos
	quote := l.ch()
	l.pos++ // skip opening quote

	var result strings.Builder
	for {
		if l.eof() {
			return "", syntaxErrorf(start, "unterminated string")
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			return result.String(), nil
		}
		if c != '\\' {
			result.WriteByte(c)
			l.pos++
			continue
		}

		l.pos++
		if l.eof() {
			return "", syntaxErrorf(start, "unterminated string")
		}
		switch l.src[l.pos] {
		case 'n':
			result.WriteByte('\n')
		case 't':
			result.WriteByte('\t')
		case 'r':
			result.WriteByte('\r')
		case 'b':
			result.WriteByte('\b')
		case 'f':
			result.WriteByte('\f')
		case '"':
			result.WriteByte('"')
		case '\'':
			result.WriteByte('\'')
		case '\\':
			result.WriteByte('\\')
		default:
			return "", syntaxErrorf(l.pos-1, "invalid escape sequence \\%c", l.src[l.pos])
		}
		l.pos++
	}
}

// At most one decimal point.
func (l *Lexer) readNumber() (string, error) {
	start := l.pos
	if c := l.ch(); c == '-' || c == '+' {
		l.pos++
	}

	digits := 0
	dots := 0
	for !l.eof() {
		c := l.src[l.pos]
		if c >= '0' && c <= '9' {
			digits++
		} else if c == '.' {
			dots++
		} else {
			break
		}
		l.pos++
	}

	if digits == 0 || dots > 1 {
		return "", syntaxErrorf(start, "invalid number %q", l.src[start:l.pos])
	}
	return l.src[start:l.pos], nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for !l.eof() {
		c := l.src[l.pos]
		if !isIdentStart(c) && !(c >= '0' && c <= '9') {
			break
		}
		l.pos++
	}
	return l.src[start:l.pos]
}

func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	if l.eof() {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	tok := Token{Pos: l.pos}
	c := l.ch()
	switch c {
	case '{':
		tok.Type, tok.Value = TokenLeftBrace, "{"
		l.pos++
	case '}':
		tok.Type, tok.Value = TokenRightBrace, "}"
		l.pos++
	case '[':
		tok.Type, tok.Value = TokenLeftBracket, "["
		l.pos++
	case ']':
		tok.Type, tok.Value = TokenRightBracket, "]"
		l.pos++
	case '=':
		tok.Type, tok.Value = TokenAssign, "="
		l.pos++
	case ',':
		tok.Type, tok.Value = TokenComma, ","
		l.pos++
	case '"', '\'':
		s, err := l.readString()
		if err != nil {
			return Token{}, err
		}
		tok.Type, tok.Value = TokenString, s
	default:
		switch {
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			n, err := l.readNumber()
			if err != nil {
				return Token{}, err
			}
			tok.Type, tok.Value = TokenNumber, n
		case isIdentStart(c):
			tok.Type, tok.Value = TokenIdent, l.readIdentifier()
		default:
			return Token{}, syntaxErrorf(l.pos, "unexpected character %q", c)
		}
	}

	return tok, nil
}

func (l *Lexer) TokenizeAll() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}
