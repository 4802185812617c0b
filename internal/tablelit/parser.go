// Package tablelit decodes the table literals the game client writes into its
// log. Values come back as string, float64, bool, nil, []any or map[string]any.
package tablelit

import (
	"strconv"
	"strings"
)

const maxDepth = 256

type Parser struct {
	tokens   []Token
	position int
	current  Token
	depth    int
}

func NewParser(tokens []Token) *Parser {
	p := &Parser{tokens: tokens}
	if len(tokens) > 0 {
		p.current = tokens[0]
	} else {
		p.current = Token{Type: TokenEOF}
	}
	return p
}

// Parse decodes a single table-literal value from src. Leading and trailing
// whitespace is ignored; anything else after the value is an error.
func Parse(src string) (any, error) {
	tokens, err := NewLexer(strings.TrimSpace(src)).TokenizeAll()
	if err != nil {
		return nil, err
	}

	p := NewParser(tokens)
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, syntaxErrorf(p.current.Pos, "unexpected trailing %s", p.current.Type)
	}
	return v, nil
}

func (p *Parser) advance() {
	if p.position < len(p.tokens)-1 {
		p.position++
		p.current = p.tokens[p.position]
	}
}

func (p *Parser) expect(tokenType TokenType) error {
	if p.current.Type != tokenType {
		return syntaxErrorf(p.current.Pos, "expected %s, got %s", tokenType, p.current.Type)
	}
	p.advance()
	return nil
}

func (p *Parser) parseValue() (any, error) {
	tok := p.current
	switch tok.Type {
	case TokenString:
		p.advance()
		return tok.Value, nil
	case TokenNumber:
		p.advance()
		return parseNumber(tok)
	case TokenIdent:
		p.advance()
		switch strings.ToLower(tok.Value) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil":
			return nil, nil
		}
		return nil, syntaxErrorf(tok.Pos, "unknown identifier %q", tok.Value)
	case TokenLeftBrace:
		return p.parseTable()
	case TokenEOF:
		return nil, syntaxErrorf(tok.Pos, "unexpected end of input")
	default:
		return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Type)
	}
}

func parseNumber(tok Token) (float64, error) {
	f, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return 0, syntaxErrorf(tok.Pos, "invalid number %q", tok.Value)
	}
	return f, nil
}

// Once a keyed entry appears the table stays a map; positional entries are
// then stored under their zero-based index.
func (p *Parser) parseTable() (any, error) {
	open := p.current
	p.depth++
	if p.depth > maxDepth {
		return nil, syntaxErrorf(open.Pos, "tables nested deeper than %d", maxDepth)
	}
	defer func() { p.depth-- }()
	p.advance()

	seq := make([]any, 0)
	var fields map[string]any
	isArray := true

	for {
		switch p.current.Type {
		case TokenRightBrace:
			p.advance()
			if isArray {
				return seq, nil
			}
			return fields, nil
		case TokenEOF:
			return nil, syntaxErrorf(open.Pos, "unterminated table")
		}

		if p.current.Type == TokenLeftBracket {
			key, value, err := p.parseKeyedEntry()
			if err != nil {
				return nil, err
			}
			if isArray {
				isArray = false
				fields = make(map[string]any, len(seq)+1)
				for i, v := range seq {
					fields[strconv.Itoa(i)] = v
				}
			}
			fields[key] = value
		} else {
			value, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			seq = append(seq, value)
			if !isArray {
				fields[strconv.Itoa(len(seq)-1)] = value
			}
		}

		switch p.current.Type {
		case TokenComma:
			p.advance()
		case TokenRightBrace:
		case TokenEOF:
			return nil, syntaxErrorf(open.Pos, "unterminated table")
		default:
			return nil, syntaxErrorf(p.current.Pos, "expected ',' or '}', got %s", p.current.Type)
		}
	}
}

func (p *Parser) parseKeyedEntry() (string, any, error) {
	p.advance() // [

	keyTok := p.current
	var key string
	switch keyTok.Type {
	case TokenString:
		key = keyTok.Value
	case TokenNumber:
		f, err := parseNumber(keyTok)
		if err != nil {
			return "", nil, err
		}
		key = strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return "", nil, syntaxErrorf(keyTok.Pos, "table key must be a string or number, got %s", keyTok.Type)
	}
	p.advance()

	if err := p.expect(TokenRightBracket); err != nil {
		return "", nil, err
	}
	if err := p.expect(TokenAssign); err != nil {
		return "", nil, err
	}

	value, err := p.parseValue()
	if err != nil {
		return "", nil, err
	}
	return key, value, nil
}
