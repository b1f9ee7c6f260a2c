package query

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxFuzziness caps the edit distance a fuzzy term may ask for.
const MaxFuzziness = 2

// Parser turns a token stream into a Query tree.
type Parser struct {
	toks []Token
	next int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{toks: tokens}
}

// Parse builds the Query tree for a token stream.
func Parse(tokens []Token) (Query, error) {
	return NewParser(tokens).Parse()
}

// ParseString tokenizes and parses a query string.
func ParseString(query string) (Query, error) {
	tokens, err := Tokenize(query)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse parses the tokens into a Query AST. An empty query matches all
// documents.
func (p *Parser) Parse() (Query, error) {
	if len(p.toks) == 0 || (len(p.toks) == 1 && p.toks[0].Type == TokenEOF) {
		return &MatchAllQuery{}, nil
	}

	tree, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}

	if tok := p.current(); tok.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected token at position %d: %s", p.next, tok)
	}

	return tree, nil
}

func (p *Parser) current() Token {
	if p.next < len(p.toks) {
		return p.toks[p.next]
	}
	return Token{Type: TokenEOF}
}

func (p *Parser) advance() Token {
	tok := p.current()
	p.next++
	return tok
}

// parseOrExpr parses OR-joined AND expressions. OR binds loosest.
func (p *Parser) parseOrExpr() (Query, error) {
	first, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	clauses := []Query{first}
	for p.current().Type == TokenOr {
		p.advance()
		clause, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 1 {
		return first, nil
	}
	return &BoolQuery{Should: clauses}, nil
}

// startsClause reports whether a token can begin a new implicit-AND clause.
func startsClause(t TokenType) bool {
	switch t {
	case TokenTerm, TokenPhrase, TokenField, TokenPrefix,
		TokenRegex, TokenFuzzy, TokenRange, TokenLParen, TokenNot:
		return true
	}
	return false
}

// parseAndExpr parses a run of clauses joined by AND or by adjacency.
func (p *Parser) parseAndExpr() (Query, error) {
	first, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	clauses := []Query{first}
	for {
		if p.current().Type == TokenAnd {
			p.advance()
		} else if !startsClause(p.current().Type) {
			break
		}

		clause, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 1 {
		return first, nil
	}
	return &BoolQuery{Must: clauses}, nil
}

func (p *Parser) parseUnaryExpr() (Query, error) {
	if p.current().Type != TokenNot {
		return p.parsePrimary()
	}

	p.advance()
	inner, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &BoolQuery{MustNot: []Query{inner}}, nil
}

func (p *Parser) parsePrimary() (Query, error) {
	tok := p.current()

	switch {
	case tok.Type == TokenLParen:
		return p.parseGrouped()
	case tok.Type == TokenField:
		return p.parseFieldExpr()
	case leafToken(tok.Type):
		p.advance()
		return makeLeaf("", tok)
	case tok.Type == TokenEOF:
		return nil, fmt.Errorf("unexpected end of query")
	default:
		return nil, fmt.Errorf("unexpected token: %s", tok)
	}
}

func (p *Parser) parseGrouped() (Query, error) {
	p.advance()

	inner, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenRParen {
		return nil, fmt.Errorf("expected ')' at position %d, got %s", p.next, p.current())
	}
	p.advance()

	return inner, nil
}

func (p *Parser) parseFieldExpr() (Query, error) {
	field := p.advance().Value

	tok := p.current()
	if !leafToken(tok.Type) {
		return nil, fmt.Errorf("expected term after field '%s:', got %s", field, tok)
	}
	p.advance()

	return makeLeaf(field, tok)
}

// leafToken reports whether a token carries a leaf query value.
func leafToken(t TokenType) bool {
	switch t {
	case TokenTerm, TokenPhrase, TokenPrefix, TokenRegex, TokenFuzzy, TokenRange:
		return true
	}
	return false
}

// makeLeaf builds the leaf query for a value token, scoped to field when
// not empty.
func makeLeaf(field string, token Token) (Query, error) {
	switch token.Type {
	case TokenTerm:
		return &TermQuery{Field: field, Term: token.Value}, nil
	case TokenPhrase:
		return &PhraseQuery{Field: field, Phrase: token.Value}, nil
	case TokenPrefix:
		return &PrefixQuery{Field: field, Prefix: token.Value}, nil
	case TokenRegex:
		return &RegexQuery{Field: field, Pattern: token.Value}, nil
	case TokenFuzzy:
		term, fuzziness, err := splitFuzzy(token.Value)
		if err != nil {
			return nil, err
		}
		return &FuzzyQuery{Field: field, Term: term, Fuzziness: fuzziness}, nil
	case TokenRange:
		lower, upper, err := splitRange(token.Value)
		if err != nil {
			return nil, err
		}
		return &RangeQuery{Field: field, Lower: lower, Upper: upper}, nil
	}
	return nil, fmt.Errorf("unexpected token: %s", token)
}

// splitFuzzy takes the raw fuzzy word ("hello~2") apart. A bare trailing ~
// means distance 1.
func splitFuzzy(raw string) (string, uint8, error) {
	idx := strings.LastIndex(raw, "~")
	term := raw[:idx]
	suffix := raw[idx+1:]

	if term == "" {
		return "", 0, fmt.Errorf("fuzzy term missing before ~ in %q", raw)
	}
	if suffix == "" {
		return term, 1, nil
	}

	n, err := strconv.ParseUint(suffix, 10, 8)
	if err != nil {
		return "", 0, fmt.Errorf("invalid fuzziness in %q", raw)
	}
	if n > MaxFuzziness {
		return "", 0, fmt.Errorf("fuzziness %d exceeds maximum %d", n, MaxFuzziness)
	}
	return term, uint8(n), nil
}

// splitRange takes the inside of a bracketed range ("a TO b") apart. A *
// or missing bound is open.
func splitRange(raw string) (string, string, error) {
	parts := strings.SplitN(raw, " TO ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("range %q must have the form [lower TO upper]", raw)
	}

	lower := strings.TrimSpace(parts[0])
	upper := strings.TrimSpace(parts[1])
	if lower == "*" {
		lower = ""
	}
	if upper == "*" {
		upper = ""
	}
	if lower == "" && upper == "" {
		return "", "", fmt.Errorf("range %q has no bounds", raw)
	}
	return lower, upper, nil
}
