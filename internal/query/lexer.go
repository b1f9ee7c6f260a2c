package query

import (
	"fmt"
	"strings"
	"unicode"
)

type TokenType int

const (
	TokenTerm TokenType = iota
	TokenPhrase
	TokenField
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
	TokenPrefix
	TokenRegex
	TokenFuzzy
	TokenRange
	TokenEOF
)

var tokenNames = [...]string{
	TokenTerm:   "TERM",
	TokenPhrase: "PHRASE",
	TokenField:  "FIELD",
	TokenAnd:    "AND",
	TokenOr:     "OR",
	TokenNot:    "NOT",
	TokenLParen: "LPAREN",
	TokenRParen: "RPAREN",
	TokenPrefix: "PREFIX",
	TokenRegex:  "REGEX",
	TokenFuzzy:  "FUZZY",
	TokenRange:  "RANGE",
	TokenEOF:    "EOF",
}

func (t TokenType) String() string {
	if t >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// Token is one lexical unit of a query string.
type Token struct {
	Type  TokenType
	Value string
}

func (t Token) String() string {
	if t.Value == "" {
		return t.Type.String()
	}
	return fmt.Sprintf("%s(%s)", t.Type, t.Value)
}

// keywords maps operator words to their token types.
var keywords = map[string]TokenType{
	"AND": TokenAnd,
	"OR":  TokenOr,
	"NOT": TokenNot,
}

// Lexer walks a query string and hands out tokens.
type Lexer struct {
	src string
	at  int
}

func NewLexer(input string) *Lexer {
	return &Lexer{src: input}
}

// Tokenize collects every token of the query through the trailing EOF.
func Tokenize(query string) ([]Token, error) {
	return NewLexer(query).TokenizeAll()
}

// TokenizeAll drains the lexer. The returned slice always ends with an
// EOF token.
func (l *Lexer) TokenizeAll() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out, nil
		}
	}
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() (Token, error) {
	l.skipSpace()

	if l.eof() {
		return Token{Type: TokenEOF}, nil
	}

	switch l.src[l.at] {
	case '(':
		l.at++
		return Token{Type: TokenLParen, Value: "("}, nil
	case ')':
		l.at++
		return Token{Type: TokenRParen, Value: ")"}, nil
	case '-':
		if l.at+1 >= len(l.src) || unicode.IsSpace(rune(l.src[l.at+1])) {
			return l.readTerm()
		}
		l.at++
		return Token{Type: TokenNot, Value: "-"}, nil
	case '"':
		l.at++
		value, err := l.readDelimited('"', "phrase")
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokenPhrase, Value: value}, nil
	case '/':
		l.at++
		value, err := l.readDelimited('/', "regex")
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokenRegex, Value: value}, nil
	case '[':
		l.at++
		value, err := l.readUntil(']', "range")
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokenRange, Value: value}, nil
	}

	return l.readWord()
}

func (l *Lexer) eof() bool { return l.at >= len(l.src) }

func (l *Lexer) skipSpace() {
	for !l.eof() && unicode.IsSpace(rune(l.src[l.at])) {
		l.at++
	}
}

// readDelimited consumes input up to the next unescaped close byte and
// unescapes it in the result. The opening delimiter is already consumed.
func (l *Lexer) readDelimited(close byte, what string) (string, error) {
	start := l.at

	for !l.eof() && l.src[l.at] != close {
		if l.src[l.at] == '\\' && l.at+1 < len(l.src) && l.src[l.at+1] == close {
			l.at += 2
			continue
		}
		l.at++
	}
	if l.eof() {
		return "", fmt.Errorf("unterminated %s at position %d", what, start-1)
	}

	raw := l.src[start:l.at]
	l.at++
	return strings.ReplaceAll(raw, `\`+string(close), string(close)), nil
}

// readUntil consumes input up to the close byte, no escaping.
func (l *Lexer) readUntil(close byte, what string) (string, error) {
	start := l.at

	for !l.eof() && l.src[l.at] != close {
		l.at++
	}
	if l.eof() {
		return "", fmt.Errorf("unterminated %s at position %d", what, start-1)
	}

	value := l.src[start:l.at]
	l.at++
	return value, nil
}

// isBreakChar reports whether ch ends a bare word.
func isBreakChar(ch byte) bool {
	return unicode.IsSpace(rune(ch)) || ch == '(' || ch == ')' || ch == '"' || ch == '[' || ch == ']'
}

func (l *Lexer) scanWord() {
	for !l.eof() && !isBreakChar(l.src[l.at]) {
		l.at++
	}
}

func (l *Lexer) readWord() (Token, error) {
	start := l.at
	l.scanWord()

	word := l.src[start:l.at]
	if word == "" {
		return Token{}, fmt.Errorf("unexpected character at position %d", l.at)
	}

	if tt, ok := keywords[word]; ok {
		return Token{Type: tt, Value: word}, nil
	}

	// field:value splits at the first colon; the value part is re-lexed.
	if colon := strings.IndexByte(word, ':'); colon > 0 {
		l.at = start + colon + 1
		return Token{Type: TokenField, Value: word[:colon]}, nil
	}

	return classifyWord(word), nil
}

func (l *Lexer) readTerm() (Token, error) {
	start := l.at
	l.scanWord()
	return classifyWord(l.src[start:l.at]), nil
}

// classifyWord picks the token type from the word's shape: a trailing *
// makes a prefix, a ~ makes a fuzzy term.
func classifyWord(word string) Token {
	if strings.HasSuffix(word, "*") {
		return Token{Type: TokenPrefix, Value: strings.TrimSuffix(word, "*")}
	}
	if strings.Contains(word, "~") {
		return Token{Type: TokenFuzzy, Value: word}
	}
	return Token{Type: TokenTerm, Value: word}
}
