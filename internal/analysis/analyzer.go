package analysis

import (
	"strings"
	"unicode"
)

// Token is a single term produced by analysis, with its ordinal position
// in the field (first token is position 0).
type Token struct {
	Term     string
	Position uint64
}

// Analyzer turns field text into a stream of tokens.
type Analyzer interface {
	Analyze(text string) []Token
}

// Simple lowercases and splits on any non-letter, non-digit rune.
type Simple struct{}

func NewSimple() *Simple {
	return &Simple{}
}

// Analyze tokenizes text into lowercase tokens with positions.
func (a *Simple) Analyze(text string) []Token {
	var tokens []Token
	var pos uint64

	start := -1
	emit := func(end int) {
		if start < 0 {
			return
		}
		tokens = append(tokens, Token{Term: strings.ToLower(text[start:end]), Position: pos})
		pos++
		start = -1
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		emit(i)
	}
	emit(len(text))

	return tokens
}

// Keyword emits the whole input as a single lowercase token. Used for
// fields whose values should match exactly (ids, tags, encoded dates).
type Keyword struct{}

func NewKeyword() *Keyword {
	return &Keyword{}
}

func (a *Keyword) Analyze(text string) []Token {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return []Token{{Term: strings.ToLower(trimmed), Position: 0}}
}
