package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/memrel/memrel/internal/kernelerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string // original text, as written
	upper string // uppercased text, for keyword comparison on idents
}

// lex splits sql into a flat token stream. Identifiers, numbers, and
// single-quoted strings are recognized directly; the two-character
// comparison operators <=, >=, <> and != become one punctuation token each,
// and every other non-space byte becomes its own punctuation token.
func lex(sql string) ([]token, error) {
	var toks []token
	r := []rune(sql)
	i, n := 0, len(r)

	for i < n {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++

		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < n && (r[i] == '_' || unicode.IsLetter(r[i]) || unicode.IsDigit(r[i])) {
				i++
			}
			text := string(r[start:i])
			toks = append(toks, token{kind: tokIdent, text: text, upper: strings.ToUpper(text)})

		case unicode.IsDigit(c):
			start := i
			for i < n && unicode.IsDigit(r[i]) {
				i++
			}
			if i < n && r[i] == '.' && i+1 < n && unicode.IsDigit(r[i+1]) {
				i++
				for i < n && unicode.IsDigit(r[i]) {
					i++
				}
			}
			text := string(r[start:i])
			toks = append(toks, token{kind: tokNumber, text: text})

		case c == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if r[i] == '\'' {
					if i+1 < n && r[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					closed = true
					i++ // closing quote
					break
				}
				sb.WriteRune(r[i])
				i++
			}
			if !closed {
				return nil, kernelerr.New(kernelerr.ParseError, "unterminated string literal starting at %q", string(r[start:]))
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})

		case c == '<' || c == '>' || c == '!':
			start := i
			i++
			if i < n && (r[i] == '=' || (c == '<' && r[i] == '>')) {
				i++
			}
			toks = append(toks, token{kind: tokPunct, text: string(r[start:i])})

		default:
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF})
	return toks, nil
}

// parseNumber converts a lexed number token's text into int64 (no '.') or
// decimal.Decimal (contains '.').
func parseNumber(text string) (any, error) {
	if strings.Contains(text, ".") {
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, kernelerr.Wrap(kernelerr.ParseError, err, "invalid decimal literal %q", text)
		}
		return d, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, kernelerr.Wrap(kernelerr.ParseError, err, "invalid integer literal %q", text)
	}
	return v, nil
}
