package formula

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokField // quoted field reference: [name] or ${name}
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// word operators are normalised to their symbolic form by the lexer.
var wordOps = map[string]string{
	"and": "&&",
	"or":  "||",
	"not": "!",
}

// lex splits src into tokens. Two character operators are matched first.
func lex(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
		case c == '\'' || c == '"':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(runes) {
				if runes[i] == '\\' && i+1 < len(runes) {
					sb.WriteRune(runes[i+1])
					i += 2
					continue
				}
				if runes[i] == c {
					closed = true
					i++
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Source: src, Pos: start, Msg: "unterminated string"}
			}
			tokens = append(tokens, token{tokString, sb.String(), start})
		case c == '[':
			start := i
			end := indexRune(runes, ']', i+1)
			if end < 0 {
				return nil, &SyntaxError{Source: src, Pos: start, Msg: "unterminated field reference"}
			}
			tokens = append(tokens, token{tokField, strings.TrimSpace(string(runes[i+1 : end])), start})
			i = end + 1
		case c == '$' && i+1 < len(runes) && runes[i+1] == '{':
			start := i
			end := indexRune(runes, '}', i+2)
			if end < 0 {
				return nil, &SyntaxError{Source: src, Pos: start, Msg: "unterminated field reference"}
			}
			tokens = append(tokens, token{tokField, strings.TrimSpace(string(runes[i+2 : end])), start})
			i = end + 1
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
				j := i + 1
				if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
					j++
				}
				if j < len(runes) && unicode.IsDigit(runes[j]) {
					i = j
					for i < len(runes) && unicode.IsDigit(runes[i]) {
						i++
					}
				}
			}
			tokens = append(tokens, token{tokNumber, string(runes[start:i]), start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(runes) && (runes[i] == '_' || runes[i] == '.' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			word := string(runes[start:i])
			if op, ok := wordOps[strings.ToLower(word)]; ok {
				tokens = append(tokens, token{tokOp, op, start})
				continue
			}
			tokens = append(tokens, token{tokIdent, word, start})
		default:
			start := i
			if i+1 < len(runes) {
				switch two := string(runes[i : i+2]); two {
				case "==", "!=", "<>", "<=", ">=", "&&", "||":
					tokens = append(tokens, token{tokOp, two, start})
					i += 2
					continue
				}
			}
			switch c {
			case '+', '-', '*', '/', '%', '<', '>', '!', '=':
				tokens = append(tokens, token{tokOp, string(c), start})
				i++
			default:
				return nil, &SyntaxError{Source: src, Pos: start, Msg: "unexpected character " + string(c)}
			}
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(runes)})
	return tokens, nil
}

func indexRune(runes []rune, r rune, from int) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
