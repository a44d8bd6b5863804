package liquid

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// TokenKind classifies a source token.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenOutput
	TokenTag
)

// Token is one lexed unit of template source.
type Token struct {
	Kind   TokenKind
	Name   string // tag name
	Markup string // tag arguments or output expression
	Body   string // verbatim body of raw tags
	Line   int
	Source string

	trimLeft  bool
	trimRight bool
}

func (t *Token) String() string {
	switch t.Kind {
	case TokenOutput:
		return "{{ " + t.Markup + " }}"
	case TokenTag:
		return strings.TrimSpace("{% " + t.Name + " " + t.Markup + " %}")
	}
	return t.Source
}

var endRawPatterns sync.Map

func endRawPattern(name string) *regexp.Regexp {
	if re, ok := endRawPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`\{%-?\s*end` + regexp.QuoteMeta(name) + `\s*-?%\}`)
	endRawPatterns.Store(name, re)
	return re
}

// lex splits src into tokens. Tags named in raw capture their body verbatim
// up to the matching end tag.
func lex(src string, raw map[string]bool) ([]Token, error) {
	var tokens []Token
	line := 1
	pos := 0

	emitText := func(text string) {
		if text == "" {
			return
		}
		tokens = append(tokens, Token{Kind: TokenText, Source: text, Line: line})
		line += strings.Count(text, "\n")
	}

	for pos < len(src) {
		next := indexDelimiter(src, pos)
		if next < 0 {
			emitText(src[pos:])
			break
		}
		emitText(src[pos:next])

		if strings.HasPrefix(src[next:], "{{") {
			end := strings.Index(src[next+2:], "}}")
			if end < 0 {
				return nil, fmt.Errorf("line %d: output not closed with }}", line)
			}
			body := src[next+2 : next+2+end]
			tok := Token{Kind: TokenOutput, Line: line, Source: src[next : next+4+end]}
			body, tok.trimLeft, tok.trimRight = trimMarkers(body)
			tok.Markup = strings.TrimSpace(body)
			tokens = append(tokens, tok)
			line += strings.Count(tok.Source, "\n")
			pos = next + 4 + end
			continue
		}

		end := strings.Index(src[next+2:], "%}")
		if end < 0 {
			return nil, fmt.Errorf("line %d: tag not closed with %%}", line)
		}
		body := src[next+2 : next+2+end]
		tok := Token{Kind: TokenTag, Line: line, Source: src[next : next+4+end]}
		body, tok.trimLeft, tok.trimRight = trimMarkers(body)
		tok.Name, tok.Markup = splitTag(body)
		line += strings.Count(tok.Source, "\n")
		pos = next + 4 + end

		if tok.Name == "" {
			return nil, fmt.Errorf("line %d: empty tag", tok.Line)
		}

		if raw[tok.Name] {
			re := endRawPattern(tok.Name)
			loc := re.FindStringIndex(src[pos:])
			if loc == nil {
				return nil, fmt.Errorf("line %d: tag %q was never closed", tok.Line, tok.Name)
			}
			tok.Body = src[pos : pos+loc[0]]
			closing := src[pos+loc[0] : pos+loc[1]]
			line += strings.Count(tok.Body, "\n") + strings.Count(closing, "\n")
			if strings.HasSuffix(closing, "-%}") {
				tok.trimRight = true
			}
			pos += loc[1]
		}
		tokens = append(tokens, tok)
	}

	applyTrim(tokens)
	return tokens, nil
}

func indexDelimiter(src string, from int) int {
	a := strings.Index(src[from:], "{{")
	b := strings.Index(src[from:], "{%")
	switch {
	case a < 0 && b < 0:
		return -1
	case a < 0:
		return from + b
	case b < 0:
		return from + a
	case a < b:
		return from + a
	default:
		return from + b
	}
}

func trimMarkers(body string) (string, bool, bool) {
	left, right := false, false
	if strings.HasPrefix(body, "-") {
		left = true
		body = body[1:]
	}
	if strings.HasSuffix(body, "-") {
		right = true
		body = body[:len(body)-1]
	}
	return body, left, right
}

func splitTag(body string) (string, string) {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "#") {
		return "#", strings.TrimSpace(body[1:])
	}
	idx := strings.IndexFunc(body, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if idx < 0 {
		return body, ""
	}
	return body[:idx], strings.TrimSpace(body[idx+1:])
}

func applyTrim(tokens []Token) {
	for i := range tokens {
		if tokens[i].Kind == TokenText {
			continue
		}
		if tokens[i].trimLeft && i > 0 && tokens[i-1].Kind == TokenText {
			tokens[i-1].Source = strings.TrimRight(tokens[i-1].Source, " \t\r\n")
		}
		if tokens[i].trimRight && i+1 < len(tokens) && tokens[i+1].Kind == TokenText {
			tokens[i+1].Source = strings.TrimLeft(tokens[i+1].Source, " \t\r\n")
		}
	}
}
