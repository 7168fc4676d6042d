package cleaner

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// removedElements are dropped together with everything between their start
// and end tags.
var removedElements = map[string]struct{}{
	"head":   {},
	"script": {},
	"style":  {},
	"footer": {},
	"nav":    {},
	"form":   {},
	"iframe": {},
}

// deniedAttributes are stripped from every tag that survives.
// Event handlers (on*) and data-* are matched by prefix in isDeniedAttribute.
var deniedAttributes = map[string]struct{}{
	"id":    {},
	"class": {},
	"style": {},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Sanitize strips non-content markup from a rendered document so the
// inference service sees a smaller surface:
//
//  1. head/script/style/footer/nav/form/iframe blocks and comments are removed.
//  2. id, class, style, on* and data-* attributes are stripped.
//  3. Whitespace runs collapse to a single space; the result is trimmed.
//
// Sanitize works on the raw token stream and only ever deletes bytes, so the
// output is never longer than the input and preserved text is not
// re-encoded. A removable element without a matching end tag cannot be
// bounded safely and is left in place.
//
// Deleting a comment or block can splice a stray "<" onto the text after
// it and form a new tag, so passes repeat until the output is stable. Every
// pass only shrinks its input, which bounds the loop and makes Sanitize
// idempotent.
func Sanitize(rawHTML string) string {
	out := sanitizePass(rawHTML)
	for {
		next := sanitizePass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func sanitizePass(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(stripMarkup(s), " "))
}

// rawToken is one tokenizer token with a copy of its source bytes.
type rawToken struct {
	typ  html.TokenType
	name string
	raw  string
}

func tokenize(s string) []rawToken {
	z := html.NewTokenizer(strings.NewReader(s))
	var toks []rawToken
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// A truncated trailing construct is reported as part of the
			// error token; keep its bytes.
			if raw := z.Raw(); len(raw) > 0 {
				toks = append(toks, rawToken{typ: html.TextToken, raw: string(raw)})
			}
			return toks
		}
		tok := rawToken{typ: tt, raw: string(z.Raw())}
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tok.name = string(name)
		}
		toks = append(toks, tok)
	}
}

func stripMarkup(s string) string {
	toks := tokenize(s)

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch tok.typ {
		case html.CommentToken:
			continue

		case html.SelfClosingTagToken:
			if _, drop := removedElements[tok.name]; drop {
				continue
			}
			b.WriteString(stripAttributes(tok.raw))

		case html.StartTagToken:
			if _, drop := removedElements[tok.name]; drop {
				if end := matchingEnd(toks, i); end >= 0 {
					i = end
					continue
				}
			}
			b.WriteString(stripAttributes(tok.raw))

		default:
			b.WriteString(tok.raw)
		}
	}
	return b.String()
}

// matchingEnd returns the index of the end tag closing toks[start], or -1.
func matchingEnd(toks []rawToken, start int) int {
	name := toks[start].name
	depth := 0
	for j := start; j < len(toks); j++ {
		if toks[j].name != name {
			continue
		}
		switch toks[j].typ {
		case html.StartTagToken:
			depth++
		case html.EndTagToken:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func isDeniedAttribute(name string) bool {
	if _, ok := deniedAttributes[name]; ok {
		return true
	}
	if len(name) > 2 && strings.HasPrefix(name, "on") {
		return true
	}
	return strings.HasPrefix(name, "data-")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// stripAttributes removes denied attributes, with their leading whitespace,
// from the raw text of a start tag. Anything it cannot parse (an
// unterminated quote) is kept verbatim.
func stripAttributes(raw string) string {
	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}

	var b strings.Builder
	b.WriteString(raw[:i])

	for i < len(raw) {
		start := i
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			b.WriteString(raw[start:])
			return b.String()
		}

		nameStart := i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		name := strings.ToLower(raw[nameStart:i])

		j := i
		for j < len(raw) && isSpace(raw[j]) {
			j++
		}
		if j < len(raw) && raw[j] == '=' {
			j++
			for j < len(raw) && isSpace(raw[j]) {
				j++
			}
			if j < len(raw) && (raw[j] == '"' || raw[j] == '\'') {
				end := strings.IndexByte(raw[j+1:], raw[j])
				if end < 0 {
					b.WriteString(raw[start:])
					return b.String()
				}
				j += end + 2
			} else {
				for j < len(raw) && !isSpace(raw[j]) && raw[j] != '>' {
					j++
				}
			}
			i = j
		}

		if isDeniedAttribute(name) {
			continue
		}
		b.WriteString(raw[start:i])
	}
	return b.String()
}
