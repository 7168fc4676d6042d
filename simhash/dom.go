package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// pathDepth is how many ancestors, the element included, make up one
// layout feature.
const pathDepth = 3

// voidElements never get an end tag and are not pushed on the open stack.
var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {},
	"img": {}, "input": {}, "link": {}, "meta": {}, "source": {}, "track": {},
	"wbr": {},
}

// Layout fingerprints the element structure of an HTML document. Text,
// attributes and comments are ignored; every element contributes the path
// formed by itself and its nearest ancestors, so pages that only differ in
// copy hash identically and pages that gain or lose a few blocks stay close.
// A document without elements has fingerprint 0.
func Layout(doc string) uint64 {
	return Sum(layoutPaths(doc))
}

// layoutPaths returns one "a>b>c" path per element in document order.
func layoutPaths(doc string) []string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		stack []string
		paths []string
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return paths
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			paths = append(paths, pathOf(stack, tag))
			if _, void := voidElements[tag]; !void {
				stack = append(stack, tag)
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			paths = append(paths, pathOf(stack, string(name)))
		case html.EndTagToken:
			name, _ := z.TagName()
			stack = popTo(stack, string(name))
		}
	}
}

func pathOf(stack []string, tag string) string {
	start := max(0, len(stack)-(pathDepth-1))
	parts := append(append([]string{}, stack[start:]...), tag)
	return strings.Join(parts, ">")
}

// popTo closes the innermost open element named tag together with anything
// left open inside it. Stray end tags are ignored.
func popTo(stack []string, tag string) []string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return stack[:i]
		}
	}
	return stack
}
