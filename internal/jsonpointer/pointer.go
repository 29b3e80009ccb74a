// Package jsonpointer addresses locations inside generic document trees using
// RFC 6901 pointer syntax. Parsing and token escaping delegate to
// go-openapi/jsonpointer; navigation is local so a failed lookup can name the
// exact missing segment.
package jsonpointer

import (
	"fmt"
	"strconv"
	"strings"

	gojsonpointer "github.com/go-openapi/jsonpointer"
)

// Pointer is a parsed sequence of reference tokens. The zero value addresses
// the document root.
type Pointer struct {
	tokens []string
}

// Root addresses the document root.
var Root = Pointer{}

// Parse parses an RFC 6901 pointer string ("" or "/a/b/0").
func Parse(s string) (Pointer, error) {
	p, err := gojsonpointer.New(s)
	if err != nil {
		return Pointer{}, fmt.Errorf("parse pointer %q: %w", s, err)
	}
	return Pointer{tokens: p.DecodedTokens()}, nil
}

// MustParse parses a pointer known to be valid; it panics otherwise.
// Intended for fixed pointers in tests and well-known component paths.
func MustParse(s string) Pointer {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Tokens returns the decoded reference tokens.
func (p Pointer) Tokens() []string {
	return p.tokens
}

// IsRoot reports whether the pointer addresses the document root.
func (p Pointer) IsRoot() bool {
	return len(p.tokens) == 0
}

// String renders the pointer with tokens re-escaped.
func (p Pointer) String() string {
	if len(p.tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, token := range p.tokens {
		b.WriteByte('/')
		b.WriteString(gojsonpointer.Escape(token))
	}
	return b.String()
}

// Child returns a pointer extended by the given tokens.
func (p Pointer) Child(tokens ...string) Pointer {
	child := make([]string, 0, len(p.tokens)+len(tokens))
	child = append(child, p.tokens...)
	child = append(child, tokens...)
	return Pointer{tokens: child}
}

// SegmentError reports the first pointer segment that does not exist.
type SegmentError struct {
	Segment string
	At      string
}

// Error returns the error string.
func (e *SegmentError) Error() string {
	return fmt.Sprintf("pointer segment %q not found at %s", e.Segment, e.At)
}

// Navigate walks the pointer through a generic tree of maps, sequences, and
// scalars. A missing segment returns a *SegmentError naming it.
func Navigate(root any, p Pointer) (any, error) {
	current := root
	for i, token := range p.tokens {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[token]
			if !ok {
				return nil, &SegmentError{Segment: token, At: Pointer{tokens: p.tokens[:i]}.String()}
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, &SegmentError{Segment: token, At: Pointer{tokens: p.tokens[:i]}.String()}
			}
			current = node[idx]
		default:
			return nil, &SegmentError{Segment: token, At: Pointer{tokens: p.tokens[:i]}.String()}
		}
	}
	return current, nil
}
