package jsonpointer

import (
	"errors"
	"testing"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		pointer string
		tokens  []string
	}{
		{pointer: "", tokens: nil},
		{pointer: "/components/schemas/Pet", tokens: []string{"components", "schemas", "Pet"}},
		{pointer: "/paths/~1pets~1{id}/get", tokens: []string{"paths", "/pets/{id}", "get"}},
		{pointer: "/a~0b", tokens: []string{"a~b"}},
		{pointer: "/items/0", tokens: []string{"items", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.pointer, func(t *testing.T) {
			p, err := Parse(tt.pointer)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.pointer, err)
			}
			got := p.Tokens()
			if len(got) != len(tt.tokens) {
				t.Fatalf("Parse(%q) tokens = %v, want %v", tt.pointer, got, tt.tokens)
			}
			for i := range got {
				if got[i] != tt.tokens[i] {
					t.Fatalf("Parse(%q) tokens = %v, want %v", tt.pointer, got, tt.tokens)
				}
			}
			if p.String() != tt.pointer {
				t.Fatalf("String() = %q, want %q", p.String(), tt.pointer)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("components/schemas"); err == nil {
		t.Fatalf("Parse() expected error for missing leading slash")
	}
}

func TestChildEscapes(t *testing.T) {
	p := Root.Child("paths", "/pets/{id}", "get")
	want := "/paths/~1pets~1{id}/get"
	if p.String() != want {
		t.Fatalf("Child().String() = %q, want %q", p.String(), want)
	}
}

func TestNavigate(t *testing.T) {
	root := map[string]any{
		"components": map[string]any{
			"schemas": map[string]any{
				"Pet": map[string]any{"type": "object"},
			},
		},
		"servers": []any{
			map[string]any{"url": "https://example.com"},
		},
	}

	got, err := Navigate(root, MustParse("/components/schemas/Pet/type"))
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if got != "object" {
		t.Fatalf("Navigate() = %v, want %q", got, "object")
	}

	got, err = Navigate(root, MustParse("/servers/0/url"))
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if got != "https://example.com" {
		t.Fatalf("Navigate() = %v, want server url", got)
	}

	if got, err = Navigate(root, Root); err != nil || got == nil {
		t.Fatalf("Navigate(root) = %v, %v, want document root", got, err)
	}
}

func TestNavigateMissingSegment(t *testing.T) {
	root := map[string]any{
		"components": map[string]any{},
	}
	_, err := Navigate(root, MustParse("/components/schemas/Pet"))
	if err == nil {
		t.Fatalf("Navigate() expected error")
	}
	var segErr *SegmentError
	if !errors.As(err, &segErr) {
		t.Fatalf("Navigate() error = %T, want *SegmentError", err)
	}
	if segErr.Segment != "schemas" {
		t.Fatalf("SegmentError.Segment = %q, want %q", segErr.Segment, "schemas")
	}
	if segErr.At != "/components" {
		t.Fatalf("SegmentError.At = %q, want %q", segErr.At, "/components")
	}
}
