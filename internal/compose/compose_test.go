package compose

import (
	"errors"
	"strings"
	"testing"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/jsonpointer"
	"github.com/jacoelho/openapi/internal/schema"
)

// expandWith returns an Expand that follows references through the given
// component table; non-reference nodes pass through unchanged.
func expandWith(t *testing.T, components map[string]any) Expand {
	t.Helper()
	return func(node *schema.Node) (*schema.Node, error) {
		current := node
		for current.Kind == schema.KindReference {
			name := current.Ref[strings.LastIndex(current.Ref, "/")+1:]
			raw, ok := components[name]
			if !ok {
				return nil, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
					current.ID.Pointer, string(current.ID.Document), "unknown component %q", name)
			}
			current = parseAt(t, "/components/schemas/"+name, raw)
		}
		return current, nil
	}
}

func parseAt(t *testing.T, pointer string, raw any) *schema.Node {
	t.Helper()
	return schema.Parse("doc.yaml", jsonpointer.MustParse(pointer), raw)
}

func identity(node *schema.Node) (*schema.Node, error) {
	return node, nil
}

func TestFlattenAllOfMergesProperties(t *testing.T) {
	node := parseAt(t, "/components/schemas/Dog", map[string]any{
		"allOf": []any{
			map[string]any{
				"type":       "object",
				"required":   []any{"name"},
				"properties": map[string]any{"name": map[string]any{"type": "string"}},
			},
			map[string]any{
				"type":       "object",
				"required":   []any{"breed", "name"},
				"properties": map[string]any{"breed": map[string]any{"type": "string"}},
			},
		},
	})

	merged, err := FlattenAllOf(node, identity)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if merged.Type != "object" {
		t.Fatalf("merged type = %q, want object", merged.Type)
	}
	if len(merged.Properties) != 2 {
		t.Fatalf("merged properties = %d, want 2", len(merged.Properties))
	}
	if merged.Properties[0].Name != "breed" || merged.Properties[1].Name != "name" {
		t.Fatalf("merged property order = %v, want sorted", merged.Properties)
	}
	if len(merged.Required) != 2 || merged.Required[0] != "breed" || merged.Required[1] != "name" {
		t.Fatalf("merged required = %v, want deduplicated union [breed name]", merged.Required)
	}
}

func TestFlattenAllOfOwnShapeIsABranch(t *testing.T) {
	node := parseAt(t, "/components/schemas/Named", map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "integer"}},
		"allOf": []any{
			map[string]any{
				"properties": map[string]any{"name": map[string]any{"type": "string"}},
			},
		},
	})

	merged, err := FlattenAllOf(node, identity)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if len(merged.Properties) != 2 {
		t.Fatalf("merged properties = %d, want own shape folded in", len(merged.Properties))
	}
}

func TestFlattenAllOfNestedAllOf(t *testing.T) {
	node := parseAt(t, "/components/schemas/Deep", map[string]any{
		"allOf": []any{
			map[string]any{
				"allOf": []any{
					map[string]any{"properties": map[string]any{"a": map[string]any{"type": "string"}}},
					map[string]any{"properties": map[string]any{"b": map[string]any{"type": "string"}}},
				},
			},
			map[string]any{"properties": map[string]any{"c": map[string]any{"type": "string"}}},
		},
	})

	merged, err := FlattenAllOf(node, identity)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if len(merged.Properties) != 3 {
		t.Fatalf("merged properties = %d, want 3", len(merged.Properties))
	}
}

func TestFlattenAllOfTypeConflict(t *testing.T) {
	node := parseAt(t, "/components/schemas/Broken", map[string]any{
		"allOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "object"},
		},
	})

	_, err := FlattenAllOf(node, identity)
	if err == nil {
		t.Fatalf("FlattenAllOf() expected conflict")
	}
	if !errors.Is(err, oaserrors.Resolution{Code: string(oaserrors.ErrAllOfMergeConflict)}) {
		t.Fatalf("FlattenAllOf() error = %v, want %s", err, oaserrors.ErrAllOfMergeConflict)
	}
}

func TestFlattenAllOfIntegerNarrowsNumber(t *testing.T) {
	node := parseAt(t, "/components/schemas/Count", map[string]any{
		"allOf": []any{
			map[string]any{"type": "number", "minimum": 1},
			map[string]any{"type": "integer", "minimum": 5, "maximum": 10},
		},
	})

	merged, err := FlattenAllOf(node, identity)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if merged.Type != "integer" {
		t.Fatalf("merged type = %q, want integer", merged.Type)
	}
	if merged.Constraints.Minimum == nil || *merged.Constraints.Minimum != 5 {
		t.Fatalf("merged minimum = %v, want 5 (tightest)", merged.Constraints.Minimum)
	}
	if merged.Constraints.Maximum == nil || *merged.Constraints.Maximum != 10 {
		t.Fatalf("merged maximum = %v, want 10", merged.Constraints.Maximum)
	}
}

func TestFlattenAllOfSharedPropertyMerges(t *testing.T) {
	node := parseAt(t, "/components/schemas/Tight", map[string]any{
		"allOf": []any{
			map[string]any{"properties": map[string]any{"id": map[string]any{"type": "string", "minLength": 1}}},
			map[string]any{"properties": map[string]any{"id": map[string]any{"type": "string", "maxLength": 8}}},
		},
	})

	merged, err := FlattenAllOf(node, identity)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if len(merged.Properties) != 1 {
		t.Fatalf("merged properties = %d, want 1", len(merged.Properties))
	}
	c := merged.Properties[0].Schema.Constraints
	if c.MinLength == nil || *c.MinLength != 1 || c.MaxLength == nil || *c.MaxLength != 8 {
		t.Fatalf("merged property constraints = %+v, want both bounds", c)
	}
}

func TestFlattenAllOfMergedPropertyGetsOwnIdentity(t *testing.T) {
	expand := expandWith(t, map[string]any{
		"Base": map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string", "maxLength": 10}},
		},
	})
	node := parseAt(t, "/components/schemas/Derived", map[string]any{
		"allOf": []any{
			map[string]any{"$ref": "#/components/schemas/Base"},
			map[string]any{"properties": map[string]any{"id": map[string]any{"maxLength": 5}}},
		},
	})

	merged, err := FlattenAllOf(node, expand)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	id := merged.Properties[0].Schema
	if id.Constraints.MaxLength == nil || *id.Constraints.MaxLength != 5 {
		t.Fatalf("merged property maxLength = %v, want tightened to 5", id.Constraints.MaxLength)
	}
	if got, want := id.ID.Pointer, "/components/schemas/Derived/properties/id"; got != want {
		t.Fatalf("merged property identity = %q, want fresh identity %q, not the donor branch's", got, want)
	}
}

func TestFlattenAllOfCarriesBranchConditional(t *testing.T) {
	node := parseAt(t, "/components/schemas/Payment", map[string]any{
		"allOf": []any{
			map[string]any{
				"type":       "object",
				"properties": map[string]any{"method": map[string]any{"type": "string"}},
			},
			map[string]any{
				"if":   map[string]any{"required": []any{"method"}},
				"then": map[string]any{"required": []any{"cardNumber"}},
				"dependentRequired": map[string]any{
					"cardNumber": []any{"expiry"},
				},
			},
		},
	})

	merged, err := FlattenAllOf(node, identity)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if merged.If == nil || merged.Then == nil {
		t.Fatalf("merged conditional = %v/%v, want branch if/then carried", merged.If, merged.Then)
	}
	if len(merged.Dependents) != 1 || merged.Dependents[0].Trigger != "cardNumber" {
		t.Fatalf("merged dependents = %+v, want branch dependents carried", merged.Dependents)
	}
}

func TestFlattenAllOfTwoBranchConditionalsConflict(t *testing.T) {
	node := parseAt(t, "/components/schemas/Doubly", map[string]any{
		"allOf": []any{
			map[string]any{
				"if":   map[string]any{"required": []any{"a"}},
				"then": map[string]any{"required": []any{"b"}},
			},
			map[string]any{
				"if":   map[string]any{"required": []any{"c"}},
				"then": map[string]any{"required": []any{"d"}},
			},
		},
	})

	_, err := FlattenAllOf(node, identity)
	if !errors.Is(err, oaserrors.Resolution{Code: string(oaserrors.ErrAllOfMergeConflict)}) {
		t.Fatalf("FlattenAllOf() error = %v, want %s", err, oaserrors.ErrAllOfMergeConflict)
	}
}

func TestFlattenAllOfBranchLimit(t *testing.T) {
	branches := make([]any, maxFlattenBranches+1)
	for i := range branches {
		branches[i] = map[string]any{"type": "object"}
	}
	node := parseAt(t, "/components/schemas/Huge", map[string]any{"allOf": branches})

	_, err := FlattenAllOf(node, identity)
	if !errors.Is(err, oaserrors.Resolution{Code: string(oaserrors.ErrAllOfBranchLimit)}) {
		t.Fatalf("FlattenAllOf() error = %v, want %s", err, oaserrors.ErrAllOfBranchLimit)
	}
}

func TestFlattenAllOfExpandsReferences(t *testing.T) {
	expand := expandWith(t, map[string]any{
		"Base": map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
		},
	})
	node := parseAt(t, "/components/schemas/Derived", map[string]any{
		"allOf": []any{
			map[string]any{"$ref": "#/components/schemas/Base"},
			map[string]any{"properties": map[string]any{"extra": map[string]any{"type": "string"}}},
		},
	})

	merged, err := FlattenAllOf(node, expand)
	if err != nil {
		t.Fatalf("FlattenAllOf() error = %v", err)
	}
	if len(merged.Properties) != 2 {
		t.Fatalf("merged properties = %d, want referenced branch folded in", len(merged.Properties))
	}
}

func TestVariantsEmptyAnyOf(t *testing.T) {
	node := parseAt(t, "/components/schemas/Empty", map[string]any{"anyOf": []any{}})

	_, err := Variants(node, identity)
	if !errors.Is(err, oaserrors.Resolution{Code: string(oaserrors.ErrAnyOfEmpty)}) {
		t.Fatalf("Variants() error = %v, want %s", err, oaserrors.ErrAnyOfEmpty)
	}
}

func TestVariantsDiscriminatorImplicitMapping(t *testing.T) {
	expand := expandWith(t, map[string]any{
		"Dog": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"petType": map[string]any{"const": "dog"},
				"bark":    map[string]any{"type": "boolean"},
			},
		},
		"Cat": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"petType": map[string]any{"enum": []any{"cat"}},
			},
		},
	})
	node := parseAt(t, "/components/schemas/Pet", map[string]any{
		"oneOf": []any{
			map[string]any{"$ref": "#/components/schemas/Dog"},
			map[string]any{"$ref": "#/components/schemas/Cat"},
		},
		"discriminator": map[string]any{"propertyName": "petType"},
	})

	set, err := Variants(node, expand)
	if err != nil {
		t.Fatalf("Variants() error = %v", err)
	}
	if set.Discriminator == nil {
		t.Fatalf("Variants() discriminator = nil")
	}
	if len(set.Discriminator.Entries) != 2 {
		t.Fatalf("discriminator entries = %d, want 2", len(set.Discriminator.Entries))
	}
	if set.Tags[0] != "dog" || set.Tags[1] != "cat" {
		t.Fatalf("variant tags = %v, want [dog cat]", set.Tags)
	}
}

func TestVariantsDiscriminatorDeclaredMapping(t *testing.T) {
	expand := expandWith(t, map[string]any{
		"Dog": map[string]any{"properties": map[string]any{"petType": map[string]any{"const": "canine"}}},
		"Cat": map[string]any{"properties": map[string]any{"petType": map[string]any{"const": "feline"}}},
	})
	node := parseAt(t, "/components/schemas/Pet", map[string]any{
		"oneOf": []any{
			map[string]any{"$ref": "#/components/schemas/Dog"},
			map[string]any{"$ref": "#/components/schemas/Cat"},
		},
		"discriminator": map[string]any{
			"propertyName": "petType",
			"mapping": map[string]any{
				"canine": "#/components/schemas/Dog",
				"feline": "Cat",
			},
		},
	})

	set, err := Variants(node, expand)
	if err != nil {
		t.Fatalf("Variants() error = %v", err)
	}
	for _, entry := range set.Discriminator.Entries {
		switch entry.Tag {
		case "canine":
			if entry.Branch != 0 {
				t.Fatalf("canine branch = %d, want 0", entry.Branch)
			}
		case "feline":
			if entry.Branch != 1 {
				t.Fatalf("feline branch = %d, want 1", entry.Branch)
			}
		default:
			t.Fatalf("unexpected tag %q", entry.Tag)
		}
	}
}

func TestVariantsDiscriminatorMissingTag(t *testing.T) {
	expand := expandWith(t, map[string]any{
		"Dog": map[string]any{"properties": map[string]any{"petType": map[string]any{"const": "dog"}}},
		"Cat": map[string]any{"properties": map[string]any{"name": map[string]any{"type": "string"}}},
	})
	node := parseAt(t, "/components/schemas/Pet", map[string]any{
		"oneOf": []any{
			map[string]any{"$ref": "#/components/schemas/Dog"},
			map[string]any{"$ref": "#/components/schemas/Cat"},
		},
		"discriminator": map[string]any{"propertyName": "petType"},
	})

	_, err := Variants(node, expand)
	if !errors.Is(err, oaserrors.Resolution{Code: string(oaserrors.ErrOneOfDiscriminatorMissing)}) {
		t.Fatalf("Variants() error = %v, want %s", err, oaserrors.ErrOneOfDiscriminatorMissing)
	}
}

func TestVariantsDiscriminatorMappingToUnknownVariant(t *testing.T) {
	expand := expandWith(t, map[string]any{
		"Dog": map[string]any{"properties": map[string]any{"petType": map[string]any{"const": "dog"}}},
	})
	node := parseAt(t, "/components/schemas/Pet", map[string]any{
		"oneOf": []any{
			map[string]any{"$ref": "#/components/schemas/Dog"},
		},
		"discriminator": map[string]any{
			"propertyName": "petType",
			"mapping":      map[string]any{"dog": "#/components/schemas/Wolf"},
		},
	})

	_, err := Variants(node, expand)
	if !errors.Is(err, oaserrors.Resolution{Code: string(oaserrors.ErrOneOfDiscriminatorMissing)}) {
		t.Fatalf("Variants() error = %v, want %s", err, oaserrors.ErrOneOfDiscriminatorMissing)
	}
}

func TestVariantsAmbiguousOneOfWarns(t *testing.T) {
	node := parseAt(t, "/components/schemas/Loose", map[string]any{
		"oneOf": []any{
			map[string]any{"type": "object", "properties": map[string]any{"a": map[string]any{"type": "string"}}},
			map[string]any{"type": "object", "properties": map[string]any{"a": map[string]any{"type": "string"}}},
		},
	})

	set, err := Variants(node, identity)
	if err != nil {
		t.Fatalf("Variants() error = %v", err)
	}
	if len(set.Warnings) != 1 {
		t.Fatalf("Variants() warnings = %d, want 1", len(set.Warnings))
	}
	if set.Warnings[0].Code != string(oaserrors.WarnOneOfAmbiguousVariants) {
		t.Fatalf("warning code = %q, want %s", set.Warnings[0].Code, oaserrors.WarnOneOfAmbiguousVariants)
	}
}

func TestVariantsDistinguishableByRequired(t *testing.T) {
	node := parseAt(t, "/components/schemas/Shape", map[string]any{
		"oneOf": []any{
			map[string]any{
				"type":       "object",
				"required":   []any{"radius"},
				"properties": map[string]any{"radius": map[string]any{"type": "number"}},
			},
			map[string]any{
				"type":       "object",
				"required":   []any{"width"},
				"properties": map[string]any{"width": map[string]any{"type": "number"}},
			},
		},
	})

	set, err := Variants(node, identity)
	if err != nil {
		t.Fatalf("Variants() error = %v", err)
	}
	if len(set.Warnings) != 0 {
		t.Fatalf("Variants() warnings = %v, want none", set.Warnings)
	}
}

func TestEvaluatedNames(t *testing.T) {
	node := parseAt(t, "/components/schemas/Strict", map[string]any{
		"allOf": []any{
			map[string]any{"properties": map[string]any{"a": map[string]any{"type": "string"}}},
			map[string]any{"properties": map[string]any{"b": map[string]any{"type": "string"}}},
		},
		"then":                  map[string]any{"properties": map[string]any{"c": map[string]any{"type": "string"}}},
		"if":                    map[string]any{"required": []any{"a"}},
		"unevaluatedProperties": false,
	})

	names := EvaluatedNames(node)
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("EvaluatedNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("EvaluatedNames() = %v, want %v", names, want)
		}
	}
}
