package schema

import (
	"testing"

	"github.com/jacoelho/openapi/internal/jsonpointer"
)

func TestParseClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Kind
	}{
		{name: "reference", raw: map[string]any{"$ref": "#/components/schemas/Pet"}, want: KindReference},
		{name: "all of", raw: map[string]any{"allOf": []any{map[string]any{"type": "object"}}}, want: KindComposed},
		{name: "one of", raw: map[string]any{"oneOf": []any{map[string]any{"type": "string"}}}, want: KindComposed},
		{name: "conditional", raw: map[string]any{"if": map[string]any{"type": "string"}, "then": map[string]any{"minLength": 1}}, want: KindConditional},
		{name: "object by type", raw: map[string]any{"type": "object"}, want: KindObject},
		{name: "object by properties", raw: map[string]any{"properties": map[string]any{"id": map[string]any{"type": "string"}}}, want: KindObject},
		{name: "array by items", raw: map[string]any{"items": map[string]any{"type": "string"}}, want: KindArray},
		{name: "primitive", raw: map[string]any{"type": "string"}, want: KindPrimitive},
		{name: "empty", raw: map[string]any{}, want: KindAny},
		{name: "scalar garbage", raw: 42, want: KindAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := Parse("doc.yaml", jsonpointer.Root, tt.raw)
			if node.Kind != tt.want {
				t.Fatalf("Parse() kind = %v, want %v", node.Kind, tt.want)
			}
		})
	}
}

func TestParseBooleanSchemas(t *testing.T) {
	node := Parse("doc.yaml", jsonpointer.Root, false)
	if !node.Never {
		t.Fatalf("Parse(false) Never = false, want true")
	}
	node = Parse("doc.yaml", jsonpointer.Root, true)
	if node.Never || node.Kind != KindAny {
		t.Fatalf("Parse(true) = %+v, want unconstrained", node)
	}
}

func TestParsePropertiesSortedAndIdentified(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"zebra": map[string]any{"type": "string"},
			"alpha": map[string]any{"type": "integer"},
			"mid":   map[string]any{"type": "boolean"},
		},
		"required": []any{"alpha"},
	}
	node := Parse("doc.yaml", jsonpointer.MustParse("/components/schemas/Thing"), raw)

	want := []string{"alpha", "mid", "zebra"}
	if len(node.Properties) != len(want) {
		t.Fatalf("Parse() properties = %d, want %d", len(node.Properties), len(want))
	}
	for i, name := range want {
		if node.Properties[i].Name != name {
			t.Fatalf("properties[%d] = %q, want %q", i, node.Properties[i].Name, name)
		}
	}
	gotPtr := node.Properties[0].Schema.ID.Pointer
	wantPtr := "/components/schemas/Thing/properties/alpha"
	if gotPtr != wantPtr {
		t.Fatalf("property pointer = %q, want %q", gotPtr, wantPtr)
	}
	if len(node.Required) != 1 || node.Required[0] != "alpha" {
		t.Fatalf("required = %v, want [alpha]", node.Required)
	}
}

func TestParseDynamicRef(t *testing.T) {
	node := Parse("doc.yaml", jsonpointer.Root, map[string]any{"$dynamicRef": "#items"})
	if node.Kind != KindReference || !node.Dynamic || node.Ref != "#items" {
		t.Fatalf("Parse($dynamicRef) = %+v, want dynamic reference", node)
	}
}

func TestParseDiscriminator(t *testing.T) {
	raw := map[string]any{
		"oneOf": []any{
			map[string]any{"$ref": "#/components/schemas/Dog"},
			map[string]any{"$ref": "#/components/schemas/Cat"},
		},
		"discriminator": map[string]any{
			"propertyName": "petType",
			"mapping": map[string]any{
				"dog": "#/components/schemas/Dog",
				"cat": "#/components/schemas/Cat",
			},
		},
	}
	node := Parse("doc.yaml", jsonpointer.Root, raw)
	if node.Discriminator == nil {
		t.Fatalf("Parse() discriminator = nil")
	}
	if node.Discriminator.Property != "petType" {
		t.Fatalf("discriminator property = %q, want %q", node.Discriminator.Property, "petType")
	}
	if len(node.Discriminator.Mapping) != 2 {
		t.Fatalf("mapping entries = %d, want 2", len(node.Discriminator.Mapping))
	}
	if node.Discriminator.Mapping[0].Tag != "cat" || node.Discriminator.Mapping[1].Tag != "dog" {
		t.Fatalf("mapping order = %v, want sorted tags", node.Discriminator.Mapping)
	}
}

func TestParseDependentsMerged(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"dependentRequired": map[string]any{
			"creditCard": []any{"billingAddress"},
		},
		"dependentSchemas": map[string]any{
			"creditCard": map[string]any{
				"properties": map[string]any{
					"billingAddress": map[string]any{"type": "string"},
				},
			},
			"paypal": map[string]any{"type": "object"},
		},
	}
	node := Parse("doc.yaml", jsonpointer.Root, raw)
	if len(node.Dependents) != 2 {
		t.Fatalf("dependents = %d, want 2", len(node.Dependents))
	}
	first := node.Dependents[0]
	if first.Trigger != "creditCard" {
		t.Fatalf("dependents[0].Trigger = %q, want creditCard", first.Trigger)
	}
	if len(first.Required) != 1 || first.Required[0] != "billingAddress" {
		t.Fatalf("dependents[0].Required = %v, want [billingAddress]", first.Required)
	}
	if first.Schema == nil {
		t.Fatalf("dependents[0].Schema = nil, want merged schema")
	}
	if node.Dependents[1].Trigger != "paypal" || node.Dependents[1].Schema == nil {
		t.Fatalf("dependents[1] = %+v, want paypal schema", node.Dependents[1])
	}
}

func TestParseConstraints(t *testing.T) {
	raw := map[string]any{
		"type":      "string",
		"minLength": 1,
		"maxLength": 64,
		"pattern":   "^[a-z]+$",
	}
	node := Parse("doc.yaml", jsonpointer.Root, raw)
	c := node.Constraints
	if c.MinLength == nil || *c.MinLength != 1 {
		t.Fatalf("MinLength = %v, want 1", c.MinLength)
	}
	if c.MaxLength == nil || *c.MaxLength != 64 {
		t.Fatalf("MaxLength = %v, want 64", c.MaxLength)
	}
	if c.Pattern != "^[a-z]+$" {
		t.Fatalf("Pattern = %q", c.Pattern)
	}
	if c.Empty() {
		t.Fatalf("Empty() = true, want false")
	}
}

func TestParseAdditionalProperties(t *testing.T) {
	node := Parse("doc.yaml", jsonpointer.Root, map[string]any{"type": "object", "additionalProperties": false})
	if !node.AdditionalProperties.Set || node.AdditionalProperties.Allowed {
		t.Fatalf("additionalProperties = %+v, want forbidden", node.AdditionalProperties)
	}

	node = Parse("doc.yaml", jsonpointer.Root, map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	})
	if node.AdditionalProperties.Schema == nil {
		t.Fatalf("additionalProperties schema = nil, want string schema")
	}
}
