package compose

import (
	"fmt"

	"github.com/jacoelho/openapi/internal/jsonpointer"
	"github.com/jacoelho/openapi/internal/schema"
)

// compatibleTypes reports whether two declared primitive types can satisfy
// the same instance. integer narrows number; everything else must match.
func compatibleTypes(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	if (a == "number" && b == "integer") || (a == "integer" && b == "number") {
		return true
	}
	return false
}

// narrowerType picks the tighter of two compatible types.
func narrowerType(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a == "number" && b == "integer" {
		return "integer"
	}
	return a
}

func mergeType(merged, branch *schema.Node) error {
	if !compatibleTypes(merged.Type, branch.Type) {
		return conflict("type", merged.ID, branch.ID,
			"type %q conflicts with type %q", merged.Type, branch.Type)
	}
	merged.Type = narrowerType(merged.Type, branch.Type)
	return nil
}

// childID derives the identity of a merge product under the composed node's
// own pointer. A merged subschema must never keep a donor branch's identity:
// the donor may resolve on its own, and one identity maps to one result.
func childID(owner schema.NodeID, segments ...string) schema.NodeID {
	ptr := jsonpointer.MustParse(owner.Pointer).Child(segments...)
	return schema.NodeID{Document: owner.Document, Pointer: ptr.String()}
}

// mergeSchemas merges two subschemas declared for the same property under
// intersection semantics, producing a node identified by id. Both sides are
// expanded first so references merge by structure.
func mergeSchemas(a, b *schema.Node, id schema.NodeID, property string, expand Expand) (*schema.Node, error) {
	var err error
	if a, err = expand(a); err != nil {
		return nil, err
	}
	if b, err = expand(b); err != nil {
		return nil, err
	}

	if !compatibleTypes(a.Type, b.Type) {
		return nil, conflict(property, a.ID, b.ID,
			"type %q conflicts with type %q", a.Type, b.Type)
	}

	merged := *a
	merged.ID = id
	merged.Type = narrowerType(a.Type, b.Type)
	if merged.Format == "" {
		merged.Format = b.Format
	}

	tightenConstraints(&merged.Constraints, b.Constraints)

	merged.Required = append(append([]string(nil), a.Required...), b.Required...)

	merged.Properties = append([]schema.Property(nil), a.Properties...)
	for _, prop := range b.Properties {
		existing := findProperty(&merged, prop.Name)
		if existing == nil {
			merged.Properties = append(merged.Properties, prop)
			continue
		}
		combined, err := mergeSchemas(existing.Schema, prop.Schema, childID(id, "properties", prop.Name), prop.Name, expand)
		if err != nil {
			return nil, err
		}
		existing.Schema = combined
	}

	if b.Items != nil {
		if merged.Items == nil {
			merged.Items = b.Items
		} else {
			combined, err := mergeSchemas(merged.Items, b.Items, childID(id, "items"), property+" items", expand)
			if err != nil {
				return nil, err
			}
			merged.Items = combined
		}
	}

	merged.AdditionalProperties = tightenAdditional(a.AdditionalProperties, b.AdditionalProperties)

	if b.HasConst {
		if a.HasConst && fmt.Sprint(a.Const) != fmt.Sprint(b.Const) {
			return nil, conflict(property, a.ID, b.ID,
				"const %v conflicts with const %v", a.Const, b.Const)
		}
		merged.Const = b.Const
		merged.HasConst = true
	}
	merged.Enum = intersectEnum(a.Enum, b.Enum)
	if b.Nullable {
		merged.Nullable = true
	}
	if a.Never || b.Never {
		merged.Never = true
	}
	return &merged, nil
}

// tightenConstraints folds branch bounds into the accumulated bounds, keeping
// the numerically tighter one: minimum takes the max of minimums, maximum and
// length/item caps take the min of maximums.
func tightenConstraints(into *schema.Constraints, from schema.Constraints) {
	into.Minimum = maxFloat(into.Minimum, from.Minimum)
	into.ExclusiveMinimum = maxFloat(into.ExclusiveMinimum, from.ExclusiveMinimum)
	into.Maximum = minFloat(into.Maximum, from.Maximum)
	into.ExclusiveMaximum = minFloat(into.ExclusiveMaximum, from.ExclusiveMaximum)
	if into.MultipleOf == nil {
		into.MultipleOf = from.MultipleOf
	}
	into.MinLength = maxInt(into.MinLength, from.MinLength)
	into.MaxLength = minInt(into.MaxLength, from.MaxLength)
	if into.Pattern == "" {
		into.Pattern = from.Pattern
	}
	into.MinItems = maxInt(into.MinItems, from.MinItems)
	into.MaxItems = minInt(into.MaxItems, from.MaxItems)
	into.UniqueItems = into.UniqueItems || from.UniqueItems
	into.MinProperties = maxInt(into.MinProperties, from.MinProperties)
	into.MaxProperties = minInt(into.MaxProperties, from.MaxProperties)
}

// tightenAdditional keeps the most restrictive extra-properties policy:
// false beats a schema, a schema beats true, anything beats unset.
func tightenAdditional(a, b schema.Additional) schema.Additional {
	switch {
	case !b.Set:
		return a
	case !a.Set:
		return b
	case !a.Allowed:
		return a
	case !b.Allowed:
		return b
	case a.Schema != nil:
		return a
	default:
		return b
	}
}

// intersectEnum keeps values present in both sets; an empty set means the
// keyword is absent and constrains nothing.
func intersectEnum(a, b []any) []any {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	keep := make([]any, 0, len(a))
	for _, va := range a {
		for _, vb := range b {
			if fmt.Sprint(va) == fmt.Sprint(vb) {
				keep = append(keep, va)
				break
			}
		}
	}
	return keep
}

func maxFloat(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

func minFloat(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}

func maxInt(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

func minInt(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b < *a:
		return b
	default:
		return a
	}
}
