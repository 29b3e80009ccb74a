package schema

import (
	"strconv"

	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/jsonpointer"
	"github.com/jacoelho/openapi/internal/xiter"
)

// Parse converts a raw document subtree into a Node. Parsing is lenient:
// malformed keywords are ignored rather than failing, so untrusted input
// degrades to weaker constraints instead of aborting the branch. Structural
// problems that matter (bad refs, impossible merges) surface later in the
// resolver and normalizer.
func Parse(doc document.ID, ptr jsonpointer.Pointer, raw any) *Node {
	node := &Node{ID: NodeID{Document: doc, Pointer: ptr.String()}}

	switch v := raw.(type) {
	case bool:
		node.Never = !v
		node.Kind = KindAny
		return node
	case map[string]any:
		parseObject(node, doc, ptr, v)
	default:
		node.Kind = KindAny
		return node
	}

	node.Kind = classify(node)
	return node
}

func parseObject(node *Node, doc document.ID, ptr jsonpointer.Pointer, m map[string]any) {
	if ref, ok := asString(m["$ref"]); ok {
		node.Ref = ref
	}
	if ref, ok := asString(m["$dynamicRef"]); ok {
		node.Ref = ref
		node.Dynamic = true
	}
	if anchor, ok := asString(m["$dynamicAnchor"]); ok {
		node.DynamicAnchor = anchor
	}

	node.Type, _ = asString(m["type"])
	node.Format, _ = asString(m["format"])
	node.Description, _ = asString(m["description"])
	node.Deprecated, _ = asBool(m["deprecated"])
	node.Nullable, _ = asBool(m["nullable"])
	if enum, ok := m["enum"].([]any); ok {
		node.Enum = enum
	}
	if c, ok := m["const"]; ok {
		node.Const = c
		node.HasConst = true
	}
	node.Default = m["default"]

	parseConstraints(&node.Constraints, m)

	if props, ok := m["properties"].(map[string]any); ok {
		for name := range xiter.SortedKeys(props) {
			node.Properties = append(node.Properties, Property{
				Name:   name,
				Schema: Parse(doc, ptr.Child("properties", name), props[name]),
			})
		}
	}
	if req, ok := asStringSlice(m["required"]); ok {
		node.Required = req
	}
	node.AdditionalProperties = parseAdditional(doc, ptr.Child("additionalProperties"), m, "additionalProperties")
	node.UnevaluatedProperties = parseAdditional(doc, ptr.Child("unevaluatedProperties"), m, "unevaluatedProperties")

	if items, ok := m["items"]; ok {
		node.Items = Parse(doc, ptr.Child("items"), items)
	}

	node.Branches, node.Compose = parseBranches(doc, ptr, m)
	node.Discriminator = parseDiscriminator(m)

	if cond, ok := m["if"]; ok {
		node.If = Parse(doc, ptr.Child("if"), cond)
	}
	if then, ok := m["then"]; ok {
		node.Then = Parse(doc, ptr.Child("then"), then)
	}
	if els, ok := m["else"]; ok {
		node.Else = Parse(doc, ptr.Child("else"), els)
	}
	node.Dependents = parseDependents(doc, ptr, m)
}

func parseBranches(doc document.ID, ptr jsonpointer.Pointer, m map[string]any) ([]*Node, ComposeMode) {
	for _, keyword := range []struct {
		name string
		mode ComposeMode
	}{
		{"allOf", ComposeAllOf},
		{"oneOf", ComposeOneOf},
		{"anyOf", ComposeAnyOf},
	} {
		raw, ok := m[keyword.name]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		branches := make([]*Node, 0, len(list))
		for i, branch := range list {
			branches = append(branches, Parse(doc, ptr.Child(keyword.name, strconv.Itoa(i)), branch))
		}
		return branches, keyword.mode
	}
	return nil, ComposeNone
}

func parseAdditional(doc document.ID, ptr jsonpointer.Pointer, m map[string]any, keyword string) Additional {
	raw, ok := m[keyword]
	if !ok {
		return Additional{}
	}
	switch v := raw.(type) {
	case bool:
		return Additional{Set: true, Allowed: v}
	case map[string]any:
		return Additional{Set: true, Allowed: true, Schema: Parse(doc, ptr, v)}
	default:
		return Additional{}
	}
}

func parseDiscriminator(m map[string]any) *Discriminator {
	raw, ok := m["discriminator"].(map[string]any)
	if !ok {
		return nil
	}
	property, ok := asString(raw["propertyName"])
	if !ok || property == "" {
		return nil
	}
	d := &Discriminator{Property: property}
	if mapping, ok := raw["mapping"].(map[string]any); ok {
		for tag := range xiter.SortedKeys(mapping) {
			if target, ok := asString(mapping[tag]); ok {
				d.Mapping = append(d.Mapping, DiscriminatorEntry{Tag: tag, Ref: target})
			}
		}
	}
	return d
}

func parseDependents(doc document.ID, ptr jsonpointer.Pointer, m map[string]any) []Dependent {
	byTrigger := make(map[string]*Dependent)
	order := []string{}

	ensure := func(trigger string) *Dependent {
		if d, ok := byTrigger[trigger]; ok {
			return d
		}
		d := &Dependent{Trigger: trigger}
		byTrigger[trigger] = d
		order = append(order, trigger)
		return d
	}

	if raw, ok := m["dependentRequired"].(map[string]any); ok {
		for trigger := range xiter.SortedKeys(raw) {
			if extra, ok := asStringSlice(raw[trigger]); ok {
				ensure(trigger).Required = extra
			}
		}
	}
	if raw, ok := m["dependentSchemas"].(map[string]any); ok {
		for trigger := range xiter.SortedKeys(raw) {
			ensure(trigger).Schema = Parse(doc, ptr.Child("dependentSchemas", trigger), raw[trigger])
		}
	}

	if len(order) == 0 {
		return nil
	}
	dependents := make([]Dependent, 0, len(order))
	for _, trigger := range order {
		dependents = append(dependents, *byTrigger[trigger])
	}
	return dependents
}

func parseConstraints(c *Constraints, m map[string]any) {
	c.Minimum = asFloatPtr(m["minimum"])
	c.Maximum = asFloatPtr(m["maximum"])
	c.ExclusiveMinimum = asFloatPtr(m["exclusiveMinimum"])
	c.ExclusiveMaximum = asFloatPtr(m["exclusiveMaximum"])
	c.MultipleOf = asFloatPtr(m["multipleOf"])
	c.MinLength = asIntPtr(m["minLength"])
	c.MaxLength = asIntPtr(m["maxLength"])
	c.Pattern, _ = asString(m["pattern"])
	c.MinItems = asIntPtr(m["minItems"])
	c.MaxItems = asIntPtr(m["maxItems"])
	c.UniqueItems, _ = asBool(m["uniqueItems"])
	c.MinProperties = asIntPtr(m["minProperties"])
	c.MaxProperties = asIntPtr(m["maxProperties"])
}

func classify(node *Node) Kind {
	switch {
	case node.Ref != "":
		return KindReference
	case node.Compose != ComposeNone:
		return KindComposed
	case node.If != nil || len(node.Dependents) > 0:
		return KindConditional
	case node.Type == "object" || len(node.Properties) > 0 || len(node.Required) > 0 || node.AdditionalProperties.Set:
		return KindObject
	case node.Type == "array" || node.Items != nil:
		return KindArray
	case node.Type != "":
		return KindPrimitive
	default:
		return KindAny
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asStringSlice(v any) ([]string, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func asIntPtr(v any) *int {
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	default:
		return nil
	}
}
