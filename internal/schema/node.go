// Package schema models raw schema trees as typed nodes. A Node is the
// pre-resolution view of one schema location; identity is the pair of
// canonical document ID and JSON Pointer, which is stable across the session
// and keys both memoization and the output graph.
package schema

import (
	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/jsonpointer"
)

// NodeID identifies a schema location inside a loaded document.
type NodeID struct {
	Document document.ID
	Pointer  string
}

// String renders the identity as document#pointer.
func (id NodeID) String() string {
	return string(id.Document) + "#" + id.Pointer
}

// Kind classifies a schema node for pipeline dispatch.
type Kind uint8

const (
	// KindAny is an unconstrained or constraint-only leaf schema.
	KindAny Kind = iota
	// KindObject is an object schema with properties.
	KindObject
	// KindArray is an array schema.
	KindArray
	// KindPrimitive is a string/number/integer/boolean/null schema.
	KindPrimitive
	// KindReference is an unresolved $ref or $dynamicRef.
	KindReference
	// KindComposed carries allOf/oneOf/anyOf branches.
	KindComposed
	// KindConditional carries if/then/else or dependent constraints.
	KindConditional
)

// ComposeMode identifies which composition keyword a composed node uses.
type ComposeMode uint8

const (
	ComposeNone ComposeMode = iota
	ComposeAllOf
	ComposeOneOf
	ComposeAnyOf
)

// Property is one named object property with its subschema.
type Property struct {
	Name   string
	Schema *Node
}

// Additional describes an additionalProperties or unevaluatedProperties
// policy: absent, boolean, or a constraining schema.
type Additional struct {
	Set     bool
	Allowed bool
	Schema  *Node
}

// Discriminator names the property selecting a oneOf variant and the declared
// tag-to-reference mapping in deterministic key order.
type Discriminator struct {
	Property string
	Mapping  []DiscriminatorEntry
}

// DiscriminatorEntry is one tag value and its target reference.
type DiscriminatorEntry struct {
	Tag string
	Ref string
}

// Dependent is one dependentRequired/dependentSchemas trigger with its extra
// constraints: an additional required list, a nested schema, or both.
type Dependent struct {
	Trigger  string
	Required []string
	Schema   *Node
}

// Node is the tagged pre-resolution schema representation. Children parsed
// from the same document are held in place; cross-document edges stay as raw
// reference strings until the resolver replaces them.
type Node struct {
	ID   NodeID
	Kind Kind

	// Never marks the boolean schema "false", which no instance satisfies.
	Never bool

	Type        string
	Format      string
	Nullable    bool
	Description string
	Deprecated  bool
	Enum        []any
	Const       any
	HasConst    bool
	Default     any

	Constraints Constraints

	Properties            []Property
	Required              []string
	AdditionalProperties  Additional
	UnevaluatedProperties Additional

	Items *Node

	Ref           string
	Dynamic       bool
	DynamicAnchor string

	Compose       ComposeMode
	Branches      []*Node
	Discriminator *Discriminator

	If   *Node
	Then *Node
	Else *Node

	Dependents []Dependent
}

// Pointer returns the node's location inside its document.
func (n *Node) Pointer() jsonpointer.Pointer {
	return jsonpointer.MustParse(n.ID.Pointer)
}

// HasOwnShape reports whether a composed node also declares constraints of
// its own (type, properties, required, bounds); the normalizer folds these in
// as an implicit extra branch.
func (n *Node) HasOwnShape() bool {
	return n.Type != "" || len(n.Properties) > 0 || len(n.Required) > 0 ||
		n.AdditionalProperties.Set || n.Items != nil || !n.Constraints.Empty() ||
		len(n.Enum) > 0 || n.HasConst
}
