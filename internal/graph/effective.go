// Package graph holds the engine's output data structure: an arena of
// normalized effective schemas addressed by integer refs. Edges are refs, not
// owning pointers, so mutually referential schemas are represented without
// recursive ownership. A finished Graph is immutable and safe for
// unsynchronized concurrent reads.
package graph

import (
	"github.com/jacoelho/openapi/internal/schema"
)

// Ref addresses a node inside the graph arena.
type Ref int32

// Invalid marks an absent edge.
const Invalid Ref = -1

// IsValid reports whether the ref addresses a node.
func (r Ref) IsValid() bool {
	return r >= 0
}

// PolicyMode classifies an additionalProperties/unevaluatedProperties policy.
type PolicyMode uint8

const (
	// PolicyUnset means the schema does not constrain extra properties.
	PolicyUnset PolicyMode = iota
	// PolicyAllow means extra properties are explicitly allowed.
	PolicyAllow
	// PolicyForbid means extra properties are rejected.
	PolicyForbid
	// PolicySchema means extra properties must satisfy the referenced schema.
	PolicySchema
)

// Policy is a resolved extra-properties policy.
type Policy struct {
	Mode   PolicyMode
	Schema Ref
}

// Property is one named property with its resolved schema edge.
type Property struct {
	Name   string
	Schema Ref
}

// VariantMode distinguishes oneOf from anyOf variant sets.
type VariantMode uint8

const (
	VariantNone VariantMode = iota
	VariantOneOf
	VariantAnyOf
)

// Variant is one candidate schema of a oneOf/anyOf union.
type Variant struct {
	Tag    string
	Schema Ref
}

// DiscriminatorMap maps declared discriminator tag values to resolved
// variant schemas, in deterministic tag order.
type DiscriminatorMap struct {
	Property string
	Entries  []DiscriminatorTarget
}

// DiscriminatorTarget is one tag value and its resolved variant.
type DiscriminatorTarget struct {
	Tag    string
	Schema Ref
}

// Target returns the schema mapped to the given tag value.
func (m *DiscriminatorMap) Target(tag string) (Ref, bool) {
	if m == nil {
		return Invalid, false
	}
	for _, entry := range m.Entries {
		if entry.Tag == tag {
			return entry.Schema, true
		}
	}
	return Invalid, false
}

// Conditional is a normalized if/then/else. Invalid branch refs mean "no
// additional constraint" on that branch.
type Conditional struct {
	If   Ref
	Then Ref
	Else Ref
}

// Dependent is one triggering property with its conditional extra
// constraints.
type Dependent struct {
	Trigger  string
	Required []string
	Schema   Ref
}

// EffectiveSchema is the fully normalized result of resolving and composing
// one schema node: no unresolved references, no unmerged allOf.
type EffectiveSchema struct {
	ID   schema.NodeID
	Name string

	// Failed marks a node whose resolution failed in fail-soft mode; the
	// recorded error lives in the graph diagnostics.
	Failed bool

	// Never marks a schema no instance satisfies (boolean schema false).
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

	Constraints schema.Constraints

	Properties            []Property
	Required              []string
	AdditionalProperties  Policy
	UnevaluatedProperties Policy

	// Evaluated lists every property name contributed by any composition
	// branch, populated only when an unevaluatedProperties policy is set.
	Evaluated []string

	Items Ref

	VariantMode   VariantMode
	Variants      []Variant
	Discriminator *DiscriminatorMap

	Conditional *Conditional
	Dependents  []Dependent
}

// Property returns the resolved schema edge for a property name.
func (s *EffectiveSchema) Property(name string) (Ref, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return Invalid, false
}

// RequiredSet reports whether the property name is required.
func (s *EffectiveSchema) RequiredSet(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}
