// Package conditional normalizes if/then/else and dependent constraints into
// explicit branch structure. No instance data is ever evaluated here; whether
// a condition holds depends on a concrete document, which is a consumer
// concern. This stage only validates structural well-formedness.
package conditional

import (
	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/schema"
)

// Normalized is the structured conditional content of one schema node. A nil
// Then or Else means "no additional constraint" on that branch.
type Normalized struct {
	If   *schema.Node
	Then *schema.Node
	Else *schema.Node

	// Dependents is the single ordered mapping merged from dependentRequired
	// and dependentSchemas, keyed by triggering property.
	Dependents []schema.Dependent

	Warnings []oaserrors.Resolution
}

// HasCondition reports whether the node declares an if/then/else guard.
func (n *Normalized) HasCondition() bool {
	return n.If != nil
}

// Empty reports whether the node carries no conditional structure at all.
func (n *Normalized) Empty() bool {
	return n.If == nil && len(n.Dependents) == 0
}

// Normalize extracts and checks the conditional structure of a node. A then
// or else without an if is dead structure and is dropped; an always-true
// guard is kept but flagged.
func Normalize(node *schema.Node) *Normalized {
	n := &Normalized{Dependents: node.Dependents}
	if node.If == nil {
		return n
	}

	n.If = node.If
	n.Then = node.Then
	n.Else = node.Else

	if vacuous(node.If) {
		n.Warnings = append(n.Warnings, oaserrors.NewResolution(
			oaserrors.WarnVacuousCondition,
			"conditional with vacuous guard: if-schema matches every instance",
			node.ID.Pointer, string(node.ID.Document)))
	}
	return n
}

// vacuous reports whether an if-schema constrains nothing. References are
// not chased: a ref target may constrain, so it is never flagged.
func vacuous(node *schema.Node) bool {
	return node != nil &&
		node.Kind == schema.KindAny &&
		!node.Never &&
		node.Ref == "" &&
		node.Type == "" &&
		len(node.Properties) == 0 &&
		len(node.Required) == 0 &&
		len(node.Enum) == 0 &&
		!node.HasConst &&
		len(node.Branches) == 0 &&
		node.If == nil &&
		node.Constraints.Empty()
}
