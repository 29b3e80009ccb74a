// Package compose normalizes schema composition: allOf branches merge under
// intersection semantics (the tightest constraint wins, matching the
// conjunctive meaning of allOf), while oneOf/anyOf stay unmerged as ordered
// variant sets with optional discriminator dispatch.
package compose

import (
	"fmt"
	"sort"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/schema"
)

// Expand dereferences a reference node to its structural target, following
// chains. Non-reference nodes are returned unchanged. Implemented by the
// reference resolver so composition can re-enter it for branches discovered
// mid-merge.
type Expand func(node *schema.Node) (*schema.Node, error)

// maxFlattenBranches bounds work-stack growth so pathological nesting becomes
// a clean error instead of unbounded memory use.
const maxFlattenBranches = 4096

// FlattenAllOf expands and merges every allOf branch of a composed node into
// a single structural node. Nested allOf branches are flattened iteratively
// with an explicit work stack. A node that declares its own shape alongside
// allOf contributes that shape as an implicit extra branch.
func FlattenAllOf(node *schema.Node, expand Expand) (*schema.Node, error) {
	branches, err := flatBranches(node, expand)
	if err != nil {
		return nil, err
	}

	merged := &schema.Node{ID: node.ID, Description: node.Description}
	merged.If, merged.Then, merged.Else = node.If, node.Then, node.Else
	merged.Dependents = append([]schema.Dependent(nil), node.Dependents...)
	for _, branch := range branches {
		if err := mergeBranch(merged, branch, expand); err != nil {
			return nil, err
		}
	}
	sort.Strings(merged.Required)
	merged.Required = dedupSorted(merged.Required)
	sort.Slice(merged.Properties, func(i, j int) bool {
		return merged.Properties[i].Name < merged.Properties[j].Name
	})

	merged.UnevaluatedProperties = unevaluatedPolicy(node, branches)
	merged.Kind = schema.KindObject
	if merged.Type == "" && len(merged.Properties) == 0 {
		merged.Kind = schema.KindAny
	}
	return merged, nil
}

func hasConditional(node *schema.Node) bool {
	return node.If != nil || node.Then != nil || node.Else != nil || len(node.Dependents) > 0
}

// flatBranches returns the fully expanded, order-preserving branch list of an
// allOf node, recursing through nested allOf with a work stack.
func flatBranches(node *schema.Node, expand Expand) ([]*schema.Node, error) {
	type item struct {
		node *schema.Node
	}
	var flat []*schema.Node

	stack := make([]item, 0, len(node.Branches)+1)
	push := func(nodes []*schema.Node) {
		// Reverse push keeps declaration order on pop.
		for i := len(nodes) - 1; i >= 0; i-- {
			stack = append(stack, item{node: nodes[i]})
		}
	}
	if node.HasOwnShape() {
		own := *node
		own.Branches = nil
		own.Compose = schema.ComposeNone
		own.Ref = ""
		// The composed node's own conditionals are seeded by the caller.
		own.If, own.Then, own.Else = nil, nil, nil
		own.Dependents = nil
		push([]*schema.Node{&own})
	}
	push(node.Branches)

	for len(stack) > 0 {
		if len(flat)+len(stack) > maxFlattenBranches {
			return nil, oaserrors.NewResolutionf(oaserrors.ErrAllOfBranchLimit,
				node.ID.Pointer, string(node.ID.Document),
				"allOf flattens to more than %d branches", maxFlattenBranches)
		}
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		branch, err := expand(next.node)
		if err != nil {
			return nil, err
		}
		if branch.Compose == schema.ComposeAllOf {
			if branch.HasOwnShape() || hasConditional(branch) {
				own := *branch
				own.Branches = nil
				own.Compose = schema.ComposeNone
				own.Ref = ""
				push([]*schema.Node{&own})
			}
			push(branch.Branches)
			continue
		}
		flat = append(flat, branch)
	}
	return flat, nil
}

// mergeBranch folds one expanded branch into the accumulated merge.
func mergeBranch(merged, branch *schema.Node, expand Expand) error {
	if branch.Never {
		merged.Never = true
	}

	if err := mergeType(merged, branch); err != nil {
		return err
	}
	merged.Required = append(merged.Required, branch.Required...)

	for _, prop := range branch.Properties {
		existing := findProperty(merged, prop.Name)
		if existing == nil {
			merged.Properties = append(merged.Properties, schema.Property{Name: prop.Name, Schema: prop.Schema})
			continue
		}
		combined, err := mergeSchemas(existing.Schema, prop.Schema, childID(merged.ID, "properties", prop.Name), prop.Name, expand)
		if err != nil {
			return err
		}
		existing.Schema = combined
	}

	merged.AdditionalProperties = tightenAdditional(merged.AdditionalProperties, branch.AdditionalProperties)

	if branch.Items != nil {
		if merged.Items == nil {
			merged.Items = branch.Items
		} else {
			combined, err := mergeSchemas(merged.Items, branch.Items, childID(merged.ID, "items"), "items", expand)
			if err != nil {
				return err
			}
			merged.Items = combined
		}
	}

	if branch.If != nil || branch.Then != nil || branch.Else != nil {
		if merged.If != nil || merged.Then != nil || merged.Else != nil {
			return conflict("if", merged.ID, branch.ID,
				"conditional branches from multiple allOf members cannot merge into one if/then/else")
		}
		merged.If, merged.Then, merged.Else = branch.If, branch.Then, branch.Else
	}
	merged.Dependents = append(merged.Dependents, branch.Dependents...)

	tightenConstraints(&merged.Constraints, branch.Constraints)

	if branch.HasConst {
		if merged.HasConst && fmt.Sprint(merged.Const) != fmt.Sprint(branch.Const) {
			return conflict("const", merged.ID, branch.ID,
				"const %v conflicts with const %v", merged.Const, branch.Const)
		}
		merged.Const = branch.Const
		merged.HasConst = true
	}
	merged.Enum = intersectEnum(merged.Enum, branch.Enum)
	if merged.Format == "" {
		merged.Format = branch.Format
	}
	if branch.Nullable {
		merged.Nullable = true
	}
	return nil
}

// unevaluatedPolicy is computed only after full flattening: any property name
// used in any branch, including nested conditional branches, counts as
// evaluated.
func unevaluatedPolicy(node *schema.Node, branches []*schema.Node) schema.Additional {
	policy := node.UnevaluatedProperties
	for _, branch := range branches {
		policy = tightenAdditional(policy, branch.UnevaluatedProperties)
	}
	return policy
}

// EvaluatedNames collects every property name declared by the given nodes,
// their composition branches, and their conditional branches. Callers pass
// both the pre-flatten and the merged view of a composed node so that names
// used only inside a branch still count as evaluated.
func EvaluatedNames(nodes ...*schema.Node) []string {
	set := make(map[string]struct{})
	for _, node := range nodes {
		collectEvaluated(node, set, 0)
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectEvaluated(node *schema.Node, set map[string]struct{}, depth int) {
	if node == nil || depth > 64 {
		return
	}
	for _, prop := range node.Properties {
		set[prop.Name] = struct{}{}
	}
	for _, branch := range node.Branches {
		collectEvaluated(branch, set, depth+1)
	}
	collectEvaluated(node.If, set, depth+1)
	collectEvaluated(node.Then, set, depth+1)
	collectEvaluated(node.Else, set, depth+1)
	for _, dep := range node.Dependents {
		collectEvaluated(dep.Schema, set, depth+1)
	}
}

func findProperty(node *schema.Node, name string) *schema.Property {
	for i := range node.Properties {
		if node.Properties[i].Name == name {
			return &node.Properties[i]
		}
	}
	return nil
}

func dedupSorted(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}

func conflict(property string, left, right schema.NodeID, format string, args ...any) error {
	return oaserrors.NewResolutionf(oaserrors.ErrAllOfMergeConflict,
		left.Pointer, string(left.Document),
		"allOf merge conflict on %q: %s (branches %s, %s)",
		property, fmt.Sprintf(format, args...), left, right)
}
