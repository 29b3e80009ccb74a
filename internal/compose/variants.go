package compose

import (
	"fmt"
	"strings"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/schema"
)

// MappingEntry binds one discriminator tag value to a variant branch index.
type MappingEntry struct {
	Tag    string
	Branch int
}

// Mapping is a validated discriminator dispatch table.
type Mapping struct {
	Property string
	Entries  []MappingEntry
}

// VariantSet is the normalized form of a oneOf/anyOf: an ordered list of
// independent candidates, never merged.
type VariantSet struct {
	Mode          schema.ComposeMode
	Branches      []*schema.Node
	Tags          []string
	Discriminator *Mapping
	Warnings      []oaserrors.Resolution
}

// Variants structures a oneOf/anyOf node into a tagged variant set,
// validating the discriminator mapping when one is declared and checking
// structural distinguishability otherwise.
func Variants(node *schema.Node, expand Expand) (*VariantSet, error) {
	set := &VariantSet{
		Mode:     node.Compose,
		Branches: node.Branches,
		Tags:     make([]string, len(node.Branches)),
	}

	if node.Compose == schema.ComposeAnyOf && len(node.Branches) == 0 {
		return nil, oaserrors.NewResolution(oaserrors.ErrAnyOfEmpty,
			"anyOf declares no candidate schemas", node.ID.Pointer, string(node.ID.Document))
	}

	if node.Compose == schema.ComposeOneOf && node.Discriminator != nil {
		mapping, err := buildMapping(node, expand)
		if err != nil {
			return nil, err
		}
		set.Discriminator = mapping
		for _, entry := range mapping.Entries {
			set.Tags[entry.Branch] = entry.Tag
		}
		return set, nil
	}

	if node.Compose == schema.ComposeOneOf {
		if warn := checkDistinguishable(node, expand); warn != nil {
			set.Warnings = append(set.Warnings, *warn)
		}
	}
	return set, nil
}

// buildMapping validates the declared discriminator against the variant set.
// Every declared variant must expose the discriminator property as a
// single-valued const or enum, and every mapping key must name a declared
// variant.
func buildMapping(node *schema.Node, expand Expand) (*Mapping, error) {
	d := node.Discriminator
	mapping := &Mapping{Property: d.Property}

	tags := make([]string, len(node.Branches))
	for i, branch := range node.Branches {
		tag, err := variantTag(branch, d.Property, expand)
		if err != nil {
			return nil, err
		}
		if tag == "" {
			return nil, discriminatorError(node,
				"variant %s does not declare %q as a single-valued const or enum",
				variantName(branch), d.Property)
		}
		tags[i] = tag
	}

	if len(d.Mapping) == 0 {
		for i, tag := range tags {
			mapping.Entries = append(mapping.Entries, MappingEntry{Tag: tag, Branch: i})
		}
		return mapping, nil
	}

	for _, declared := range d.Mapping {
		branch := matchVariant(node.Branches, declared.Ref)
		if branch < 0 {
			return nil, discriminatorError(node,
				"mapping key %q points at %q, which is not a declared variant",
				declared.Tag, declared.Ref)
		}
		mapping.Entries = append(mapping.Entries, MappingEntry{Tag: declared.Tag, Branch: branch})
	}
	return mapping, nil
}

// variantTag extracts the single discriminator value a variant declares,
// searching the variant's own properties and its allOf branches.
func variantTag(branch *schema.Node, property string, expand Expand) (string, error) {
	prop, err := lookupProperty(branch, property, expand, 0)
	if err != nil {
		return "", err
	}
	if prop == nil {
		return "", nil
	}
	if prop.HasConst {
		if s, ok := prop.Const.(string); ok {
			return s, nil
		}
		return fmt.Sprint(prop.Const), nil
	}
	if len(prop.Enum) == 1 {
		if s, ok := prop.Enum[0].(string); ok {
			return s, nil
		}
		return fmt.Sprint(prop.Enum[0]), nil
	}
	return "", nil
}

func lookupProperty(node *schema.Node, property string, expand Expand, depth int) (*schema.Node, error) {
	if node == nil || depth > 16 {
		return nil, nil
	}
	expanded, err := expand(node)
	if err != nil {
		return nil, err
	}
	if prop := findProperty(expanded, property); prop != nil {
		target, err := expand(prop.Schema)
		if err != nil {
			return nil, err
		}
		return target, nil
	}
	for _, branch := range expanded.Branches {
		found, err := lookupProperty(branch, property, expand, depth+1)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// matchVariant finds the branch a mapping target names. Targets may be full
// references or bare component names.
func matchVariant(branches []*schema.Node, target string) int {
	for i, branch := range branches {
		if branch.Ref == target {
			return i
		}
		if branch.Ref != "" && !strings.Contains(target, "/") && variantName(branch) == target {
			return i
		}
	}
	return -1
}

// variantName derives a display name from the last reference segment.
func variantName(branch *schema.Node) string {
	ref := branch.Ref
	if ref == "" {
		return branch.ID.String()
	}
	if idx := strings.LastIndex(ref, "/"); idx != -1 {
		return ref[idx+1:]
	}
	return ref
}

// checkDistinguishable verifies that undiscriminated oneOf variants can be
// told apart by mutually exclusive required/const combinations. Failure is a
// non-fatal ambiguity diagnostic; downstream consumers may still generate a
// positional tagged union.
func checkDistinguishable(node *schema.Node, expand Expand) *oaserrors.Resolution {
	expanded := make([]*schema.Node, 0, len(node.Branches))
	for _, branch := range node.Branches {
		e, err := expand(branch)
		if err != nil {
			// Resolution errors for branches surface when the branch itself
			// is resolved; distinguishability stays quiet here.
			return nil
		}
		expanded = append(expanded, e)
	}

	for i := 0; i < len(expanded); i++ {
		for j := i + 1; j < len(expanded); j++ {
			if !distinguishable(expanded[i], expanded[j]) {
				warn := oaserrors.NewResolutionf(oaserrors.WarnOneOfAmbiguousVariants,
					node.ID.Pointer, string(node.ID.Document),
					"oneOf variants %s and %s are not structurally distinguishable",
					variantName(node.Branches[i]), variantName(node.Branches[j]))
				return &warn
			}
		}
	}
	return nil
}

func distinguishable(a, b *schema.Node) bool {
	if a.Type != "" && b.Type != "" && a.Type != b.Type {
		return true
	}
	if a.HasConst && b.HasConst && fmt.Sprint(a.Const) != fmt.Sprint(b.Const) {
		return true
	}
	return exclusiveRequired(a, b) && exclusiveRequired(b, a)
}

// exclusiveRequired reports whether a requires a property that b does not
// even declare.
func exclusiveRequired(a, b *schema.Node) bool {
	for _, name := range a.Required {
		if findProperty(b, name) == nil && !contains(b.Required, name) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func discriminatorError(node *schema.Node, format string, args ...any) error {
	return oaserrors.NewResolutionf(oaserrors.ErrOneOfDiscriminatorMissing,
		node.ID.Pointer, string(node.ID.Document), format, args...)
}
