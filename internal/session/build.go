package session

import (
	"context"
	"strconv"
	"strings"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/compose"
	"github.com/jacoelho/openapi/internal/conditional"
	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/graph"
	"github.com/jacoelho/openapi/internal/jsonpointer"
	"github.com/jacoelho/openapi/internal/schema"
	"github.com/jacoelho/openapi/internal/xiter"
)

// buildSchema produces the effective schema for one node, dispatching on the
// node kind: references dereference, allOf flattens into a single shape,
// oneOf/anyOf build variant sets, everything else resolves structurally.
// Errors created here are recorded once; errors from nested resolveNode calls
// were already recorded at their origin.
func (s *Session) buildSchema(ctx context.Context, p *path, id schema.NodeID, node *schema.Node) (*graph.EffectiveSchema, error) {
	if node == nil {
		var err error
		node, err = s.nodeAt(ctx, id)
		if err != nil {
			s.record(err)
			return nil, err
		}
	}

	switch {
	case node.Kind == schema.KindReference:
		return s.buildReference(ctx, p, node)
	case node.Compose == schema.ComposeAllOf:
		merged, err := compose.FlattenAllOf(node, s.expander(ctx, p))
		if err != nil {
			s.record(err)
			return nil, err
		}
		eff, err := s.buildStructural(ctx, p, merged)
		if err != nil {
			return nil, err
		}
		if merged.UnevaluatedProperties.Set {
			// Names used only inside an unexpanded branch must still count.
			eff.Evaluated = compose.EvaluatedNames(node, merged)
		}
		return eff, nil
	case node.Compose == schema.ComposeOneOf, node.Compose == schema.ComposeAnyOf:
		return s.buildVariants(ctx, p, node)
	default:
		return s.buildStructural(ctx, p, node)
	}
}

// buildReference dereferences a $ref/$dynamicRef node. The referencing node's
// effective content is a copy of the target's; the target resolves first, so
// a chain that revisits an in-progress ancestor surfaces as a cycle.
func (s *Session) buildReference(ctx context.Context, p *path, node *schema.Node) (*graph.EffectiveSchema, error) {
	p.refDepth++
	defer func() { p.refDepth-- }()
	if p.refDepth > s.cfg.MaxRefDepth {
		err := oaserrors.NewResolutionf(oaserrors.ErrRefDepthExceeded,
			node.ID.Pointer, string(node.ID.Document),
			"reference chain exceeds depth limit %d", s.cfg.MaxRefDepth)
		s.record(err)
		return nil, err
	}

	target, err := s.refTarget(ctx, p, node)
	if err != nil {
		s.record(err)
		return nil, err
	}
	ref, err := s.resolveNode(ctx, p, target, nil)
	if err != nil {
		return nil, err
	}
	resolved := s.builder.Node(ref)
	eff := *resolved
	eff.Name = ""
	return &eff, nil
}

// buildVariants resolves a oneOf/anyOf into an ordered variant set. Variant
// resolution failures are isolated per branch: the failed branch keeps its
// edge so consumers can see which variant broke.
func (s *Session) buildVariants(ctx context.Context, p *path, node *schema.Node) (*graph.EffectiveSchema, error) {
	set, err := compose.Variants(node, s.expander(ctx, p))
	if err != nil {
		s.record(err)
		return nil, err
	}
	s.recordWarnings(set.Warnings)

	eff := effectiveBase(node)
	if set.Mode == schema.ComposeOneOf {
		eff.VariantMode = graph.VariantOneOf
	} else {
		eff.VariantMode = graph.VariantAnyOf
	}

	eff.Variants = make([]graph.Variant, 0, len(set.Branches))
	for i, branch := range set.Branches {
		ref, branchErr := s.resolveEdge(ctx, p, branch)
		if branchErr != nil && s.cfg.FailFast {
			return nil, branchErr
		}
		eff.Variants = append(eff.Variants, graph.Variant{Tag: set.Tags[i], Schema: ref})
	}

	if set.Discriminator != nil {
		dm := &graph.DiscriminatorMap{Property: set.Discriminator.Property}
		for _, entry := range set.Discriminator.Entries {
			dm.Entries = append(dm.Entries, graph.DiscriminatorTarget{
				Tag:    entry.Tag,
				Schema: eff.Variants[entry.Branch].Schema,
			})
		}
		eff.Discriminator = dm
	}
	return eff, nil
}

// buildStructural resolves properties, items, policies, and conditional
// structure of a non-composed (or already flattened) node. Child failures do
// not fail the parent: the edge stays and points at the failed slot.
func (s *Session) buildStructural(ctx context.Context, p *path, node *schema.Node) (*graph.EffectiveSchema, error) {
	eff := effectiveBase(node)

	if len(node.Properties) > 0 {
		eff.Properties = make([]graph.Property, 0, len(node.Properties))
		for _, prop := range node.Properties {
			ref, _ := s.resolveEdge(ctx, p, prop.Schema)
			eff.Properties = append(eff.Properties, graph.Property{Name: prop.Name, Schema: ref})
		}
	}
	eff.Required = append([]string(nil), node.Required...)

	eff.AdditionalProperties = s.policy(ctx, p, node.AdditionalProperties)
	eff.UnevaluatedProperties = s.policy(ctx, p, node.UnevaluatedProperties)
	if node.UnevaluatedProperties.Set {
		eff.Evaluated = compose.EvaluatedNames(node)
	}

	if node.Items != nil {
		eff.Items, _ = s.resolveEdge(ctx, p, node.Items)
	}

	norm := conditional.Normalize(node)
	s.recordWarnings(norm.Warnings)
	if norm.HasCondition() {
		cond := &graph.Conditional{If: graph.Invalid, Then: graph.Invalid, Else: graph.Invalid}
		cond.If, _ = s.resolveEdge(ctx, p, norm.If)
		if norm.Then != nil {
			cond.Then, _ = s.resolveEdge(ctx, p, norm.Then)
		}
		if norm.Else != nil {
			cond.Else, _ = s.resolveEdge(ctx, p, norm.Else)
		}
		eff.Conditional = cond
	}
	for _, dep := range norm.Dependents {
		resolved := graph.Dependent{
			Trigger:  dep.Trigger,
			Required: dep.Required,
			Schema:   graph.Invalid,
		}
		if dep.Schema != nil {
			resolved.Schema, _ = s.resolveEdge(ctx, p, dep.Schema)
		}
		eff.Dependents = append(eff.Dependents, resolved)
	}
	return eff, nil
}

// resolveEdge resolves a child edge. Reference children link straight to the
// target's arena slot, so recursion through properties and items becomes a
// back-edge instead of a cycle error; only dereference chains (a node whose
// content is the reference) are cycle-checked.
func (s *Session) resolveEdge(ctx context.Context, p *path, child *schema.Node) (graph.Ref, error) {
	if child.Kind == schema.KindReference && !child.Dynamic {
		target, err := s.refTarget(ctx, p, child)
		if err != nil {
			s.record(err)
			return graph.Invalid, err
		}
		s.mu.Lock()
		if e, ok := s.entries[target]; ok && e.state == stateResolving {
			ref := e.ref
			s.mu.Unlock()
			return ref, nil
		}
		s.mu.Unlock()
		return s.resolveNode(ctx, p, target, nil)
	}

	s.mu.Lock()
	if e, ok := s.entries[child.ID]; ok && e.state == stateResolving && e.owner == p.id {
		ref := e.ref
		s.mu.Unlock()
		return ref, nil
	}
	s.mu.Unlock()
	return s.resolveNode(ctx, p, child.ID, child)
}

// policy converts a raw additional/unevaluated-properties value into a
// resolved policy, interning the schema form.
func (s *Session) policy(ctx context.Context, p *path, a schema.Additional) graph.Policy {
	switch {
	case !a.Set:
		return graph.Policy{Mode: graph.PolicyUnset, Schema: graph.Invalid}
	case a.Schema != nil:
		ref, _ := s.resolveEdge(ctx, p, a.Schema)
		return graph.Policy{Mode: graph.PolicySchema, Schema: ref}
	case a.Allowed:
		return graph.Policy{Mode: graph.PolicyAllow, Schema: graph.Invalid}
	default:
		return graph.Policy{Mode: graph.PolicyForbid, Schema: graph.Invalid}
	}
}

// expander returns the composition callback that chases reference chains to
// structural nodes without interning them. Chains revisiting the current path
// or themselves are cycles: a composition cannot merge its own content.
func (s *Session) expander(ctx context.Context, p *path) compose.Expand {
	return func(node *schema.Node) (*schema.Node, error) {
		seen := make(map[schema.NodeID]struct{})
		current := node
		for current.Kind == schema.KindReference {
			target, err := s.refTarget(ctx, p, current)
			if err != nil {
				return nil, err
			}
			if _, revisit := seen[target]; revisit || p.guard.On(target) {
				return nil, oaserrors.Resolution{
					Code:     string(oaserrors.ErrCircularReference),
					Message:  "circular reference in composition branch",
					Pointer:  current.ID.Pointer,
					Document: string(current.ID.Document),
					Cycle:    []string{target.String()},
				}
			}
			if len(seen) >= s.cfg.MaxRefDepth {
				return nil, oaserrors.NewResolutionf(oaserrors.ErrRefDepthExceeded,
					current.ID.Pointer, string(current.ID.Document),
					"reference chain exceeds depth limit %d", s.cfg.MaxRefDepth)
			}
			seen[target] = struct{}{}
			next, err := s.nodeAt(ctx, target)
			if err != nil {
				return nil, err
			}
			current = next
		}
		return current, nil
	}
}

// refTarget resolves a reference string to a target node identity. External
// targets are checked against the domain allowlist before any loader call.
func (s *Session) refTarget(ctx context.Context, p *path, node *schema.Node) (schema.NodeID, error) {
	ref := node.Ref
	if ref == "" {
		return schema.NodeID{}, oaserrors.NewResolution(oaserrors.ErrReferenceNotFound,
			"empty reference", node.ID.Pointer, string(node.ID.Document))
	}

	if node.Dynamic && s.cfg.AllowDynamicRef &&
		strings.HasPrefix(ref, "#") && !strings.HasPrefix(ref, "#/") {
		return s.dynamicTarget(p, node, strings.TrimPrefix(ref, "#"))
	}

	location, fragment, _ := strings.Cut(ref, "#")
	docID := node.ID.Document
	if location != "" {
		canonical, err := document.CanonicalID(docID, location)
		if err != nil {
			return schema.NodeID{}, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
				node.ID.Pointer, string(node.ID.Document), "reference %q: %v", ref, err)
		}
		docID = canonical
		if err := s.checkDomain(docID, node.ID); err != nil {
			return schema.NodeID{}, err
		}
	}

	if fragment != "" && !strings.HasPrefix(fragment, "/") {
		return s.anchorTarget(ctx, node, docID, fragment)
	}
	return schema.NodeID{Document: docID, Pointer: fragment}, nil
}

// dynamicTarget resolves a $dynamicRef anchor against the dynamic scope
// stack, innermost document first, falling back to the lexical document.
func (s *Session) dynamicTarget(p *path, node *schema.Node, name string) (schema.NodeID, error) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if ptr, ok := s.anchorIn(p.scopes[i], name); ok {
			return schema.NodeID{Document: p.scopes[i], Pointer: ptr}, nil
		}
	}
	if ptr, ok := s.anchorIn(node.ID.Document, name); ok {
		return schema.NodeID{Document: node.ID.Document, Pointer: ptr}, nil
	}
	return schema.NodeID{}, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
		node.ID.Pointer, string(node.ID.Document),
		"dynamic anchor %q not found in scope", name)
}

// anchorTarget resolves a plain anchor fragment, loading the target document
// if its anchors are not indexed yet.
func (s *Session) anchorTarget(ctx context.Context, node *schema.Node, docID document.ID, name string) (schema.NodeID, error) {
	if _, err := s.loadDocument(ctx, docID); err != nil {
		return schema.NodeID{}, err
	}
	if ptr, ok := s.anchorIn(docID, name); ok {
		return schema.NodeID{Document: docID, Pointer: ptr}, nil
	}
	return schema.NodeID{}, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
		node.ID.Pointer, string(node.ID.Document),
		"anchor %q not found in %s", name, docID)
}

func (s *Session) anchorIn(docID document.ID, name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptr, ok := s.anchors[docID][name]
	return ptr, ok
}

// checkDomain enforces the external-domain allowlist. The check runs before
// any loader call so disallowed hosts are never contacted.
func (s *Session) checkDomain(docID document.ID, at schema.NodeID) error {
	if !docID.IsURL() {
		return nil
	}
	host := document.Host(docID)
	if _, ok := s.allowed[host]; !ok {
		return oaserrors.NewResolutionf(oaserrors.ErrDomainNotAllowed,
			at.Pointer, string(at.Document),
			"domain %q is not on the allowlist", host)
	}
	return nil
}

// nodeAt loads, navigates, and parses the schema node at id, memoizing the
// parse so repeated references share one tree.
func (s *Session) nodeAt(ctx context.Context, id schema.NodeID) (*schema.Node, error) {
	s.mu.Lock()
	if node, ok := s.parsed[id]; ok {
		s.mu.Unlock()
		return node, nil
	}
	s.mu.Unlock()

	doc, err := s.loadDocument(ctx, id.Document)
	if err != nil {
		return nil, err
	}
	ptr, err := jsonpointer.Parse(id.Pointer)
	if err != nil {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
			id.Pointer, string(id.Document), "invalid pointer: %v", err)
	}
	raw, err := jsonpointer.Navigate(doc.Root, ptr)
	if err != nil {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
			id.Pointer, string(id.Document), "reference target not found: %v", err)
	}

	node := schema.Parse(id.Document, ptr, raw)
	s.mu.Lock()
	s.parsed[id] = node
	s.mu.Unlock()
	return node, nil
}

// loadDocument loads a document through the session loader and indexes its
// anchors on first load.
func (s *Session) loadDocument(ctx context.Context, id document.ID) (*document.Document, error) {
	doc, err := s.loader.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := s.anchors[id]; !ok {
		s.anchors[id] = scanAnchors(doc.Root)
	}
	s.mu.Unlock()
	return doc, nil
}

func effectiveBase(node *schema.Node) *graph.EffectiveSchema {
	return &graph.EffectiveSchema{
		ID:          node.ID,
		Never:       node.Never,
		Type:        node.Type,
		Format:      node.Format,
		Nullable:    node.Nullable,
		Description: node.Description,
		Deprecated:  node.Deprecated,
		Enum:        node.Enum,
		Const:       node.Const,
		HasConst:    node.HasConst,
		Default:     node.Default,
		Constraints: node.Constraints,
		Items:       graph.Invalid,
	}
}

// scanAnchors indexes $anchor/$dynamicAnchor declarations by name. First
// declaration in deterministic key order wins on duplicates.
func scanAnchors(root any) map[string]string {
	anchors := make(map[string]string)
	walkAnchors(root, jsonpointer.Root, anchors)
	return anchors
}

func walkAnchors(node any, ptr jsonpointer.Pointer, anchors map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for _, keyword := range []string{"$anchor", "$dynamicAnchor"} {
			if name, ok := v[keyword].(string); ok && name != "" {
				if _, exists := anchors[name]; !exists {
					anchors[name] = ptr.String()
				}
			}
		}
		for key := range xiter.SortedKeys(v) {
			walkAnchors(v[key], ptr.Child(key), anchors)
		}
	case []any:
		for i, child := range v {
			walkAnchors(child, ptr.Child(strconv.Itoa(i)), anchors)
		}
	}
}
