package graph

import (
	"iter"
	"sort"
	"strings"
	"sync"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/schema"
	"github.com/jacoelho/openapi/internal/xiter"
)

// Info carries root document metadata.
type Info struct {
	Title       string
	Version     string
	Description string
}

type operationKey struct {
	path   string
	method string
}

// Graph is the immutable resolved schema graph handed to consumers.
type Graph struct {
	info        Info
	nodes       []*EffectiveSchema
	schemas     map[string]Ref
	schemaNames []string
	operations  []*Operation
	opIndex     map[operationKey]int
	diagnostics []oaserrors.Resolution
}

// Info returns root document metadata.
func (g *Graph) Info() Info {
	return g.info
}

// Node returns the effective schema at the given arena ref, or nil for an
// invalid ref.
func (g *Graph) Node(ref Ref) *EffectiveSchema {
	if !ref.IsValid() || int(ref) >= len(g.nodes) {
		return nil
	}
	return g.nodes[int(ref)]
}

// Len returns the number of arena nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Schema returns a named component schema.
func (g *Graph) Schema(name string) (*EffectiveSchema, bool) {
	ref, ok := g.schemas[name]
	if !ok {
		return nil, false
	}
	return g.Node(ref), true
}

// SchemaRef returns the arena ref of a named component schema.
func (g *Graph) SchemaRef(name string) (Ref, bool) {
	ref, ok := g.schemas[name]
	return ref, ok
}

// Schemas yields named component schemas in sorted name order.
func (g *Graph) Schemas() iter.Seq2[string, *EffectiveSchema] {
	return func(yield func(string, *EffectiveSchema) bool) {
		for _, name := range g.schemaNames {
			if !yield(name, g.Node(g.schemas[name])) {
				return
			}
		}
	}
}

// Operation returns the resolved operation for a path and HTTP method.
func (g *Graph) Operation(path, method string) (*Operation, bool) {
	idx, ok := g.opIndex[operationKey{path: path, method: strings.ToLower(method)}]
	if !ok {
		return nil, false
	}
	return g.operations[idx], true
}

// Operations yields all resolved operations in declaration order.
func (g *Graph) Operations() iter.Seq[*Operation] {
	return xiter.Slice(g.operations)
}

// Tags returns the sorted union of tags declared globally and on operations.
func (g *Graph) Tags() []string {
	set := make(map[string]struct{})
	for _, op := range g.operations {
		for _, tag := range op.Tags {
			set[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// OperationsByTag groups operations by tag; untagged operations group under
// "Default".
func (g *Graph) OperationsByTag() map[string][]*Operation {
	grouped := make(map[string][]*Operation)
	for _, op := range g.operations {
		tags := op.Tags
		if len(tags) == 0 {
			tags = []string{"Default"}
		}
		for _, tag := range tags {
			grouped[tag] = append(grouped[tag], op)
		}
	}
	return grouped
}

// Diagnostics returns the ordered diagnostic list collected during
// resolution.
func (g *Graph) Diagnostics() []oaserrors.Resolution {
	return g.diagnostics
}

// Builder accumulates arena nodes during a resolution session and freezes
// them into a Graph. It is safe for concurrent use.
type Builder struct {
	mu    sync.Mutex
	nodes []*EffectiveSchema
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Alloc reserves an arena slot so edges to a node can be created before its
// content is known (back-edges in cyclic schemas).
func (b *Builder) Alloc(id schema.NodeID) Ref {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := Ref(len(b.nodes))
	b.nodes = append(b.nodes, &EffectiveSchema{
		ID:    id,
		Items: Invalid,
	})
	return ref
}

// Fill writes the resolved content of a previously allocated slot. The slot's
// identity is preserved.
func (b *Builder) Fill(ref Ref, resolved *EffectiveSchema) {
	b.mu.Lock()
	defer b.mu.Unlock()
	resolved.ID = b.nodes[int(ref)].ID
	*b.nodes[int(ref)] = *resolved
}

// Fail marks a previously allocated slot as failed.
func (b *Builder) Fail(ref Ref) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[int(ref)].Failed = true
	b.nodes[int(ref)].Items = Invalid
}

// Node returns the current content of an arena slot.
func (b *Builder) Node(ref Ref) *EffectiveSchema {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !ref.IsValid() || int(ref) >= len(b.nodes) {
		return nil
	}
	return b.nodes[int(ref)]
}

// Freeze assembles the immutable graph. The builder must not be used
// afterwards.
func (b *Builder) Freeze(info Info, schemas map[string]Ref, operations []*Operation, diagnostics []oaserrors.Resolution) *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	opIndex := make(map[operationKey]int, len(operations))
	for i, op := range operations {
		opIndex[operationKey{path: op.Path, method: strings.ToLower(op.Method)}] = i
	}

	return &Graph{
		info:        info,
		nodes:       b.nodes,
		schemas:     schemas,
		schemaNames: names,
		operations:  operations,
		opIndex:     opIndex,
		diagnostics: diagnostics,
	}
}
