// Package session drives one resolution pass: it loads documents, resolves
// references, normalizes composition and conditionals, and interns the
// results into an immutable graph. Sessions own all mutable state (memo
// table, document cache, diagnostics) so concurrent sessions are fully
// isolated; a session is discarded once its graph is handed to the caller.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/graph"
	"github.com/jacoelho/openapi/internal/refguard"
	"github.com/jacoelho/openapi/internal/schema"
)

// Config carries resolved session configuration.
type Config struct {
	Loader          document.Loader
	RootLocation    string
	MaxRefDepth     int
	AllowedDomains  []string
	FailFast        bool
	AllowDynamicRef bool
	Workers         int
	MaxErrors       int
}

const (
	defaultMaxRefDepth = 32
	defaultWorkers     = 4
)

type entryState uint8

const (
	stateResolving entryState = iota
	stateResolved
	stateFailed
)

// entry is one memoization slot. The arena ref is allocated when resolution
// starts so back-edges in cyclic schemas can link to it before completion.
type entry struct {
	state entryState
	ref   graph.Ref
	err   error
	owner int
	done  chan struct{}
}

// path is the per-logical-resolution-path state: the cycle-detecting
// resolving-set, the dynamic scope stack, and the reference chain depth.
// Paths are never shared between goroutines.
type path struct {
	id       int
	guard    *refguard.Guard[schema.NodeID]
	scopes   []document.ID
	refDepth int
}

// Session is one resolution pass over a root document and everything it
// references.
type Session struct {
	cfg    Config
	loader document.Loader

	builder *graph.Builder

	mu       sync.Mutex
	entries  map[schema.NodeID]*entry
	parsed   map[schema.NodeID]*schema.Node
	anchors  map[document.ID]map[string]string
	allowed  map[string]struct{}
	diags    []oaserrors.Resolution
	fatals   int
	nextPath int
	waiting  map[int]schema.NodeID

	cancel context.CancelCauseFunc
}

// New creates a session. The loader must already wrap any caching layer.
func New(cfg Config) *Session {
	if cfg.MaxRefDepth <= 0 {
		cfg.MaxRefDepth = defaultMaxRefDepth
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedDomains))
	for _, domain := range cfg.AllowedDomains {
		allowed[domain] = struct{}{}
	}
	return &Session{
		cfg:     cfg,
		loader:  cfg.Loader,
		builder: graph.NewBuilder(),
		entries: make(map[schema.NodeID]*entry),
		parsed:  make(map[schema.NodeID]*schema.Node),
		anchors: make(map[document.ID]map[string]string),
		allowed: allowed,
		waiting: make(map[int]schema.NodeID),
	}
}

// Resolve runs the session to completion and freezes the graph. In fail-soft
// mode (the default) all errors aggregate into the graph diagnostics and the
// returned error is nil unless the root document itself cannot be loaded; in
// fail-fast mode the first fatal diagnostic aborts the whole session.
func (s *Session) Resolve(ctx context.Context) (*graph.Graph, error) {
	sctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	defer cancel(nil)
	ctx = sctx

	rootID, err := s.loader.Resolve(document.Request{Location: s.cfg.RootLocation})
	if err != nil {
		return nil, fmt.Errorf("resolve root location %q: %w", s.cfg.RootLocation, err)
	}
	if rootID.IsURL() {
		// The root's own host is always fetchable.
		s.allowed[document.Host(rootID)] = struct{}{}
	}
	root, err := s.loadDocument(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("load root document %q: %w", rootID, err)
	}

	info := s.validateRoot(root)

	schemaRoots := namedSchemaRoots(root)
	operationRoots := collectOperations(root)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Workers)

	schemaRefs := make([]graph.Ref, len(schemaRoots))
	for i, name := range schemaRoots {
		group.Go(func() error {
			p := s.newPath()
			id := schema.NodeID{
				Document: root.ID,
				Pointer:  componentPointer(name),
			}
			ref, err := s.resolveNode(ctx, p, id, nil)
			schemaRefs[i] = ref
			return s.branchOutcome(err)
		})
	}

	operations := make([]*graph.Operation, len(operationRoots))
	for i, opRoot := range operationRoots {
		group.Go(func() error {
			p := s.newPath()
			op, err := s.buildOperation(ctx, p, root, opRoot)
			if err != nil {
				s.record(err)
				return s.branchOutcome(err)
			}
			operations[i] = op
			return nil
		})
	}

	if err := group.Wait(); err != nil && s.cfg.FailFast {
		return nil, err
	}
	// A blown error budget cancels the session context even though fail-soft
	// branches swallow their own errors.
	if sctx.Err() != nil {
		return nil, context.Cause(sctx)
	}

	schemas := make(map[string]graph.Ref, len(schemaRoots))
	for i, name := range schemaRoots {
		if schemaRefs[i].IsValid() {
			s.builder.Node(schemaRefs[i]).Name = name
			schemas[name] = schemaRefs[i]
		}
	}

	compact := make([]*graph.Operation, 0, len(operations))
	for _, op := range operations {
		if op != nil {
			compact = append(compact, op)
		}
	}

	return s.builder.Freeze(info, schemas, compact, s.orderedDiagnostics()), nil
}

// branchOutcome converts a branch error into the group policy: fail-fast
// propagates, fail-soft swallows so sibling branches keep resolving.
func (s *Session) branchOutcome(err error) error {
	if err != nil && s.cfg.FailFast {
		return err
	}
	return nil
}

func (s *Session) newPath() *path {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPath++
	return &path{id: s.nextPath, guard: refguard.New[schema.NodeID]()}
}

// resolveNode resolves the schema at id into the arena, memoizing the
// outcome. node may carry the already-parsed subtree; nil means parse from
// the document. The outcome for an identity is terminal: once resolved or
// failed it is never re-entered.
func (s *Session) resolveNode(ctx context.Context, p *path, id schema.NodeID, node *schema.Node) (graph.Ref, error) {
	if err := p.guard.Enter(id); err != nil {
		resolution := cycleResolution(err, id)
		s.record(resolution)
		return graph.Invalid, resolution
	}
	defer p.guard.Leave(id)

	pushed := p.pushScope(id.Document)
	defer p.popScope(pushed)

	var e *entry
	for {
		s.mu.Lock()
		existing, ok := s.entries[id]
		if !ok {
			e = &entry{
				state: stateResolving,
				ref:   s.builder.Alloc(id),
				owner: p.id,
				done:  make(chan struct{}),
			}
			s.entries[id] = e
			s.mu.Unlock()
			break
		}
		switch existing.state {
		case stateResolved:
			s.mu.Unlock()
			return existing.ref, nil
		case stateFailed:
			s.mu.Unlock()
			return existing.ref, existing.err
		}
		if existing.owner == p.id {
			// Back-edge on our own path that bypassed the guard; link it.
			s.mu.Unlock()
			return existing.ref, nil
		}
		if cause := s.waitCycleLocked(p.id, existing.owner, id); cause != nil {
			s.mu.Unlock()
			s.record(cause)
			return existing.ref, cause
		}
		s.waiting[p.id] = id
		done := existing.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			s.clearWaiting(p.id)
			return graph.Invalid, context.Cause(ctx)
		}
		s.clearWaiting(p.id)
	}

	eff, err := s.buildSchema(ctx, p, id, node)

	s.mu.Lock()
	if err != nil {
		e.state = stateFailed
		e.err = err
		s.builder.Fail(e.ref)
	} else {
		e.state = stateResolved
		s.builder.Fill(e.ref, eff)
	}
	close(e.done)
	s.mu.Unlock()
	return e.ref, err
}

// waitCycleLocked detects reference cycles that span concurrent resolution
// paths: if the owner of the entry we are about to wait on is itself waiting,
// directly or transitively, on a node owned by us, blocking would deadlock —
// and the chain is a genuine circular reference.
func (s *Session) waitCycleLocked(me, owner int, target schema.NodeID) error {
	cycle := []string{target.String()}
	current := owner
	for range len(s.waiting) + 1 {
		waitingOn, ok := s.waiting[current]
		if !ok {
			return nil
		}
		cycle = append(cycle, waitingOn.String())
		e, ok := s.entries[waitingOn]
		if !ok || e.state != stateResolving {
			return nil
		}
		if e.owner == me {
			return oaserrors.Resolution{
				Code:     string(oaserrors.ErrCircularReference),
				Message:  "circular reference across resolution paths",
				Pointer:  target.Pointer,
				Document: string(target.Document),
				Cycle:    cycle,
			}
		}
		current = e.owner
	}
	return nil
}

func (s *Session) clearWaiting(pathID int) {
	s.mu.Lock()
	delete(s.waiting, pathID)
	s.mu.Unlock()
}

// record appends a diagnostic. Fatal diagnostics count toward the error
// budget; exceeding it, or any fatal in fail-fast mode, aborts the session.
func (s *Session) record(err error) {
	resolutions, ok := oaserrors.AsResolutions(err)
	if !ok {
		resolutions = []oaserrors.Resolution{{
			Code:    string(oaserrors.ErrInternal),
			Message: err.Error(),
		}}
	}
	s.mu.Lock()
	for _, r := range resolutions {
		s.diags = append(s.diags, r)
		if !oaserrors.ErrorCode(r.Code).IsWarning() {
			s.fatals++
		}
	}
	fatals := s.fatals
	s.mu.Unlock()

	if s.cfg.FailFast && fatals > 0 {
		s.cancel(err)
		return
	}
	if s.cfg.MaxErrors > 0 && fatals > s.cfg.MaxErrors {
		s.cancel(fmt.Errorf("error budget exceeded: %d errors", fatals))
	}
}

// recordWarnings appends non-fatal diagnostics.
func (s *Session) recordWarnings(warnings []oaserrors.Resolution) {
	if len(warnings) == 0 {
		return
	}
	s.mu.Lock()
	s.diags = append(s.diags, warnings...)
	s.mu.Unlock()
}

// orderedDiagnostics returns diagnostics sorted by document then pointer so
// output is deterministic regardless of worker interleaving.
func (s *Session) orderedDiagnostics() []oaserrors.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]oaserrors.Resolution, len(s.diags))
	copy(out, s.diags)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Document != out[j].Document {
			return out[i].Document < out[j].Document
		}
		return out[i].Pointer < out[j].Pointer
	})
	return out
}

func (p *path) pushScope(doc document.ID) bool {
	if n := len(p.scopes); n > 0 && p.scopes[n-1] == doc {
		return false
	}
	p.scopes = append(p.scopes, doc)
	return true
}

func (p *path) popScope(pushed bool) {
	if pushed {
		p.scopes = p.scopes[:len(p.scopes)-1]
	}
}

func cycleResolution(err error, id schema.NodeID) oaserrors.Resolution {
	cycleErr, ok := err.(*refguard.CycleError[schema.NodeID])
	if !ok {
		return oaserrors.NewResolutionf(oaserrors.ErrCircularReference,
			id.Pointer, string(id.Document), "circular reference: %v", err)
	}
	cycle := make([]string, len(cycleErr.Cycle))
	for i, key := range cycleErr.Cycle {
		cycle[i] = key.String()
	}
	return oaserrors.Resolution{
		Code:     string(oaserrors.ErrCircularReference),
		Message:  "circular reference detected",
		Pointer:  id.Pointer,
		Document: string(id.Document),
		Cycle:    cycle,
	}
}
