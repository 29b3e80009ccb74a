// Package refguard tracks in-progress reference expansions on one logical
// resolution path. Each root traversal owns its own guard: two unrelated
// branches being in progress at once is not a cycle, only a branch revisiting
// its own ancestor chain is.
package refguard

import (
	"fmt"
	"strings"
)

// CycleError reports a reference chain that revisits an ancestor. Cycle holds
// the ordered chain from the revisited entry back to itself; a direct
// self-reference reports the single entry.
type CycleError[K comparable] struct {
	Cycle []K
}

// Error returns the error string.
func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, key := range e.Cycle {
		parts[i] = fmt.Sprint(key)
	}
	return "circular reference: " + strings.Join(parts, " -> ")
}

// Guard is an ordered stack of in-progress entries with O(1) membership.
// It is not safe for concurrent use; guards are per resolution path.
type Guard[K comparable] struct {
	stack []K
	index map[K]int
}

// New creates an empty guard.
func New[K comparable]() *Guard[K] {
	return &Guard[K]{index: make(map[K]int)}
}

// Enter pushes key onto the path. If key is already on the path it returns a
// *CycleError carrying the ordered cycle and leaves the path unchanged.
func (g *Guard[K]) Enter(key K) error {
	if at, ok := g.index[key]; ok {
		if at == len(g.stack)-1 {
			return &CycleError[K]{Cycle: []K{key}}
		}
		cycle := make([]K, 0, len(g.stack)-at+1)
		cycle = append(cycle, g.stack[at:]...)
		cycle = append(cycle, key)
		return &CycleError[K]{Cycle: cycle}
	}
	g.index[key] = len(g.stack)
	g.stack = append(g.stack, key)
	return nil
}

// Leave pops key; it must be the top of the path.
func (g *Guard[K]) Leave(key K) {
	n := len(g.stack)
	if n == 0 || g.stack[n-1] != key {
		panic("refguard: leave out of order")
	}
	g.stack = g.stack[:n-1]
	delete(g.index, key)
}

// Depth returns the number of in-progress entries.
func (g *Guard[K]) Depth() int {
	return len(g.stack)
}

// On reports whether key is currently on the path.
func (g *Guard[K]) On(key K) bool {
	_, ok := g.index[key]
	return ok
}

// WithScope runs fn with key on the path, popping it afterwards.
func (g *Guard[K]) WithScope(key K, fn func() error) error {
	if err := g.Enter(key); err != nil {
		return err
	}
	defer g.Leave(key)
	return fn()
}
