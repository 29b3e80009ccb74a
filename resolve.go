// Package openapi resolves an OpenAPI document split across local and remote
// files into one self-contained schema graph: every reference dereferenced,
// every allOf flattened, every discriminator bound to its variants. The
// resulting graph is immutable and safe for concurrent use.
package openapi

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/session"
)

// Resolve loads the root document at location inside fsys and resolves it
// with default options.
func Resolve(fsys fs.FS, location string) (*Graph, error) {
	return ResolveWithOptions(context.Background(), fsys, location, NewOptions())
}

// ResolveFile resolves a root document from a file path. Relative references
// resolve against the file's directory.
func ResolveFile(path string) (*Graph, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	return ResolveWithOptions(context.Background(), os.DirFS(dir), base, NewOptions())
}

// ResolveURL resolves a root document fetched over HTTP. Relative references
// resolve against the document URL; external hosts beyond the root's own
// must be allowlisted.
func ResolveURL(ctx context.Context, url string, opts Options) (*Graph, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", url, err)
	}
	loader := opts.loader
	if loader == nil {
		loader = document.NewHTTPLoader(opts.httpClient, opts.fetchTimeout.resolved())
	}
	return run(ctx, loader, url, opts)
}

// ResolveWithOptions resolves a root document from fsys with explicit
// configuration.
func ResolveWithOptions(ctx context.Context, fsys fs.FS, location string, opts Options) (*Graph, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", location, err)
	}
	loader := opts.loader
	if loader == nil {
		loader = &document.Splitter{
			FS:   document.NewFSLoader(fsys),
			HTTP: document.NewHTTPLoader(opts.httpClient, opts.fetchTimeout.resolved()),
		}
	}
	return run(ctx, loader, location, opts)
}

func run(ctx context.Context, loader document.Loader, location string, opts Options) (*Graph, error) {
	cached := document.NewCache(loader, opts.cacheDocuments.or(true))
	s := session.New(session.Config{
		Loader:          cached,
		RootLocation:    location,
		MaxRefDepth:     opts.maxRefDepth.resolved(),
		AllowedDomains:  opts.allowedDomains,
		FailFast:        opts.failFast,
		AllowDynamicRef: opts.dynamicRefs.or(true),
		Workers:         opts.workers.resolved(),
		MaxErrors:       opts.maxErrors.resolved(),
	})
	return s.Resolve(ctx)
}
