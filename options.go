package openapi

import (
	"fmt"
	"net/http"
	"time"
)

type intOption struct {
	value int
	set   bool
}

func (o intOption) resolved() int {
	if !o.set {
		return 0
	}
	return o.value
}

type durationOption struct {
	value time.Duration
	set   bool
}

func (o durationOption) resolved() time.Duration {
	if !o.set {
		return 0
	}
	return o.value
}

type boolOption struct {
	value bool
	set   bool
}

func (o boolOption) or(fallback bool) bool {
	if !o.set {
		return fallback
	}
	return o.value
}

// Options configures document loading and reference resolution.
type Options struct {
	maxRefDepth    intOption
	workers        intOption
	maxErrors      intOption
	fetchTimeout   durationOption
	allowedDomains []string
	cacheDocuments boolOption
	dynamicRefs    boolOption
	failFast       bool
	httpClient     *http.Client
	loader         Loader
}

// NewOptions returns a default, valid options value.
func NewOptions() Options {
	return Options{}
}

// Validate validates option values.
func (o Options) Validate() error {
	if o.maxRefDepth.set && o.maxRefDepth.value <= 0 {
		return fmt.Errorf("max ref depth must be positive, got %d", o.maxRefDepth.value)
	}
	if o.workers.set && o.workers.value <= 0 {
		return fmt.Errorf("workers must be positive, got %d", o.workers.value)
	}
	if o.maxErrors.set && o.maxErrors.value < 0 {
		return fmt.Errorf("max errors must be non-negative, got %d", o.maxErrors.value)
	}
	if o.fetchTimeout.set && o.fetchTimeout.value <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", o.fetchTimeout.value)
	}
	return nil
}

// WithMaxRefDepth sets the reference chain depth limit (0 uses default).
func (o Options) WithMaxRefDepth(value int) Options {
	o.maxRefDepth = intOption{value: value, set: true}
	return o
}

// WithWorkers sets the number of concurrent resolution workers (0 uses default).
func (o Options) WithWorkers(value int) Options {
	o.workers = intOption{value: value, set: true}
	return o
}

// WithMaxErrors sets the fail-soft error budget; resolution aborts once it is
// exceeded (0 means unbounded).
func (o Options) WithMaxErrors(value int) Options {
	o.maxErrors = intOption{value: value, set: true}
	return o
}

// WithFetchTimeout sets the per-document HTTP fetch timeout (0 uses default).
func (o Options) WithFetchTimeout(value time.Duration) Options {
	o.fetchTimeout = durationOption{value: value, set: true}
	return o
}

// WithAllowedDomains sets the hosts external references may be fetched from.
// External references to any other host fail without being contacted. The
// root document's own host is always allowed.
func (o Options) WithAllowedDomains(domains ...string) Options {
	o.allowedDomains = append([]string(nil), domains...)
	return o
}

// WithDocumentCache controls whether loaded documents are cached for the
// session (default true). In-flight fetches deduplicate either way.
func (o Options) WithDocumentCache(value bool) Options {
	o.cacheDocuments = boolOption{value: value, set: true}
	return o
}

// WithDynamicRefs controls $dynamicRef/$dynamicAnchor scope resolution
// (default true). When disabled dynamic references resolve lexically.
func (o Options) WithDynamicRefs(value bool) Options {
	o.dynamicRefs = boolOption{value: value, set: true}
	return o
}

// WithFailFast aborts resolution on the first fatal error instead of
// aggregating diagnostics.
func (o Options) WithFailFast(value bool) Options {
	o.failFast = value
	return o
}

// WithHTTPClient sets the client used for external document fetches.
func (o Options) WithHTTPClient(client *http.Client) Options {
	o.httpClient = client
	return o
}

// WithLoader replaces the default document loader entirely; filesystem and
// HTTP settings are ignored when a loader is set.
func (o Options) WithLoader(loader Loader) Options {
	o.loader = loader
	return o
}
