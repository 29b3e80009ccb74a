package document

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Loader resolves document locations to canonical identifiers and fetches
// decoded document trees. Resolve performs no I/O; Load may.
type Loader interface {
	Resolve(req Request) (ID, error)
	Load(ctx context.Context, id ID) (*Document, error)
}

// CanonicalID resolves a location against a base document identifier with
// strict path validation. URL bases absorb relative locations; file bases
// reject absolute paths, backslashes, and locations escaping the root.
func CanonicalID(baseID ID, location string) (ID, error) {
	if location == "" {
		return "", fmt.Errorf("document location is empty")
	}
	if isHTTP(location) {
		u, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("invalid document URL %q: %w", location, err)
		}
		return ID(u.String()), nil
	}
	if baseID.IsURL() {
		base, err := url.Parse(string(baseID))
		if err != nil {
			return "", fmt.Errorf("invalid base URL %q: %w", baseID, err)
		}
		ref, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("invalid document location %q: %w", location, err)
		}
		return ID(base.ResolveReference(ref).String()), nil
	}
	return canonicalPath(string(baseID), location)
}

func canonicalPath(base, location string) (ID, error) {
	if strings.Contains(location, "\\") {
		return "", fmt.Errorf("document location contains backslash: %q", location)
	}
	if strings.HasPrefix(location, "/") {
		return "", fmt.Errorf("document location must be relative: %q", location)
	}
	location = strings.TrimPrefix(location, "./")
	canonical := path.Clean(location)
	if canonical == "." {
		return "", fmt.Errorf("document location is empty")
	}
	baseDir := ""
	if idx := strings.LastIndex(base, "/"); idx != -1 {
		baseDir = base[:idx]
	}
	if baseDir != "" {
		canonical = path.Clean(baseDir + "/" + canonical)
	}
	if canonical == ".." || strings.HasPrefix(canonical, "../") {
		return "", fmt.Errorf("document location escapes root: %q", location)
	}
	return ID(canonical), nil
}

// Host returns the host component of a URL identifier, or "" for local documents.
func Host(id ID) string {
	if !id.IsURL() {
		return ""
	}
	u, err := url.Parse(string(id))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
