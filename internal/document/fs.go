package document

import (
	"context"
	"errors"
	"io/fs"
	"path"

	oaserrors "github.com/jacoelho/openapi/errors"
)

// FSLoader loads documents from an fs.FS with strict path validation.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader creates a loader backed by the provided filesystem.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

// Resolve implements Loader.
func (l *FSLoader) Resolve(req Request) (ID, error) {
	return CanonicalID(req.BaseID, req.Location)
}

// Load implements Loader.
func (l *FSLoader) Load(_ context.Context, id ID) (*Document, error) {
	if l == nil || l.fsys == nil {
		return nil, oaserrors.NewResolution(oaserrors.ErrFileNotFound,
			"no filesystem configured", "", string(id))
	}
	if !SupportedExtension(string(id)) {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrUnsupportedFormat, "", string(id),
			"unsupported document format %q (expected .json, .yaml, or .yml)", path.Ext(string(id)))
	}
	data, err := fs.ReadFile(l.fsys, string(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, oaserrors.NewResolutionf(oaserrors.ErrFileNotFound, "", string(id),
				"document not found: %s", id)
		}
		return nil, oaserrors.NewResolutionf(oaserrors.ErrFileNotFound, "", string(id),
			"read document: %v", err)
	}
	root, err := Decode(data, id)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Root: root}, nil
}
