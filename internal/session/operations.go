package session

import (
	"context"
	"fmt"
	"strings"

	oaserrors "github.com/jacoelho/openapi/errors"
	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/graph"
	"github.com/jacoelho/openapi/internal/jsonpointer"
	"github.com/jacoelho/openapi/internal/schema"
	"github.com/jacoelho/openapi/internal/xiter"
)

// httpMethods lists path item keys that denote operations, in spec order.
var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

const maxRawRefHops = 16

// operationRoot is one discovered path operation before resolution.
type operationRoot struct {
	path    string
	method  string
	pointer jsonpointer.Pointer
}

// validateRoot checks document-level requirements of an OpenAPI root: a 3.x
// version, an info block with title and version, and a non-empty paths map.
// Documents without an openapi field are treated as bare schema collections
// and skipped. Violations are diagnostics, not aborts; resolution proceeds
// over whatever the document does declare.
func (s *Session) validateRoot(root *document.Document) graph.Info {
	m, ok := root.Root.(map[string]any)
	if !ok {
		s.record(oaserrors.NewResolution(oaserrors.ErrInvalidSyntax,
			"root document is not a mapping", "", string(root.ID)))
		return graph.Info{}
	}

	info := graph.Info{}
	if infoRaw, ok := m["info"].(map[string]any); ok {
		info.Title, _ = infoRaw["title"].(string)
		info.Version, _ = infoRaw["version"].(string)
		info.Description, _ = infoRaw["description"].(string)
	}

	version, declared := m["openapi"].(string)
	if !declared {
		return info
	}

	if !strings.HasPrefix(version, "3.") {
		s.record(oaserrors.NewResolutionf(oaserrors.ErrUnsupportedVersion,
			"/openapi", string(root.ID), "unsupported OpenAPI version %q", version))
	}
	if info.Title == "" {
		s.record(oaserrors.NewResolution(oaserrors.ErrMissingField,
			"info.title is required", "/info/title", string(root.ID)))
	}
	if info.Version == "" {
		s.record(oaserrors.NewResolution(oaserrors.ErrMissingField,
			"info.version is required", "/info/version", string(root.ID)))
	}
	if paths, ok := m["paths"].(map[string]any); !ok || len(paths) == 0 {
		s.record(oaserrors.NewResolution(oaserrors.ErrMissingField,
			"paths must declare at least one path", "/paths", string(root.ID)))
	}
	return info
}

// namedSchemaRoots returns component schema names in sorted order.
func namedSchemaRoots(root *document.Document) []string {
	m, ok := root.Root.(map[string]any)
	if !ok {
		return nil
	}
	components, ok := m["components"].(map[string]any)
	if !ok {
		return nil
	}
	schemas, ok := components["schemas"].(map[string]any)
	if !ok {
		return nil
	}
	return xiter.Collect(xiter.SortedKeys(schemas))
}

func componentPointer(name string) string {
	return jsonpointer.Root.Child("components", "schemas", name).String()
}

// collectOperations scans the paths object for operations, in sorted path
// order then spec method order.
func collectOperations(root *document.Document) []operationRoot {
	m, ok := root.Root.(map[string]any)
	if !ok {
		return nil
	}
	paths, ok := m["paths"].(map[string]any)
	if !ok {
		return nil
	}

	var roots []operationRoot
	for path := range xiter.SortedKeys(paths) {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		for _, method := range httpMethods {
			if _, ok := item[method].(map[string]any); !ok {
				continue
			}
			roots = append(roots, operationRoot{
				path:    path,
				method:  method,
				pointer: jsonpointer.Root.Child("paths", path, method),
			})
		}
	}
	return roots
}

// buildOperation resolves one path operation: parameters declared on the path
// item and the operation, the request body, and every response, with all
// schema edges interned into the arena.
func (s *Session) buildOperation(ctx context.Context, p *path, root *document.Document, opRoot operationRoot) (*graph.Operation, error) {
	m := root.Root.(map[string]any)
	pathItem := m["paths"].(map[string]any)[opRoot.path].(map[string]any)
	raw := pathItem[opRoot.method].(map[string]any)

	op := &graph.Operation{
		Method: strings.ToUpper(opRoot.method),
		Path:   opRoot.path,
	}
	op.ID, _ = raw["operationId"].(string)
	op.Summary, _ = raw["summary"].(string)
	op.Description, _ = raw["description"].(string)
	op.Deprecated, _ = raw["deprecated"].(bool)
	if tags, ok := raw["tags"].([]any); ok {
		for _, tag := range tags {
			if name, ok := tag.(string); ok {
				op.Tags = append(op.Tags, name)
			}
		}
	}

	// Path-level parameters apply to every operation on the path; the
	// operation's own list follows and may shadow by (name, in).
	shared, _ := pathItem["parameters"].([]any)
	own, _ := raw["parameters"].([]any)
	sharedPtr := jsonpointer.Root.Child("paths", opRoot.path, "parameters")
	ownPtr := opRoot.pointer.Child("parameters")
	for _, group := range []struct {
		items []any
		ptr   jsonpointer.Pointer
	}{{shared, sharedPtr}, {own, ownPtr}} {
		for i, item := range group.items {
			param, err := s.buildParameter(ctx, p, root.ID, item, group.ptr.Child(fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			op.Parameters = upsertParameter(op.Parameters, param)
		}
	}

	if body, ok := raw["requestBody"].(map[string]any); ok {
		resolved, err := s.buildRequestBody(ctx, p, root.ID, body, opRoot.pointer.Child("requestBody"))
		if err != nil {
			return nil, err
		}
		op.RequestBody = resolved
	}

	if responses, ok := raw["responses"].(map[string]any); ok {
		basePtr := opRoot.pointer.Child("responses")
		for status := range xiter.SortedKeys(responses) {
			response, err := s.buildResponse(ctx, p, root.ID, status, responses[status], basePtr.Child(status))
			if err != nil {
				return nil, err
			}
			op.Responses = append(op.Responses, response)
		}
	}
	return op, nil
}

func upsertParameter(params []graph.Parameter, param graph.Parameter) []graph.Parameter {
	for i, existing := range params {
		if existing.Name == param.Name && existing.In == param.In {
			params[i] = param
			return params
		}
	}
	return append(params, param)
}

func (s *Session) buildParameter(ctx context.Context, p *path, docID document.ID, raw any, ptr jsonpointer.Pointer) (graph.Parameter, error) {
	m, at, err := s.rawDeref(ctx, p, docID, raw, ptr)
	if err != nil {
		return graph.Parameter{}, err
	}

	param := graph.Parameter{Schema: graph.Invalid}
	param.Name, _ = m["name"].(string)
	param.In, _ = m["in"].(string)
	param.Description, _ = m["description"].(string)
	param.Required, _ = m["required"].(bool)
	param.Deprecated, _ = m["deprecated"].(bool)

	if rawSchema, ok := m["schema"]; ok {
		schemaPtr := at.pointer.Child("schema")
		node := schema.Parse(at.document, schemaPtr, rawSchema)
		param.Schema, _ = s.resolveEdge(ctx, p, node)
	}
	return param, nil
}

func (s *Session) buildRequestBody(ctx context.Context, p *path, docID document.ID, raw map[string]any, ptr jsonpointer.Pointer) (*graph.RequestBody, error) {
	m, at, err := s.rawDeref(ctx, p, docID, raw, ptr)
	if err != nil {
		return nil, err
	}

	body := &graph.RequestBody{}
	body.Description, _ = m["description"].(string)
	body.Required, _ = m["required"].(bool)
	content, err := s.buildContent(ctx, p, at, m)
	if err != nil {
		return nil, err
	}
	body.Content = content
	return body, nil
}

func (s *Session) buildResponse(ctx context.Context, p *path, docID document.ID, status string, raw any, ptr jsonpointer.Pointer) (graph.Response, error) {
	m, at, err := s.rawDeref(ctx, p, docID, raw, ptr)
	if err != nil {
		return graph.Response{}, err
	}

	response := graph.Response{Status: status}
	response.Description, _ = m["description"].(string)
	content, err := s.buildContent(ctx, p, at, m)
	if err != nil {
		return graph.Response{}, err
	}
	response.Content = content
	return response, nil
}

// buildContent resolves the media type map of a request body or response,
// sorted by content type for deterministic output.
func (s *Session) buildContent(ctx context.Context, p *path, at location, m map[string]any) ([]graph.MediaType, error) {
	content, ok := m["content"].(map[string]any)
	if !ok {
		return nil, nil
	}

	var out []graph.MediaType
	for contentType := range xiter.SortedKeys(content) {
		media := graph.MediaType{ContentType: contentType, Schema: graph.Invalid}
		if entry, ok := content[contentType].(map[string]any); ok {
			if rawSchema, ok := entry["schema"]; ok {
				schemaPtr := at.pointer.Child("content", contentType, "schema")
				node := schema.Parse(at.document, schemaPtr, rawSchema)
				media.Schema, _ = s.resolveEdge(ctx, p, node)
			}
		}
		out = append(out, media)
	}
	return out, nil
}

// location tracks where dereferenced raw content actually lives, so nested
// pointers stay correct after following component references.
type location struct {
	document document.ID
	pointer  jsonpointer.Pointer
}

// rawDeref follows $ref chains through non-schema components (parameters,
// requestBodies, responses), which have reference semantics but no schema
// structure of their own. Hops are bounded; targets honor the allowlist.
func (s *Session) rawDeref(ctx context.Context, p *path, docID document.ID, raw any, ptr jsonpointer.Pointer) (map[string]any, location, error) {
	at := location{document: docID, pointer: ptr}
	for hop := 0; ; hop++ {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, at, oaserrors.NewResolution(oaserrors.ErrReferenceNotFound,
				"component is not a mapping", at.pointer.String(), string(at.document))
		}
		ref, ok := m["$ref"].(string)
		if !ok {
			return m, at, nil
		}
		if hop >= maxRawRefHops {
			return nil, at, oaserrors.NewResolutionf(oaserrors.ErrRefDepthExceeded,
				at.pointer.String(), string(at.document),
				"component reference chain exceeds %d hops", maxRawRefHops)
		}

		node := &schema.Node{
			ID:   schema.NodeID{Document: at.document, Pointer: at.pointer.String()},
			Kind: schema.KindReference,
			Ref:  ref,
		}
		target, err := s.refTarget(ctx, p, node)
		if err != nil {
			return nil, at, err
		}
		doc, err := s.loadDocument(ctx, target.Document)
		if err != nil {
			return nil, at, err
		}
		targetPtr, err := jsonpointer.Parse(target.Pointer)
		if err != nil {
			return nil, at, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
				at.pointer.String(), string(at.document), "invalid pointer in %q: %v", ref, err)
		}
		raw, err = jsonpointer.Navigate(doc.Root, targetPtr)
		if err != nil {
			return nil, at, oaserrors.NewResolutionf(oaserrors.ErrReferenceNotFound,
				at.pointer.String(), string(at.document), "reference target not found: %v", err)
		}
		at = location{document: target.Document, pointer: targetPtr}
	}
}
