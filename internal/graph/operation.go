package graph

// Parameter is a resolved operation parameter.
type Parameter struct {
	Name        string
	In          string
	Description string
	Required    bool
	Deprecated  bool
	Schema      Ref
}

// MediaType pairs a content type with its resolved schema.
type MediaType struct {
	ContentType string
	Schema      Ref
}

// RequestBody is a resolved operation request body.
type RequestBody struct {
	Description string
	Required    bool
	Content     []MediaType
}

// Response is one resolved response, keyed by status code pattern.
type Response struct {
	Status      string
	Description string
	Content     []MediaType
}

// Operation is a fully resolved path operation: every schema edge points into
// the graph arena.
type Operation struct {
	Method      string
	Path        string
	ID          string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool

	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []Response
}

// Response returns the response for an exact status code pattern.
func (o *Operation) Response(status string) (Response, bool) {
	for _, r := range o.Responses {
		if r.Status == status {
			return r, true
		}
	}
	return Response{}, false
}
