package openapi

import (
	"github.com/jacoelho/openapi/internal/document"
	"github.com/jacoelho/openapi/internal/graph"
	"github.com/jacoelho/openapi/internal/schema"
)

// Graph is the resolved, immutable schema graph.
type Graph = graph.Graph

// Ref addresses a schema inside the graph arena.
type Ref = graph.Ref

// InvalidRef marks an absent schema edge.
const InvalidRef = graph.Invalid

// Schema is one fully normalized schema node.
type Schema = graph.EffectiveSchema

// SchemaID identifies a schema by canonical document and JSON Pointer.
type SchemaID = schema.NodeID

// Constraints holds validation bounds of a schema node.
type Constraints = schema.Constraints

// Property is a named property with its resolved schema edge.
type Property = graph.Property

// Policy is a resolved additionalProperties/unevaluatedProperties policy.
type Policy = graph.Policy

// PolicyMode classifies an extra-properties policy.
type PolicyMode = graph.PolicyMode

// Policy modes.
const (
	PolicyUnset  = graph.PolicyUnset
	PolicyAllow  = graph.PolicyAllow
	PolicyForbid = graph.PolicyForbid
	PolicySchema = graph.PolicySchema
)

// Variant is one candidate of a oneOf/anyOf union.
type Variant = graph.Variant

// VariantMode distinguishes oneOf from anyOf.
type VariantMode = graph.VariantMode

// Variant modes.
const (
	VariantNone  = graph.VariantNone
	VariantOneOf = graph.VariantOneOf
	VariantAnyOf = graph.VariantAnyOf
)

// DiscriminatorMap maps tag values to resolved variants.
type DiscriminatorMap = graph.DiscriminatorMap

// Conditional is a normalized if/then/else.
type Conditional = graph.Conditional

// Dependent is one dependent-constraints trigger.
type Dependent = graph.Dependent

// Info carries root document metadata.
type Info = graph.Info

// Operation is a fully resolved path operation.
type Operation = graph.Operation

// Parameter is a resolved operation parameter.
type Parameter = graph.Parameter

// RequestBody is a resolved request body.
type RequestBody = graph.RequestBody

// Response is one resolved response.
type Response = graph.Response

// MediaType pairs a content type with its resolved schema.
type MediaType = graph.MediaType

// Loader loads documents by canonical identifier. Implementations replace the
// built-in filesystem and HTTP loaders.
type Loader = document.Loader

// Document is one loaded, decoded document.
type Document = document.Document

// DocumentID is a canonical document identifier.
type DocumentID = document.ID

// DocumentRequest asks a loader to canonicalize a reference location.
type DocumentRequest = document.Request
