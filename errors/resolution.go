package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a resolution error or warning category.
type ErrorCode string

const (
	// ErrFileNotFound indicates a referenced document could not be located.
	ErrFileNotFound ErrorCode = "load-file-not-found"
	// ErrUnsupportedFormat indicates a document extension or content type is not supported.
	ErrUnsupportedFormat ErrorCode = "load-unsupported-format"
	// ErrInvalidSyntax indicates a document could not be decoded as YAML or JSON.
	ErrInvalidSyntax ErrorCode = "load-invalid-syntax"
	// ErrExternalFetchFailed indicates an external document fetch failed.
	ErrExternalFetchFailed ErrorCode = "load-external-fetch-failed"
	// ErrDomainNotAllowed indicates a fetch target is not on the domain allowlist.
	ErrDomainNotAllowed ErrorCode = "load-domain-not-allowed"

	// ErrCircularReference indicates a reference chain revisits its own ancestor.
	ErrCircularReference ErrorCode = "ref-circular"
	// ErrReferenceNotFound indicates a JSON Pointer target does not exist.
	ErrReferenceNotFound ErrorCode = "ref-not-found"
	// ErrRefDepthExceeded indicates reference expansion passed the configured depth limit.
	ErrRefDepthExceeded ErrorCode = "ref-depth-exceeded"

	// ErrAllOfMergeConflict indicates allOf branches declare incompatible constraints.
	ErrAllOfMergeConflict ErrorCode = "compose-allof-conflict"
	// ErrAnyOfEmpty indicates an anyOf with no entries.
	ErrAnyOfEmpty ErrorCode = "compose-anyof-empty"
	// ErrOneOfDiscriminatorMissing indicates a discriminator mapping does not match its variants.
	ErrOneOfDiscriminatorMissing ErrorCode = "compose-discriminator-missing"
	// ErrAllOfBranchLimit indicates allOf flattening exceeded the branch budget.
	ErrAllOfBranchLimit ErrorCode = "compose-allof-branch-limit"

	// ErrUnsupportedVersion indicates the root document declares an unsupported OpenAPI version.
	ErrUnsupportedVersion ErrorCode = "doc-unsupported-version"
	// ErrMissingField indicates the root document lacks a required field.
	ErrMissingField ErrorCode = "doc-missing-field"

	// ErrInternal classifies failures that carry no resolution code of their
	// own, such as errors from a caller-supplied loader.
	ErrInternal ErrorCode = "internal-error"

	// WarnOneOfAmbiguousVariants indicates oneOf variants are not structurally distinguishable.
	WarnOneOfAmbiguousVariants ErrorCode = "warn-oneof-ambiguous"
	// WarnVacuousCondition indicates an if schema that always matches.
	WarnVacuousCondition ErrorCode = "warn-vacuous-condition"
)

// IsWarning reports whether the code is a non-fatal diagnostic.
func (c ErrorCode) IsWarning() bool {
	return strings.HasPrefix(string(c), "warn-")
}

// Resolution describes a resolution diagnostic with its error code and the
// document and JSON Pointer location it was raised at.
//
//nolint:errname // public API name uses resolution domain term.
type Resolution struct {
	Code     string
	Message  string
	Pointer  string
	Document string
	Cycle    []string
}

// ResolutionList is an error that wraps one or more resolution diagnostics.
type ResolutionList []Resolution //nolint:errname // public API name, keep for compatibility.

// Error returns a compact summary of the resolution diagnostics.
func (l ResolutionList) Error() string {
	switch len(l) {
	case 0:
		return "no resolution errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Fatal reports whether the list contains at least one non-warning diagnostic.
func (l ResolutionList) Fatal() bool {
	for _, r := range l {
		if !ErrorCode(r.Code).IsWarning() {
			return true
		}
	}
	return false
}

// Error formats the resolution for display, including code, message, and location.
func (r Resolution) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", r.Code, r.Message))
	if r.Pointer != "" {
		b.WriteString(fmt.Sprintf(" at %s", r.Pointer))
	}
	if r.Document != "" {
		b.WriteString(fmt.Sprintf(" in %s", r.Document))
	}
	if len(r.Cycle) > 0 {
		b.WriteString(fmt.Sprintf(" (cycle: %s)", strings.Join(r.Cycle, " -> ")))
	}
	return b.String()
}

// NewResolution builds a Resolution with a code, message, and location.
func NewResolution(code ErrorCode, msg, pointer, document string) Resolution {
	return Resolution{Code: string(code), Message: msg, Pointer: pointer, Document: document}
}

// NewResolutionf formats a message and builds a Resolution.
func NewResolutionf(code ErrorCode, pointer, document, format string, args ...any) Resolution {
	return NewResolution(code, fmt.Sprintf(format, args...), pointer, document)
}

// AsResolutions extracts resolution diagnostics from an error returned by the engine.
func AsResolutions(err error) ([]Resolution, bool) {
	list, ok := asResolutionList(err)
	if !ok {
		return nil, false
	}
	return []Resolution(list), true
}

func asResolutionList(err error) (ResolutionList, bool) {
	if err == nil {
		return nil, false
	}
	var list ResolutionList
	if errors.As(err, &list) {
		return list, true
	}

	var listPtr *ResolutionList
	if errors.As(err, &listPtr) && listPtr != nil {
		return *listPtr, true
	}

	var single Resolution
	if errors.As(err, &single) {
		return ResolutionList{single}, true
	}

	return nil, false
}

// Is supports errors.Is matching on the error code.
func (r Resolution) Is(target error) bool {
	other, ok := target.(Resolution)
	if !ok {
		return false
	}
	return other.Code == r.Code && (other.Pointer == "" || other.Pointer == r.Pointer)
}
