// Package explorer loads and indexes the catalogue's OpenAPI document for
// the API explorer page. The document can come from a local file or from the
// upstream /openapi.json endpoint.
package explorer

import (
	"context"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/orbitfold/exoview/model"
)

// Parameter is one query or path parameter of an endpoint.
type Parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Endpoint is one operation of the catalogue API, flattened for display.
type Endpoint struct {
	OperationID string      `json:"operation_id"`
	Method      string      `json:"method"`
	Path        string      `json:"path"`
	Summary     string      `json:"summary,omitempty"`
	Tag         string      `json:"tag,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	HasBody     bool        `json:"has_body"`
	Deprecated  bool        `json:"deprecated,omitempty"`
}

// Group is a tag with its endpoints, in display order.
type Group struct {
	Tag       string     `json:"tag"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Index is an in-memory view of the catalogue's OpenAPI document.
type Index struct {
	title     string
	version   string
	endpoints []Endpoint
	byID      map[string]Endpoint
	doc       *openapi3.T
}

// LoadFile parses and indexes an OpenAPI document from a local file.
func LoadFile(path string) (*Index, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("explorer: loading %s: %w", path, err)
	}
	return buildIndex(doc)
}

// LoadBytes parses and indexes an OpenAPI document fetched from the upstream.
func LoadBytes(data []byte) (*Index, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("explorer: parsing document: %w", err)
	}
	return buildIndex(doc)
}

func buildIndex(doc *openapi3.T) (*Index, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("explorer: validating document: %w", err)
	}

	idx := &Index{
		byID: make(map[string]Endpoint),
		doc:  doc,
	}
	if doc.Info != nil {
		idx.title = doc.Info.Title
		idx.version = doc.Info.Version
	}

	for path, pathItem := range doc.Paths.Map() {
		for method, op := range pathItem.Operations() {
			ep := Endpoint{
				OperationID: op.OperationID,
				Method:      method,
				Path:        path,
				Summary:     op.Summary,
				HasBody:     op.RequestBody != nil && op.RequestBody.Value != nil,
				Deprecated:  op.Deprecated,
			}
			if len(op.Tags) > 0 {
				ep.Tag = op.Tags[0]
			}

			// Merge path-level and operation-level parameters.
			for _, ref := range pathItem.Parameters {
				if ref.Value != nil {
					ep.Parameters = append(ep.Parameters, flattenParameter(ref.Value))
				}
			}
			for _, ref := range op.Parameters {
				if ref.Value != nil {
					ep.Parameters = append(ep.Parameters, flattenParameter(ref.Value))
				}
			}

			idx.endpoints = append(idx.endpoints, ep)
			if ep.OperationID != "" {
				idx.byID[ep.OperationID] = ep
			}
		}
	}

	sort.Slice(idx.endpoints, func(i, j int) bool {
		a, b := idx.endpoints[i], idx.endpoints[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})
	return idx, nil
}

func flattenParameter(p *openapi3.Parameter) Parameter {
	out := Parameter{
		Name:        p.Name,
		In:          p.In,
		Description: p.Description,
		Required:    p.Required,
	}
	if p.Schema != nil && p.Schema.Value != nil && p.Schema.Value.Type != nil {
		types := p.Schema.Value.Type.Slice()
		if len(types) > 0 {
			out.Type = types[0]
		}
	}
	return out
}

// Title returns the document title.
func (idx *Index) Title() string { return idx.title }

// Version returns the document version.
func (idx *Index) Version() string { return idx.version }

// Endpoints returns every operation, sorted by path then method.
func (idx *Index) Endpoints() []Endpoint {
	out := make([]Endpoint, len(idx.endpoints))
	copy(out, idx.endpoints)
	return out
}

// Operation looks up one endpoint by its operationId.
func (idx *Index) Operation(operationID string) (Endpoint, bool) {
	ep, ok := idx.byID[operationID]
	return ep, ok
}

// Grouped returns the endpoints grouped by their first tag, tags sorted
// alphabetically with untagged operations last under an empty tag.
func (idx *Index) Grouped() []Group {
	byTag := make(map[string][]Endpoint)
	for _, ep := range idx.endpoints {
		byTag[ep.Tag] = append(byTag[ep.Tag], ep)
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if (tags[i] == "") != (tags[j] == "") {
			return tags[j] == ""
		}
		return tags[i] < tags[j]
	})

	groups := make([]Group, 0, len(tags))
	for _, tag := range tags {
		groups = append(groups, Group{Tag: tag, Endpoints: byTag[tag]})
	}
	return groups
}

// ValidateBody checks a request body against the operation's JSON schema
// required list. It returns nil when the body passes or the operation has no
// JSON request schema.
func (idx *Index) ValidateBody(operationID string, body map[string]any) []model.FieldError {
	if idx.doc == nil {
		return nil
	}
	op := idx.findRawOperation(operationID)
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	ct := op.RequestBody.Value.Content.Get("application/json")
	if ct == nil || ct.Schema == nil || ct.Schema.Value == nil {
		return nil
	}

	var errs []model.FieldError
	for _, req := range ct.Schema.Value.Required {
		if _, exists := body[req]; !exists {
			errs = append(errs, model.FieldError{
				Field:   req,
				Code:    "REQUIRED",
				Message: fmt.Sprintf("%s is required", req),
			})
		}
	}
	return errs
}

func (idx *Index) findRawOperation(operationID string) *openapi3.Operation {
	for _, pathItem := range idx.doc.Paths.Map() {
		for _, op := range pathItem.Operations() {
			if op.OperationID == operationID {
				return op
			}
		}
	}
	return nil
}
