// Package validation checks request bodies against embedded JSON schemas
// and reports the first failing field.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
)

// Schema names.
const (
	Register   = "register"
	Login      = "login"
	Profile    = "profile"
	CreateGig  = "create_gig"
	EditGig    = "edit_gig"
	Proposal   = "proposal"
	Credits    = "credits"
	CreditCard = "credit_card"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://gig-marketplace.local/schemas/"

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %q: %w", name, err)
		}
		names = append(names, name)
	}

	schemas := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := compiler.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
		schemas[name] = s
	}
	return &Validator{schemas: schemas}, nil
}

// Decode validates body against the named schema and unmarshals it into dst.
// Failures are apperr.FieldError values wrapping apperr.ErrValidation.
func (v *Validator) Decode(schema string, body []byte, dst any) error {
	s, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return apperr.Field("body", apperr.ErrValidation, "request body must be valid JSON")
	}
	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return toFieldError(ve)
		}
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Field("body", apperr.ErrValidation, "request body does not match the expected shape")
	}
	return nil
}

// decodeDocument parses body into the generic form the schema validator
// walks. Numbers stay json.Number so large integers keep their precision.
func decodeDocument(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return doc, nil
}

// toFieldError reports the deepest cause, which names the offending property.
func toFieldError(ve *jsonschema.ValidationError) *apperr.FieldError {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if i := strings.Index(field, "/"); i >= 0 {
		field = field[:i]
	}
	if field == "" {
		field = missingProperty(leaf.Message)
	}
	if field == "" {
		field = "body"
	}
	return apperr.Field(field, apperr.ErrValidation, "%s", leaf.Message)
}

// missingProperty extracts the name from "missing properties: 'name', ...".
func missingProperty(msg string) string {
	const prefix = "missing properties: "
	if !strings.HasPrefix(msg, prefix) {
		return ""
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(msg, prefix), ",")
	return strings.Trim(strings.TrimSpace(first), "'")
}
