/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package schema declares tool parameter schemas and validates invocation
// arguments against them. Validation is backed by JSON Schema so that the
// declared parameters and the wire-visible schema can never drift apart.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Kind identifies the primitive type of a parameter field.
type Kind string

//goland:noinspection GoUnusedConst
const (
	String  Kind = "string"
	Number  Kind = "number"
	Boolean Kind = "boolean"
	Array   Kind = "array"
	Map     Kind = "object"
)

// Field describes a single parameter in a tool's schema.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Required    bool
}

// Object is the declared parameter schema for one tool: an object with typed
// fields. Fields not declared here are permitted and passed through unchanged,
// so tool handlers may accept undocumented optional parameters.
type Object struct {
	Fields []Field

	compiled *gojsonschema.Schema
}

// MissingFieldError reports a required field absent from the arguments.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// TypeMismatchError reports a field whose value has the wrong dynamic type.
type TypeMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field '%s': expected %s, got %s", e.Field, e.Expected, e.Actual)
}

// Document returns the JSON Schema document for this object. Unknown fields
// are allowed (additionalProperties is deliberately left unset).
func (o *Object) Document() map[string]interface{} {
	properties := make(map[string]interface{}, len(o.Fields))
	var required []string

	for _, f := range o.Fields {
		prop := map[string]interface{}{
			"type": string(f.Kind),
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}

	doc := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// Compile builds the underlying JSON Schema validator. It is idempotent and
// called once during registration; Validate compiles lazily as a fallback.
func (o *Object) Compile() error {
	if o.compiled != nil {
		return nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(o.Document()))
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	o.compiled = compiled
	return nil
}

// Validate checks arguments against the declared schema. It returns a
// *MissingFieldError for an absent required field, a *TypeMismatchError for a
// present field of the wrong type, and nil when the arguments conform.
// Arguments are never mutated.
func (o *Object) Validate(args map[string]interface{}) error {
	if err := o.Compile(); err != nil {
		return err
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := o.compiled.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	// Missing required fields take precedence over type mismatches so the
	// caller always learns about absent parameters first.
	var mismatch error
	for _, desc := range result.Errors() {
		switch desc.Type() {
		case "required":
			if prop, ok := desc.Details()["property"].(string); ok {
				return &MissingFieldError{Field: prop}
			}
		case "invalid_type":
			if mismatch == nil {
				mismatch = &TypeMismatchError{
					Field:    desc.Field(),
					Expected: detailString(desc.Details(), "expected"),
					Actual:   detailString(desc.Details(), "given"),
				}
			}
		}
	}
	if mismatch != nil {
		return mismatch
	}

	// Primitive-only schemas should never reach here, but surface whatever
	// the validator reported rather than dropping it.
	return fmt.Errorf("invalid arguments: %s", result.Errors()[0].String())
}

func detailString(details gojsonschema.ErrorDetails, key string) string {
	if v, ok := details[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return "unknown"
}
