/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package schema

import (
	"errors"
	"testing"
)

func sumSchema() Object {
	return Object{Fields: []Field{
		{Name: "a", Kind: Number, Required: true},
		{Name: "b", Kind: Number, Required: true},
		{Name: "label", Kind: String},
	}}
}

func TestValidateConforming(t *testing.T) {
	s := sumSchema()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{
			name: "required only",
			args: map[string]interface{}{"a": 2.0, "b": 3.0},
		},
		{
			name: "with optional",
			args: map[string]interface{}{"a": 2.0, "b": 3.0, "label": "sum"},
		},
		{
			name: "unknown fields allowed",
			args: map[string]interface{}{"a": 2.0, "b": 3.0, "extra": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Validate(tt.args); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestValidateMissingField(t *testing.T) {
	s := sumSchema()

	err := s.Validate(map[string]interface{}{"a": 2.0})
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Validate() = %v, want MissingFieldError", err)
	}
	if missing.Field != "b" {
		t.Errorf("Field = %s, want b", missing.Field)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	s := sumSchema()

	err := s.Validate(map[string]interface{}{"a": 2.0, "b": "three"})
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Validate() = %v, want TypeMismatchError", err)
	}
	if mismatch.Field != "b" {
		t.Errorf("Field = %s, want b", mismatch.Field)
	}
	if mismatch.Expected != "number" {
		t.Errorf("Expected = %s, want number", mismatch.Expected)
	}
}

func TestValidateMissingTakesPrecedence(t *testing.T) {
	// When one required field is absent and another has the wrong type, the
	// caller hears about the absent field first.
	s := sumSchema()

	err := s.Validate(map[string]interface{}{"a": "two"})
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Validate() = %v, want MissingFieldError", err)
	}
	if missing.Field != "b" {
		t.Errorf("Field = %s, want b", missing.Field)
	}
}

func TestValidateNilArguments(t *testing.T) {
	empty := Object{Fields: []Field{
		{Name: "note", Kind: String},
	}}
	if err := empty.Validate(nil); err != nil {
		t.Errorf("Validate(nil) = %v, want nil", err)
	}

	s := sumSchema()
	err := s.Validate(nil)
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Validate(nil) = %v, want MissingFieldError", err)
	}
}

func TestValidateDoesNotMutateArguments(t *testing.T) {
	s := sumSchema()
	args := map[string]interface{}{"a": 2.0}

	_ = s.Validate(args)

	if len(args) != 1 {
		t.Errorf("len(args) = %d, want 1", len(args))
	}
	if args["a"] != 2.0 {
		t.Errorf("args[a] = %v, want 2.0", args["a"])
	}
}

func TestDocument(t *testing.T) {
	s := sumSchema()
	doc := s.Document()

	if doc["type"] != "object" {
		t.Errorf("type = %v, want object", doc["type"])
	}

	props, ok := doc["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("properties missing")
	}
	if len(props) != 3 {
		t.Errorf("len(properties) = %d, want 3", len(props))
	}

	required, ok := doc["required"].([]string)
	if !ok {
		t.Fatal("required missing")
	}
	if len(required) != 2 {
		t.Errorf("len(required) = %d, want 2", len(required))
	}

	// Unknown fields stay permitted
	if _, present := doc["additionalProperties"]; present {
		t.Error("additionalProperties should not be set")
	}
}

func TestCompileIdempotent(t *testing.T) {
	s := sumSchema()
	if err := s.Compile(); err != nil {
		t.Fatalf("Compile() = %v", err)
	}
	first := s.compiled
	if err := s.Compile(); err != nil {
		t.Fatalf("second Compile() = %v", err)
	}
	if s.compiled != first {
		t.Error("Compile() rebuilt an already-compiled schema")
	}
}

func TestValidateBooleanAndArray(t *testing.T) {
	s := Object{Fields: []Field{
		{Name: "flag", Kind: Boolean, Required: true},
		{Name: "items", Kind: Array},
	}}

	if err := s.Validate(map[string]interface{}{"flag": true, "items": []interface{}{"a", "b"}}); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	err := s.Validate(map[string]interface{}{"flag": "yes"})
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Validate() = %v, want TypeMismatchError", err)
	}
	if mismatch.Field != "flag" {
		t.Errorf("Field = %s, want flag", mismatch.Field)
	}
}
