// internal/common/validation/schema.go
package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per embedded file.
const (
	SchemaDraftRequest     = "draft_request"
	SchemaScreeningRequest = "screening_request"
	SchemaGenerateDraftJob = "generate_draft_job"
	SchemaScreenInputJob   = "screen_input_job"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds the compiled request schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		v.schemas[strings.TrimSuffix(e.Name(), ".json")] = schema
	}
	return v, nil
}

// HasSchema reports whether name was compiled.
func (v *Validator) HasSchema(name string) bool {
	_, ok := v.schemas[name]
	return ok
}

// ValidateJSON validates a raw JSON document. Malformed JSON is reported as a
// single INVALID_JSON error rather than a Go error.
func (v *Validator) ValidateJSON(schemaName string, document []byte) (*ValidationResult, error) {
	if !json.Valid(document) {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: "body is not valid JSON", Code: "INVALID_JSON"}},
		}, nil
	}
	return v.validate(schemaName, gojsonschema.NewBytesLoader(document))
}

// ValidateInput validates an already decoded document.
func (v *Validator) ValidateInput(schemaName string, input interface{}) (*ValidationResult, error) {
	return v.validate(schemaName, gojsonschema.NewGoLoader(input))
}

func (v *Validator) validate(schemaName string, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	schema, ok := v.schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schemaName)
	}

	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", schemaName, err)
	}

	vr := &ValidationResult{Valid: result.Valid()}
	for _, re := range result.Errors() {
		vr.Errors = append(vr.Errors, ValidationError{
			Field:   fieldName(re),
			Message: re.Description(),
			Code:    errorCode(re.Type()),
		})
	}
	return vr, nil
}

// fieldName names the offending property for required and additional
// property errors, whose context may be the parent object.
func fieldName(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() != "required" && re.Type() != "additional_property_not_allowed" {
		return field
	}
	prop, ok := re.Details()["property"].(string)
	if !ok || prop == "" {
		return field
	}
	switch {
	case field == prop || strings.HasSuffix(field, "."+prop):
		return field
	case field == "(root)" || field == "":
		return prop
	default:
		return field + "." + prop
	}
}

func errorCode(t string) string {
	switch t {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	case "invalid_type":
		return "INVALID_TYPE"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	case "pattern":
		return "PATTERN_MISMATCH"
	case "enum":
		return "INVALID_ENUM_VALUE"
	default:
		return strings.ToUpper(t)
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
