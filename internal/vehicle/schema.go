// Package vehicle validates the shape of vehicle documents before they are
// turned into records.
package vehicle

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed vehicle.schema.json
var vehicleSchema string

// ValidationError lists every way a document misses the vehicle shape.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid vehicle: " + strings.Join(e.Problems, "; ")
}

// Validator checks documents against the vehicle JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchemaLoader().Compile(gojsonschema.NewStringLoader(vehicleSchema))
	if err != nil {
		return nil, fmt.Errorf("cannot compile vehicle schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateJSON validates a raw JSON document.
func (v *Validator) ValidateJSON(data []byte) error {
	return v.validate(gojsonschema.NewBytesLoader(data))
}

// Validate validates a decoded Go value such as a map.
func (v *Validator) Validate(doc interface{}) error {
	return v.validate(gojsonschema.NewGoLoader(doc))
}

func (v *Validator) validate(loader gojsonschema.JSONLoader) error {
	result, err := v.schema.Validate(loader)
	if err != nil {
		return &ValidationError{Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Problems: problems}
}
