// Package validator checks the JSON handed to and produced by the rego
// rules against embedded CUE contracts.
//
// A renamed field or an unknown enum value makes rules silently stop
// matching. The contracts turn that into an error at the boundary, so a
// failure here points at the code that built the data, not at the schema.
package validator

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

//go:embed output_schema.cue
var outputSchemaFS embed.FS

// Validator validates fact tables against the #FactTables contract.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schema, err := compile(ctx, schemaFS, "schema.cue")
	if err != nil {
		return nil, err
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

func compile(ctx *cue.Context, fs embed.FS, name string) (cue.Value, error) {
	schemaBytes, err := fs.ReadFile(name)
	if err != nil {
		return cue.Value{}, fmt.Errorf("loading embedded %s: %w", name, err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling %s: %w", name, schema.Err())
	}
	return schema, nil
}

// Validate checks that the fact tables conform to the schema.
// Returns nil if valid, or a detailed error explaining what failed.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling facts to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON validates JSON bytes directly against the schema
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := unify(v.ctx, v.schema, "#FactTables", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("facts schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns detailed information about all validation errors
func (v *Validator) ValidationErrors(data interface{}) []string {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	unified, err := unify(v.ctx, v.schema, "#FactTables", jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}
	err = unified.Validate()
	if err == nil {
		return nil
	}

	// Extract all errors
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

func unify(ctx *cue.Context, schema cue.Value, def string, jsonBytes []byte) (cue.Value, error) {
	dataValue := ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	d := schema.LookupPath(cue.ParsePath(def))
	if d.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", def, d.Err())
	}

	return d.Unify(dataValue), nil
}

// OutputValidator validates rule findings against the output schema
type OutputValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewOutputValidator creates a validator for rule findings
func NewOutputValidator() (*OutputValidator, error) {
	ctx := cuecontext.New()

	schema, err := compile(ctx, outputSchemaFS, "output_schema.cue")
	if err != nil {
		return nil, err
	}

	return &OutputValidator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks that the output data conforms to the #PolicyOutput contract
func (v *OutputValidator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling output to JSON: %w", err)
	}

	unified, err := unify(v.ctx, v.schema, "#PolicyOutput", jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("output schema validation failed: %w", err)
	}

	return nil
}
