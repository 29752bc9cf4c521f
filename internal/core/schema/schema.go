// Package schema holds the JSON Schema of a parse result and validates
// documents against it.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
)

const resourceName = "receipt-result.json"

// ResultSchema returns the JSON Schema (draft 2020-12 subset) of a
// marshalled parser.Result as a generic map.
func ResultSchema() map[string]any {
	reviewList := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":     "object",
			"required": []string{"value", "score", "pattern"},
			"properties": map[string]any{
				"value":   map[string]any{"type": "string"},
				"score":   unitInterval(),
				"pattern": map[string]any{"type": "string"},
			},
		},
	}
	debug := map[string]any{
		"type":     "object",
		"required": []string{"patterns_matched", "confidence_per_field", "warnings", "review_candidates", "vendor_is_forwarded"},
		"properties": map[string]any{
			"patterns_matched": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"confidence_per_field": map[string]any{
				"type":                 "object",
				"additionalProperties": unitInterval(),
			},
			"warnings": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"amount_validation": map[string]any{
				"type":     "object",
				"required": []string{"is_consistent", "subtotal", "tax", "total"},
				"properties": map[string]any{
					"is_consistent":    map[string]any{"type": "boolean"},
					"subtotal":         decimalProp(false),
					"tax":              decimalProp(false),
					"calculated_total": decimalProp(false),
					"total":            decimalProp(false),
					"difference":       decimalProp(false),
					"tolerance":        decimalProp(false),
				},
			},
			"review_candidates": map[string]any{
				"type":                 "object",
				"additionalProperties": reviewList,
			},
			"vendor_is_forwarded": map[string]any{"type": "boolean"},
			"locale_hint":         map[string]any{"type": "string"},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"vendor", "amount", "currency", "date", "tax", "confidence", "needs_review", "debug"},
		"properties": map[string]any{
			"vendor":       map[string]any{"type": []string{"string", "null"}, "minLength": 1},
			"amount":       decimalProp(true),
			"currency":     map[string]any{"type": []string{"string", "null"}, "pattern": `^[A-Z]{3}$`},
			"date":         map[string]any{"type": []string{"string", "null"}, "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"tax":          decimalProp(true),
			"confidence":   unitInterval(),
			"needs_review": map[string]any{"type": "boolean"},
			"debug":        debug,
		},
	}
}

func unitInterval() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
}

// decimals marshal as strings
func decimalProp(nullable bool) map[string]any {
	p := map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d+)?$`,
	}
	if nullable {
		p["type"] = []string{"string", "null"}
	}
	return p
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compile() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(ResultSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(resourceName, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(resourceName)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Validate checks a JSON document against ResultSchema.
func Validate(data []byte) error {
	s, err := compile()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateResult marshals res and validates it.
func ValidateResult(res parser.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return Validate(b)
}
