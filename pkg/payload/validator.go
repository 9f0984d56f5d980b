// Package payload validates trigger payloads against workflow JSON schemas.
package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const (
	rootContext = "(root)"

	// contextSeparator joins context segments so dotted property names survive.
	contextSeparator = "\x1f"
)

// ErrInvalidSchema is returned when a workflow payload schema cannot be compiled.
var ErrInvalidSchema = errors.New("invalid payload schema")

// FieldError describes one schema violation.
type FieldError struct {
	Field      string `json:"field"`
	Message    string `json:"message"`
	Value      any    `json:"value,omitempty"`
	SchemaPath string `json:"schemaPath"`
}

// ValidationError carries every violation found in one validation pass.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, fieldErr := range e.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message))
	}

	return "payload validation failed: " + strings.Join(messages, "; ")
}

// SchemaKey identifies one revision of a workflow payload schema.
type SchemaKey struct {
	ID      string
	Version time.Time
}

type compiledSchema struct {
	version time.Time
	schema  *gojsonschema.Schema
}

// Validator evaluates payloads against JSON schemas with default application.
// Schemas validated through ValidateVersioned are compiled once per revision.
type Validator struct {
	schemas sync.Map // workflow id -> *compiledSchema
}

// NewValidator creates a payload validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks payload against schema. On success it returns a copy of the
// payload with schema defaults applied; the input payload is never mutated.
// On violation it returns a *ValidationError listing all problems.
func (v *Validator) Validate(payload map[string]any, schema map[string]any) (map[string]any, error) {
	return v.ValidateVersioned(SchemaKey{}, payload, schema)
}

// ValidateVersioned behaves like Validate but reuses the compiled schema of
// key while its version is unchanged. An empty key ID disables reuse. Only the
// latest revision of each ID is kept.
func (v *Validator) ValidateVersioned(
	key SchemaKey,
	payload map[string]any,
	schema map[string]any,
) (map[string]any, error) {
	compiled, err := v.compile(key, schema)
	if err != nil {
		return nil, err
	}

	original := DeepCopy(payload)
	if original == nil {
		original = map[string]any{}
	}

	defaulted, _ := applyDefaults(schema, DeepCopy(original)).(map[string]any)

	result, err := compiled.Validate(gojsonschema.NewGoLoader(defaulted))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate payload schema: %w", err)
	}

	if result.Valid() {
		return defaulted, nil
	}

	fieldErrors := make([]FieldError, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		fieldErrors = append(fieldErrors, toFieldError(resultErr, original))
	}

	return nil, &ValidationError{Errors: fieldErrors}
}

func (v *Validator) compile(key SchemaKey, schema map[string]any) (*gojsonschema.Schema, error) {
	if key.ID != "" {
		if cached, ok := v.schemas.Load(key.ID); ok {
			entry := cached.(*compiledSchema)
			if entry.version.Equal(key.Version) {
				return entry.schema, nil
			}
		}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	if key.ID != "" {
		v.schemas.Store(key.ID, &compiledSchema{version: key.Version, schema: compiled})
	}

	return compiled, nil
}

func toFieldError(resultErr gojsonschema.ResultError, original map[string]any) FieldError {
	segments := contextSegments(resultErr.Context())

	if resultErr.Type() == "required" {
		if property, ok := resultErr.Details()["property"].(string); ok {
			segments = append(segments, property)
		}
	}

	field := strings.Join(segments, ".")

	value, _ := lookup(original, segments)

	return FieldError{
		Field:      field,
		Message:    resultErr.Description(),
		Value:      value,
		SchemaPath: schemaPath(segments, resultErr.Type()),
	}
}

func contextSegments(context *gojsonschema.JsonContext) []string {
	if context == nil {
		return nil
	}

	segments := strings.Split(context.String(contextSeparator), contextSeparator)
	if len(segments) > 0 && segments[0] == rootContext {
		segments = segments[1:]
	}

	if len(segments) == 0 {
		return nil
	}

	return segments
}

// schemaPath renders a best-effort JSON pointer into the schema for a violation.
func schemaPath(segments []string, keyword string) string {
	var builder strings.Builder

	builder.WriteString("#")

	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			builder.WriteString("/items")

			continue
		}

		builder.WriteString("/properties/")
		builder.WriteString(segment)
	}

	builder.WriteString("/")
	builder.WriteString(keyword)

	return builder.String()
}

// lookup resolves a dot path inside a decoded JSON value. The second return
// value is false when traversal fails at any segment.
func lookup(value any, segments []string) (any, bool) {
	current := value

	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}
