package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	procschema "github.com/Paintersrp/procctl/schema"
)

const manifestSchemaURL = "manifest.v1.json"

var manifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(procschema.ManifestV1Schema)); err != nil {
		return nil, fmt.Errorf("add manifest schema resource: %w", err)
	}
	schema, err := compiler.Compile(manifestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return schema, nil
})

func validateAgainstSchema(doc map[string]any) error {
	schema, err := manifestSchema()
	if err != nil {
		return fmt.Errorf("load manifest schema: %w", err)
	}

	// Round trip through JSON so YAML specific types become plain JSON
	// values with json.Number for numbers.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}
	decoder := json.NewDecoder(&buf)
	decoder.UseNumber()
	var instance any
	if err := decoder.Decode(&instance); err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		var vErr *jsonschema.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("schema validation failed:\n%s", formatValidationError(vErr))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func formatValidationError(err *jsonschema.ValidationError) string {
	var b strings.Builder
	var walk func(e *jsonschema.ValidationError, depth int)
	walk = func(e *jsonschema.ValidationError, depth int) {
		// Wrapper errors only say which subschema failed; their causes
		// carry the useful message.
		if len(e.Causes) == 0 || !strings.HasPrefix(e.Message, "doesn't validate with") {
			fmt.Fprintf(&b, "%s- %s: %s\n", strings.Repeat("  ", depth), instanceLocation(e.InstanceLocation), e.Message)
			depth++
		}
		for _, cause := range e.Causes {
			walk(cause, depth)
		}
	}
	walk(err, 0)
	return strings.TrimRight(b.String(), "\n")
}

// instanceLocation turns a JSON pointer into a dotted field path such as
// processes.web.args[1].
func instanceLocation(ptr string) string {
	var b strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if segment == "" {
			continue
		}
		decoded := strings.NewReplacer("~1", "/", "~0", "~").Replace(segment)
		if _, err := strconv.Atoi(decoded); err == nil {
			fmt.Fprintf(&b, "[%s]", decoded)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(decoded)
	}
	if b.Len() == 0 {
		return "manifest"
	}
	return b.String()
}
