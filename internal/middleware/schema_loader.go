package middleware

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	contextutils "campusfix/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v2"
)

// Request body schema names
const (
	SchemaIssueStatusUpdate    = "IssueStatusUpdate"
	SchemaSafetyStatusUpdate   = "SafetyStatusUpdate"
	SchemaExchangeTokenRequest = "ExchangeTokenRequest"
)

//go:embed schemas/requests.yaml
var requestSchemasYAML []byte

// SchemaLoader compiles JSON schemas declared under components/schemas of a YAML document
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

var (
	defaultLoader     *SchemaLoader
	defaultLoaderOnce sync.Once
)

// DefaultSchemaLoader returns the loader for the embedded request schemas.
// The document ships with the binary, so a broken one panics on first use.
func DefaultSchemaLoader() *SchemaLoader {
	defaultLoaderOnce.Do(func() {
		loader := NewSchemaLoader()
		if err := loader.LoadSchemas(requestSchemasYAML); err != nil {
			panic(fmt.Sprintf("embedded request schemas: %v", err))
		}
		defaultLoader = loader
	})
	return defaultLoader
}

// LoadSchemas loads every schema of the YAML document
func (sl *SchemaLoader) LoadSchemas(data []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return contextutils.WrapError(err, "failed to parse schema document as YAML")
	}

	components, ok := doc["components"].(map[interface{}]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no components section found in schema document")
	}
	schemas, ok := components["schemas"].(map[interface{}]interface{})
	if !ok {
		return contextutils.ErrorWithContextf("no schemas section found in components")
	}

	// Convert schemas to JSON-compatible format
	jsonCompatibleSchemas := make(map[string]interface{}, len(schemas))
	for schemaName, schemaData := range schemas {
		name, ok := schemaName.(string)
		if !ok {
			return contextutils.ErrorWithContextf("schema name is not a string: %v", schemaName)
		}
		converted, err := convertToJSONCompatible(schemaData)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to convert schema %s", name)
		}
		jsonCompatibleSchemas[name] = converted
	}

	for name := range jsonCompatibleSchemas {
		// Keep the whole document around so $ref between schemas resolves
		completeSchemaDoc := map[string]interface{}{
			"$schema": "http://json-schema.org/draft-07/schema#",
			"components": map[string]interface{}{
				"schemas": jsonCompatibleSchemas,
			},
			"$ref": "#/components/schemas/" + name,
		}

		schemaBytes, err := json.Marshal(completeSchemaDoc)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to marshal schema %s", name)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaBytes))
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to compile schema %s", name)
		}
		sl.schemas[name] = schema
	}

	return nil
}

// Names lists the loaded schemas
func (sl *SchemaLoader) Names() []string {
	names := make([]string, 0, len(sl.schemas))
	for name := range sl.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// convertToJSONCompatible converts yaml.v2 maps to map[string]interface{} and
// rewrites OpenAPI's nullable into a JSON schema union with null
func convertToJSONCompatible(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case map[interface{}]interface{}:
		result := make(map[string]interface{})
		hasNullable := false

		for k, val := range v {
			keyStr, ok := k.(string)
			if !ok {
				return nil, contextutils.ErrorWithContextf("key is not a string: %v", k)
			}

			if keyStr == "nullable" {
				if nullable, ok := val.(bool); ok && nullable {
					hasNullable = true
				}
				continue
			}

			convertedVal, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[keyStr] = convertedVal
		}

		if hasNullable {
			if ref, hasRef := result["$ref"].(string); hasRef {
				result["oneOf"] = []interface{}{
					map[string]interface{}{"$ref": ref},
					map[string]interface{}{"enum": []interface{}{nil}},
				}
				delete(result, "$ref")
			} else if typeVal, hasType := result["type"].(string); hasType {
				result["type"] = []interface{}{typeVal, "null"}
			}
		}

		return result, nil
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			convertedVal, err := convertToJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			result[i] = convertedVal
		}
		return result, nil
	default:
		return data, nil
	}
}

// ValidateBytes validates a raw JSON document against a schema.
// Failures are VALIDATION_FAILED errors listing every offending field.
func (sl *SchemaLoader) ValidateBytes(body []byte, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return contextutils.NewValidationError("request body", "body is not valid JSON")
	}

	if !result.Valid() {
		validationErrors := make([]string, 0, len(result.Errors()))
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return contextutils.NewValidationError("request body", strings.Join(validationErrors, "; "))
	}

	return nil
}

// ValidateData validates an already decoded value against a schema
func (sl *SchemaLoader) ValidateData(data interface{}, schemaName string) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal data")
	}
	return sl.ValidateBytes(jsonData, schemaName)
}
