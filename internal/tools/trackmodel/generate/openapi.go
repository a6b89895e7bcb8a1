package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	typeArray   = "array"
	typeBoolean = "boolean"
	typeInteger = "integer"
	typeNumber  = "number"
	typeObject  = "object"
	typeString  = "string"
)

const openAPITitle = "LineageCore Tracking Interchange"

type openAPIDoc map[string]any

func generateOpenAPI(doc schemaDoc) ([]byte, error) {
	api, err := buildOpenAPIDoc(doc)
	if err != nil {
		return nil, err
	}
	return encodeOpenAPIYAML(api)
}

func buildOpenAPIDoc(doc schemaDoc) (openAPIDoc, error) {
	schemas, err := buildOpenAPISchemas(doc)
	if err != nil {
		return nil, err
	}

	return openAPIDoc{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   openAPITitle,
			"version": doc.Version,
		},
		"components": map[string]any{
			"schemas": schemas,
		},
	}, nil
}

func buildOpenAPISchemas(doc schemaDoc) (map[string]any, error) {
	schemas := make(map[string]any, len(doc.Definitions))
	for _, name := range sortedKeys(doc.Definitions) {
		schema, err := schemaFromDefinition(doc.Definitions[name], doc.Definitions)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", name, err)
		}
		schemas[toCamel(name)] = schema
	}
	return schemas, nil
}

func schemaFromDefinition(def definitionSpec, defs map[string]definitionSpec) (map[string]any, error) {
	if len(def.Properties) == 0 && def.Ref == "" && def.Type != "" && def.Type != typeObject {
		return primitiveSchema(def), nil
	}
	return schemaForObject(def.Properties, def.Required, defs, def.AdditionalProperties)
}

func schemaForProperty(prop definitionSpec, defs map[string]definitionSpec) (map[string]any, error) {
	if prop.Ref != "" {
		ref := refToComponent(prop.Ref, defs)
		if ref == "" {
			return nil, fmt.Errorf("unsupported ref %q", prop.Ref)
		}
		return map[string]any{"$ref": ref}, nil
	}

	switch prop.Type {
	case typeString, typeInteger, typeNumber, typeBoolean:
		return primitiveSchema(prop), nil
	case typeArray:
		items := map[string]any{}
		if prop.Items != nil {
			itemSchema, err := schemaForProperty(*prop.Items, defs)
			if err != nil {
				return nil, err
			}
			items = itemSchema
		}
		return map[string]any{
			"type":  typeArray,
			"items": items,
		}, nil
	case typeObject:
		return schemaForObject(prop.Properties, prop.Required, defs, prop.AdditionalProperties)
	default:
		return map[string]any{}, nil
	}
}

func schemaForObject(rawProps map[string]json.RawMessage, required []string, defs map[string]definitionSpec, additionalProps json.RawMessage) (map[string]any, error) {
	if len(rawProps) == 0 {
		schema := map[string]any{"type": typeObject}
		if val, ok := additionalPropertiesValue(additionalProps); ok {
			schema["additionalProperties"] = val
		}
		return schema, nil
	}

	parsed, err := parseProperties(rawProps)
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, len(parsed))
	for _, name := range sortedKeys(parsed) {
		schema, err := schemaForProperty(parsed[name], defs)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = schema
	}

	result := map[string]any{
		"type":       typeObject,
		"properties": props,
	}
	if len(required) > 0 {
		result["required"] = cloneStrings(required)
	}
	if val, ok := additionalPropertiesValue(additionalProps); ok {
		result["additionalProperties"] = val
	}
	return result, nil
}

func parseProperties(raw map[string]json.RawMessage) (map[string]definitionSpec, error) {
	props := make(map[string]definitionSpec, len(raw))
	for name, data := range raw {
		var spec definitionSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = spec
	}
	return props, nil
}

func primitiveSchema(prop definitionSpec) map[string]any {
	schema := map[string]any{
		"type": prop.Type,
	}
	if prop.Format != "" {
		schema["format"] = prop.Format
	}
	return schema
}

func refToComponent(ref string, defs map[string]definitionSpec) string {
	if !strings.HasPrefix(ref, "#/definitions/") {
		return ""
	}
	name := strings.TrimPrefix(ref, "#/definitions/")
	if _, ok := defs[name]; !ok {
		return ""
	}
	return "#/components/schemas/" + toCamel(name)
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func additionalPropertiesValue(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 {
		return false, false
	}
	var val bool
	if err := json.Unmarshal(raw, &val); err != nil {
		return false, false
	}
	return val, true
}

func encodeOpenAPIYAML(doc openAPIDoc) ([]byte, error) {
	var b strings.Builder
	b.WriteString("# Code generated by internal/tools/trackmodel/generate. DO NOT EDIT.\n")
	b.WriteString("# Source of truth: docs/schema/tracking-model.json\n")
	if err := writeYAML(&b, doc, 0); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeYAML(b *strings.Builder, value any, indent int) error {
	switch v := value.(type) {
	case openAPIDoc:
		return writeMapYAML(b, map[string]any(v), indent)
	case map[string]any:
		return writeMapYAML(b, v, indent)
	case []any:
		return writeSliceYAML(b, v, indent)
	case []string:
		return writeSliceYAML(b, toAnySlice(v), indent)
	default:
		writeScalarYAML(b, value, indent)
		return nil
	}
}

func writeMapYAML(b *strings.Builder, m map[string]any, indent int) error {
	if len(m) == 0 {
		writeIndented(b, "{}", indent)
		b.WriteByte('\n')
		return nil
	}
	for _, key := range sortedKeys(m) {
		writeIndented(b, key+":", indent)
		val := m[key]
		switch typed := val.(type) {
		case map[string]any:
			if len(typed) == 0 {
				b.WriteString(" {}\n")
				continue
			}
			b.WriteByte('\n')
			if err := writeMapYAML(b, typed, indent+1); err != nil {
				return err
			}
		case []any:
			if len(typed) == 0 {
				b.WriteString(" []\n")
				continue
			}
			b.WriteByte('\n')
			if err := writeSliceYAML(b, typed, indent+1); err != nil {
				return err
			}
		case []string:
			if len(typed) == 0 {
				b.WriteString(" []\n")
				continue
			}
			b.WriteByte('\n')
			if err := writeSliceYAML(b, toAnySlice(typed), indent+1); err != nil {
				return err
			}
		default:
			b.WriteByte(' ')
			writeScalarYAML(b, val, 0)
			b.WriteByte('\n')
		}
	}
	return nil
}

func writeSliceYAML(b *strings.Builder, list []any, indent int) error {
	for _, item := range list {
		writeIndented(b, "-", indent)
		switch val := item.(type) {
		case map[string]any:
			if len(val) == 0 {
				b.WriteString(" {}\n")
				continue
			}
			b.WriteByte('\n')
			if err := writeMapYAML(b, val, indent+1); err != nil {
				return err
			}
		case []any:
			if len(val) == 0 {
				b.WriteString(" []\n")
				continue
			}
			b.WriteByte('\n')
			if err := writeSliceYAML(b, val, indent+1); err != nil {
				return err
			}
		default:
			b.WriteByte(' ')
			writeScalarYAML(b, val, 0)
			b.WriteByte('\n')
		}
	}
	return nil
}

func writeScalarYAML(b *strings.Builder, value any, indent int) {
	writeIndented(b, formatScalar(value), indent)
}

func writeIndented(b *strings.Builder, value string, indent int) {
	if indent > 0 {
		b.WriteString(strings.Repeat(" ", indent*2))
	}
	b.WriteString(value)
}

func formatScalar(value any) string {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	case int, int64, float64, float32:
		return fmt.Sprint(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}
