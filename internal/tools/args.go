// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a parameter that does not match the schema.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Message)
}

// ParseArguments decodes the raw arguments text of a tool call. Blank text
// is an empty object. Anything other than a JSON object is rejected.
func ParseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, nil
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	params, ok := value.(map[string]interface{})
	if !ok {
		return nil, errors.New("arguments must be a JSON object")
	}
	return params, nil
}

// decodeArgs checks params against schema, fills defaults and decodes the
// result into out.
func decodeArgs(schema Schema, params map[string]interface{}, out interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}
	filled := make(map[string]interface{}, len(params)+len(schema.Parameters))
	for k, v := range params {
		filled[k] = v
	}

	for _, param := range schema.Parameters {
		val, exists := filled[param.Name]
		if !exists || val == nil {
			if param.Required {
				return &ValidationError{Param: param.Name, Message: "required parameter is missing"}
			}
			if param.Default != nil {
				filled[param.Name] = param.Default
			} else {
				delete(filled, param.Name)
			}
			continue
		}
		if err := validateType(param, val); err != nil {
			return err
		}
	}

	data, err := json.Marshal(filled)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// validateType validates a parameter value against its expected type.
func validateType(param Parameter, val interface{}) error {
	switch param.Type {
	case "string":
		if _, ok := val.(string); !ok {
			return &ValidationError{Param: param.Name, Message: fmt.Sprintf("expected string, got %s", jsonTypeName(val))}
		}
	case "number", "integer":
		if _, ok := val.(float64); !ok {
			return &ValidationError{Param: param.Name, Message: fmt.Sprintf("expected number, got %s", jsonTypeName(val))}
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return &ValidationError{Param: param.Name, Message: fmt.Sprintf("expected boolean, got %s", jsonTypeName(val))}
		}
	case "array":
		if _, ok := val.([]interface{}); !ok {
			return &ValidationError{Param: param.Name, Message: fmt.Sprintf("expected array, got %s", jsonTypeName(val))}
		}
	}
	return nil
}

func jsonTypeName(val interface{}) string {
	switch val.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", val)
	}
}
