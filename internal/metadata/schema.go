package metadata

import (
	"fmt"
	"regexp"
)

// Schema is an ordered list of field definitions for one business entity
// (category, article, fabric, trim, ...).
type Schema struct {
	Name   string  `json:"name"`
	Label  string  `json:"label,omitempty"`
	Fields []Field `json:"fields"`
}

// GetField returns a pointer to the field with the given key, or nil.
func (s *Schema) GetField(key string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			return &s.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the schema has a field with the given key.
func (s *Schema) HasField(key string) bool {
	return s.GetField(key) != nil
}

// FieldKeys returns all field keys in schema order.
func (s *Schema) FieldKeys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// RequiredFields returns fields a user must fill in before a save.
// Auto fields are excluded since the engine populates them.
func (s *Schema) RequiredFields() []Field {
	var fields []Field
	for _, f := range s.Fields {
		if f.Required && !f.Auto {
			fields = append(fields, f)
		}
	}
	return fields
}

// ComputedFields returns auto fields that carry an expression.
func (s *Schema) ComputedFields() []Field {
	var fields []Field
	for _, f := range s.Fields {
		if f.IsComputed() {
			fields = append(fields, f)
		}
	}
	return fields
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks the schema definition supplied by the provider.
func (s *Schema) Validate() error {
	if !keyPattern.MatchString(s.Name) {
		return fmt.Errorf("invalid schema name %q", s.Name)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s has no fields", s.Name)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if !keyPattern.MatchString(f.Key) {
			return fmt.Errorf("invalid field key %q", f.Key)
		}
		if seen[f.Key] {
			return fmt.Errorf("duplicate field key %q", f.Key)
		}
		seen[f.Key] = true
		if !f.Type.Valid() {
			return fmt.Errorf("field %s: unknown type %q", f.Key, f.Type)
		}
		if f.Type == TypeComputed && f.Expression == "" && !f.Auto {
			return fmt.Errorf("field %s: computed fields must be auto or carry an expression", f.Key)
		}
	}
	return nil
}
