package metadata

import (
	"encoding/json"
	"fmt"
)

// FieldType is the kind of value a column holds.
type FieldType string

const (
	TypeCategorical FieldType = "categorical"
	TypeNumeric     FieldType = "numeric"
	TypeText        FieldType = "text"
	TypeDate        FieldType = "date"
	TypeComputed    FieldType = "computed"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeCategorical, TypeNumeric, TypeText, TypeDate, TypeComputed:
		return true
	}
	return false
}

func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ft := FieldType(s)
	if s == "" {
		ft = TypeText
	}
	if !ft.Valid() {
		return fmt.Errorf("unknown field type %q", s)
	}
	*t = ft
	return nil
}

type Field struct {
	Key        string    `json:"key"`
	Label      string    `json:"label,omitempty"`
	Type       FieldType `json:"type"`
	Required   bool      `json:"required,omitempty"`
	Auto       bool      `json:"auto,omitempty"`
	Options    []string  `json:"options,omitempty"`
	Currency   bool      `json:"currency,omitempty"`
	Expression string    `json:"expression,omitempty"` // expr-lang formula for auto fields
}

// UnmarshalJSON defaults an omitted type to text.
func (f *Field) UnmarshalJSON(data []byte) error {
	type alias Field
	a := alias{Type: TypeText}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = Field(a)
	return nil
}

// DisplayLabel returns the label, falling back to the key.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Key
}

// IsNumeric returns true for columns whose values compare arithmetically.
func (f Field) IsNumeric() bool {
	return f.Type == TypeNumeric || f.Type == TypeComputed || f.Currency
}

// IsCategorical returns true for enumerated columns. Options on a field of
// another type only constrain edits.
func (f Field) IsCategorical() bool {
	return f.Type == TypeCategorical
}

// IsComputed returns true if the engine derives the value from an expression.
func (f Field) IsComputed() bool {
	return f.Auto && f.Expression != ""
}

// HasOption checks whether v is one of the enumerated values.
func (f Field) HasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}
