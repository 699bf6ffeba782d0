package grid

import "recordgrid/internal/metadata"

// ValidateRequired checks every given row for empty required fields. Auto
// fields are never required of the user. It returns nil when all rows pass.
func ValidateRequired(schema *metadata.Schema, rows []*Row) *ValidationError {
	required := schema.RequiredFields()
	if len(required) == 0 {
		return nil
	}
	failed := make(map[string][]string)
	for _, r := range rows {
		for _, f := range required {
			if IsEmpty(r.Get(f.Key)) {
				failed[r.ID] = append(failed[r.ID], f.Key)
			}
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Rows: failed}
}
