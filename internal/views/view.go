package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
)

// DefaultName is the reserved name of the synthetic view.
const DefaultName = "Default"

// View is a named, saved grid configuration.
type View struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Config    grid.Config `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsDefault reports whether v is the synthetic Default view.
func (v *View) IsDefault() bool {
	return v.ID == "" && v.Name == DefaultName
}

func (v *View) clone() *View {
	c := *v
	c.Config = v.Config.Clone()
	return &c
}

// defaultView regenerates the Default view from the schema. It is never
// stored.
func defaultView(schema *metadata.Schema) *View {
	return &View{Name: DefaultName, Config: grid.DefaultConfig(schema)}
}

// Store persists saved views of one schema. The Default view never reaches it.
type Store interface {
	PutView(ctx context.Context, schema string, v *View) error
	DeleteView(ctx context.Context, schema string, id string) error
}

// NormalizeName trims a candidate name and checks it is usable at all.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if strings.EqualFold(name, DefaultName) {
		return "", fmt.Errorf("%q: %w", name, ErrReservedName)
	}
	return name, nil
}
