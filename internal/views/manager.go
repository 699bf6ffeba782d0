package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
)

// Manager owns the saved views of one schema, the active selection and the
// working configuration. Working state is independent of the stored views:
// activating a view copies its configuration in, and only an explicit
// save copies it back.
type Manager struct {
	schema  *metadata.Schema
	store   Store
	saved   []*View
	active  *View // nil selects Default
	working grid.Config
	guard   Guard
	now     func() time.Time
}

// NewManager starts on the Default view. Saved views that could never have
// been created (empty, reserved or duplicate names) are skipped. A nil store
// keeps views in memory only.
func NewManager(schema *metadata.Schema, saved []*View, store Store) *Manager {
	m := &Manager{
		schema:  schema,
		store:   store,
		working: grid.DefaultConfig(schema),
		guard:   idle(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, v := range saved {
		name, err := NormalizeName(v.Name)
		if err != nil || m.taken(name, nil) {
			continue
		}
		c := v.clone()
		c.Name = name
		m.saved = append(m.saved, c)
	}
	return m
}

// List returns Default followed by the saved views in creation order.
func (m *Manager) List() []*View {
	out := []*View{defaultView(m.schema)}
	for _, v := range m.saved {
		out = append(out, v.clone())
	}
	return out
}

// Get returns a copy of the named view. Names match case-insensitively.
func (m *Manager) Get(name string) (*View, error) {
	v, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return v.clone(), nil
}

// Active returns a copy of the active view.
func (m *Manager) Active() *View {
	if m.active == nil {
		return defaultView(m.schema)
	}
	return m.active.clone()
}

// Working returns a copy of the working configuration.
func (m *Manager) Working() grid.Config {
	return m.working.Clone()
}

// SetWorking replaces the working configuration.
func (m *Manager) SetWorking(cfg grid.Config) {
	m.working = cfg.Clone()
}

// Mutate edits the working configuration in place.
func (m *Manager) Mutate(fn func(cfg *grid.Config)) {
	fn(&m.working)
}

// Dirty reports whether the working configuration differs from the stored
// configuration of the active view.
func (m *Manager) Dirty() bool {
	return !m.working.Equal(m.baseline())
}

// Guard returns the switch-guard state.
func (m *Manager) Guard() Guard {
	return m.guard
}

// SaveAs stores the working configuration as a new view and activates it.
func (m *Manager) SaveAs(ctx context.Context, name string) (*View, error) {
	name, err := m.checkName(name, nil)
	if err != nil {
		return nil, err
	}
	now := m.now()
	v := &View{
		ID:        uuid.NewString(),
		Name:      name,
		Config:    m.working.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.put(ctx, v); err != nil {
		return nil, err
	}
	m.saved = append(m.saved, v)
	m.active = v
	return v.clone(), nil
}

// UpdateActive overwrites the active view with the working configuration.
func (m *Manager) UpdateActive(ctx context.Context) (*View, error) {
	if m.active == nil {
		return nil, ErrDefaultReadOnly
	}
	next := m.active.clone()
	next.Config = m.working.Clone()
	next.UpdatedAt = m.now()
	if err := m.put(ctx, next); err != nil {
		return nil, err
	}
	*m.active = *next
	return next.clone(), nil
}

// Rename gives a saved view a new unique name. Everything else is kept.
func (m *Manager) Rename(ctx context.Context, name, newName string) (*View, error) {
	v, err := m.lookupSaved(name)
	if err != nil {
		return nil, err
	}
	newName, err = m.checkName(newName, v)
	if err != nil {
		return nil, err
	}
	next := v.clone()
	next.Name = newName
	next.UpdatedAt = m.now()
	if err := m.put(ctx, next); err != nil {
		return nil, err
	}
	if m.guard.Pending() && strings.EqualFold(m.guard.Target, v.Name) {
		m.guard.Target = newName
	}
	*v = *next
	return next.clone(), nil
}

// DuplicateName proposes a unique name for a copy of the named view:
// "<name> (copy)", then "<name> (copy 2)", "<name> (copy 3)", ...
func (m *Manager) DuplicateName(name string) (string, error) {
	src, err := m.lookup(name)
	if err != nil {
		return "", err
	}
	candidate := src.Name + " (copy)"
	for n := 2; m.taken(candidate, nil); n++ {
		candidate = fmt.Sprintf("%s (copy %d)", src.Name, n)
	}
	return candidate, nil
}

// Duplicate stores a copy of the named view's configuration. An empty
// newName takes the proposal of DuplicateName. The copy is not activated.
func (m *Manager) Duplicate(ctx context.Context, name, newName string) (*View, error) {
	src, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(newName) == "" {
		if newName, err = m.DuplicateName(name); err != nil {
			return nil, err
		}
	}
	newName, err = m.checkName(newName, nil)
	if err != nil {
		return nil, err
	}
	now := m.now()
	v := &View{
		ID:        uuid.NewString(),
		Name:      newName,
		Config:    src.Config.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.put(ctx, v); err != nil {
		return nil, err
	}
	m.saved = append(m.saved, v)
	return v.clone(), nil
}

// Delete removes a saved view. Deleting the active view selects Default.
func (m *Manager) Delete(ctx context.Context, name string) error {
	v, err := m.lookupSaved(name)
	if err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.DeleteView(ctx, m.schema.Name, v.ID); err != nil {
			return fmt.Errorf("delete view %q: %w", v.Name, err)
		}
	}
	for i, s := range m.saved {
		if s == v {
			m.saved = append(m.saved[:i], m.saved[i+1:]...)
			break
		}
	}
	if m.guard.Pending() && strings.EqualFold(m.guard.Target, v.Name) {
		m.guard = idle()
	}
	if m.active == v {
		m.switchTo(defaultView(m.schema))
	}
	return nil
}

// Activate selects the named view. When the target is already active, or
// nothing is dirty, the switch happens at once and true is returned.
// Otherwise the guard moves to PendingSwitch, false is returned, and the
// switch waits for Resolve.
func (m *Manager) Activate(name string) (bool, error) {
	if m.guard.Pending() {
		return false, ErrSwitchPending
	}
	target, err := m.lookup(name)
	if err != nil {
		return false, err
	}
	if m.isActive(target) {
		return true, nil
	}
	if m.Dirty() {
		m.guard = pending(target.Name)
		return false, nil
	}
	m.switchTo(target)
	return true, nil
}

// Resolve ends a pending switch. Save persists the working configuration
// to the active view and switches; Discard switches without saving; Cancel
// stays. Every successful resolution returns the guard to Idle. A failed
// save leaves the switch pending.
func (m *Manager) Resolve(ctx context.Context, r Resolution) error {
	if !m.guard.Pending() {
		return ErrNoPendingSwitch
	}
	switch r {
	case ResolveCancel:
		m.guard = idle()
		return nil
	case ResolveSave:
		if _, err := m.UpdateActive(ctx); err != nil {
			return err
		}
	case ResolveDiscard:
	default:
		return fmt.Errorf("%q: %w", r, ErrBadResolution)
	}

	target, err := m.lookup(m.guard.Target)
	m.guard = idle()
	if err != nil {
		return err
	}
	m.switchTo(target)
	return nil
}

func (m *Manager) baseline() grid.Config {
	if m.active == nil {
		return grid.DefaultConfig(m.schema)
	}
	return m.active.Config
}

func (m *Manager) switchTo(v *View) {
	if v.IsDefault() {
		m.active = nil
	} else {
		m.active = v
	}
	m.working = v.Config.Clone()
	m.guard = idle()
}

func (m *Manager) isActive(v *View) bool {
	if v.IsDefault() {
		return m.active == nil
	}
	return m.active == v
}

// lookup finds a view by name; Default is regenerated.
func (m *Manager) lookup(name string) (*View, error) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, DefaultName) {
		return defaultView(m.schema), nil
	}
	for _, v := range m.saved {
		if strings.EqualFold(v.Name, name) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrViewNotFound)
}

// lookupSaved is lookup for operations Default does not support.
func (m *Manager) lookupSaved(name string) (*View, error) {
	v, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	if v.IsDefault() {
		return nil, ErrDefaultReadOnly
	}
	return v, nil
}

func (m *Manager) checkName(name string, self *View) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	if m.taken(name, self) {
		return "", fmt.Errorf("%q: %w", name, ErrNameConflict)
	}
	return name, nil
}

func (m *Manager) taken(name string, self *View) bool {
	if strings.EqualFold(name, DefaultName) {
		return true
	}
	for _, v := range m.saved {
		if v != self && strings.EqualFold(v.Name, name) {
			return true
		}
	}
	return false
}

func (m *Manager) put(ctx context.Context, v *View) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.PutView(ctx, m.schema.Name, v); err != nil {
		return fmt.Errorf("save view %q: %w", v.Name, err)
	}
	return nil
}
