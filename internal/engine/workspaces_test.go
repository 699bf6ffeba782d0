package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
	"recordgrid/internal/views"
	"recordgrid/internal/workspace"
)

type memRecords struct {
	mu    sync.Mutex
	loads int
}

func (m *memRecords) Load(ctx context.Context, schema string) ([]*grid.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return []*grid.Row{{ID: "r1", Values: map[string]any{"code": "A1"}}}, nil
}

func (m *memRecords) SaveBatch(ctx context.Context, schema *metadata.Schema, batch workspace.Batch) error {
	return nil
}

func (m *memRecords) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

type memViews struct{}

func (memViews) ListViews(ctx context.Context, schema string) ([]*views.View, error) { return nil, nil }
func (memViews) PutView(ctx context.Context, schema string, v *views.View) error     { return nil }
func (memViews) DeleteView(ctx context.Context, schema string, id string) error      { return nil }

func newTestWorkspaces() (*Workspaces, *memRecords) {
	reg := metadata.NewRegistry()
	reg.Put(&metadata.Schema{Name: "article", Fields: []metadata.Field{{Key: "code", Type: metadata.TypeText}}})
	records := &memRecords{}
	return NewWorkspaces(reg, records, memViews{}, language.English, "$", zap.NewNop().Sugar()), records
}

func TestWorkspaces_ReusesSession(t *testing.T) {
	w, records := newTestWorkspaces()
	ctx := context.Background()

	var first, second *workspace.Session
	if err := w.With(ctx, "article", func(s *workspace.Session) error { first = s; return nil }); err != nil {
		t.Fatalf("with: %v", err)
	}
	if err := w.With(ctx, "article", func(s *workspace.Session) error { second = s; return nil }); err != nil {
		t.Fatalf("with: %v", err)
	}
	if first != second || records.loadCount() != 1 {
		t.Fatalf("expected one session, got %p and %p after %d loads", first, second, records.loadCount())
	}
}

func TestWorkspaces_DropWaitsForRunningRequest(t *testing.T) {
	w, records := newTestWorkspaces()
	ctx := context.Background()

	dropped := make(chan struct{})
	var held *workspace.Session
	err := w.With(ctx, "article", func(s *workspace.Session) error {
		held = s
		go func() {
			w.Drop("article")
			close(dropped)
		}()
		select {
		case <-dropped:
			t.Error("Drop returned while the session was in use")
		case <-time.After(50 * time.Millisecond):
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	<-dropped

	w.mu.Lock()
	slots := len(w.open)
	w.mu.Unlock()
	if slots != 1 {
		t.Fatalf("expected the slot to survive Drop, got %d slots", slots)
	}

	var reopened *workspace.Session
	if err := w.With(ctx, "article", func(s *workspace.Session) error { reopened = s; return nil }); err != nil {
		t.Fatalf("with after drop: %v", err)
	}
	if reopened == held || records.loadCount() != 2 {
		t.Fatalf("expected a fresh session after Drop, loads=%d", records.loadCount())
	}
}

func TestWorkspaces_DropUnknownIsNoop(t *testing.T) {
	w, _ := newTestWorkspaces()
	w.Drop("nope")
	if len(w.open) != 0 {
		t.Fatalf("Drop must not create slots")
	}
}
