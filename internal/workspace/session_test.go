package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
)

func trimSchema() *metadata.Schema {
	return &metadata.Schema{
		Name: "trims",
		Fields: []metadata.Field{
			{Key: "code", Type: metadata.TypeText, Required: true},
			{Key: "supplier", Type: metadata.TypeText, Required: true},
			{Key: "price", Type: metadata.TypeNumeric, Currency: true},
			{Key: "qty", Type: metadata.TypeNumeric},
			{Key: "value", Type: metadata.TypeComputed, Auto: true, Required: true, Expression: "price * qty"},
		},
	}
}

type fakeBackend struct {
	batches []Batch
	err     error
}

func (b *fakeBackend) SaveBatch(_ context.Context, _ *metadata.Schema, batch Batch) error {
	if b.err != nil {
		return b.err
	}
	b.batches = append(b.batches, batch)
	return nil
}

func newSession(t *testing.T, backend Backend) *Session {
	t.Helper()
	s, err := New(Options{
		Schema: trimSchema(),
		Rows: []*grid.Row{
			{ID: "r1", Values: map[string]any{"code": "T1", "supplier": "Acme", "price": 2, "qty": 5}},
			{ID: "r2", Values: map[string]any{"code": "T2", "supplier": "Bolt", "price": 3, "qty": 1}},
		},
		Backend:        backend,
		CurrencySymbol: "$",
	})
	require.NoError(t, err)
	return s
}

func TestSave_InvalidRowRejectsWholeBatch(t *testing.T) {
	backend := &fakeBackend{}
	s := newSession(t, backend)

	_, err := s.EditRow("r1", map[string]any{"supplier": ""})
	require.NoError(t, err)
	_, err = s.EditRow("r2", map[string]any{"qty": 4})
	require.NoError(t, err)

	_, err = s.Save(context.Background())
	var verr *grid.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"supplier"}, verr.Missing("r1"))
	assert.Empty(t, verr.Missing("r2"))
	assert.Empty(t, backend.batches, "nothing is sent when any row fails")

	for _, r := range s.Rows().Rows() {
		assert.Equal(t, grid.Dirty, r.State, r.ID)
	}
}

func TestSave_SuccessClearsTags(t *testing.T) {
	backend := &fakeBackend{}
	s := newSession(t, backend)

	_, err := s.EditRow("r1", map[string]any{"qty": 10})
	require.NoError(t, err)
	added, err := s.AddRow(map[string]any{"code": "T3", "supplier": "Cord", "price": "", "value": 99})
	require.NoError(t, err)
	assert.Nil(t, added.Get("value"), "auto fields are computed, not accepted")
	require.NoError(t, s.DeleteRow("r2"))

	res, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SaveResult{Upserted: 2, Deleted: 1}, res)

	require.Len(t, backend.batches, 1)
	batch := backend.batches[0]
	assert.Equal(t, []string{"r2"}, batch.Deletes)
	require.Len(t, batch.Upserts, 2)
	assert.Equal(t, "r1", batch.Upserts[0].ID)
	assert.Equal(t, 20.0, batch.Upserts[0].Values["value"])
	assert.NotContains(t, batch.Upserts[1].Values, "price", "only populated fields are sent")

	for _, r := range s.Rows().Rows() {
		assert.Equal(t, grid.Clean, r.State)
	}
	_, err = s.Save(context.Background())
	assert.ErrorIs(t, err, ErrNothingToSave)
}

func TestSave_BackendFailureKeepsTags(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection reset")}
	s := newSession(t, backend)
	added, err := s.AddRow(map[string]any{"code": "T9", "supplier": "Dyne"})
	require.NoError(t, err)

	_, err = s.Save(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, grid.New, added.State)

	backend.err = nil
	_, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, grid.Clean, added.State)
}

func TestSave_CommitsOpenEdit(t *testing.T) {
	backend := &fakeBackend{}
	s := newSession(t, backend)

	require.NoError(t, s.Editor().Begin("r2", "code"))
	require.NoError(t, s.Editor().Update("T2b"))

	_, err := s.Save(context.Background())
	require.NoError(t, err)
	require.Len(t, backend.batches, 1)
	assert.Equal(t, "T2b", backend.batches[0].Upserts[0].Values["code"])
}

func TestSession_AddRowUnknownField(t *testing.T) {
	s := newSession(t, &fakeBackend{})
	_, err := s.AddRow(map[string]any{"colour": "red"})
	assert.ErrorIs(t, err, grid.ErrUnknownField)
}

func TestSession_GridUsesWorkingConfigAndAggregates(t *testing.T) {
	s := newSession(t, &fakeBackend{})
	require.NoError(t, s.SetAggregate("value", grid.AggSum))
	require.NoError(t, s.SetAggregate("code", grid.AggCountAll))
	require.NoError(t, s.SetAggregate("code", grid.AggNone))
	assert.ErrorIs(t, s.SetAggregate("value", "mode"), ErrUnknownAggregate)
	assert.ErrorIs(t, s.SetAggregate("ghost", grid.AggSum), grid.ErrUnknownField)

	s.Views().Mutate(func(cfg *grid.Config) {
		cfg.SimpleFilters["supplier"] = "acme"
	})
	g := s.Grid()
	require.Len(t, g.Rows, 1)
	assert.Equal(t, 10.0, g.Aggregates["value"].Number)
	assert.NotContains(t, g.Aggregates, "code")
	assert.True(t, s.Views().Dirty())
}
