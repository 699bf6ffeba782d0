package views

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// guardFixture has two saved views, "One" active with a dirty working state.
func guardFixture(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	m := NewManager(testSchema(), nil, store)
	m.Mutate(filterBy("two"))
	_, err := m.SaveAs(ctx, "Two")
	require.NoError(t, err)
	m.Mutate(filterBy("one"))
	_, err = m.SaveAs(ctx, "One")
	require.NoError(t, err)
	m.Mutate(filterBy("edited"))
	require.True(t, m.Dirty())
	return m, store
}

func TestGuard_CleanSwitchBypasses(t *testing.T) {
	m, _ := guardFixture(t)
	m.Mutate(filterBy("one"))
	require.False(t, m.Dirty())

	switched, err := m.Activate("Two")
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Equal(t, "two", m.Working().SimpleFilters["code"])
	assert.Equal(t, StateIdle, m.Guard().State)
}

func TestGuard_SameTargetBypasses(t *testing.T) {
	m, _ := guardFixture(t)
	switched, err := m.Activate("one")
	require.NoError(t, err)
	assert.True(t, switched)
	assert.False(t, m.Guard().Pending())
	assert.True(t, m.Dirty(), "reactivating keeps the working state")
}

func TestGuard_DirtySwitchPends(t *testing.T) {
	m, _ := guardFixture(t)

	switched, err := m.Activate("Two")
	require.NoError(t, err)
	assert.False(t, switched)

	g := m.Guard()
	assert.Equal(t, StatePendingSwitch, g.State)
	assert.Equal(t, "Two", g.Target)
	assert.Equal(t, []Resolution{ResolveSave, ResolveDiscard, ResolveCancel}, g.Options())
	assert.Equal(t, "One", m.Active().Name)

	_, err = m.Activate("Default")
	assert.ErrorIs(t, err, ErrSwitchPending)
}

func TestGuard_ResolveSave(t *testing.T) {
	m, store := guardFixture(t)
	one := m.Active()
	_, err := m.Activate("Two")
	require.NoError(t, err)

	require.NoError(t, m.Resolve(context.Background(), ResolveSave))
	assert.Equal(t, StateIdle, m.Guard().State)
	assert.Equal(t, "Two", m.Active().Name)
	assert.False(t, m.Dirty())
	assert.Equal(t, "edited", store.views[one.ID].Config.SimpleFilters["code"])
}

func TestGuard_ResolveDiscard(t *testing.T) {
	m, store := guardFixture(t)
	one := m.Active()
	_, err := m.Activate("Two")
	require.NoError(t, err)

	require.NoError(t, m.Resolve(context.Background(), ResolveDiscard))
	assert.Equal(t, StateIdle, m.Guard().State)
	assert.Equal(t, "Two", m.Active().Name)
	assert.Equal(t, "one", store.views[one.ID].Config.SimpleFilters["code"])

	back, err := m.Activate("One")
	require.NoError(t, err)
	assert.True(t, back)
	assert.Equal(t, "one", m.Working().SimpleFilters["code"])
}

func TestGuard_ResolveCancel(t *testing.T) {
	m, _ := guardFixture(t)
	_, err := m.Activate("Two")
	require.NoError(t, err)

	require.NoError(t, m.Resolve(context.Background(), ResolveCancel))
	assert.Equal(t, StateIdle, m.Guard().State)
	assert.Equal(t, "One", m.Active().Name)
	assert.Equal(t, "edited", m.Working().SimpleFilters["code"])
	assert.True(t, m.Dirty())
}

func TestGuard_SaveFromDefaultStaysPending(t *testing.T) {
	ctx := context.Background()
	m, _ := guardFixture(t)
	switched, err := m.Activate("Default")
	require.NoError(t, err)
	require.False(t, switched)
	require.NoError(t, m.Resolve(ctx, ResolveDiscard))

	m.Mutate(filterBy("scratch"))
	_, err = m.Activate("Two")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Resolve(ctx, ResolveSave), ErrDefaultReadOnly)
	assert.True(t, m.Guard().Pending())

	require.NoError(t, m.Resolve(ctx, ResolveDiscard))
	assert.Equal(t, "Two", m.Active().Name)
}

func TestGuard_ResolveWithoutPending(t *testing.T) {
	m := NewManager(testSchema(), nil, nil)
	assert.ErrorIs(t, m.Resolve(context.Background(), ResolveCancel), ErrNoPendingSwitch)
	assert.Nil(t, m.Guard().Options())

	_, err := ParseResolution("later")
	assert.ErrorIs(t, err, ErrBadResolution)
	r, err := ParseResolution("discard")
	require.NoError(t, err)
	assert.Equal(t, ResolveDiscard, r)
}

func TestGuard_DeletingTargetClearsPending(t *testing.T) {
	m, _ := guardFixture(t)
	_, err := m.Activate("Two")
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), "Two"))
	assert.False(t, m.Guard().Pending())
	assert.Equal(t, "One", m.Active().Name)
}
