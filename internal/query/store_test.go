package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type navRecorder struct{ locations []string }

func (n *navRecorder) Replace(loc string) { n.locations = append(n.locations, loc) }

func TestStore_SetFilterRewritesLocationAndNotifies(t *testing.T) {
	nav := &navRecorder{}
	s := NewStore("/", "page=3", nav)

	var seen []int
	s.Subscribe(func(st State) { seen = append(seen, st.Page()) })

	require.True(t, s.SetFilter(KeyName, "chair"))
	assert.Equal(t, []string{"/?name=chair"}, nav.locations)
	assert.Equal(t, []int{1}, seen, "observers run synchronously with the new state")
	assert.Equal(t, 1, s.Page())

	s.SetFilter(KeyName, "")
	assert.Equal(t, "/", nav.locations[len(nav.locations)-1])
}

func TestStore_NoChangeNoNotify(t *testing.T) {
	nav := &navRecorder{}
	s := NewStore("/", "", nav)
	calls := 0
	s.Subscribe(func(State) { calls++ })

	assert.False(t, s.SetFilter(KeyName, ""))
	assert.False(t, s.Prev())
	assert.Zero(t, calls)
	assert.Empty(t, nav.locations)
}

func TestStore_PageReflectedInLocation(t *testing.T) {
	nav := &navRecorder{}
	s := NewStore("/", "name=chair", nav)
	s.Next()
	assert.Equal(t, "/?name=chair&page=2", s.Location())
	assert.Equal(t, []string{"/?name=chair&page=2"}, nav.locations)
	s.Prev()
	assert.Equal(t, "/?name=chair", s.Location())
}

func TestStore_CurrentFiltersIsSnapshot(t *testing.T) {
	s := NewStore("/", "name=a", nil)
	snap := s.CurrentFilters()
	s.SetFilter(KeyName, "b")
	snap[0].Value = "mutated"
	assert.Equal(t, "b", s.CurrentFilters().Get(KeyName))
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore("/", "", nil)
	var order []string
	s.Subscribe(func(State) { order = append(order, "first") })
	un := s.Subscribe(func(State) { order = append(order, "second") })
	s.SetFilter(KeyName, "x")
	un()
	s.SetFilter(KeyName, "y")
	assert.Equal(t, []string{"first", "second", "first"}, order)
}
