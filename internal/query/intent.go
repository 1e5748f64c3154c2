package query

import "strings"

// Intent is a requested transition of the list state.
type Intent interface {
	apply(State) State
}

// SetFilter upserts or clears one filter and returns to the first page.
type SetFilter struct {
	Key   string
	Value string
}

// SetPage jumps to page N; values below 1 are clamped.
type SetPage struct{ N int }

type NextPage struct{}

type PrevPage struct{}

// ToggleCategory adds or removes one category from the selected set.
type ToggleCategory struct{ Name string }

// Apply is the reducer. It never mutates s.
func Apply(s State, in Intent) State {
	if in == nil {
		return s
	}
	return in.apply(s.clone())
}

func (in SetFilter) apply(s State) State {
	if !IsFilterKey(in.Key) {
		return s
	}
	s.set(in.Key, in.Value)
	if in.Key == KeyCategory {
		s.selected = splitCategories(in.Value)
	}
	s.page = 1
	return s
}

func (in SetPage) apply(s State) State {
	s.page = max(in.N, 1)
	return s
}

func (NextPage) apply(s State) State {
	s.page++
	return s
}

func (PrevPage) apply(s State) State {
	s.page = max(s.page-1, 1)
	return s
}

func (in ToggleCategory) apply(s State) State {
	if in.Name == "" {
		return s
	}
	next := make([]string, 0, len(s.selected)+1)
	found := false
	for _, n := range s.selected {
		if n == in.Name {
			found = true
			continue
		}
		next = append(next, n)
	}
	if !found {
		next = append(next, in.Name)
	}
	return SetFilter{Key: KeyCategory, Value: strings.Join(next, ",")}.apply(s)
}
