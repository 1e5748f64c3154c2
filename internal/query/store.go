package query

// Navigator rewrites the address bar. Replace must not add a history entry.
type Navigator interface {
	Replace(location string)
}

type NavigatorFunc func(location string)

func (f NavigatorFunc) Replace(location string) { f(location) }

// Store owns one State and keeps the location in step with it.
// It is not safe for concurrent use; the owning view serializes access.
type Store struct {
	path      string
	state     State
	nav       Navigator
	observers []observer
	nextID    int
}

type observer struct {
	id int
	fn func(State)
}

func NewStore(path, rawQuery string, nav Navigator) *Store {
	if path == "" {
		path = "/"
	}
	return &Store{path: path, state: FromLocation(rawQuery), nav: nav}
}

// Dispatch applies in and reports whether the state changed. When it did, the
// location is rewritten if its projection changed and observers run in
// subscription order before Dispatch returns.
func (s *Store) Dispatch(in Intent) bool {
	prev := s.state
	next := Apply(prev, in)
	if next.Equal(prev) {
		return false
	}
	s.state = next

	if loc := ToLocationString(next); loc != ToLocationString(prev) && s.nav != nil {
		s.nav.Replace(s.locationFor(loc))
	}
	for _, o := range append([]observer(nil), s.observers...) {
		o.fn(next)
	}
	return true
}

func (s *Store) SetFilter(key, value string) bool {
	return s.Dispatch(SetFilter{Key: key, Value: value})
}

func (s *Store) SetPage(n int) bool { return s.Dispatch(SetPage{N: n}) }

func (s *Store) Next() bool { return s.Dispatch(NextPage{}) }

func (s *Store) Prev() bool { return s.Dispatch(PrevPage{}) }

func (s *Store) ToggleCategory(name string) bool {
	return s.Dispatch(ToggleCategory{Name: name})
}

// CurrentFilters returns a snapshot; later changes do not affect it.
func (s *Store) CurrentFilters() Filters { return s.state.Filters() }

func (s *Store) Page() int { return s.state.Page() }

func (s *Store) State() State { return s.state.clone() }

// Location is the path plus canonical query string.
func (s *Store) Location() string { return s.locationFor(ToLocationString(s.state)) }

func (s *Store) locationFor(qs string) string {
	if qs == "" {
		return s.path
	}
	return s.path + "?" + qs
}

// Subscribe registers fn for every state change and returns its removal.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}
