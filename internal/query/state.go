// Package query owns the list filter and pagination state and its projection
// onto the address bar.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Filter keys understood by the product listing.
const (
	KeyName        = "name"
	KeyDescription = "description"
	KeyPrice       = "price"
	KeyCategory    = "category"

	keyPage = "page"
)

// Price buckets. The catalog service translates them to ranges; the client forwards them verbatim.
const (
	PriceUnder100 = "under100"
	PriceUnder500 = "under500"
	PriceMore500  = "more500"
)

func IsFilterKey(k string) bool {
	switch k {
	case KeyName, KeyDescription, KeyPrice, KeyCategory:
		return true
	}
	return false
}

type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Filters is an ordered, read-only view of the active filters.
type Filters []Pair

func (f Filters) Get(key string) string {
	for _, p := range f {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Values returns the filters as request parameters.
func (f Filters) Values() url.Values {
	v := make(url.Values, len(f))
	for _, p := range f {
		v.Set(p.Key, p.Value)
	}
	return v
}

// Encode serializes in insertion order, the way URLSearchParams does.
func (f Filters) Encode() string {
	var b strings.Builder
	for i, p := range f {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// State is a value; every transition returns a new State.
type State struct {
	filters  []Pair
	page     int
	selected []string
}

func NewState() State { return State{page: 1} }

func (s State) Filters() Filters {
	return append(Filters(nil), s.filters...)
}

func (s State) Page() int {
	if s.page < 1 {
		return 1
	}
	return s.page
}

// Selected returns the selected category names in click order.
func (s State) Selected() []string {
	return append([]string(nil), s.selected...)
}

func (s State) IsSelected(name string) bool {
	for _, n := range s.selected {
		if n == name {
			return true
		}
	}
	return false
}

func (s State) Equal(o State) bool {
	if s.Page() != o.Page() || len(s.filters) != len(o.filters) || len(s.selected) != len(o.selected) {
		return false
	}
	for i := range s.filters {
		if s.filters[i] != o.filters[i] {
			return false
		}
	}
	for i := range s.selected {
		if s.selected[i] != o.selected[i] {
			return false
		}
	}
	return true
}

func (s State) clone() State {
	return State{
		filters:  append([]Pair(nil), s.filters...),
		page:     s.Page(),
		selected: append([]string(nil), s.selected...),
	}
}

// set upserts key in place, or removes it when value is empty.
func (s *State) set(key, value string) {
	for i, p := range s.filters {
		if p.Key != key {
			continue
		}
		if value == "" {
			s.filters = append(s.filters[:i], s.filters[i+1:]...)
		} else {
			s.filters[i].Value = value
		}
		return
	}
	if value != "" {
		s.filters = append(s.filters, Pair{Key: key, Value: value})
	}
}

// ToLocationString is the canonical query string for s, without the leading '?'.
// Empty filters never appear; page is included only past the first page.
func ToLocationString(s State) string {
	qs := Filters(s.filters).Encode()
	if p := s.Page(); p > 1 {
		if qs != "" {
			qs += "&"
		}
		qs += keyPage + "=" + strconv.Itoa(p)
	}
	return qs
}

// FromLocation rebuilds a State from a raw query string. Unknown keys and
// malformed escapes are dropped.
func FromLocation(rawQuery string) State {
	s := NewState()
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		switch {
		case key == keyPage:
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				s.page = n
			}
		case IsFilterKey(key):
			s.set(key, value)
		}
	}
	s.selected = splitCategories(s.Filters().Get(KeyCategory))
	s.set(KeyCategory, strings.Join(s.selected, ","))
	return s
}

func splitCategories(v string) []string {
	var out []string
	for _, name := range strings.Split(v, ",") {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
