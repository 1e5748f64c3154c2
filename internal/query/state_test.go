package query

import (
	"math/rand"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFilter_UpsertDeleteAndPageReset(t *testing.T) {
	s := Apply(NewState(), SetPage{N: 3})
	require.Equal(t, 3, s.Page())

	s = Apply(s, SetFilter{Key: KeyName, Value: "chair"})
	assert.Equal(t, 1, s.Page(), "filter change must reset the page")
	assert.Equal(t, "name=chair", ToLocationString(s))

	s = Apply(s, SetFilter{Key: KeyPrice, Value: PriceUnder100})
	s = Apply(s, SetFilter{Key: KeyName, Value: "oak chair"})
	assert.Equal(t, "name=oak+chair&price=under100", ToLocationString(s), "upsert keeps position")

	s = Apply(s, SetFilter{Key: KeyName, Value: ""})
	assert.Equal(t, "price=under100", ToLocationString(s))
	assert.Equal(t, "", s.Filters().Get(KeyName))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	base := Apply(NewState(), SetFilter{Key: KeyName, Value: "a"})
	_ = Apply(base, SetFilter{Key: KeyName, Value: ""})
	_ = Apply(base, ToggleCategory{Name: "Chairs"})
	assert.Equal(t, "name=a", ToLocationString(base))
	assert.Empty(t, base.Selected())
}

func TestSetFilter_UnknownKeyIgnored(t *testing.T) {
	s := Apply(Apply(NewState(), SetPage{N: 2}), SetFilter{Key: "sort", Value: "desc"})
	assert.Equal(t, "page=2", ToLocationString(s))
}

func TestPageTransitions(t *testing.T) {
	s := NewState()
	s = Apply(s, PrevPage{})
	assert.Equal(t, 1, s.Page(), "page never drops below 1")
	s = Apply(s, NextPage{})
	s = Apply(s, NextPage{})
	assert.Equal(t, 3, s.Page())
	s = Apply(s, SetPage{N: -4})
	assert.Equal(t, 1, s.Page())
}

func TestToggleCategory_ClickOrderSerialization(t *testing.T) {
	s := NewState()
	s = Apply(s, ToggleCategory{Name: "Lamps"})
	s = Apply(s, ToggleCategory{Name: "Chairs"})
	assert.Equal(t, "Lamps,Chairs", s.Filters().Get(KeyCategory))
	assert.True(t, s.IsSelected("Chairs"))

	s = Apply(s, ToggleCategory{Name: "Lamps"})
	assert.Equal(t, []string{"Chairs"}, s.Selected())

	s = Apply(s, ToggleCategory{Name: "Chairs"})
	assert.Empty(t, s.Selected())
	assert.Equal(t, "", ToLocationString(s), "empty category set leaves no key behind")
}

func TestFromLocation(t *testing.T) {
	s := FromLocation("?name=oak+chair&bogus=1&category=Lamps%2CChairs&page=2&price=")
	assert.Equal(t, 2, s.Page())
	assert.Equal(t, "oak chair", s.Filters().Get(KeyName))
	assert.Equal(t, []string{"Lamps", "Chairs"}, s.Selected())
	assert.Equal(t, "name=oak+chair&category=Lamps%2CChairs&page=2", ToLocationString(s))

	assert.Equal(t, 1, FromLocation("page=0").Page())
	assert.Equal(t, 1, FromLocation("page=x").Page())
	assert.Equal(t, "", ToLocationString(FromLocation("")))
}

func TestFromLocation_NormalizesCategoryList(t *testing.T) {
	s := FromLocation("category=Lamps,,Chairs,&name=oak")
	assert.Equal(t, []string{"Lamps", "Chairs"}, s.Selected())
	assert.Equal(t, "Lamps,Chairs", s.Filters().Get(KeyCategory))
	assert.Equal(t, "category=Lamps%2CChairs&name=oak", ToLocationString(s))

	empty := FromLocation("category=,,&page=2")
	assert.Empty(t, empty.Selected())
	assert.Equal(t, "page=2", ToLocationString(empty))
}

func TestFilters_Values(t *testing.T) {
	s := Apply(NewState(), SetFilter{Key: KeyDescription, Value: "red"})
	s = Apply(s, ToggleCategory{Name: "Chairs"})
	assert.Equal(t, url.Values{"description": {"red"}, "category": {"Chairs"}}, s.Filters().Values())
}

// No sequence of SetFilter calls may leave an empty-valued key in the URL.
func TestToLocationString_NeverEmitsEmptyValues(t *testing.T) {
	keys := []string{KeyName, KeyDescription, KeyPrice, KeyCategory}
	values := []string{"", "", "chair", "a b", PriceUnder500, "x,y"}
	r := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		s := NewState()
		for step := 0; step < 25; step++ {
			s = Apply(s, SetFilter{Key: keys[r.Intn(len(keys))], Value: values[r.Intn(len(values))]})
			loc := ToLocationString(s)
			again := ToLocationString(FromLocation(loc))
			require.Equal(t, loc, again, "projection must be idempotent")
			for _, part := range strings.Split(loc, "&") {
				if part == "" {
					continue
				}
				assert.False(t, strings.HasSuffix(part, "="), "empty value in %q", loc)
			}
			assert.Equal(t, 1, s.Page())
		}
	}
}
