package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameEventIgnoresFavorite(t *testing.T) {
	a := Event{ID: "tm1", Title: "Jazz", Favorite: false}
	b := a
	b.Favorite = true

	assert.True(t, a.SameEvent(b))
	assert.False(t, a.Equal(b))

	b.Favorite = false
	assert.True(t, a.Equal(b))
}

func TestEqualIgnoresDistance(t *testing.T) {
	a := Event{ID: "x", Title: "A", Distance: 1.5}
	b := Event{ID: "x", Title: "A", Distance: 9}
	assert.True(t, a.Equal(b))
}

func TestMatchesQuery(t *testing.T) {
	e := Event{Title: "Concert de Jazz"}

	assert.True(t, e.MatchesQuery(""))
	assert.True(t, e.MatchesQuery("jazz"))
	assert.True(t, e.MatchesQuery("CONCERT"))
	assert.False(t, e.MatchesQuery("rock"))
}

func TestIsAllCategories(t *testing.T) {
	assert.True(t, IsAllCategories(""))
	assert.True(t, IsAllCategories(CategoryAll))
	assert.False(t, IsAllCategories(CategoryMusic))
}

func TestFixNewerThan(t *testing.T) {
	var none *Fix
	older := &Fix{}
	newer := &Fix{Time: older.Time.Add(1)}

	assert.True(t, older.NewerThan(none))
	assert.True(t, newer.NewerThan(older))
	assert.False(t, older.NewerThan(newer))
	assert.False(t, none.NewerThan(older))
}
