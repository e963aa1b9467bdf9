package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggle(t *testing.T) {
	set, added := Toggle(nil, "a")
	assert.True(t, added)
	assert.Equal(t, []string{"a"}, set)

	set, added = Toggle(set, "b")
	assert.True(t, added)
	assert.Equal(t, []string{"a", "b"}, set)

	set, added = Toggle(set, "a")
	assert.False(t, added)
	assert.Equal(t, []string{"b"}, set)

	set, added = Toggle(set, "b")
	assert.False(t, added)
	assert.Empty(t, set)
}

func TestToggle_DoesNotAliasRemovals(t *testing.T) {
	base := []string{"a", "b", "c"}
	removed, _ := Toggle(base, "a")

	// Removing from the front must not shift elements inside base's array.
	assert.Equal(t, []string{"a", "b", "c"}, base)
	assert.Equal(t, []string{"b", "c"}, removed)
}

func TestGraphQueries(t *testing.T) {
	u := User{
		Following:        []string{"u2", "u3"},
		FollowedHashtags: []string{"golang"},
	}

	assert.True(t, u.IsFollowing("u2"))
	assert.False(t, u.IsFollowing("u9"))
	assert.True(t, u.FollowsHashtag("golang"))
	assert.False(t, u.FollowsHashtag("rust"))
}
