package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColdStartIsNotLogout(t *testing.T) {
	tr := NewTracker()
	got := tr.Advance(Unauthenticated())
	assert.False(t, got.LoggedOut())
	assert.False(t, got.LoggedIn())
}

func TestLoginThenLogout(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.Advance(Authenticated("u1")).LoggedIn())

	same := tr.Advance(Authenticated("u1"))
	assert.False(t, same.LoggedIn())
	assert.False(t, same.SwitchedUser())

	assert.True(t, tr.Advance(Unauthenticated()).LoggedOut())
	assert.True(t, tr.Advance(Authenticated("u1")).LoggedIn())
}

func TestSwitchUser(t *testing.T) {
	tr := NewTracker()
	tr.Advance(Authenticated("a"))
	got := tr.Advance(Authenticated("b"))
	assert.True(t, got.SwitchedUser())
	assert.False(t, got.LoggedIn())
}

func TestLoadingAfterSettledKeepsPrevious(t *testing.T) {
	tr := NewTracker()
	tr.Advance(Authenticated("a"))
	tr.Advance(Loading())
	assert.Equal(t, Authenticated("a"), tr.Current())
	assert.True(t, tr.Advance(Unauthenticated()).LoggedOut())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "authenticated(u1)", Authenticated("u1").String())
	assert.Equal(t, "loading", Loading().String())
	assert.False(t, Authenticated("").IsAuthenticated())
}
