package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

func TestParseChangeFlags(t *testing.T) {
	changes, err := parseChangeFlags([]string{
		"auth-token:add:Token based auth",
		"fix-leak:fix:Connection leak: pool exhaustion",
	})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "auth-token", changes[0].ID)
	assert.Equal(t, model.ChangeAdd, changes[0].Type)
	assert.Equal(t, "Token based auth", changes[0].Title)
	// Colons in the title survive.
	assert.Equal(t, "Connection leak: pool exhaustion", changes[1].Title)

	_, err = parseChangeFlags([]string{"missing-title:add"})
	require.Error(t, err)
}

func TestParseDetailFlags(t *testing.T) {
	details, err := parseDetailFlags([]string{"pipeline=1234", "url=https://ci.example.com/run/1"})
	require.NoError(t, err)
	assert.Equal(t, "1234", details["pipeline"])
	assert.Equal(t, "https://ci.example.com/run/1", details["url"])

	_, err = parseDetailFlags([]string{"novalue"})
	require.Error(t, err)

	empty, err := parseDetailFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestActorName(t *testing.T) {
	t.Setenv("GRYT_ACTOR", "release-bot")
	assert.Equal(t, "release-bot", actorName())

	t.Setenv("GRYT_ACTOR", "")
	t.Setenv("USER", "alice")
	assert.Equal(t, "alice", actorName())

	t.Setenv("USER", "")
	assert.Equal(t, "unknown", actorName())
}

func TestNormalizeVersionArg(t *testing.T) {
	assert.Equal(t, "v1.2.3", normalizeVersionArg("1.2.3"))
	assert.Equal(t, "v1.2.3", normalizeVersionArg("v1.2.3"))
}
