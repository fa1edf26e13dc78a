package semver_test

import (
	"testing"

	"github.com/EpykLab/gryt-ci/pkg/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := semver.Parse("v2.3.4")
	require.NoError(t, err)
	assert.Equal(t, semver.Version{Major: 2, Minor: 3, Patch: 4}, v)

	// Prefix is optional on input, canonical on output
	v, err = semver.Parse("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", v.String())

	_, err = semver.Parse("v1.0")
	assert.Error(t, err)
	_, err = semver.Parse("v1.0.0-rc.1")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "v1.2.3", semver.Normalize("1.2.3"))
	assert.Equal(t, "v1.2.3", semver.Normalize("v1.2.3"))
	assert.Equal(t, "garbage", semver.Normalize("garbage"))
}

func TestCompare(t *testing.T) {
	a, _ := semver.Parse("v1.2.3")
	b, _ := semver.Parse("v1.3.0")
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestBump(t *testing.T) {
	v, _ := semver.Parse("v1.2.3")
	assert.Equal(t, "v2.0.0", v.Bump("major").String())
	assert.Equal(t, "v1.3.0", v.Bump("minor").String())
	assert.Equal(t, "v1.2.4", v.Bump("patch").String())
}

func TestNextPatch(t *testing.T) {
	base, _ := semver.Parse("v1.2.0")

	// No existing versions on the line: simple bump
	assert.Equal(t, "v1.2.1", semver.NextPatch(base, nil).String())

	// Later patches already claimed on the same minor line
	existing := []semver.Version{
		{Major: 1, Minor: 2, Patch: 1},
		{Major: 1, Minor: 2, Patch: 2},
		{Major: 1, Minor: 3, Patch: 9}, // different line, ignored
	}
	assert.Equal(t, "v1.2.3", semver.NextPatch(base, existing).String())
}
