package nameutil_test

import (
	"errors"
	"testing"

	"github.com/EpykLab/gryt-ci/pkg/errclass"
	"github.com/EpykLab/gryt-ci/pkg/nameutil"
	"github.com/stretchr/testify/assert"
)

func TestValidateChangeID(t *testing.T) {
	assert.NoError(t, nameutil.ValidateChangeID("FEAT-1"))
	assert.NoError(t, nameutil.ValidateChangeID("bug_42.fix"))

	for _, bad := range []string{"", "a/b", "a\\b", "..", "has space", "ctrl\x00char"} {
		err := nameutil.ValidateChangeID(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
		assert.True(t, errors.Is(err, errclass.ErrNameInvalid))
	}
}

func TestValidateLabel(t *testing.T) {
	assert.NoError(t, nameutil.ValidateLabel("pre-promotion"))
	assert.Error(t, nameutil.ValidateLabel("a/b"))
}
