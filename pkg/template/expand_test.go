package template

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		vars  map[string]string
		match string
	}{
		{
			name:  "date",
			input: "release-{date}",
			match: `^release-\d{4}-\d{2}-\d{2}$`,
		},
		{
			name:  "datetime",
			input: "pre-deploy-{datetime}",
			match: `^pre-deploy-\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}$`,
		},
		{
			name:  "unix",
			input: "snap-{unix}",
			match: `^snap-\d+$`,
		},
		{
			name:  "custom var",
			input: "branch-{branch}",
			vars:  map[string]string{"branch": "main"},
			match: `^branch-main$`,
		},
		{
			name:  "custom var overrides builtin",
			input: "{date}",
			vars:  map[string]string{"date": "frozen"},
			match: `^frozen$`,
		},
		{
			name:  "no placeholders",
			input: "plain-label",
			match: `^plain-label$`,
		},
		{
			name:  "unknown placeholder left alone",
			input: "snap-{nope}",
			match: `^snap-\{nope\}$`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.input, tt.vars)
			assert.Regexp(t, regexp.MustCompile(tt.match), got)
		})
	}
}

func TestExpandLabel_StaysLabelSafe(t *testing.T) {
	got := ExpandLabel("backup-{date}-{time}")
	assert.Regexp(t, `^backup-[0-9-]+-[0-9-]+$`, got)
	assert.NotContains(t, got, "{")
}
